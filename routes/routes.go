package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/handlers"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	if timeout := deps.Config.Server.WriteTimeout; timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(exposeRequestID)

	health := handlers.NewHealthHandler(deps, deps.Inference, deps.Config.Environment, deps.StartedAt, deps.Logger)
	inference := handlers.NewInferenceHandler(deps.Inference, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", health.HandleStatus)

		r.Get("/providers", inference.HandleProviders)
		r.Get("/stats", inference.HandleStats)

		r.Route("/use-cases", func(r chi.Router) {
			r.Get("/", inference.HandleUseCases)
			r.Get("/{useCase}/explanation", inference.HandleExplanation)
		})

		r.Route("/query", func(r chi.Router) {
			r.Post("/", inference.HandleQuery)
			r.Post("/{provider}", inference.HandleQueryProvider)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}

// exposeRequestID echoes the request ID so clients can correlate log lines
func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(chimiddleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
