package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message(err), details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message(err))

	case services.IsUnavailableError(err):
		logger.Warn("dependency unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, message(err))

	case services.IsTimeoutError(err):
		writeErr = utils.WriteGatewayTimeout(w, message(err))

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// message returns the client-facing text of a domain error, without the
// type prefix and wrapped cause that Error() adds.
func message(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}
