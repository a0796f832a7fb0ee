// Package events publishes fire-and-forget dispatch notifications.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectDispatchCompleted is published once per finished dispatch
const SubjectDispatchCompleted = "dispatch.completed"

// Mode names the dispatch style that produced an event
type Mode string

const (
	ModeBest    Mode = "best"
	ModeCompare Mode = "compare"
	ModeSingle  Mode = "single"
)

// DispatchEvent summarizes one finished dispatch
type DispatchEvent struct {
	ID         uuid.UUID `json:"id"`
	Mode       Mode      `json:"mode"`
	UseCase    string    `json:"use_case,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Cached     bool      `json:"cached,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers dispatch events
type Publisher interface {
	Publish(ctx context.Context, event DispatchEvent) error
	Connected() bool
	Close() error
}

// Conn is the subset of *nats.Conn the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
	IsConnected() bool
	Drain() error
}

// NATSPublisher publishes events as JSON on a NATS subject
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  *zap.Logger
}

// Connect dials NATS and returns a publisher on SubjectDispatchCompleted
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("llm-router"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return NewNATSPublisher(nc, SubjectDispatchCompleted, logger), nil
}

// NewNATSPublisher wraps an existing connection
func NewNATSPublisher(conn Conn, subject string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// Publish fills in ID and OccurredAt when unset and sends the event
func (p *NATSPublisher) Publish(_ context.Context, event DispatchEvent) error {
	if event.Mode == "" {
		return errors.New("event mode required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, body); err != nil {
		p.logger.Warn("failed to publish dispatch event", zap.String("id", event.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

// Connected reports the NATS connection state
func (p *NATSPublisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NoOpPublisher drops every event. It stands in when NATS_URL is unset.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, DispatchEvent) error { return nil }
func (NoOpPublisher) Connected() bool { return false }
func (NoOpPublisher) Close() error { return nil }
