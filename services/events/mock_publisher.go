package events

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of Publisher using testify/mock.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event DispatchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
