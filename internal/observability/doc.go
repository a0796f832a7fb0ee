// Package observability provides structured logging and per-provider
// dispatch metrics for the router.
//
// This package implements:
//   - zap logger construction from level/format settings
//   - request ID propagation into log fields
//   - attempt metrics with in-memory and Redis-backed recorders
package observability
