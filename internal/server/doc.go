// Package server implements the HTTP listener for the deployment webhook.
//
// This package provides:
//   - A webhook endpoint accepting POST on any path, guarded by Bearer
//     token authentication
//   - Synchronous triggering of the two-stage compose deployment, with the
//     exact plaintext response bodies callers script against
//   - Health, history and Prometheus metrics endpoints for monitoring
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/config: Immutable service configuration
//   - internal/deploy: Compose pull/up execution and the serialization gate
//   - internal/history: SQLite-based deployment history tracking
//
// Security features:
//   - Constant-time Bearer token comparison
//   - Request body size limit (1MB max; body content is never parsed)
//   - Optional per-IP rate limiting
//   - Deployment serialization (a concurrent deploy is rejected, never
//     interleaved)
package server
