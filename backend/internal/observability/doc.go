// Package observability provides structured logging for the CRM backend.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - HTTP request logging with request ID propagation
package observability
