// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - a diagnostic trace sink that tees console output into a rotating file,
//   - level parsing and convenience functions (Infof, ErrorKV, etc.).
//
// All services accept a context and extract the logger from it, so the
// detached helper can swap in its file-backed logger without touching callers.
package logger
