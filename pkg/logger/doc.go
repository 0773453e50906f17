// Package logger builds slog loggers with environment-driven format and
// level. Services receive a *slog.Logger through their constructors; there
// is no package-level default.
package logger
