// Package logging provides structured logging built on log/slog.
//
// The service logs JSON to stdout by default; the one-shot CLI logs text to
// stderr so stdout stays clean for the sensor report. Level, format and
// destination come from the logging section of the service config.
package logging
