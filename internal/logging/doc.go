// Package logging constructs the process-wide slog logger.
//
// Two output formats are supported: a human-oriented console format and JSON
// for log shippers. When no format is configured the package picks console on
// interactive terminals and JSON otherwise.
package logging
