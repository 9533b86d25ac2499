// Package logging assembles structured slog loggers and formatting helpers used
// across camerasync.
//
// It owns the console and JSON handlers, level parsing, and the fan-out of one
// record to stdout and the log file. Context helpers tag log lines with the
// run id, worker, image group, and pipeline stage so a single ingest run can be
// followed across parallel workers. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
