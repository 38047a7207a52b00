// Package logging assembles structured slog loggers and formatting helpers used
// across clipper.
//
// It owns the console and JSON handlers, tees console output into a per-process
// JSON log file, and exposes context-aware helpers so stage code automatically
// tags log lines with chat IDs, run IDs, stages, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot fail.
package logging
