// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns the parsed Result
//
// Helper methods on Result give duration and size in the units the splitter
// and delivery checks work in.
package ffprobe
