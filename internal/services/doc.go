// Package services defines shared utilities consumed by the pipeline stages
// and the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp chat IDs, run IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so the conversation layer
//     can turn any terminal failure into one user-facing message.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, cancellation) stays uniform across the pipeline.
package services
