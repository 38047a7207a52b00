// Package pipeline runs accepted requests: extract, split, deliver, in that
// order, inside a per-run workspace under the staging directory.
//
// Runner starts each run in its own goroutine, keeps at most one run per chat,
// and lets a chat cancel its run. The workspace is removed on every exit path,
// including panics, before the result reaches the completion hooks.
package pipeline
