// Package conversation drives each chat through resource, range, quality, and
// output mode to a pipeline run.
//
// The Machine loads the chat's session, applies one input under a per-chat
// lock, emits notices through the Notifier, and stores the result. Validation
// failures re-prompt without touching the session. A new http(s) link from any
// idle state starts over with that link. While a run is in flight every input
// except cancel is answered with a busy notice, so a chat never has two runs.
package conversation
