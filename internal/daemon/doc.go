// Package daemon coordinates the long-running clipper process.
//
// Run wires configuration, the SQLite session store, the pipeline runner,
// the conversation machine, the Telegram bot, and the optional HTTP API into
// a single lifecycle guarded by a flock-based lock so only one instance
// serves a state directory. On start it resets sessions left running by a
// previous process and sweeps their abandoned run workspaces.
//
// Keep orchestration here; the pipeline stages live in their own packages.
package daemon
