// Package session holds the per-chat conversation record and its stores.
//
// MemoryStore serves tests and ephemeral deployments; SQLiteStore keeps
// sessions across restarts and resets any conversation a crash left running.
// Both copy on read and write so callers never share a record.
package session
