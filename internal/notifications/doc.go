// Package notifications pushes operator events to ntfy.
//
// The topic comes from the notifications section of the config; without one
// every Publish is a no-op. Each event kind can be switched off individually.
package notifications
