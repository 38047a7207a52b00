// Package preflight verifies the environment before the daemon starts and
// before each run: directory permissions, free space in the staging area,
// external tool availability, and the bot token.
package preflight
