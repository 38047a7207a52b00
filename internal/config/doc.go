// Package config loads, normalizes, and validates clipper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLIPPER_BOT_TOKEN and the hosting platform's RENDER_EXTERNAL_URL and PORT.
// The Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a sorted quality ladder, and clear validation errors.
package config
