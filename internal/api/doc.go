// Package api serves the helper HTTP API.
//
// Routes:
//
//	GET /             liveness
//	GET /info         title, duration and progressive formats for ?url=
//	GET /direct_url   direct link of the best progressive format at or below ?height=
//	GET /status       in-flight runs and staging usage
//
// Every route except / requires "Authorization: Bearer <token>" when a token
// is configured.
package api
