// Package ytdlp wraps the yt-dlp command line tool: probing a resource for
// its formats, downloading a selector into a run directory, and resolving a
// selector to a direct media URL.
//
// Errors carry services markers. A selector the provider no longer serves is
// tagged ErrFormatUnavailable so the extractor can move down its fallback
// ladder; every other failure is terminal for the run.
package ytdlp
