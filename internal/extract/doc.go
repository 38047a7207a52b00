// Package extract acquires a resource through the provider and cuts the
// requested range out of it.
//
// Acquisition walks a selector ladder from the exact offered format down to the
// provider's "best"; only a format-unavailable answer moves to the next rung.
// Video is cut with a stream copy first and re-encoded when the copy fails or
// yields nothing. Audio is always converted to MP3.
package extract
