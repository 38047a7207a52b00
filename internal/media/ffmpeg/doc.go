// Package ffmpeg cuts media ranges with the ffmpeg binary.
//
// Trim prefers stream copy, supports an H.264/AAC re-encode for sources whose
// container cannot be cut by copying, and an MP3 audio extraction. Commands go
// through a Runner so callers can test argument construction without ffmpeg
// installed.
package ffmpeg
