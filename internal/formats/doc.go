// Package formats resolves which quality classes a resource can be delivered
// in. Only encodings carrying both a video and an audio stream are offered, so
// a chosen quality never produces a silent clip.
package formats
