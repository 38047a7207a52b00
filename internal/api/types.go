package api

import "time"

// FormatInfo describes one progressive format in /info.
type FormatInfo struct {
	FormatID string `json:"format_id"`
	Height   int    `json:"height"`
	Ext      string `json:"ext"`
	FileSize int64  `json:"filesize,omitempty"`
}

// InfoResponse is the /info payload.
type InfoResponse struct {
	Title    string       `json:"title"`
	Duration float64      `json:"duration"`
	Formats  []FormatInfo `json:"formats"`
}

// DirectURLResponse is the /direct_url payload.
type DirectURLResponse struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Ext    string `json:"ext"`
}

// RunStatus describes an in-flight run.
type RunStatus struct {
	RunID   string    `json:"run_id"`
	ChatID  int64     `json:"chat_id"`
	Started time.Time `json:"started"`
	Elapsed string    `json:"elapsed"`
}

// StagingStatus reports staging directory usage.
type StagingStatus struct {
	Dir   string `json:"dir"`
	Bytes int64  `json:"bytes"`
	Files int    `json:"files"`
	Error string `json:"error,omitempty"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Service string        `json:"service"`
	Bot     string        `json:"bot,omitempty"`
	Uptime  string        `json:"uptime"`
	Runs    []RunStatus   `json:"runs"`
	Staging StagingStatus `json:"staging"`
}

type errorResponse struct {
	Error string `json:"error"`
}
