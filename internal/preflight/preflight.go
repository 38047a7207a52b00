package preflight

import (
	"context"
	"strings"

	"clipper/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the preflight checks for cfg. The Telegram check only runs
// when a token is configured and online is true.
func RunAll(ctx context.Context, cfg *config.Config, online bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace(ctx, "Staging free space", cfg.Paths.StagingDir, cfg.Limits.MinFreeBytes),
	}

	if online && strings.TrimSpace(cfg.Telegram.Token) != "" {
		results = append(results, CheckTelegram(ctx, cfg.Telegram.APIURL, cfg.Telegram.Token))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
