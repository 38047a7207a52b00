package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget is one directory swept by Prune.
type RetentionTarget struct {
	// Name labels the target in log records ("logs", "staging").
	Name string
	Dir  string
	// Pattern is a filepath.Match glob; empty matches every file.
	Pattern string
	// MaxAge is how long a file may sit unmodified. Zero disables the target.
	MaxAge time.Duration
	// Keep lists paths that survive regardless of age, such as the active log.
	Keep []string
}

// PruneResult totals one Prune call across its targets.
type PruneResult struct {
	Removed int
	Bytes   int64
	Failed  int
}

// LogRetention returns the target for rotated clipper log files in dir,
// keeping active. A retentionDays value <= 0 disables it.
func LogRetention(dir, active string, retentionDays int) RetentionTarget {
	target := RetentionTarget{Name: "logs", Dir: dir, Pattern: LogFilePattern, Keep: []string{active}}
	if retentionDays > 0 {
		target.MaxAge = time.Duration(retentionDays) * 24 * time.Hour
	}
	return target
}

// Prune removes regular files older than each target's MaxAge. Directories are
// never descended into or removed.
func Prune(logger *slog.Logger, targets ...RetentionTarget) PruneResult {
	if logger == nil {
		logger = NewNop()
	}
	var total PruneResult
	now := time.Now()
	for _, target := range targets {
		res := target.prune(logger, now)
		total.Removed += res.Removed
		total.Bytes += res.Bytes
		total.Failed += res.Failed
		if res.Removed > 0 || res.Failed > 0 {
			logger.Info("retention sweep",
				String("target", target.Name),
				String("dir", target.Dir),
				Int("removed", res.Removed),
				Int64("bytes", res.Bytes),
				Int("failed", res.Failed),
				String(FieldEventType, "retention_pruned"),
			)
		}
	}
	return total
}

func (t RetentionTarget) prune(logger *slog.Logger, now time.Time) PruneResult {
	var res PruneResult
	dir := strings.TrimSpace(t.Dir)
	if dir == "" || t.MaxAge <= 0 {
		return res
	}
	pattern := strings.TrimSpace(t.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return res
	}
	keep := make(map[string]struct{}, len(t.Keep))
	for _, path := range t.Keep {
		if path = strings.TrimSpace(path); path != "" {
			keep[absPath(path)] = struct{}{}
		}
	}
	cutoff := now.Add(-t.MaxAge)
	for _, path := range matches {
		path = absPath(path)
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			res.Failed++
			WarnWithContext(logger, "retention remove failed; file remains", "retention_failed",
				String("target", t.Name),
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of "+dir),
				String(FieldImpact, "file stays on disk until the next start"),
			)
			continue
		}
		res.Removed++
		res.Bytes += info.Size()
		logger.Debug("file pruned", String("target", t.Name), String("path", path))
	}
	return res
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
