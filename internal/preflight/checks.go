package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sys/unix"

	"clipper/internal/config"
	"clipper/internal/deps"
	"clipper/internal/services"
)

// DefaultTelegramAPI is the public Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// EnsureFreeSpace fails with services.ErrNoSpace when the filesystem holding
// path has less than minBytes available. A non-positive minimum disables it.
func EnsureFreeSpace(ctx context.Context, path string, minBytes int64) error {
	if minBytes <= 0 {
		return nil
	}
	free, err := FreeBytes(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "disk usage", path, err)
	}
	if free < uint64(minBytes) {
		return services.Wrap(services.ErrNoSpace, "preflight", "disk usage",
			fmt.Sprintf("%s has %d bytes free, need %d", path, free, minBytes), nil)
	}
	return nil
}

// CheckFreeSpace reports EnsureFreeSpace as a Result.
func CheckFreeSpace(ctx context.Context, name, path string, minBytes int64) Result {
	free, err := FreeBytes(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/(1<<30))
	if minBytes > 0 && free < uint64(minBytes) {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", below minimum %d bytes", minBytes)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTelegram calls getMe to verify the bot token.
func CheckTelegram(ctx context.Context, apiURL, token string) Result {
	const name = "Telegram"

	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Name: name, Detail: "missing token"}
	}
	base := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if base == "" {
		base = DefaultTelegramAPI
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/bot"+token+"/getMe", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool `json:"ok"`
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unexpected response (%d)", resp.StatusCode)}
	}
	switch {
	case body.OK:
		return Result{Name: name, Passed: true, Detail: "@" + body.Result.Username}
	case resp.StatusCode == http.StatusUnauthorized:
		return Result{Name: name, Detail: "auth failed (invalid token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("getMe failed (%d: %s)", resp.StatusCode, body.Description)}
	}
}

// CheckSystemDeps evaluates the external tools the pipeline shells out to.
// Both the daemon and the CLI check command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for trimming and splitting",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for measuring segments",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlp,
			Description: "Required for probing and acquiring resources",
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinariesContext(ctx, requirements)
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (Bot API unreachable)"
	}
	return err.Error()
}
