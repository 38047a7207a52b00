package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/conversation"
	"clipper/internal/formats"
	"clipper/internal/logging"
	"clipper/internal/messages"
	"clipper/internal/notifications"
	"clipper/internal/pipeline"
	"clipper/internal/services"
	"clipper/internal/session"
	"clipper/internal/telegram"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the bot and blocks until a signal arrives or the bot stops.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateTransport(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	logger, logPath, err := logging.NewFromConfig(&logCfg, uuid.NewString()[:8])
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.Prune(logger,
		logging.LogRetention(cfg.Paths.LogDir, logPath, cfg.Logging.RetentionDays),
		logging.RetentionTarget{Name: "staging", Dir: cfg.Paths.StagingDir, MaxAge: cfg.StagingMaxAge()},
	)
	logDependencySnapshot(logger, cfg)

	store, err := session.OpenSQLite(cfg.SessionDBPath())
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}

	renderer, err := messages.New(cfg.Bot.Language)
	if err != nil {
		_ = store.Close()
		return err
	}
	bot, err := telegram.NewBot(cfg.Telegram, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	transport := telegram.NewTransport(bot.API(), renderer, logger)
	notifier := notifications.NewService(cfg)

	runner := NewRunner(signalCtx, cfg, transport, renderer.Caption, logger)
	provider := NewProvider(cfg)
	resolver := formats.NewResolver(provider, cfg.Quality.Ladder, logger)
	machine := conversation.NewMachine(store, resolver, runner, transport, conversation.Options{
		OfferAudio:      cfg.Quality.OfferAudio,
		FallbackHeight:  cfg.Quality.FallbackHeight,
		MaxRangeSeconds: cfg.Limits.MaxRangeSeconds,
	}, logger)
	runner.OnComplete(CompletionHook(machine, logger))
	if cfg.Notifications.RunFailures {
		runner.OnComplete(FailureHook(notifier, logger))
	}
	bot.SetHandler(machine)

	var apiServer *api.Server
	if cfg.API.Bind != "" {
		apiServer = api.New(api.Options{
			Bind:       cfg.API.Bind,
			Token:      cfg.API.Token,
			StagingDir: cfg.Paths.StagingDir,
			BotName:    bot.Username(),
		}, provider, runner, logger)
	}

	d, err := New(cfg, Components{
		Store:    store,
		Runner:   runner,
		Bot:      bot,
		API:      apiServer,
		Notifier: notifier,
	}, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	waitErr := d.Wait()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	d.Stop(shutdownCtx)
	logger.Info("clipper shutting down")
	if waitErr != nil && signalCtx.Err() == nil {
		return waitErr
	}
	return nil
}

// Completer receives run results, normally the conversation machine.
type Completer interface {
	Complete(ctx context.Context, res pipeline.Result) error
}

// CompletionHook forwards run results to the conversation.
func CompletionHook(c Completer, logger *slog.Logger) pipeline.CompletionFunc {
	return func(ctx context.Context, res pipeline.Result) {
		if err := c.Complete(ctx, res); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "failed to record run completion", "run_completion_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "chat may stay busy until /cancel"),
			)
		}
	}
}

// FailureHook publishes terminal run failures to the operator. Cancellations
// are not failures.
func FailureHook(notifier notifications.Service, logger *slog.Logger) pipeline.CompletionFunc {
	return func(ctx context.Context, res pipeline.Result) {
		if res.Err == nil || errors.Is(res.Err, services.ErrCanceled) {
			return
		}
		err := notifier.Publish(ctx, notifications.EventRunFailed, notifications.Payload{
			"runID":  res.RunID,
			"chatID": res.ChatID,
			"error":  res.Err.Error(),
			"hint":   services.Hint(res.Err),
		})
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "run failure notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not alerted"),
			)
		}
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Tools.FFmpeg)),
		logging.String("ffmpeg_binary", cfg.Tools.FFmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Tools.FFprobe)),
		logging.String("ffprobe_binary", cfg.Tools.FFprobe),
		logging.Bool("ytdlp_available", binaryAvailable(cfg.Tools.YtDlp)),
		logging.String("ytdlp_binary", cfg.Tools.YtDlp),
		logging.String("acquire_mode", cfg.Tools.AcquireMode),
		logging.Bool("custom_api_url", cfg.Telegram.APIURL != ""),
		logging.Int64("max_part_bytes", cfg.Limits.MaxPartBytes),
		logging.Int("pid", os.Getpid()),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
