package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/pipeline"
	"clipper/internal/staging"
)

// Bot is the update loop the daemon supervises.
type Bot interface {
	Run(ctx context.Context) error
	Username() string
}

// SessionStore is the part of the session store the daemon manages.
type SessionStore interface {
	ResetInterrupted(ctx context.Context) ([]int64, error)
	Path() string
	Close() error
}

// Components are the collaborators assembled by Run.
type Components struct {
	Store    SessionStore
	Runner   *pipeline.Runner
	Bot      Bot
	API      *api.Server
	Notifier notifications.Service
}

// Daemon owns the bot lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	comps  Components

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Bot          string
	LockFilePath string
	SessionDB    string
	ActiveRuns   []pipeline.RunInfo
}

// New constructs a daemon around pre-built components.
func New(cfg *config.Config, comps Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comps.Store == nil || comps.Runner == nil || comps.Bot == nil {
		return nil, errors.New("daemon requires config, session store, runner, and bot")
	}
	if comps.Notifier == nil {
		comps.Notifier = notifications.NewService(nil)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		comps:    comps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan error, 1),
	}, nil
}

// Start acquires the lock, recovers state left by a previous process, and
// launches the bot and the optional API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipper instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.recover(runCtx)

	if err := d.comps.API.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	go func() {
		d.done <- d.comps.Bot.Run(runCtx)
	}()

	mode := config.ModePolling
	if d.cfg.Webhook() {
		mode = config.ModeWebhook
	}
	d.logger.Info("clipper daemon started",
		logging.String("lock", d.lockPath),
		logging.String("mode", mode),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	if err := d.comps.Notifier.Publish(runCtx, notifications.EventStartup, notifications.Payload{
		"bot":  d.comps.Bot.Username(),
		"mode": mode,
	}); err != nil {
		logging.WarnWithContext(d.logger, "startup notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not told about the restart"),
		)
	}
	return nil
}

// recover resets sessions that were mid-run when the previous process died
// and sweeps their abandoned workspaces.
func (d *Daemon) recover(ctx context.Context) {
	chats, err := d.comps.Store.ResetInterrupted(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to reset interrupted sessions", "session_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
			logging.String(logging.FieldImpact, "affected chats stay busy until /cancel"),
		)
	} else if len(chats) > 0 {
		d.logger.Info("reset interrupted sessions",
			logging.Int("count", len(chats)),
			logging.String(logging.FieldEventType, "session_recovery"),
		)
	}

	active := make(map[string]struct{})
	for _, run := range d.comps.Runner.Active() {
		active[run.RunID] = struct{}{}
	}
	result := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, d.cfg.StagingMaxAge(), active, d.logger)
	for _, failure := range result.Errors {
		d.logger.Debug("staging sweep error", logging.String("path", failure.Path), logging.Error(failure.Error))
	}
}

// Wait blocks until the bot loop exits and returns its error.
func (d *Daemon) Wait() error {
	return <-d.done
}

// Stop cancels in-flight runs, stops the bot, and releases the lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	if d.cancel != nil {
			d.cancel()
		}
		if err := d.comps.Runner.Shutdown(ctx); err != nil {
			logging.WarnWithContext(d.logger, "runs still active at shutdown", "shutdown_timeout",
				logging.Error(err),
				logging.Int("active", len(d.comps.Runner.Active())),
				logging.String(logging.FieldImpact, "workspaces removed by the next startup sweep"),
			)
		}
		d.comps.API.Stop()
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.running.Store(false)
		d.logger.Info("clipper daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	})
}

// Close stops the daemon and closes the session store.
func (d *Daemon) Close() error {
	d.Stop(context.Background())
	return d.comps.Store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Bot:          d.comps.Bot.Username(),
		LockFilePath: d.lockPath,
		SessionDB:    d.comps.Store.Path(),
		ActiveRuns:   d.comps.Runner.Active(),
	}
}
