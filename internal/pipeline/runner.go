package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"clipper/internal/delivery"
	"clipper/internal/extract"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/session"
	"clipper/internal/split"
)

// Extractor produces the trimmed segment of a run.
type Extractor interface {
	Extract(ctx context.Context, req extract.Request, workdir string) (extract.Segment, error)
}

// Splitter cuts a segment into deliverable parts.
type Splitter interface {
	Split(ctx context.Context, seg extract.Segment, workdir string) ([]split.Part, error)
}

// Deliverer sends parts to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, parts []split.Part, mode session.Mode, title string) (delivery.Report, error)
}

// CompletionFunc receives every run's result once its workspace is gone.
type CompletionFunc func(ctx context.Context, res Result)

// SpaceCheck fails when the staging area cannot hold another run.
type SpaceCheck func(ctx context.Context, stagingDir string) error

// Option customizes a Runner.
type Option func(*Runner)

// WithSpaceCheck runs check before each run is accepted.
func WithSpaceCheck(check SpaceCheck) Option {
	return func(r *Runner) {
		r.spaceCheck = check
	}
}

// WithCompletion appends a completion hook. Hooks run in registration order.
func WithCompletion(fn CompletionFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.onComplete = append(r.onComplete, fn)
		}
	}
}

type activeRun struct {
	chatID  int64
	cancel  context.CancelFunc
	started time.Time
}

// RunInfo describes an in-flight run.
type RunInfo struct {
	RunID   string
	ChatID  int64
	Started time.Time
}

// Runner executes runs in background goroutines, at most one per chat.
type Runner struct {
	base       context.Context
	stop       context.CancelFunc
	stagingDir string
	extractor  Extractor
	splitter   Splitter
	deliverer  Deliverer
	spaceCheck SpaceCheck
	onComplete []CompletionFunc
	logger     *slog.Logger

	counter atomic.Uint64
	wg      sync.WaitGroup
	mu      sync.Mutex
	active  map[string]*activeRun
	byChat  map[int64]string
}

// NewRunner builds a Runner. Runs inherit values from ctx and are cancelled
// when ctx ends or Shutdown is called.
func NewRunner(ctx context.Context, stagingDir string, extractor Extractor, splitter Splitter, deliverer Deliverer, logger *slog.Logger, opts ...Option) *Runner {
	base, stop := context.WithCancel(ctx)
	r := &Runner{
		base:       base,
		stop:       stop,
		stagingDir: stagingDir,
		extractor:  extractor,
		splitter:   splitter,
		deliverer:  deliverer,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		active:     make(map[string]*activeRun),
		byChat:     make(map[int64]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnComplete appends a completion hook after construction.
func (r *Runner) OnComplete(fn CompletionFunc) {
	if fn != nil {
		r.onComplete = append(r.onComplete, fn)
	}
}

// Start accepts req and runs it in the background. The returned run id is
// the handle for Cancel.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	if err := r.base.Err(); err != nil {
		return "", services.Wrap(services.ErrCanceled, "pipeline", "start", "runner stopped", err)
	}
	if req.End <= req.Start {
		return "", services.Wrap(services.ErrValidation, "pipeline", "start", fmt.Sprintf("invalid range %d-%d", req.Start, req.End), nil)
	}
	if r.spaceCheck != nil {
		if err := r.spaceCheck(ctx, r.stagingDir); err != nil {
			return "", err
		}
	}

	r.mu.Lock()
	if existing, busy := r.byChat[req.ChatID]; busy {
		r.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, "pipeline", "start", "run "+existing+" already active", nil)
	}
	runID := fmt.Sprintf("chat%d-r%d", req.ChatID, r.counter.Add(1))
	runCtx, cancel := context.WithCancel(r.base)
	r.active[runID] = &activeRun{chatID: req.ChatID, cancel: cancel, started: time.Now()}
	r.byChat[req.ChatID] = runID
	r.wg.Add(1)
	r.mu.Unlock()

	runCtx = services.WithChatID(runCtx, req.ChatID)
	runCtx = services.WithRunID(runCtx, runID)
	runCtx = services.WithRequestID(runCtx, uuid.NewString())

	go func() {
		defer r.wg.Done()
		defer cancel()
		res := r.Run(runCtx, runID, req)
		r.releaseChat(runID, req.ChatID)
		r.complete(runCtx, res)
		r.finish(runID)
	}()
	return runID, nil
}

// Cancel requests cooperative cancellation of runID. It reports whether the
// run was still active.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	run, ok := r.active[runID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// Active lists in-flight runs ordered by start time.
func (r *Runner) Active() []RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunInfo, 0, len(r.active))
	for id, run := range r.active {
		out = append(out, RunInfo{RunID: id, ChatID: run.chatID, Started: run.started})
	}
	sortRuns(out)
	return out
}

// Wait blocks until every started run has reported completion.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every run and waits for them, or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes req synchronously in a fresh workspace and removes the
// workspace before returning, whatever the outcome.
func (r *Runner) Run(ctx context.Context, runID string, req Request) (res Result) {
	started := time.Now()
	res = Result{ChatID: req.ChatID, RunID: runID}
	logger := logging.WithContext(ctx, r.logger)

	ws, err := NewWorkspace(r.stagingDir, runID)
	if err != nil {
		res.Err = services.Wrap(services.ErrConfiguration, "pipeline", "workspace", "", err)
		res.Elapsed = time.Since(started)
		return res
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("run panicked",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "run_panic"),
			)
			res.Err = services.Wrap(services.ErrInternal, "pipeline", "run", fmt.Sprintf("panic: %v", rec), nil)
		}
		if cleanErr := ws.Cleanup(); cleanErr != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.Error(cleanErr),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the stale sweep"),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			)
		}
		res.Elapsed = time.Since(started)
	}()

	logger.Info("run started",
		logging.String("resource", req.Resource),
		logging.Int("start", req.Start),
		logging.Int("end", req.End),
		logging.Int("height", req.Height),
		logging.String("mode", string(req.Mode)),
		logging.String(logging.FieldEventType, "run_start"),
	)

	seg, err := r.extractor.Extract(ctx, extract.Request{
		Resource: req.Resource,
		Start:    req.Start,
		End:      req.End,
		Height:   req.Height,
		Selector: req.Selector,
		Mode:     req.Mode,
	}, ws.Dir)
	if err != nil {
		res.Err = err
		return res
	}
	res.Degraded = seg.Degraded

	parts, err := r.splitter.Split(ctx, seg, ws.Dir)
	if err != nil {
		res.Err = err
		return res
	}

	report, err := r.deliverer.Deliver(ctx, req.ChatID, parts, seg.Mode, req.Title)
	res.Parts = report.Parts
	res.Bytes = report.Bytes
	if err != nil {
		res.Err = err
		return res
	}
	return res
}

// releaseChat lets the chat start its next run. The run itself stays in
// active until its completion hooks return, so Cancel keeps recognising it.
func (r *Runner) releaseChat(runID string, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byChat[chatID] == runID {
		delete(r.byChat, chatID)
	}
}

func (r *Runner) finish(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, runID)
}

func (r *Runner) complete(ctx context.Context, res Result) {
	logger := logging.WithContext(ctx, r.logger)
	switch {
	case res.Err == nil:
		logger.Info("run completed",
			logging.Int("parts", res.Parts),
			logging.Int64("bytes", res.Bytes),
			logging.Bool("degraded", res.Degraded),
			logging.Duration("elapsed", res.Elapsed),
			logging.String(logging.FieldEventType, "run_complete"),
		)
	case isCanceled(res.Err):
		logger.Info("run cancelled",
			logging.Int("parts_delivered", res.Parts),
			logging.String(logging.FieldEventType, "run_cancelled"),
		)
	default:
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.Error(res.Err),
			logging.Int("parts_delivered", res.Parts),
			logging.Duration("elapsed", res.Elapsed),
			logging.String(logging.FieldErrorHint, services.Hint(res.Err)),
		)
	}

	// Hooks run on a context that outlives the cancelled run.
	hookCtx := context.WithoutCancel(ctx)
	for _, fn := range r.onComplete {
		r.safeHook(hookCtx, fn, res)
	}
}

func (r *Runner) safeHook(ctx context.Context, fn CompletionFunc, res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.WithContext(ctx, r.logger).Error("completion hook panicked",
				logging.Any("panic", rec),
				logging.String(logging.FieldEventType, "run_hook_panic"),
			)
		}
	}()
	fn(ctx, res)
}
