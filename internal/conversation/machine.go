package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"clipper/internal/formats"
	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/services"
	"clipper/internal/session"
)

// Notifier delivers notices to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, n Notice) error
}

// Resolver lists the qualities offered for a resource.
type Resolver interface {
	Resolve(ctx context.Context, resource string) formats.Resolution
}

// Runner starts pipeline runs in the background. Start must return before the
// run reports completion through Machine.Complete.
type Runner interface {
	Start(ctx context.Context, req pipeline.Request) (string, error)
	Cancel(runID string) bool
}

// Options tunes the conversation.
type Options struct {
	// OfferAudio adds the output mode step after the quality step.
	OfferAudio bool
	// FallbackHeight pins the degraded selection; 0 keeps "best available".
	FallbackHeight int
	// MaxRangeSeconds rejects longer ranges; 0 disables the check.
	MaxRangeSeconds int
}

// Outcome lists the notices one input produced, in emission order.
type Outcome struct {
	Notices []Notice
	RunID   string
}

// Signals returns the signals of o's notices.
func (o Outcome) Signals() []Signal {
	out := make([]Signal, 0, len(o.Notices))
	for _, n := range o.Notices {
		out = append(out, n.Signal)
	}
	return out
}

// Machine advances each chat's session in response to its inputs.
type Machine struct {
	store    session.Store
	resolver Resolver
	runner   Runner
	notifier Notifier
	opts     Options
	locks    *chatLocks
	logger   *slog.Logger
}

// NewMachine wires a Machine. The runner may be attached later with SetRunner
// when it needs the machine's Complete as its completion hook.
func NewMachine(store session.Store, resolver Resolver, runner Runner, notifier Notifier, opts Options, logger *slog.Logger) *Machine {
	return &Machine{
		store:    store,
		resolver: resolver,
		runner:   runner,
		notifier: notifier,
		opts:     opts,
		locks:    newChatLocks(),
		logger:   logging.NewComponentLogger(logger, "conversation"),
	}
}

// SetRunner attaches the pipeline runner.
func (m *Machine) SetRunner(r Runner) {
	m.runner = r
}

// turn accumulates the notices of one locked step.
type turn struct {
	m       *Machine
	ctx     context.Context
	chatID  int64
	outcome Outcome
}

func (t *turn) emit(n Notice) {
	t.outcome.Notices = append(t.outcome.Notices, n)
	if t.m.notifier == nil {
		return
	}
	if err := t.m.notifier.Notify(t.ctx, t.chatID, n); err != nil {
		logging.WarnWithContext(logging.WithContext(t.ctx, t.m.logger), "notice delivery failed", "notice_failed",
			logging.String("signal", string(n.Signal)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user did not receive a conversation message"),
			logging.String(logging.FieldErrorHint, "check transport connectivity"),
		)
	}
}

// Handle applies one input. Inputs for the same chat are processed one at a time.
func (m *Machine) Handle(ctx context.Context, in Input) (Outcome, error) {
	ctx = services.WithChatID(ctx, in.ChatID)
	ctx = services.WithRequestID(ctx, in.RequestID)
	release := m.locks.lock(in.ChatID)
	defer release()

	t := &turn{m: m, ctx: ctx, chatID: in.ChatID}
	sess, found, err := m.store.Get(ctx, in.ChatID)
	if err != nil {
		return t.outcome, fmt.Errorf("load session: %w", err)
	}
	if !found {
		sess = session.New(in.ChatID)
	}
	before := sess.State

	err = m.dispatch(t, &sess, found, in)
	if err != nil {
		return t.outcome, err
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return t.outcome, fmt.Errorf("save session: %w", err)
	}
	if before != sess.State {
		logging.WithContext(ctx, m.logger).Debug("session advanced",
			logging.String("from", string(before)),
			logging.String("to", string(sess.State)),
			logging.Int64("generation", int64(sess.Generation)),
		)
	}
	return t.outcome, nil
}

func (m *Machine) dispatch(t *turn, sess *session.Session, found bool, in Input) error {
	switch in.Kind {
	case InputStart:
		if sess.State == session.StateRunning {
			t.emit(Notice{Signal: SignalBusy})
			return nil
		}
		sess.Clear()
		t.emit(Notice{Signal: SignalWelcome})
		return nil
	case InputCancel:
		return m.cancel(t, sess)
	case InputChoice:
		return m.choice(t, sess, in.Choice)
	}

	text := strings.TrimSpace(in.Text)
	if sess.State == session.StateRunning {
		t.emit(Notice{Signal: SignalBusy})
		return nil
	}
	if IsResourceReference(text) {
		sess.Restart(text)
		t.emit(Notice{Signal: SignalAskRangeStart})
		return nil
	}
	if !found {
		t.emit(Notice{Signal: SignalWelcome})
		return nil
	}

	switch sess.State {
	case session.StateAwaitingResource:
		if text == "" {
			t.emit(Notice{Signal: SignalAskResource})
			return nil
		}
		sess.Restart(text)
		t.emit(Notice{Signal: SignalAskRangeStart})
	case session.StateAwaitingRangeStart:
		start, err := ParseSeconds(text)
		if err != nil {
			t.emit(Notice{Signal: SignalFormatError})
			return nil
		}
		sess.RangeStart = start
		sess.State = session.StateAwaitingRangeEnd
		t.emit(Notice{Signal: SignalAskRangeEnd, Start: start})
	case session.StateAwaitingRangeEnd:
		end, err := ParseSeconds(text)
		if err != nil {
			t.emit(Notice{Signal: SignalFormatError})
			return nil
		}
		if end <= sess.RangeStart {
			t.emit(Notice{Signal: SignalRangeError, Start: sess.RangeStart, End: end})
			return nil
		}
		if m.opts.MaxRangeSeconds > 0 && end-sess.RangeStart > m.opts.MaxRangeSeconds {
			t.emit(Notice{Signal: SignalRangeTooLong, Start: sess.RangeStart, End: end, MaxRange: m.opts.MaxRangeSeconds})
			return nil
		}
		sess.RangeEnd = end
		sess.State = session.StateAwaitingQuality
		return m.enterQuality(t, sess)
	case session.StateAwaitingQuality:
		height, ok := parseQuality(text)
		if !ok {
			t.emit(m.qualityNotice(SignalQualityNotOffered, sess))
			return nil
		}
		return m.selectQuality(t, sess, height)
	case session.StateAwaitingOutputMode:
		mode, ok := parseMode(text)
		if !ok {
			t.emit(Notice{Signal: SignalChooseMode, Generation: sess.Generation})
			return nil
		}
		return m.selectMode(t, sess, mode)
	}
	return nil
}

func (m *Machine) choice(t *turn, sess *session.Session, c Choice) error {
	if sess.State == session.StateRunning {
		t.emit(Notice{Signal: SignalBusy})
		return nil
	}
	if c.Generation != sess.Generation {
		t.emit(Notice{Signal: SignalStaleChoice})
		return nil
	}
	switch {
	case c.Kind == ChoiceQuality && sess.State == session.StateAwaitingQuality:
		height, err := strconv.Atoi(c.Value)
		if err != nil {
			t.emit(m.qualityNotice(SignalQualityNotOffered, sess))
			return nil
		}
		return m.selectQuality(t, sess, height)
	case c.Kind == ChoiceMode && sess.State == session.StateAwaitingOutputMode:
		mode, ok := parseMode(c.Value)
		if !ok {
			t.emit(Notice{Signal: SignalChooseMode, Generation: sess.Generation})
			return nil
		}
		return m.selectMode(t, sess, mode)
	default:
		t.emit(Notice{Signal: SignalStaleChoice})
		return nil
	}
}

func (m *Machine) cancel(t *turn, sess *session.Session) error {
	if sess.State != session.StateRunning {
		sess.Clear()
		t.emit(Notice{Signal: SignalCancelled})
		return nil
	}
	logger := logging.WithContext(services.WithRunID(t.ctx, sess.RunID), m.logger)
	if m.runner == nil || !m.runner.Cancel(sess.RunID) {
		// The runner no longer tracks the run, so no completion will free the chat.
		logging.WarnWithContext(logger, "cancel for unknown run; clearing session", "run_cancel_orphaned",
			logging.String(logging.FieldImpact, "chat was stuck busy"),
		)
		sess.Clear()
		t.emit(Notice{Signal: SignalCancelled})
		return nil
	}
	logger.Info("run cancellation requested",
		logging.String(logging.FieldEventType, "run_cancel_requested"),
	)
	t.emit(Notice{Signal: SignalCancelRequested})
	return nil
}

func (m *Machine) enterQuality(t *turn, sess *session.Session) error {
	t.emit(Notice{Signal: SignalProbing})
	res := m.resolver.Resolve(t.ctx, sess.Resource)
	sess.Title = res.Title
	if len(res.Options) == 0 {
		sess.Options = nil
		sess.Fallback = true
		sess.Quality = m.opts.FallbackHeight
		t.emit(Notice{Signal: SignalFallbackQuality, Quality: sess.Quality})
		return m.afterQuality(t, sess)
	}
	sess.Options = res.Options
	t.emit(m.qualityNotice(SignalChooseQuality, sess))
	return nil
}

func (m *Machine) qualityNotice(signal Signal, sess *session.Session) Notice {
	return Notice{Signal: signal, Generation: sess.Generation, Qualities: sess.Qualities()}
}

func (m *Machine) selectQuality(t *turn, sess *session.Session, height int) error {
	if _, ok := formats.Find(sess.Options, height); !ok {
		t.emit(m.qualityNotice(SignalQualityNotOffered, sess))
		return nil
	}
	sess.Quality = height
	return m.afterQuality(t, sess)
}

func (m *Machine) afterQuality(t *turn, sess *session.Session) error {
	if m.opts.OfferAudio {
		sess.State = session.StateAwaitingOutputMode
		t.emit(Notice{Signal: SignalChooseMode, Generation: sess.Generation})
		return nil
	}
	sess.Mode = session.ModeVideo
	return m.startRun(t, sess)
}

func (m *Machine) selectMode(t *turn, sess *session.Session, mode string) error {
	sess.Mode = session.Mode(mode)
	return m.startRun(t, sess)
}

func (m *Machine) startRun(t *turn, sess *session.Session) error {
	if m.runner == nil {
		return errors.New("conversation: no runner attached")
	}
	req := pipeline.Request{
		ChatID:   sess.ChatID,
		Resource: sess.Resource,
		Start:    sess.RangeStart,
		End:      sess.RangeEnd,
		Height:   sess.Quality,
		Mode:     sess.Mode,
		Title:    sess.Title,
	}
	if opt, ok := sess.Selected(); ok && !sess.Fallback {
		req.Selector = opt.Selector
	}

	runID, err := m.runner.Start(t.ctx, req)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(t.ctx, m.logger), "run refused", "run_refused",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		sess.Clear()
		t.emit(Notice{Signal: SignalRunFailed, Failure: Classify(err)})
		return nil
	}
	sess.State = session.StateRunning
	sess.RunID = runID
	t.outcome.RunID = runID
	t.emit(Notice{Signal: SignalRunStarted, Quality: sess.Quality, Mode: string(sess.Mode), Start: sess.RangeStart, End: sess.RangeEnd})
	return nil
}

// Complete reports the end of a run and resets the chat. Results for a run the
// session no longer tracks are ignored.
func (m *Machine) Complete(ctx context.Context, res pipeline.Result) error {
	ctx = services.WithRunID(services.WithChatID(ctx, res.ChatID), res.RunID)
	release := m.locks.lock(res.ChatID)
	defer release()

	logger := logging.WithContext(ctx, m.logger)
	sess, found, err := m.store.Get(ctx, res.ChatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !found || sess.State != session.StateRunning || sess.RunID != res.RunID {
		logger.Warn("completion for untracked run ignored",
			logging.String("session_run_id", sess.RunID),
			logging.String(logging.FieldEventType, "run_result_ignored"),
		)
		return nil
	}

	t := &turn{m: m, ctx: ctx, chatID: res.ChatID}
	switch {
	case res.Err == nil:
		t.emit(Notice{Signal: SignalRunCompleted, Parts: res.Parts, Degraded: res.Degraded})
	case errors.Is(res.Err, services.ErrCanceled):
		t.emit(Notice{Signal: SignalRunCancelled})
	default:
		n := Notice{Signal: SignalRunFailed, Failure: Classify(res.Err)}
		if n.Failure == FailureDelivery {
			n.Detail = res.Err.Error()
		}
		t.emit(n)
	}

	sess.Clear()
	if err := m.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
