package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipper/internal/formats"
	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/services"
	"clipper/internal/session"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, _ int64, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

type stubResolver struct {
	res   formats.Resolution
	calls atomic.Int32
}

func (s *stubResolver) Resolve(context.Context, string) formats.Resolution {
	s.calls.Add(1)
	return s.res
}

type fakeRunner struct {
	mu        sync.Mutex
	requests  []pipeline.Request
	cancelled []string
	startErr  error
	forgotten bool
}

func (f *fakeRunner) Start(_ context.Context, req pipeline.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.requests = append(f.requests, req)
	return fmt.Sprintf("chat%d-r%d", req.ChatID, len(f.requests)), nil
}

func (f *fakeRunner) Cancel(runID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, runID)
	return !f.forgotten
}

const chat int64 = 42

func offered() formats.Resolution {
	return formats.Resolution{
		Title: "clip",
		Options: []formats.Option{
			{Height: 360, Selector: "18"},
			{Height: 720, Selector: "22"},
		},
	}
}

type harness struct {
	machine  *Machine
	store    *session.MemoryStore
	resolver *stubResolver
	runner   *fakeRunner
	notifier *recordingNotifier
}

func newHarness(t *testing.T, opts Options, res formats.Resolution) *harness {
	t.Helper()
	h := &harness{
		store:    session.NewMemoryStore(),
		resolver: &stubResolver{res: res},
		runner:   &fakeRunner{},
		notifier: &recordingNotifier{},
	}
	h.machine = NewMachine(h.store, h.resolver, h.runner, h.notifier, opts, logging.NewNop())
	return h
}

func (h *harness) text(t *testing.T, text string) Outcome {
	t.Helper()
	out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputText, Text: text})
	require.NoError(t, err)
	return out
}

func (h *harness) choose(t *testing.T, c Choice) Outcome {
	t.Helper()
	out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputChoice, Choice: c})
	require.NoError(t, err)
	return out
}

func (h *harness) session(t *testing.T) session.Session {
	t.Helper()
	sess, found, err := h.store.Get(context.Background(), chat)
	require.NoError(t, err)
	require.True(t, found)
	return sess
}

func TestFirstContactWithoutLinkWelcomes(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	out := h.text(t, "hello")
	assert.Equal(t, []Signal{SignalWelcome}, out.Signals())
	assert.Equal(t, session.StateAwaitingResource, h.session(t).State)

	out = h.text(t, "some-video-id")
	assert.Equal(t, []Signal{SignalAskRangeStart}, out.Signals())
	assert.Equal(t, "some-video-id", h.session(t).Resource)
}

func TestHappyPathStartsOneRun(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/watch?v=1")
	out := h.text(t, "0:10")
	assert.Equal(t, []Signal{SignalAskRangeEnd}, out.Signals())
	out = h.text(t, "1:00")
	assert.Equal(t, []Signal{SignalProbing, SignalChooseQuality}, out.Signals())
	assert.Equal(t, []int{360, 720}, out.Notices[1].Qualities)

	out = h.text(t, "720p")
	assert.Equal(t, []Signal{SignalRunStarted}, out.Signals())
	assert.Equal(t, "chat42-r1", out.RunID)

	require.Len(t, h.runner.requests, 1)
	req := h.runner.requests[0]
	assert.Equal(t, 10, req.Start)
	assert.Equal(t, 60, req.End)
	assert.Equal(t, 720, req.Height)
	assert.Equal(t, "22", req.Selector)
	assert.Equal(t, session.ModeVideo, req.Mode)
	assert.Equal(t, "clip", req.Title)

	sess := h.session(t)
	assert.Equal(t, session.StateRunning, sess.State)
	assert.Equal(t, "chat42-r1", sess.RunID)
	assert.Equal(t, h.notifier.notices[len(h.notifier.notices)-1].Signal, SignalRunStarted)
}

func TestRangeValidationKeepsState(t *testing.T) {
	h := newHarness(t, Options{MaxRangeSeconds: 60}, offered())
	h.text(t, "https://example.com/v")

	out := h.text(t, "1:75x")
	assert.Equal(t, []Signal{SignalFormatError}, out.Signals())
	assert.Equal(t, session.StateAwaitingRangeStart, h.session(t).State)

	h.text(t, "١:٣٠")
	assert.Equal(t, 90, h.session(t).RangeStart)

	out = h.text(t, "1:30")
	assert.Equal(t, []Signal{SignalRangeError}, out.Signals())
	assert.Equal(t, session.StateAwaitingRangeEnd, h.session(t).State)

	out = h.text(t, "3:00")
	assert.Equal(t, []Signal{SignalRangeTooLong}, out.Signals())
	assert.Equal(t, 60, out.Notices[0].MaxRange)

	out = h.text(t, "2:00")
	assert.Equal(t, []Signal{SignalProbing, SignalChooseQuality}, out.Signals())
}

func TestQualityNotOfferedReprompts(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	h.text(t, "30")

	out := h.text(t, "1080")
	assert.Equal(t, []Signal{SignalQualityNotOffered}, out.Signals())
	out = h.text(t, "high")
	assert.Equal(t, []Signal{SignalQualityNotOffered}, out.Signals())
	assert.Equal(t, session.StateAwaitingQuality, h.session(t).State)
	assert.Empty(t, h.runner.requests)
}

func TestFallbackWhenNoOptions(t *testing.T) {
	h := newHarness(t, Options{FallbackHeight: 480}, formats.Resolution{Degraded: true, Reason: "probe failed"})
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	out := h.text(t, "30")
	assert.Equal(t, []Signal{SignalProbing, SignalFallbackQuality, SignalRunStarted}, out.Signals())
	assert.Equal(t, 480, out.Notices[1].Quality)

	require.Len(t, h.runner.requests, 1)
	assert.Equal(t, 480, h.runner.requests[0].Height)
	assert.Empty(t, h.runner.requests[0].Selector)
	sess := h.session(t)
	assert.True(t, sess.Fallback)
	require.NoError(t, sess.Validate())
}

func TestOutputModeStep(t *testing.T) {
	h := newHarness(t, Options{OfferAudio: true}, offered())
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	h.text(t, "30")
	out := h.text(t, "360")
	assert.Equal(t, []Signal{SignalChooseMode}, out.Signals())

	out = h.text(t, "loud")
	assert.Equal(t, []Signal{SignalChooseMode}, out.Signals())

	gen := h.session(t).Generation
	out = h.choose(t, Choice{Kind: ChoiceMode, Generation: gen, Value: "audio"})
	assert.Equal(t, []Signal{SignalRunStarted}, out.Signals())
	require.Len(t, h.runner.requests, 1)
	assert.Equal(t, session.ModeAudio, h.runner.requests[0].Mode)
}

func TestStaleChoiceIgnored(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/a")
	h.text(t, "0")
	h.text(t, "30")
	old := h.session(t).Generation

	h.text(t, "https://example.com/b")
	h.text(t, "0")
	h.text(t, "30")

	out := h.choose(t, Choice{Kind: ChoiceQuality, Generation: old, Value: "720"})
	assert.Equal(t, []Signal{SignalStaleChoice}, out.Signals())
	assert.Empty(t, h.runner.requests)

	out = h.choose(t, Choice{Kind: ChoiceQuality, Generation: old + 1, Value: "720"})
	assert.Equal(t, []Signal{SignalRunStarted}, out.Signals())
	assert.Equal(t, "https://example.com/b", h.runner.requests[0].Resource)
}

func TestNewLinkRestartsConversation(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/a")
	h.text(t, "0:05")
	out := h.text(t, "https://example.com/b")
	assert.Equal(t, []Signal{SignalAskRangeStart}, out.Signals())

	sess := h.session(t)
	assert.Equal(t, "https://example.com/b", sess.Resource)
	assert.Zero(t, sess.RangeStart)
	assert.Equal(t, uint64(2), sess.Generation)
}

func TestBusyWhileRunning(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	h.text(t, "30")
	h.text(t, "360")

	for _, text := range []string{"https://example.com/other", "10", "360"} {
		out := h.text(t, text)
		assert.Equal(t, []Signal{SignalBusy}, out.Signals(), text)
	}
	out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputStart})
	require.NoError(t, err)
	assert.Equal(t, []Signal{SignalBusy}, out.Signals())
	out = h.choose(t, Choice{Kind: ChoiceQuality, Generation: h.session(t).Generation, Value: "720"})
	assert.Equal(t, []Signal{SignalBusy}, out.Signals())

	assert.Len(t, h.runner.requests, 1)
	assert.Equal(t, "https://example.com/v", h.session(t).Resource)
}

func TestCancel(t *testing.T) {
	t.Run("idle clears", func(t *testing.T) {
		h := newHarness(t, Options{}, offered())
		h.text(t, "https://example.com/v")
		out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputCancel})
		require.NoError(t, err)
		assert.Equal(t, []Signal{SignalCancelled}, out.Signals())
		sess := h.session(t)
		assert.Equal(t, session.StateAwaitingResource, sess.State)
		assert.Equal(t, uint64(1), sess.Generation)
	})
	t.Run("running requests cancellation", func(t *testing.T) {
		h := newHarness(t, Options{}, offered())
		h.text(t, "https://example.com/v")
		h.text(t, "0")
		h.text(t, "30")
		h.text(t, "360")
		out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputCancel})
		require.NoError(t, err)
		assert.Equal(t, []Signal{SignalCancelRequested}, out.Signals())
		assert.Equal(t, []string{"chat42-r1"}, h.runner.cancelled)
		assert.Equal(t, session.StateRunning, h.session(t).State)
	})
	t.Run("running but unknown to runner clears", func(t *testing.T) {
		h := newHarness(t, Options{}, offered())
		h.text(t, "https://example.com/v")
		h.text(t, "0")
		h.text(t, "30")
		h.text(t, "360")
		h.runner.forgotten = true
		out, err := h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputCancel})
		require.NoError(t, err)
		assert.Equal(t, []Signal{SignalCancelled}, out.Signals())
		sess := h.session(t)
		assert.Equal(t, session.StateAwaitingResource, sess.State)
		assert.Empty(t, sess.RunID)

		out, err = h.machine.Handle(context.Background(), Input{ChatID: chat, Kind: InputText, Text: "https://example.com/w"})
		require.NoError(t, err)
		assert.NotContains(t, out.Signals(), SignalBusy)
	})
}

func TestCompleteResetsSession(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		signal  Signal
		failure Failure
	}{
		{name: "success", signal: SignalRunCompleted},
		{name: "cancelled", err: services.Wrap(services.ErrCanceled, "extract", "trim", "stopped", context.Canceled), signal: SignalRunCancelled},
		{name: "too large", err: services.Wrap(services.ErrTooLarge, "delivery", "send", "part 2", errors.New("413")), signal: SignalRunFailed, failure: FailureTooLarge},
		{name: "acquire", err: services.Wrap(services.ErrAcquire, "extract", "acquire", "yt-dlp", errors.New("boom")), signal: SignalRunFailed, failure: FailureAcquire},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, Options{}, offered())
			h.text(t, "https://example.com/v")
			h.text(t, "0")
			h.text(t, "30")
			started := h.text(t, "360")

			err := h.machine.Complete(context.Background(), pipeline.Result{ChatID: chat, RunID: started.RunID, Parts: 2, Err: tc.err})
			require.NoError(t, err)

			last := h.notifier.notices[len(h.notifier.notices)-1]
			assert.Equal(t, tc.signal, last.Signal)
			assert.Equal(t, tc.failure, last.Failure)
			if tc.err == nil {
				assert.Equal(t, 2, last.Parts)
			}
			sess := h.session(t)
			assert.Equal(t, session.StateAwaitingResource, sess.State)
			assert.Empty(t, sess.RunID)

			out := h.text(t, "https://example.com/next")
			assert.Equal(t, []Signal{SignalAskRangeStart}, out.Signals())
		})
	}
}

func TestCompleteIgnoresUnknownRun(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	h.text(t, "30")
	h.text(t, "360")
	before := len(h.notifier.notices)

	require.NoError(t, h.machine.Complete(context.Background(), pipeline.Result{ChatID: chat, RunID: "chat42-r99"}))
	assert.Len(t, h.notifier.notices, before)
	assert.Equal(t, session.StateRunning, h.session(t).State)
}

func TestStartFailureResetsSession(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.runner.startErr = services.Wrap(services.ErrNoSpace, "pipeline", "preflight", "staging full", nil)
	h.text(t, "https://example.com/v")
	h.text(t, "0")
	h.text(t, "30")
	out := h.text(t, "360")
	assert.Equal(t, []Signal{SignalRunFailed}, out.Signals())
	assert.Equal(t, FailureNoSpace, out.Notices[0].Failure)
	assert.Equal(t, session.StateAwaitingResource, h.session(t).State)
}

func TestNotifierErrorDoesNotStopMachine(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	h.notifier.err = errors.New("network down")
	out := h.text(t, "https://example.com/v")
	assert.Equal(t, []Signal{SignalAskRangeStart}, out.Signals())
	assert.Equal(t, session.StateAwaitingRangeStart, h.session(t).State)
}

func TestConcurrentChatsAreIndependent(t *testing.T) {
	h := newHarness(t, Options{}, offered())
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ctx := context.Background()
			steps := []string{"https://example.com/v", "0", "30", "360"}
			for _, s := range steps {
				_, err := h.machine.Handle(ctx, Input{ChatID: id, Kind: InputText, Text: s})
				assert.NoError(t, err)
			}
		}(int64(100 + i))
	}
	wg.Wait()
	assert.Len(t, h.runner.requests, 8)
	assert.Equal(t, int32(8), h.resolver.calls.Load())
}
