package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipper/internal/delivery"
	"clipper/internal/extract"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services"
	"clipper/internal/session"
	"clipper/internal/split"
)

const mib = 1 << 20

type fakeExtractor struct {
	mu       sync.Mutex
	workdirs []string
	size     int64
	duration float64
	err      error
	block    bool
	entered  chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, req extract.Request, workdir string) (extract.Segment, error) {
	f.mu.Lock()
	f.workdirs = append(f.workdirs, workdir)
	f.mu.Unlock()
	path := filepath.Join(workdir, "clip.mp4")
	if err := os.WriteFile(path, []byte("segment"), 0o644); err != nil {
		return extract.Segment{}, err
	}
	if f.block {
		if f.entered != nil {
			close(f.entered)
		}
		<-ctx.Done()
		return extract.Segment{}, services.FromContext(ctx, "extract")
	}
	if f.err != nil {
		return extract.Segment{}, f.err
	}
	return extract.Segment{Path: path, Size: f.size, Duration: f.duration, Mode: req.Mode}, nil
}

func (f *fakeExtractor) lastWorkdir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workdirs[len(f.workdirs)-1]
}

type panickySplitter struct{}

func (panickySplitter) Split(context.Context, extract.Segment, string) ([]split.Part, error) {
	panic("boom")
}

type sizeTrimmer struct {
	mu    sync.Mutex
	calls int
}

func (s *sizeTrimmer) Trim(_ context.Context, req ffmpeg.TrimRequest) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return os.WriteFile(req.Output, []byte("part"), 0o644)
}

func (s *sizeTrimmer) ProbeSize(string) (int64, error) {
	return 44 * mib, nil
}

type recordingTransport struct {
	mu     sync.Mutex
	sent   []int
	failAt int
}

func (r *recordingTransport) SendText(context.Context, int64, string) error { return nil }

func (r *recordingTransport) SendMedia(_ context.Context, _ int64, m delivery.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Ordinal == r.failAt {
		return &delivery.SendError{Kind: delivery.SizeRejected, Detail: "Request Entity Too Large"}
	}
	r.sent = append(r.sent, m.Ordinal)
	return nil
}

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) hook(_ context.Context, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

func (c *collector) only(t *testing.T) Result {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.results, 1)
	return c.results[0]
}

type fixture struct {
	runner    *Runner
	extractor *fakeExtractor
	trimmer   *sizeTrimmer
	transport *recordingTransport
	results   *collector
	staging   string
}

func newFixture(t *testing.T, extractor *fakeExtractor, splitter Splitter, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		extractor: extractor,
		trimmer:   &sizeTrimmer{},
		transport: &recordingTransport{},
		results:   &collector{},
		staging:   t.TempDir(),
	}
	if splitter == nil {
		splitter = split.New(f.trimmer, 48*mib, logging.NewNop())
	}
	coordinator := delivery.NewCoordinator(f.transport, 48*mib, logging.NewNop())
	opts = append(opts, WithCompletion(f.results.hook))
	f.runner = NewRunner(context.Background(), f.staging, extractor, splitter, coordinator, logging.NewNop(), opts...)
	return f
}

func request() Request {
	return Request{ChatID: 7, Resource: "https://example.com/v", Start: 0, End: 300, Height: 720, Selector: "22", Mode: session.ModeVideo}
}

func TestRunSmallSegmentIsSentWhole(t *testing.T) {
	f := newFixture(t, &fakeExtractor{size: 10 * mib, duration: 60}, nil)

	runID, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "chat7-r1", runID)
	f.runner.Wait()

	res := f.results.only(t)
	require.NoError(t, res.Err)
	assert.Equal(t, runID, res.RunID)
	assert.Equal(t, 1, res.Parts)
	assert.Zero(t, f.trimmer.calls)
	assert.Equal(t, []int{1}, f.transport.sent)
	assert.NoDirExists(t, f.extractor.lastWorkdir())
	assert.Empty(t, f.runner.Active())
}

func TestRunSplitDeliveryHaltsAtRejectedPart(t *testing.T) {
	f := newFixture(t, &fakeExtractor{size: 130 * mib, duration: 300}, nil)
	f.transport.failAt = 2

	_, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	f.runner.Wait()

	res := f.results.only(t)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, services.ErrTooLarge)
	assert.ErrorIs(t, res.Err, services.ErrDelivery)
	assert.Equal(t, 1, res.Parts)
	assert.Equal(t, 3, f.trimmer.calls)
	assert.Equal(t, []int{1}, f.transport.sent)
	assert.NoDirExists(t, f.extractor.lastWorkdir())
}

func TestRunFailureCleansWorkspace(t *testing.T) {
	cause := services.Wrap(services.ErrAcquire, "extract", "acquire", "403", errors.New("forbidden"))
	f := newFixture(t, &fakeExtractor{err: cause}, nil)

	_, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	f.runner.Wait()

	res := f.results.only(t)
	assert.ErrorIs(t, res.Err, services.ErrAcquire)
	assert.NoDirExists(t, f.extractor.lastWorkdir())
	entries, err := os.ReadDir(f.staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunPanicIsRecovered(t *testing.T) {
	f := newFixture(t, &fakeExtractor{size: mib, duration: 10}, panickySplitter{})

	_, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	f.runner.Wait()

	res := f.results.only(t)
	assert.ErrorIs(t, res.Err, services.ErrInternal)
	assert.NoDirExists(t, f.extractor.lastWorkdir())
}

func TestCancelStopsRun(t *testing.T) {
	extractor := &fakeExtractor{block: true, entered: make(chan struct{})}
	f := newFixture(t, extractor, nil)

	runID, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	select {
	case <-extractor.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
	require.Len(t, f.runner.Active(), 1)

	assert.True(t, f.runner.Cancel(runID))
	f.runner.Wait()
	assert.False(t, f.runner.Cancel(runID))

	res := f.results.only(t)
	assert.ErrorIs(t, res.Err, services.ErrCanceled)
	assert.NoDirExists(t, extractor.lastWorkdir())
}

func TestOneRunPerChat(t *testing.T) {
	extractor := &fakeExtractor{block: true, entered: make(chan struct{})}
	f := newFixture(t, extractor, nil)

	runID, err := f.runner.Start(context.Background(), request())
	require.NoError(t, err)
	<-extractor.entered

	_, err = f.runner.Start(context.Background(), request())
	assert.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, f.runner.Shutdown(context.Background()))
	assert.Len(t, f.results.results, 1)
	assert.Equal(t, runID, f.results.results[0].RunID)

	_, err = f.runner.Start(context.Background(), request())
	assert.ErrorIs(t, err, services.ErrCanceled)
}

func TestSpaceCheckRejectsRun(t *testing.T) {
	noSpace := services.Wrap(services.ErrNoSpace, "preflight", "disk usage", "full", nil)
	f := newFixture(t, &fakeExtractor{}, nil, WithSpaceCheck(func(context.Context, string) error { return noSpace }))

	_, err := f.runner.Start(context.Background(), request())
	assert.ErrorIs(t, err, services.ErrNoSpace)
	f.runner.Wait()
	assert.Empty(t, f.results.results)
}

func TestStartRejectsEmptyRange(t *testing.T) {
	f := newFixture(t, &fakeExtractor{}, nil)
	req := request()
	req.End = req.Start
	_, err := f.runner.Start(context.Background(), req)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRunIDsAreMonotonic(t *testing.T) {
	f := newFixture(t, &fakeExtractor{size: mib, duration: 10}, nil)
	var ids []string
	for chat := int64(1); chat <= 3; chat++ {
		req := request()
		req.ChatID = chat
		id, err := f.runner.Start(context.Background(), req)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	f.runner.Wait()
	assert.Equal(t, []string{"chat1-r1", "chat2-r2", "chat3-r3"}, ids)
}

func TestWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(root, "chat1-r1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "x"), []byte("x"), 0o644))
	require.NoError(t, ws.Cleanup())
	require.NoError(t, ws.Cleanup())
	assert.NoDirExists(t, ws.Dir)

	_, err = NewWorkspace(root, "../escape")
	assert.Error(t, err)
	_, err = NewWorkspace("", "chat1-r1")
	assert.Error(t, err)
}

func TestRunStaysKnownUntilHooksReturn(t *testing.T) {
	var (
		cancelled bool
		restarted error
		f         *fixture
	)
	first := request()
	hook := func(ctx context.Context, res Result) {
		if res.ChatID != first.ChatID {
			return
		}
		cancelled = f.runner.Cancel(res.RunID)
		next := request()
		next.ChatID = first.ChatID + 1
		_, restarted = f.runner.Start(ctx, next)
	}
	f = newFixture(t, &fakeExtractor{size: mib, duration: 10}, nil, WithCompletion(hook))

	_, err := f.runner.Start(context.Background(), first)
	require.NoError(t, err)
	f.runner.Wait()

	assert.True(t, cancelled, "run should be cancellable while hooks run")
	require.NoError(t, restarted)
	assert.Empty(t, f.runner.Active())
	f.results.mu.Lock()
	defer f.results.mu.Unlock()
	assert.Len(t, f.results.results, 2)
}
