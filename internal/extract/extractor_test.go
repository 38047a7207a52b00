package extract

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services"
	"clipper/internal/services/ytdlp"
	"clipper/internal/session"
)

type fakeProvider struct {
	unavailable map[string]bool
	failWith    error
	tried       []string
	remote      bool
}

func (f *fakeProvider) Acquire(_ context.Context, _ string, selector, dir string) (ytdlp.Handle, error) {
	f.tried = append(f.tried, selector)
	if f.unavailable[selector] {
		return ytdlp.Handle{}, services.Wrap(services.ErrFormatUnavailable, "ytdlp", "acquire", selector, nil)
	}
	if f.failWith != nil {
		return ytdlp.Handle{}, f.failWith
	}
	path := filepath.Join(dir, "source.mp4")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		return ytdlp.Handle{}, err
	}
	return ytdlp.Handle{Path: path, Selector: selector}, nil
}

func (f *fakeProvider) DirectURL(_ context.Context, _ string, selector string) (ytdlp.Handle, error) {
	f.tried = append(f.tried, selector)
	if f.unavailable[selector] {
		return ytdlp.Handle{}, services.Wrap(services.ErrFormatUnavailable, "ytdlp", "direct_url", selector, nil)
	}
	return ytdlp.Handle{Path: "https://cdn.example/stream", Remote: true, Selector: selector}, nil
}

type fakeTrimmer struct {
	requests   []ffmpeg.TrimRequest
	failCodecs map[ffmpeg.Codec]bool
	emptyCopy  bool
	duration   float64
	probeErr   error
}

func (f *fakeTrimmer) Trim(_ context.Context, req ffmpeg.TrimRequest) error {
	f.requests = append(f.requests, req)
	if f.failCodecs[req.Codec] {
		return errors.New("ffmpeg exploded")
	}
	payload := []byte("clip-data")
	if req.Codec == ffmpeg.Copy && f.emptyCopy {
		payload = nil
	}
	return os.WriteFile(req.Output, payload, 0o644)
}

func (f *fakeTrimmer) ProbeDuration(context.Context, string) (float64, error) {
	return f.duration, f.probeErr
}

func (f *fakeTrimmer) ProbeSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func videoRequest() Request {
	return Request{Resource: "https://example.com/v", Start: 10, End: 70, Height: 720, Selector: "22", Mode: session.ModeVideo}
}

func TestLadder(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "offered selector",
			req:  videoRequest(),
			want: []string{"22", "best[height<=720][vcodec!=none][acodec!=none]", "bestvideo[height<=720]+bestaudio", "best"},
		},
		{
			name: "fallback with height",
			req:  Request{Height: 480, Mode: session.ModeVideo},
			want: []string{"best[height<=480][vcodec!=none][acodec!=none]", "bestvideo[height<=480]+bestaudio", "best"},
		},
		{
			name: "fallback best",
			req:  Request{Mode: session.ModeVideo},
			want: []string{"best"},
		},
		{
			name: "audio",
			req:  Request{Selector: "22", Height: 720, Mode: session.ModeAudio},
			want: []string{"bestaudio/best"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ladder(tt.req))
		})
	}
}

func TestExtractCopiesRange(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{}
	trimmer := &fakeTrimmer{duration: 60}
	ex := New(provider, trimmer, config.AcquireDownload, logging.NewNop())

	seg, err := ex.Extract(context.Background(), videoRequest(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"22"}, provider.tried)
	require.Len(t, trimmer.requests, 1)
	req := trimmer.requests[0]
	assert.Equal(t, ffmpeg.Copy, req.Codec)
	assert.InDelta(t, 10, req.Start, 0)
	assert.InDelta(t, 60, req.Duration, 0)
	assert.Equal(t, filepath.Join(dir, "clip.mp4"), seg.Path)
	assert.Equal(t, int64(len("clip-data")), seg.Size)
	assert.InDelta(t, 60, seg.Duration, 0)
	assert.False(t, seg.Degraded)
	assert.NoFileExists(t, filepath.Join(dir, "source.mp4"))
}

func TestExtractStepsDownLadder(t *testing.T) {
	provider := &fakeProvider{unavailable: map[string]bool{
		"22": true,
		"best[height<=720][vcodec!=none][acodec!=none]": true,
	}}
	ex := New(provider, &fakeTrimmer{duration: 60}, config.AcquireDownload, logging.NewNop())

	seg, err := ex.Extract(context.Background(), videoRequest(), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, provider.tried, 3)
	assert.Equal(t, "bestvideo[height<=720]+bestaudio", seg.Selector)
	assert.True(t, seg.Degraded)
}

func TestExtractExhaustedLadder(t *testing.T) {
	unavailable := map[string]bool{}
	for _, sel := range Ladder(videoRequest()) {
		unavailable[sel] = true
	}
	ex := New(&fakeProvider{unavailable: unavailable}, &fakeTrimmer{}, config.AcquireDownload, logging.NewNop())
	_, err := ex.Extract(context.Background(), videoRequest(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrAcquire)
}

func TestExtractOtherAcquireErrorIsTerminal(t *testing.T) {
	provider := &fakeProvider{failWith: errors.New("HTTP Error 403")}
	ex := New(provider, &fakeTrimmer{}, config.AcquireDownload, logging.NewNop())
	_, err := ex.Extract(context.Background(), videoRequest(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrAcquire)
	assert.Equal(t, []string{"22"}, provider.tried)
}

func TestExtractReencodesAfterCopyFailure(t *testing.T) {
	for name, trimmer := range map[string]*fakeTrimmer{
		"copy error": {failCodecs: map[ffmpeg.Codec]bool{ffmpeg.Copy: true}, duration: 60},
		"empty copy": {emptyCopy: true, duration: 60},
	} {
		t.Run(name, func(t *testing.T) {
			ex := New(&fakeProvider{}, trimmer, config.AcquireDownload, logging.NewNop())
			seg, err := ex.Extract(context.Background(), videoRequest(), t.TempDir())
			require.NoError(t, err)
			require.Len(t, trimmer.requests, 2)
			assert.Equal(t, ffmpeg.Reencode, trimmer.requests[1].Codec)
			assert.Positive(t, seg.Size)
		})
	}
}

func TestExtractTrimFailure(t *testing.T) {
	trimmer := &fakeTrimmer{failCodecs: map[ffmpeg.Codec]bool{ffmpeg.Copy: true, ffmpeg.Reencode: true}}
	ex := New(&fakeProvider{}, trimmer, config.AcquireDownload, logging.NewNop())
	_, err := ex.Extract(context.Background(), videoRequest(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTrim)
}

func TestExtractAudio(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{}
	trimmer := &fakeTrimmer{duration: 60}
	req := videoRequest()
	req.Mode = session.ModeAudio
	seg, err := New(provider, trimmer, config.AcquireDownload, logging.NewNop()).Extract(context.Background(), req, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"bestaudio/best"}, provider.tried)
	require.Len(t, trimmer.requests, 1)
	assert.Equal(t, ffmpeg.Audio, trimmer.requests[0].Codec)
	assert.Equal(t, filepath.Join(dir, "clip.mp3"), seg.Path)
	assert.Equal(t, session.ModeAudio, seg.Mode)
}

func TestExtractStreamMode(t *testing.T) {
	dir := t.TempDir()
	trimmer := &fakeTrimmer{duration: 60}
	seg, err := New(&fakeProvider{}, trimmer, config.AcquireStream, logging.NewNop()).Extract(context.Background(), videoRequest(), dir)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/stream", trimmer.requests[0].Input)
	assert.FileExists(t, seg.Path)
}

func TestExtractUnknownDuration(t *testing.T) {
	trimmer := &fakeTrimmer{probeErr: errors.New("no duration")}
	seg, err := New(&fakeProvider{}, trimmer, config.AcquireDownload, logging.NewNop()).Extract(context.Background(), videoRequest(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(seg.Duration))
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := &fakeProvider{failWith: context.Canceled}
	_, err := New(provider, &fakeTrimmer{}, config.AcquireDownload, logging.NewNop()).Extract(ctx, videoRequest(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCanceled)
}

func TestExtractRejectsEmptyRange(t *testing.T) {
	req := videoRequest()
	req.End = req.Start
	_, err := New(&fakeProvider{}, &fakeTrimmer{}, config.AcquireDownload, logging.NewNop()).Extract(context.Background(), req, t.TempDir())
	assert.ErrorIs(t, err, services.ErrValidation)
}
