package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipper/internal/api"
	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/services/ytdlp"
	"clipper/internal/testsupport"
)

type stubProber struct {
	media ytdlp.Media
	err   error
	urls  []string
}

func (p *stubProber) Probe(_ context.Context, url string) (ytdlp.Media, error) {
	p.urls = append(p.urls, url)
	return p.media, p.err
}

type stubRuns []pipeline.RunInfo

func (r stubRuns) Active() []pipeline.RunInfo { return r }

func sampleMedia() ytdlp.Media {
	return ytdlp.Media{
		Title:    "Lecture",
		Duration: 3600,
		Formats: []ytdlp.Format{
			{ID: "137", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "none"},
			{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", FileSize: 9000, URL: "https://cdn/22"},
			{ID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a", FileSizeApprox: 3000, URL: "https://cdn/18"},
			{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a"},
		},
	}
}

func get(t *testing.T, srv *api.Server, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	srv := api.New(api.Options{Token: "secret"}, nil, nil, logging.NewNop())
	w := get(t, srv, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"clipper"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestInfoListsProgressiveFormatsAscending(t *testing.T) {
	prober := &stubProber{media: sampleMedia()}
	srv := api.New(api.Options{}, prober, nil, logging.NewNop())

	w := get(t, srv, "/info?url=https://youtu.be/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Lecture", resp.Title)
	assert.Equal(t, 3600.0, resp.Duration)
	require.Len(t, resp.Formats, 2)
	assert.Equal(t, api.FormatInfo{FormatID: "18", Height: 360, Ext: "mp4", FileSize: 3000}, resp.Formats[0])
	assert.Equal(t, 720, resp.Formats[1].Height)
	assert.Equal(t, []string{"https://youtu.be/abc"}, prober.urls)
}

func TestInfoRequiresURL(t *testing.T) {
	srv := api.New(api.Options{}, &stubProber{}, nil, logging.NewNop())
	w := get(t, srv, "/info", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfoProbeFailure(t *testing.T) {
	srv := api.New(api.Options{}, &stubProber{err: errors.New("boom")}, nil, logging.NewNop())
	w := get(t, srv, "/info?url=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "failed to fetch video info")
}

func TestDirectURL(t *testing.T) {
	srv := api.New(api.Options{}, &stubProber{media: sampleMedia()}, nil, logging.NewNop())

	cases := []struct {
		query  string
		status int
		want   api.DirectURLResponse
	}{
		{query: "url=x", status: http.StatusOK, want: api.DirectURLResponse{URL: "https://cdn/22", Height: 720, Ext: "mp4"}},
		{query: "url=x&height=480", status: http.StatusOK, want: api.DirectURLResponse{URL: "https://cdn/18", Height: 360, Ext: "mp4"}},
		{query: "url=x&height=240", status: http.StatusBadRequest},
		{query: "url=x&height=tall", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			w := get(t, srv, "/direct_url?"+tc.query, nil)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.status != http.StatusOK {
				return
			}
			var resp api.DirectURLResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp)
		})
	}
}

func TestStatusReportsRunsAndStaging(t *testing.T) {
	staging := t.TempDir()
	testsupport.WritePart(t, filepath.Join(staging, "chat5-r1"), "clip.mp4", 2048)

	runs := stubRuns{{RunID: "chat5-r1", ChatID: 5, Started: time.Now().Add(-time.Minute)}}
	srv := api.New(api.Options{StagingDir: staging, BotName: "clip_bot"}, nil, runs, logging.NewNop())

	w := get(t, srv, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "clip_bot", resp.Bot)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "chat5-r1", resp.Runs[0].RunID)
	assert.Equal(t, int64(5), resp.Runs[0].ChatID)
	assert.Equal(t, int64(2048), resp.Staging.Bytes)
	assert.Equal(t, 1, resp.Staging.Files)
}

func TestTokenAuth(t *testing.T) {
	srv := api.New(api.Options{Token: "secret"}, &stubProber{media: sampleMedia()}, nil, logging.NewNop())

	assert.Equal(t, http.StatusUnauthorized, get(t, srv, "/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, srv, "/status", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, srv, "/info?url=x", map[string]string{"Authorization": "secret"}).Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/status", map[string]string{"Authorization": "Bearer secret"}).Code)
}

func TestStartAndStop(t *testing.T) {
	srv := api.New(api.Options{Bind: "127.0.0.1:0"}, nil, nil, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	srv.Stop()
}
