package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clipper/internal/fileutil"
	"clipper/internal/formats"
	"clipper/internal/logging"
	"clipper/internal/pipeline"
	"clipper/internal/services"
	"clipper/internal/services/ytdlp"
)

const serviceName = "clipper"

// Prober lists a resource's formats.
type Prober interface {
	Probe(ctx context.Context, url string) (ytdlp.Media, error)
}

// RunLister reports in-flight runs.
type RunLister interface {
	Active() []pipeline.RunInfo
}

// Options configures the HTTP server.
type Options struct {
	Bind       string
	Token      string
	StagingDir string
	BotName    string
}

// Server is the helper HTTP API.
type Server struct {
	opts    Options
	prober  Prober
	runs    RunLister
	logger  *slog.Logger
	started time.Time
	now     func() time.Time

	engine   *gin.Engine
	listener net.Listener
	server   *http.Server
}

// New builds the server and its routes. runs may be nil when no bot is running.
func New(opts Options, prober Prober, runs RunLister, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		opts:    opts,
		prober:  prober,
		runs:    runs,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		started: time.Now(),
		now:     time.Now,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/", s.handleRoot)

	authed := engine.Group("/", requireToken(opts.Token))
	authed.GET("/info", s.handleInfo)
	authed.GET("/direct_url", s.handleDirectURL)
	authed.GET("/status", s.handleStatus)

	s.engine = engine
	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || strings.TrimSpace(s.opts.Bind) == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		ctx := services.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)
		start := time.Now()
		c.Next()
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
}

func (s *Server) probe(c *gin.Context) (ytdlp.Media, bool) {
	target := strings.TrimSpace(c.Query("url"))
	if target == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "url query parameter is required"})
		return ytdlp.Media{}, false
	}
	if s.prober == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "probing unavailable"})
		return ytdlp.Media{}, false
	}
	media, err := s.prober.Probe(c.Request.Context(), target)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(c.Request.Context(), s.logger), "api probe failed", "api_probe_failed",
			logging.String("url", target),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to fetch video info"})
		return ytdlp.Media{}, false
	}
	return media, true
}

func (s *Server) handleInfo(c *gin.Context) {
	media, ok := s.probe(c)
	if !ok {
		return
	}
	progressive := formats.Progressive(media.Formats)
	out := make([]FormatInfo, 0, len(progressive))
	for _, f := range progressive {
		out = append(out, FormatInfo{
			FormatID: f.ID,
			Height:   f.Height,
			Ext:      f.Ext,
			FileSize: f.Size(),
		})
	}
	c.JSON(http.StatusOK, InfoResponse{Title: media.Title, Duration: media.Duration, Formats: out})
}

func (s *Server) handleDirectURL(c *gin.Context) {
	height := 0
	if raw := strings.TrimSpace(c.Query("height")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "height must be a non-negative integer"})
			return
		}
		height = parsed
	}
	media, ok := s.probe(c)
	if !ok {
		return
	}
	best, found := formats.BestProgressive(media.Formats, height)
	if !found {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "no progressive format at this height"})
		return
	}
	if best.URL == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "format has no direct url"})
		return
	}
	ext := best.Ext
	if ext == "" {
		ext = "mp4"
	}
	c.JSON(http.StatusOK, DirectURLResponse{URL: best.URL, Height: best.Height, Ext: ext})
}

func (s *Server) handleStatus(c *gin.Context) {
	now := s.now()
	resp := StatusResponse{
		Service: serviceName,
		Bot:     s.opts.BotName,
		Uptime:  now.Sub(s.started).Round(time.Second).String(),
		Runs:    []RunStatus{},
		Staging: StagingStatus{Dir: s.opts.StagingDir},
	}
	if s.runs != nil {
		for _, run := range s.runs.Active() {
			resp.Runs = append(resp.Runs, RunStatus{
				RunID:   run.RunID,
				ChatID:  run.ChatID,
				Started: run.Started,
				Elapsed: now.Sub(run.Started).Round(time.Second).String(),
			})
		}
	}
	if s.opts.StagingDir != "" {
		bytes, files, err := fileutil.DirUsage(s.opts.StagingDir)
		resp.Staging.Bytes = bytes
		resp.Staging.Files = files
		if err != nil {
			resp.Staging.Error = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}
