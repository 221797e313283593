// Package server implements the HTTP server that exposes the document
// assistant via a REST/SSE API. Uploads stream their summary as "summary"
// events and questions stream the updated chat history as "history" events.
// The server is started by the `promptdoc serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/promptdoc-go/internal/logging"
)

// defaultMaxUploadBytes caps uploads when Config.MaxUploadBytes is zero.
const defaultMaxUploadBytes = 32 << 20

// multipartMemory is the part of a multipart body kept in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// New constructs a Server from the provided assistant and config.
func New(a Assistant, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: assistant must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = 5 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		assistant: a,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled: PROMPTDOC_API_KEY is not set")
	}

	limiter := newClientLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rejected)
	s.purgeLimiter = limiter.purge
	auth := newTokenAuth(cfg.APIKey, s.metrics.rejected)

	protected := func(h http.HandlerFunc) http.Handler {
		return auth.wrap(limiter.wrap(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", protected(s.handleDocument))
	mux.Handle("POST /api/chat", protected(s.handleChat))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.purgeLimiter()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("promptdoc server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleDocument handles POST /api/documents. The multipart field "file" is
// staged on disk under its original name and handed to the assistant; the
// summary is streamed back as "summary" events. A request without a file
// still gets a stream carrying the assistant's "please upload" message.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.metrics.uploadsTotal.WithLabelValues("too_large").Inc()
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.uploadsTotal.WithLabelValues("too_large").Inc()
			http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.metrics.uploadsTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	path, cleanup, err := s.stageUpload(r)
	if err != nil {
		log.Error("staging upload failed", slog.Any("error", err))
		s.metrics.uploadsTotal.WithLabelValues("error").Inc()
		http.Error(w, "could not store upload", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	defer cancel()

	stream := s.assistant.ProcessAndSummarize(ctx, path)
	defer stream.Close()

	outcome := "ok"
	for {
		text, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			outcome = streamOutcome(ctx)
			log.Warn("summary stream failed", slog.Any("error", err))
			_ = sw.event("error", map[string]string{"error": err.Error()})
			break
		}
		if err := sw.event("summary", summaryEvent{Text: text}); err != nil {
			outcome = "client_gone"
			break
		}
	}
	_ = sw.done()

	s.metrics.uploadsTotal.WithLabelValues(outcome).Inc()
	s.metrics.streamDurationSeconds.WithLabelValues("summary", outcome).Observe(time.Since(start).Seconds())
}

// stageUpload copies the uploaded file into a fresh directory and returns its
// path. It returns an empty path when the request carries no file.
func (s *Server) stageUpload(r *http.Request) (string, func(), error) {
	noop := func() {}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", noop, nil
	}
	if err != nil {
		return "", noop, fmt.Errorf("server: read upload: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean("/" + header.Filename))
	if name == "/" || name == "." {
		return "", noop, nil
	}

	dir, err := os.MkdirTemp(s.cfg.UploadDir, "promptdoc-upload-*")
	if err != nil {
		return "", noop, fmt.Errorf("server: create staging dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("server: create staged file: %w", err)
	}
	n, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("server: write staged file: %w", err)
	}

	s.metrics.uploadBytes.Observe(float64(n))
	return path, cleanup, nil
}

// handleChat handles POST /api/chat requests. It streams successive versions
// of the chat history as "history" events so the UI can render the answer
// as it arrives.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, t := range req.History {
		if !validRole(t.Role) {
			http.Error(w, fmt.Sprintf("invalid history role %q", t.Role), http.StatusBadRequest)
			return
		}
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	defer cancel()

	hs := s.assistant.SendMessage(ctx, req.Message, req.History)
	defer hs.Close()

	outcome := "ok"
	for {
		history, input, err := hs.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			outcome = streamOutcome(ctx)
			log.Warn("answer stream failed", slog.Any("error", err))
			_ = sw.event("error", map[string]string{"error": err.Error()})
			break
		}
		if err := sw.event("history", historyEvent{History: history, Input: input}); err != nil {
			outcome = "client_gone"
			break
		}
	}
	_ = sw.done()

	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.streamDurationSeconds.WithLabelValues("answer", outcome).Observe(time.Since(start).Seconds())
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// streamOutcome labels a failed stream for metrics.
func streamOutcome(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
