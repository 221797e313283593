package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/promptdoc-go/internal/completion"
	"github.com/54b3r/promptdoc-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request, including
	// an uploaded document.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// StreamTimeout bounds a single summary or answer stream (default: 5m).
	StreamTimeout time.Duration
	// MaxUploadBytes caps the size of an uploaded document (default: 32 MiB).
	MaxUploadBytes int64
	// UploadDir is where uploads are staged while they are processed.
	// Defaults to the OS temp directory.
	UploadDir string
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Assistant is the document assistant driven by the HTTP handlers.
// *session.Controller satisfies it; tests inject a fake.
type Assistant interface {
	// ProcessAndSummarize indexes the document at path and streams its summary.
	ProcessAndSummarize(ctx context.Context, path string) *completion.Stream
	// SendMessage streams history updates while a question is answered.
	SendMessage(ctx context.Context, message string, history []session.Turn) *session.HistoryStream
}

// Server is the HTTP server that wraps the document assistant.
type Server struct {
	// assistant handles uploads and questions.
	assistant Assistant
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// purgeLimiter drops the per-client rate-limit buckets on shutdown.
	purgeLimiter func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// History is the conversation so far, oldest turn first.
	History []session.Turn `json:"history"`
}

// historyEvent is the payload of each "history" SSE event.
type historyEvent struct {
	// History is the full updated conversation.
	History []session.Turn `json:"history"`
	// Input is the text the message box should hold; always empty.
	Input string `json:"input"`
}

// summaryEvent is the payload of each "summary" SSE event.
type summaryEvent struct {
	// Text is the cumulative summary so far.
	Text string `json:"text"`
}
