package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/budget"
	"github.com/54b3r/promptdoc-go/internal/logging"
)

// Option adjusts a single completion call.
type Option func(*callOptions)

// callOptions collects per-call settings.
type callOptions struct {
	temperature *float32
}

// WithTemperature sets the sampling temperature for one call. It is dropped
// for models that reject a temperature.
func WithTemperature(t float32) Option {
	return func(o *callOptions) { o.temperature = &t }
}

// Service streams chat completions from a single model.
type Service struct {
	// model is the chat model every call is sent to.
	model model.BaseChatModel

	// supportsTemperature gates per-call temperature options.
	supportsTemperature bool
}

// NewService wraps m. supportsTemperature is false for models that reject a
// sampling temperature.
func NewService(m model.BaseChatModel, supportsTemperature bool) (*Service, error) {
	if m == nil {
		return nil, fmt.Errorf("completion: model must not be nil")
	}
	return &Service{model: m, supportsTemperature: supportsTemperature}, nil
}

// Stream starts a streamed completion for msgs. A failure to start the
// stream wraps apperr.ErrProvider; failures after the first delta surface
// through the returned Stream.
func (s *Service) Stream(ctx context.Context, msgs []*schema.Message, opts ...Option) (*Stream, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	var modelOpts []model.Option
	if co.temperature != nil && s.supportsTemperature {
		modelOpts = append(modelOpts, model.WithTemperature(*co.temperature))
	}

	logging.FromContext(ctx).Debug("completion started",
		slog.Int("messages", len(msgs)),
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)),
	)

	sr, err := s.model.Stream(ctx, msgs, modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("completion: %w: %v", apperr.ErrProvider, err)
	}
	return FromReader(sr), nil
}
