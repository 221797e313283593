// Package completion streams chat-model output as a sequence of growing text
// snapshots. A Stream is single-pass and pull-based: each Next call returns
// the full text produced so far, and io.EOF marks the end.
package completion

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/promptdoc-go/internal/apperr"
)

// Stream yields cumulative snapshots of a completion. It is not safe for
// concurrent use by multiple goroutines and must be closed.
type Stream struct {
	// recv returns the next text delta, or io.EOF when the source is drained.
	recv func() (string, error)

	// release frees the underlying source. Called once by Close.
	release func()

	// prefix is prepended to every snapshot.
	prefix string

	// onError converts a mid-stream failure into final snapshot text. When
	// nil, failures are returned from Next.
	onError func(error) string

	// acc accumulates the deltas received so far.
	acc strings.Builder

	// emitted reports whether at least one snapshot was returned.
	emitted bool

	// done is set once the stream reached io.EOF or a terminal failure.
	done bool

	// closeOnce guards release.
	closeOnce sync.Once
}

// FromReader adapts an eino message stream. Empty deltas are skipped so every
// snapshot differs from the previous one.
func FromReader(sr *schema.StreamReader[*schema.Message]) *Stream {
	return &Stream{
		recv: func() (string, error) {
			for {
				msg, err := sr.Recv()
				if err != nil {
					return "", err
				}
				if msg != nil && msg.Content != "" {
					return msg.Content, nil
				}
			}
		},
		release: sr.Close,
	}
}

// Static returns a Stream that yields text once and then ends. It is used
// for fixed messages such as validation errors.
func Static(text string) *Stream {
	sent := false
	return &Stream{
		recv: func() (string, error) {
			if sent {
				return "", io.EOF
			}
			sent = true
			return text, nil
		},
		release: func() {},
	}
}

// WithPrefix returns s with p prepended to every snapshot. If the source
// produces no text at all, p is still yielded once.
func (s *Stream) WithPrefix(p string) *Stream {
	s.prefix = p
	return s
}

// OnError installs a hook that turns a mid-stream failure into the text of a
// final snapshot, so callers only ever see strings. The failure is appended
// to whatever was received before it.
func (s *Stream) OnError(fn func(error) string) *Stream {
	s.onError = fn
	return s
}

// Next returns the next cumulative snapshot. It returns io.EOF once the
// stream is exhausted.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	delta, err := s.recv()
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		if !s.emitted && s.prefix != "" {
			s.emitted = true
			return s.prefix, nil
		}
		return "", io.EOF

	case err != nil:
		s.done = true
		err = fmt.Errorf("completion: %w: %v", apperr.ErrProvider, err)
		if s.onError == nil {
			return "", err
		}
		if s.acc.Len() > 0 {
			s.acc.WriteString("\n\n")
		}
		s.acc.WriteString(s.onError(err))
		s.emitted = true
		return s.snapshot(), nil
	}

	s.acc.WriteString(delta)
	s.emitted = true
	return s.snapshot(), nil
}

// Collect drains the stream and returns the final snapshot.
func (s *Stream) Collect() (string, error) {
	var last string
	for {
		snap, err := s.Next()
		if errors.Is(err, io.EOF) {
			return last, nil
		}
		if err != nil {
			return last, err
		}
		last = snap
	}
}

// Close releases the underlying source. It is safe to call more than once
// and to call before the stream is drained.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// snapshot renders the current cumulative text.
func (s *Stream) snapshot() string {
	return s.prefix + s.acc.String()
}
