package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/54b3r/promptdoc-go/internal/session"
)

// sseWriter emits Server-Sent Events and flushes after each one.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// newSSEWriter sets the event-stream headers on w. It reports false when w
// cannot flush, in which case nothing has been written.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, true
}

// event writes v as a single-line JSON data frame under the given event name.
func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// done signals stream completion.
func (s *sseWriter) done() error {
	if _, err := fmt.Fprint(s.w, "event: done\ndata: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// validRole reports whether r is a role the UI may send back in history.
func validRole(r session.Role) bool {
	switch r {
	case session.RoleUser, session.RoleAssistant, session.RoleSystem:
		return true
	}
	return false
}
