package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"empty input", fmt.Errorf("ingestion: %w", ErrEmptyInput), MsgEmptyDocument},
		{"unsupported", fmt.Errorf("document: %w: .docx", ErrUnsupportedFormat), MsgUnsupportedFormat},
		{"not found", fmt.Errorf("document: %w: /tmp/a.txt", ErrFileNotFound), "File not found: /tmp/a.txt"},
		{"read", fmt.Errorf("document: %w: pdf: bad xref", ErrFileRead), "Error reading file: pdf: bad xref"},
		{"store", fmt.Errorf("rag: search: %w: connection refused", ErrStoreUnavailable), "Error accessing collection: connection refused"},
		{"provider", fmt.Errorf("completion: %w: HTTP 500", ErrProvider), "Error contacting the language model provider: HTTP 500"},
		{"bare sentinel", ErrStoreUnavailable, "Error accessing collection: vector store unavailable"},
		{"unknown", errors.New("boom"), "Unexpected error: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Message(tc.err); got != tc.want {
				t.Errorf("Message() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKnown(t *testing.T) {
	t.Parallel()

	if !Known(fmt.Errorf("x: %w", ErrProvider)) {
		t.Error("wrapped ErrProvider should be known")
	}
	if Known(errors.New("boom")) {
		t.Error("plain error should not be known")
	}
	if Known(nil) {
		t.Error("nil should not be known")
	}
}
