// Package apperr defines the error taxonomy shared by the indexing, retrieval
// and chat layers, and the conversion of those errors into the plain-text
// messages shown to the user. Lower layers wrap these sentinels with
// fmt.Errorf("...: %w"); the session controller is the only place that turns
// them into strings.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyInput reports a missing file or a document with no text.
	ErrEmptyInput = errors.New("empty input")

	// ErrUnsupportedFormat reports a file extension other than .txt or .pdf.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileNotFound reports a path that does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileRead reports an I/O or parse failure (e.g. a corrupt PDF).
	ErrFileRead = errors.New("file read failed")

	// ErrStoreUnavailable reports an unreachable vector store or a missing
	// collection.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrProvider reports a failed embedding or completion call.
	ErrProvider = errors.New("provider call failed")
)

// User-facing messages. The wording follows what users of the chat UI have
// always seen, so UI glue and tests can match on it.
const (
	MsgNoFile            = "Please upload a valid PDF or TXT file."
	MsgEmptyDocument     = "The uploaded document contains no readable text."
	MsgUnsupportedFormat = "Unsupported file format. Please upload a PDF or TXT file."
	MsgNotIndexed        = "No documents have been indexed yet. Please upload a document first."
	MsgUploadFirst       = "Please upload and process a document first."
)

// Message converts err into the descriptive string surfaced to the user.
// It returns "" for a nil error. Errors outside the taxonomy are rendered as
// "Unexpected error: ..." so the caller can still display something.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrEmptyInput):
		return MsgEmptyDocument
	case errors.Is(err, ErrUnsupportedFormat):
		return MsgUnsupportedFormat
	case errors.Is(err, ErrFileNotFound):
		return "File not found: " + detailOf(err, ErrFileNotFound)
	case errors.Is(err, ErrFileRead):
		return "Error reading file: " + detailOf(err, ErrFileRead)
	case errors.Is(err, ErrStoreUnavailable):
		return "Error accessing collection: " + detailOf(err, ErrStoreUnavailable)
	case errors.Is(err, ErrProvider):
		return "Error contacting the language model provider: " + detailOf(err, ErrProvider)
	default:
		return "Unexpected error: " + err.Error()
	}
}

// Known reports whether err belongs to the taxonomy. Unknown errors are the
// ones the controller logs at error level.
func Known(err error) bool {
	for _, target := range []error{
		ErrEmptyInput, ErrUnsupportedFormat, ErrFileNotFound,
		ErrFileRead, ErrStoreUnavailable, ErrProvider,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// detailOf returns the text that follows the sentinel in err's message, so
// "document: file not found: /tmp/a.txt" yields "/tmp/a.txt". The whole
// message is returned when the sentinel is the last element.
func detailOf(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
