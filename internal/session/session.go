// Package session holds the per-process conversation state of the document
// assistant. A Controller moves from NoDocument to DocumentIndexed once a
// document has been chunked and indexed, and answers questions only after
// that transition. Every public operation returns text (or a stream of
// text); errors are converted to user-facing messages here and nowhere else.
package session

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/promptdoc-go/internal/completion"
	"github.com/54b3r/promptdoc-go/internal/document"
	"github.com/54b3r/promptdoc-go/internal/rag"
)

// State is the controller's lifecycle state.
type State int

const (
	// NoDocument means no document has been indexed in this session.
	NoDocument State = iota
	// DocumentIndexed means at least one document is available for retrieval.
	DocumentIndexed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case DocumentIndexed:
		return "document_indexed"
	default:
		return "no_document"
	}
}

// Role tags the author of a conversation turn.
type Role string

const (
	// RoleUser is a question typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is a model answer.
	RoleAssistant Role = "assistant"
	// RoleSystem is an instruction message used when composing prompts.
	RoleSystem Role = "system"
)

// Turn is one message in the chat history exchanged with the UI.
type Turn struct {
	// Role identifies the author.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// DocumentReader extracts text from an uploaded file.
type DocumentReader interface {
	Read(ctx context.Context, path string) (*document.Document, error)
}

// Indexer appends chunks to the vector store, resetting it once per session.
type Indexer interface {
	ChunkSizes() (size, overlap int)
	ResetIfFirstInSession(ctx context.Context)
	AddChunks(ctx context.Context, chunks []rag.Chunk) error
}

// Retriever turns a question into a context blob. It never fails; failures
// are rendered into the returned text.
type Retriever interface {
	Query(ctx context.Context, query string, k int) string
}

// Completer streams a chat completion.
type Completer interface {
	Stream(ctx context.Context, msgs []*schema.Message, opts ...completion.Option) (*completion.Stream, error)
}
