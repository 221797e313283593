package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/promptdoc-go/internal/apperr"
	"github.com/54b3r/promptdoc-go/internal/budget"
	"github.com/54b3r/promptdoc-go/internal/completion"
	"github.com/54b3r/promptdoc-go/internal/document"
	"github.com/54b3r/promptdoc-go/internal/ingestion"
	"github.com/54b3r/promptdoc-go/internal/logging"
)

const (
	answerSystemPrompt  = "You are a helpful assistant answering questions about the uploaded document."
	summarySystemPrompt = "You are a helpful assistant that summarizes documents concisely."

	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5
	// DefaultHistoryExchanges is how many prior question/answer pairs are
	// sent with each question.
	DefaultHistoryExchanges = 5
	// DefaultAnswerTemperature is the sampling temperature for answers.
	// Summaries use the provider default.
	DefaultAnswerTemperature float32 = 0.7
)

// Config tunes a Controller. Zero values select the defaults.
type Config struct {
	// TopK is the number of chunks retrieved per question.
	TopK int
	// HistoryExchanges is how many prior question/answer pairs are sent.
	HistoryExchanges int
	// AnswerTemperature overrides DefaultAnswerTemperature when non-nil.
	AnswerTemperature *float32
	// MaxContextTokens is the input budget for an answer prompt.
	MaxContextTokens int
	// MaxSummaryTokens caps the document text sent for a summary.
	MaxSummaryTokens int
}

// Controller coordinates the reader, indexer, retriever and model for one
// session. It is safe for concurrent use.
type Controller struct {
	// reader extracts text from uploaded files.
	reader DocumentReader
	// indexer chunks into the vector store and owns the once-per-session reset.
	indexer Indexer
	// retriever renders the context blob for a question.
	retriever Retriever
	// completer streams summaries and answers from the chat model.
	completer Completer

	// topK is the resolved Config.TopK.
	topK int
	// exchanges is the resolved Config.HistoryExchanges.
	exchanges int
	// temperature is the sampling temperature for answers.
	temperature float32
	// maxContext is the resolved Config.MaxContextTokens.
	maxContext int
	// maxSummary is the resolved Config.MaxSummaryTokens.
	maxSummary int

	// mu guards state.
	mu sync.RWMutex
	// state is NoDocument until the first successful indexing.
	state State
}

// NewController wires the session dependencies. All four are required.
func NewController(reader DocumentReader, indexer Indexer, retriever Retriever, completer Completer, cfg *Config) (*Controller, error) {
	if reader == nil || indexer == nil || retriever == nil || completer == nil {
		return nil, errors.New("session: reader, indexer, retriever and completer are required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	c := &Controller{
		reader:      reader,
		indexer:     indexer,
		retriever:   retriever,
		completer:   completer,
		topK:        cfg.TopK,
		exchanges:   cfg.HistoryExchanges,
		temperature: DefaultAnswerTemperature,
		maxContext:  cfg.MaxContextTokens,
		maxSummary:  cfg.MaxSummaryTokens,
	}
	if c.topK <= 0 {
		c.topK = DefaultTopK
	}
	if c.exchanges <= 0 {
		c.exchanges = DefaultHistoryExchanges
	}
	if cfg.AnswerTemperature != nil {
		c.temperature = *cfg.AnswerTemperature
	}
	if c.maxContext <= 0 {
		c.maxContext = budget.DefaultMaxContextTokens
	}
	if c.maxSummary <= 0 {
		c.maxSummary = budget.DefaultMaxSummaryTokens
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ProcessDocument reads the file at path, indexes its chunks and streams a
// summary of its content. Read failures produce a single static message and
// leave the state unchanged. An indexing failure is reported as a prefix of
// the summary stream and does not advance the state; the summary is still
// generated from the extracted text. A summary failure after successful
// indexing leaves the document indexed.
func (c *Controller) ProcessDocument(ctx context.Context, path string) *completion.Stream {
	logger := logging.FromContext(ctx)

	if strings.TrimSpace(path) == "" {
		return completion.Static(apperr.MsgNoFile)
	}

	doc, err := c.reader.Read(ctx, path)
	if err != nil {
		return completion.Static(c.errorText(ctx, "read document", err))
	}
	if strings.TrimSpace(doc.Text) == "" {
		logger.Warn("document has no extractable text", slog.String("name", doc.Name))
		return completion.Static(apperr.MsgEmptyDocument)
	}

	var prefix string
	if err := c.index(ctx, doc); err != nil {
		prefix = c.errorText(ctx, "index document", err) + "\n\n"
	} else {
		c.setState(DocumentIndexed)
	}

	content, truncated := budget.TruncateText(doc.Text, c.maxSummary)
	if truncated {
		logger.Warn("document truncated for summary",
			slog.String("document_id", doc.ID),
			slog.Int("max_tokens", c.maxSummary),
		)
	}
	msgs := []*schema.Message{
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage("Summarize the following document content:\n" + content),
	}

	stream, err := c.completer.Stream(ctx, msgs)
	if err != nil {
		return completion.Static(prefix + c.errorText(ctx, "summarize document", err))
	}
	return stream.WithPrefix(prefix).OnError(c.streamErrorText(ctx, "summarize document"))
}

// ProcessAndSummarize is the upload entry point used by the interfaces. It
// behaves exactly like ProcessDocument.
func (c *Controller) ProcessAndSummarize(ctx context.Context, path string) *completion.Stream {
	return c.ProcessDocument(ctx, path)
}

// index chunks text, resets the store on the first upload of the session
// and appends the chunks.
func (c *Controller) index(ctx context.Context, doc *document.Document) error {
	size, overlap := c.indexer.ChunkSizes()
	chunks, err := ingestion.ChunkDocument(doc, size, overlap)
	if err != nil {
		return err
	}
	c.indexer.ResetIfFirstInSession(ctx)
	return c.indexer.AddChunks(ctx, chunks)
}

// AnswerQuestion streams an answer to message grounded in the chunks most
// similar to it. history holds the prior turns of the conversation; only the
// most recent complete exchanges are sent. Before any document is indexed
// the stream carries a single instruction to upload one.
func (c *Controller) AnswerQuestion(ctx context.Context, message string, history []Turn) *completion.Stream {
	if c.State() == NoDocument {
		return completion.Static(apperr.MsgUploadFirst)
	}

	contextText := c.retriever.Query(ctx, message, c.topK)

	system := schema.SystemMessage(answerSystemPrompt)
	question := schema.UserMessage(fmt.Sprintf("Context from document:\n%s\n\nQuestion: %s", contextText, message))
	window := recentExchanges(history, c.exchanges)

	fixed := []*schema.Message{system, question}
	trimmed := budget.TrimHistory(fixed, window, c.maxContext)
	if dropped := len(window) - len(trimmed); dropped > 0 {
		logging.FromContext(ctx).Warn("history trimmed to fit context budget",
			slog.Int("dropped_messages", dropped),
			slog.Int("max_tokens", c.maxContext),
		)
	}

	msgs := make([]*schema.Message, 0, len(trimmed)+2)
	msgs = append(msgs, system)
	msgs = append(msgs, trimmed...)
	msgs = append(msgs, question)

	stream, err := c.completer.Stream(ctx, msgs, completion.WithTemperature(c.temperature))
	if err != nil {
		return completion.Static(c.errorText(ctx, "answer question", err))
	}
	return stream.OnError(c.streamErrorText(ctx, "answer question"))
}

// SendMessage appends message to history and streams history updates while
// the answer arrives. A blank message yields history unchanged.
func (c *Controller) SendMessage(ctx context.Context, message string, history []Turn) *HistoryStream {
	if strings.TrimSpace(message) == "" {
		return NewHistoryStream(history, message, nil)
	}
	return NewHistoryStream(history, message, c.AnswerQuestion(ctx, message, history))
}

// errorText logs err and converts it to its user-facing message. Errors
// outside the taxonomy are logged at error level.
func (c *Controller) errorText(ctx context.Context, op string, err error) string {
	logger := logging.FromContext(ctx)
	if apperr.Known(err) {
		logger.Warn(op+" failed", slog.String("error", err.Error()))
	} else {
		logger.Error(op+" failed", slog.String("error", err.Error()))
	}
	return apperr.Message(err)
}

func (c *Controller) streamErrorText(ctx context.Context, op string) func(error) string {
	return func(err error) string {
		return c.errorText(ctx, op, err)
	}
}
