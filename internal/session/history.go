package session

import (
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/promptdoc-go/internal/completion"
)

// recentExchanges converts the last n complete user/assistant exchanges in
// history into chat messages, oldest first. Turns that are not part of a
// complete exchange (a trailing question, system notes) are skipped.
func recentExchanges(history []Turn, n int) []*schema.Message {
	type exchange struct{ question, answer string }

	var pairs []exchange
	for i := 0; i < len(history); i++ {
		if history[i].Role != RoleUser || i+1 >= len(history) || history[i+1].Role != RoleAssistant {
			continue
		}
		pairs = append(pairs, exchange{history[i].Content, history[i+1].Content})
		i++
	}
	if len(pairs) > n {
		pairs = pairs[len(pairs)-n:]
	}

	msgs := make([]*schema.Message, 0, 2*len(pairs))
	for _, p := range pairs {
		msgs = append(msgs, schema.UserMessage(p.question), schema.AssistantMessage(p.answer, nil))
	}
	return msgs
}

// HistoryStream yields successive versions of the chat history while an
// answer is streamed: first the history with the new question appended, then
// the history with a growing assistant turn. Each update comes with the text
// the input box should hold, which is always empty.
type HistoryStream struct {
	// base is the caller's history, plus the new question unless blank.
	base []Turn
	// answer is the streamed reply. Nil for a blank message.
	answer *completion.Stream
	// blank marks a message with no text; only base is yielded.
	blank bool

	// started is set once base has been yielded.
	started bool
	// done is set after the final update or a failure.
	done bool
}

// NewHistoryStream wraps answer, the reply to message, as a stream of
// history updates on top of history. A blank message yields history
// unchanged once and answer is ignored.
func NewHistoryStream(history []Turn, message string, answer *completion.Stream) *HistoryStream {
	base := make([]Turn, len(history), len(history)+2)
	copy(base, history)

	if strings.TrimSpace(message) == "" || answer == nil {
		if answer != nil {
			answer.Close()
		}
		return &HistoryStream{base: base, blank: true}
	}
	base = append(base, Turn{Role: RoleUser, Content: message})
	return &HistoryStream{base: base, answer: answer}
}

// Next returns the next history update. It returns io.EOF when the answer is
// complete. The returned slice is owned by the caller.
func (h *HistoryStream) Next() ([]Turn, string, error) {
	if h.done {
		return nil, "", io.EOF
	}

	if !h.started {
		h.started = true
		if h.blank {
			h.done = true
		}
		return h.with(), "", nil
	}

	snap, err := h.answer.Next()
	if errors.Is(err, io.EOF) {
		h.done = true
		return nil, "", io.EOF
	}
	if err != nil {
		h.done = true
		return nil, "", err
	}
	return h.with(Turn{Role: RoleAssistant, Content: snap}), "", nil
}

// Close releases the answer stream.
func (h *HistoryStream) Close() {
	if h.answer != nil {
		h.answer.Close()
	}
}

func (h *HistoryStream) with(extra ...Turn) []Turn {
	out := make([]Turn, 0, len(h.base)+len(extra))
	out = append(out, h.base...)
	return append(out, extra...)
}
