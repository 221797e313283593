// Package budget estimates token counts and trims prompts to fit a model's
// context window. The document assistant talks to several backends with
// different tokenizers, so it uses a conservative character heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role/framing tokens most chat APIs
	// add to every message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input budget for a question,
	// sized for 128k-context models with room left for the answer.
	DefaultMaxContextTokens = 100_000

	// DefaultMaxSummaryTokens caps how much document text is sent for a
	// summary.
	DefaultMaxSummaryTokens = 90_000
)

// Estimate returns a rough token count for s using the character heuristic.
// Any non-empty string counts as at least one token.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing per-message overhead, role and content.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory drops the oldest history messages until fixed + history fits
// within maxTokens. fixed holds messages that are never dropped (system
// prompt, current question with its retrieved context). A leading
// user/assistant pair is dropped together so the remaining history never
// starts with an orphaned assistant reply.
//
// If even an empty history exceeds the budget, an empty slice is returned;
// callers should warn separately if fixed alone exceeds the budget.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	fixedTokens := EstimateMessages(fixed)
	for len(history) > 0 && fixedTokens+EstimateMessages(history) > maxTokens {
		drop := 1
		if len(history) > 1 && history[0].Role == schema.User && history[1].Role == schema.Assistant {
			drop = 2
		}
		history = history[drop:]
	}
	return history
}

// TruncateText returns the longest prefix of s whose estimate fits within
// maxTokens, cut on a rune boundary. truncated reports whether anything was
// removed.
func TruncateText(s string, maxTokens int) (out string, truncated bool) {
	if maxTokens <= 0 || Estimate(s) <= maxTokens {
		return s, false
	}
	limit := maxTokens * charsPerToken
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit], true
}
