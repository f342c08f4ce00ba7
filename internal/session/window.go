package session

import (
	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/roelfdiedericks/aiorch/internal/tokens"
)

// Windower bounds the history sent to the router: a pinned system message
// plus the most recent MaxMessages turns, optionally trimmed further to a
// token budget.
type Windower struct {
	MaxMessages  int
	MaxTokens    int // 0 disables the token budget
	SystemPrompt string
	Counter      tokens.Counter // nil uses the global tiktoken estimator
}

// NewWindower returns a message-count windower with no token budget.
func NewWindower(maxMessages int, systemPrompt string) *Windower {
	return &Windower{MaxMessages: maxMessages, SystemPrompt: systemPrompt}
}

// Window returns the bounded context for history. The input is never mutated.
//
// Histories within MaxMessages pass through unchanged. Longer ones become
// [pinned, last MaxMessages...], where pinned is the history's own leading
// system message or, if it has none, the configured system prompt.
// With a token budget the oldest non-pinned messages are dropped next, but
// the newest message always survives.
func (w *Windower) Window(history []llm.Message) []llm.Message {
	var out []llm.Message
	if w.MaxMessages <= 0 || len(history) <= w.MaxMessages {
		out = append([]llm.Message(nil), history...)
	} else {
		tail := history[len(history)-w.MaxMessages:]
		out = make([]llm.Message, 0, len(tail)+1)
		switch {
		case history[0].Role == llm.RoleSystem:
			out = append(out, history[0])
		case w.SystemPrompt != "":
			out = append(out, llm.SystemMessage(w.SystemPrompt))
		}
		out = append(out, tail...)
	}

	if w.MaxTokens > 0 {
		out = w.trimToBudget(out)
	}
	return out
}

func (w *Windower) trimToBudget(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return msgs
	}

	var pinned []llm.Message
	rest := msgs
	if msgs[0].Role == llm.RoleSystem {
		pinned, rest = msgs[:1], msgs[1:]
	}

	total := w.Tokens(msgs)
	for total > w.MaxTokens && len(rest) > 1 {
		total -= w.cost(rest[0])
		rest = rest[1:]
	}

	return append(append([]llm.Message(nil), pinned...), rest...)
}

// Tokens estimates the token cost of msgs including per-message framing.
func (w *Windower) Tokens(msgs []llm.Message) int {
	total := 0
	for _, m := range msgs {
		total += w.cost(m)
	}
	return total
}

func (w *Windower) cost(m llm.Message) int {
	c := w.Counter
	if c == nil {
		c = tokens.Get()
	}
	return c.Count(m.Content) + tokens.MessageOverhead
}
