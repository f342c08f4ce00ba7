package commands

import (
	"errors"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/roelfdiedericks/aiorch/internal/metrics"
	"github.com/roelfdiedericks/aiorch/internal/session"
	"github.com/roelfdiedericks/aiorch/internal/tokens"
)

// Env is the chat state commands operate on. Router and Sessions are
// required; the rest may be nil.
type Env struct {
	Router   *llm.Router
	Sessions *session.Manager
	Windower *session.Windower
	Metrics  *metrics.Collector
	Counter  tokens.Counter
}

func (e *Env) counter() tokens.Counter {
	if e.Counter != nil {
		return e.Counter
	}
	return tokens.Get()
}

// CommandResult contains the result of a command execution
type CommandResult struct {
	Text  string // Plain text output
	Error error  // Error if command failed; Text holds the user-facing message
	// History replaces the in-memory history when non-nil.
	History []llm.Message
	Exit    bool // stop the chat loop
}

func errorResult(err error, text string) *CommandResult {
	if err == nil {
		err = errors.New(text)
	}
	return &CommandResult{Text: text, Error: err}
}
