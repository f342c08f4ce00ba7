package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/roelfdiedericks/aiorch/internal/session"
)

// registerBuiltins registers all built-in commands
func registerBuiltins(m *Manager) {
	m.Register(&Command{
		Name:        "/models",
		Description: "List the configured models",
		Handler:     handleModels,
	})

	m.Register(&Command{
		Name:        "/use",
		Description: "Switch to the model with the given index",
		Usage:       "<n>",
		Handler:     handleUse,
	})

	m.Register(&Command{
		Name:        "/clear",
		Description: "Clear the current conversation history",
		Aliases:     []string{"/reset"},
		Handler:     handleClear,
	})

	m.Register(&Command{
		Name:        "/rename",
		Description: "Rename the current session",
		Usage:       "<title>",
		Handler:     handleRename,
	})

	m.Register(&Command{
		Name:        "/sessions",
		Description: "List saved sessions",
		Handler:     handleSessions,
	})

	m.Register(&Command{
		Name:        "/status",
		Description: "Show model, session and attempt statistics",
		Handler:     handleStatus,
	})

	m.Register(&Command{
		Name:        "/help",
		Description: "Show this help",
		Handler:     handleHelp,
	})

	m.Register(&Command{
		Name:        "/exit",
		Description: "Quit",
		Aliases:     []string{"/quit"},
		Handler:     handleExit,
	})
}

// handleModels lists sorted candidates, marking the cursor and families
// without credentials.
func handleModels(_ context.Context, args *CommandArgs) *CommandResult {
	r := args.Env.Router
	models := r.Models()
	if len(models) == 0 {
		return errorResult(llm.ErrEmptyPool, "No models configured.")
	}
	current := r.CurrentIndex()

	var text strings.Builder
	text.WriteString("Available models:\n")
	for i, model := range models {
		bullet := "   "
		if i == current {
			bullet = " → "
		}
		fmt.Fprintf(&text, "%s[%d] %s (%s)", bullet, i, model.DisplayName(), model.Family)
		if !r.Available(i) {
			text.WriteString(" - no credentials")
		}
		text.WriteString("\n")
	}
	return &CommandResult{Text: text.String()}
}

// handleUse moves the router cursor.
func handleUse(_ context.Context, args *CommandArgs) *CommandResult {
	index, err := strconv.Atoi(args.RawArgs)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Usage: /use %s. Example: /use 0", args.Usage))
	}

	r := args.Env.Router
	if !r.SetModel(index) {
		return errorResult(nil, "Invalid model index. See /models.")
	}

	model, err := r.CurrentModel()
	if err != nil {
		return errorResult(err, llm.FormatErrorForUser(err))
	}
	text := fmt.Sprintf("Switched to: %s", model.DisplayName())
	if !r.Available(index) {
		text += " (no credentials, requests will fail over)"
	}
	return &CommandResult{Text: text}
}

// handleClear resets the conversation to the system prompt and saves it.
func handleClear(ctx context.Context, args *CommandArgs) *CommandResult {
	sessions := args.Env.Sessions
	fresh := sessions.Fresh()
	if err := sessions.Save(ctx, args.SessionID, fresh, ""); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to clear session: %s", err))
	}
	if fresh == nil {
		fresh = []llm.Message{}
	}
	return &CommandResult{Text: "Conversation history cleared.", History: fresh}
}

// handleRename retitles the current session. A session with no saved turns
// yet is saved under the new title.
func handleRename(ctx context.Context, args *CommandArgs) *CommandResult {
	title := strings.TrimSpace(args.RawArgs)
	if title == "" {
		return errorResult(nil, "A title is required: /rename My new session")
	}

	sessions := args.Env.Sessions
	err := sessions.Rename(ctx, args.SessionID, title)
	if errors.Is(err, session.ErrNotFound) {
		err = sessions.Save(ctx, args.SessionID, args.History, title)
	}
	if err != nil {
		return errorResult(err, fmt.Sprintf("Rename failed: %s", err))
	}
	return &CommandResult{Text: fmt.Sprintf("Session renamed to: %q", title)}
}

// handleSessions lists stored sessions, newest first.
func handleSessions(ctx context.Context, args *CommandArgs) *CommandResult {
	list, err := args.Env.Sessions.List(ctx)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to list sessions: %s", err))
	}
	if len(list) == 0 {
		return &CommandResult{Text: "No saved sessions."}
	}

	var text strings.Builder
	text.WriteString("Saved sessions:\n")
	for _, info := range list {
		bullet := "   "
		if info.ID == args.SessionID {
			bullet = " → "
		}
		fmt.Fprintf(&text, "%s%s (%d messages, %s) %s\n",
			bullet, info.Title, info.Messages, info.UpdatedAt.Format("2006-01-02 15:04"), info.ID)
	}
	return &CommandResult{Text: text.String()}
}

// handleStatus reports the cursor, session size and attempt counters.
func handleStatus(ctx context.Context, args *CommandArgs) *CommandResult {
	env := args.Env

	var text strings.Builder
	text.WriteString("Model\n")
	if model, err := env.Router.CurrentModel(); err != nil {
		fmt.Fprintf(&text, "  Current: none (%s)\n", llm.FormatErrorForUser(err))
	} else {
		fmt.Fprintf(&text, "  Current: [%d] %s (%s)\n", env.Router.CurrentIndex(), model.DisplayName(), model.Ref())
	}

	text.WriteString("\nSession\n")
	fmt.Fprintf(&text, "  ID: %s\n", args.SessionID)
	fmt.Fprintf(&text, "  Title: %s\n", env.Sessions.Title(ctx, args.SessionID))
	fmt.Fprintf(&text, "  Messages: %d\n", len(args.History))

	counter := env.counter()
	total := 0
	for _, msg := range args.History {
		total += counter.Count(msg.Content)
	}
	fmt.Fprintf(&text, "  Estimated tokens: %d\n", total)
	if env.Windower != nil {
		window := env.Windower.Window(args.History)
		fmt.Fprintf(&text, "  Context sent: %d messages, ~%d tokens\n", len(window), env.Windower.Tokens(window))
	}

	if env.Metrics != nil {
		t := env.Metrics.Totals()
		text.WriteString("\nAttempts\n")
		fmt.Fprintf(&text, "  Total: %d (ok %d, rate limited %d, failed %d, unavailable %d)\n",
			t.Attempts, t.Successes, t.RateLimited, t.Failures, t.Unavailable)
		fmt.Fprintf(&text, "  Failovers: %d\n", t.Failovers)
		for _, s := range env.Metrics.Snapshot() {
			if s.Attempts == s.Unavailable {
				continue
			}
			fmt.Fprintf(&text, "  %s: %d/%d ok, avg %.0fms (%s)\n",
				s.Model, s.Successes, s.Attempts-s.Unavailable, s.AvgMs, s.Health)
		}
	}

	return &CommandResult{Text: text.String()}
}

// handleHelp lists the registered commands.
func handleHelp(_ context.Context, args *CommandArgs) *CommandResult {
	var text strings.Builder
	text.WriteString("Available commands:\n")

	for _, cmd := range args.Manager.List() {
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		fmt.Fprintf(&text, "  %-16s - %s\n", name, cmd.Description)
	}
	text.WriteString("  @path/file.ext   - Attach a file to your message\n")

	return &CommandResult{Text: text.String()}
}

func handleExit(_ context.Context, _ *CommandArgs) *CommandResult {
	return &CommandResult{Text: "Bye.", Exit: true}
}
