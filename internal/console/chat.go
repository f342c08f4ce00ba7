package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roelfdiedericks/aiorch/internal/commands"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/prompt"
	"github.com/roelfdiedericks/aiorch/internal/session"
)

// Chat is the read-eval loop of one conversation.
type Chat struct {
	In       *bufio.Reader
	Printer  *Printer
	Router   *llm.Router
	Sessions *session.Manager
	Windower *session.Windower
	Prompt   *prompt.Engine // nil disables @file attachments
	Commands *commands.Manager

	SessionID string
	History   []llm.Message
}

// Run reads lines until EOF, "exit", /exit or ctx is done. Plain lines are
// sent through the router; a successful turn is appended to History and
// saved. A failed turn leaves History unchanged.
func (c *Chat) Run(ctx context.Context) error {
	p := c.Printer
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(p.out, Margin+p.header.Render("» "))
		line, err := c.In.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			if eof {
				p.Blank()
				return nil
			}
			continue
		case strings.EqualFold(input, "exit"):
			return nil
		case commands.IsCommand(input):
			if c.runCommand(ctx, input) {
				return nil
			}
		default:
			c.Turn(ctx, input)
		}

		if eof {
			return nil
		}
	}
}

// runCommand executes a slash command and reports whether the loop should stop.
func (c *Chat) runCommand(ctx context.Context, input string) bool {
	res := c.Commands.Execute(ctx, input, c.SessionID, c.History)
	if res.Error != nil {
		c.Printer.Error(res.Text)
	} else if res.Text != "" {
		c.Printer.Info(res.Text)
	}
	if res.History != nil {
		c.History = res.History
	}
	return res.Exit
}

// Turn sends one user message and records the exchange on success.
func (c *Chat) Turn(ctx context.Context, input string) (*llm.AskResult, error) {
	p := c.Printer

	content := input
	if c.Prompt != nil {
		var attached []prompt.Attachment
		content, attached = c.Prompt.Process(input)
		for _, a := range attached {
			p.Dim("attached " + a.Name)
		}
	}

	pending := make([]llm.Message, 0, len(c.History)+2)
	pending = append(pending, c.History...)
	pending = append(pending, llm.UserMessage(content))

	window := pending
	if c.Windower != nil {
		window = c.Windower.Window(pending)
	}

	p.Blank()
	res, err := c.Router.AskWithResult(ctx, window)
	if err != nil {
		if ctx.Err() != nil {
			p.Dim("canceled")
		} else {
			p.Error("[Error]: " + llm.FormatErrorForUser(err))
		}
		L_debug("chat: turn failed", "session", c.SessionID, "error", err)
		return nil, err
	}

	p.ModelHeader(res.Model.DisplayName())
	p.Blank()
	p.Response(res.Text)
	p.Blank()
	p.Rule()

	c.History = append(pending, llm.AssistantMessage(res.Text))
	if err := c.Sessions.Save(ctx, c.SessionID, c.History, ""); err != nil {
		p.Warn("Could not save session: " + err.Error())
		L_warn("chat: save failed", "session", c.SessionID, "error", err)
	}
	return res, nil
}
