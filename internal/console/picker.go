package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/session"
	"golang.org/x/term"
)

// ErrAborted is returned when the user cancels session selection.
var ErrAborted = errors.New("selection aborted")

// Picker chooses the conversation to resume at startup.
type Picker struct {
	In      *bufio.Reader // shared with the chat loop so no input is lost
	Printer *Printer
	// Interactive uses a huh select instead of a numbered prompt.
	Interactive bool
}

// NewPicker returns a numbered-prompt picker reading from in.
func NewPicker(in *bufio.Reader, p *Printer) *Picker {
	return &Picker{In: in, Printer: p}
}

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Pick lists stored sessions and returns the chosen id, or a new id when the
// user asks for a new conversation or there is nothing to resume.
func (k *Picker) Pick(ctx context.Context, mgr *session.Manager) (id string, resumed bool, err error) {
	list, err := mgr.List(ctx)
	if err != nil {
		L_warn("console: could not list sessions", "error", err)
	}
	if len(list) == 0 {
		return session.NewID(), false, nil
	}

	var choice string
	if k.Interactive {
		choice, err = k.pickInteractive(ctx, list)
	} else {
		choice, err = k.pickNumbered(list)
	}
	if err != nil {
		return "", false, err
	}
	if choice == "" {
		return session.NewID(), false, nil
	}
	return choice, true, nil
}

func (k *Picker) pickInteractive(ctx context.Context, list []session.Info) (string, error) {
	options := make([]huh.Option[string], 0, len(list)+1)
	options = append(options, huh.NewOption(session.DefaultTitle, ""))
	for _, info := range list {
		label := fmt.Sprintf("%s (%d messages, %s)", info.Title, info.Messages, info.UpdatedAt.Format("2006-01-02 15:04"))
		options = append(options, huh.NewOption(label, info.ID))
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sessions").
				Options(options...).
				Value(&choice),
		),
	).WithShowHelp(false)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	return choice, nil
}

// pickNumbered prints "n Title" lines and reads a number; 0, blank or
// anything invalid starts a new conversation.
func (k *Picker) pickNumbered(list []session.Info) (string, error) {
	p := k.Printer
	p.Blank()
	p.Header("Sessions")
	p.Rule()
	for i, info := range list {
		fmt.Fprintf(p.out, "%s%s %s\n", Margin, p.info.Render(strconv.Itoa(i+1)), info.Title)
	}
	fmt.Fprintf(p.out, "%s%s %s\n\n", Margin, p.info.Render("0"), p.dim.Render(session.DefaultTitle))
	fmt.Fprint(p.out, Margin+p.info.Render("» Choose an option: "))

	line, err := k.In.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || n < 1 || n > len(list) {
		return "", nil
	}
	return list[n-1].ID, nil
}
