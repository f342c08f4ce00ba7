package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/roelfdiedericks/aiorch/internal/config"
	"github.com/roelfdiedericks/aiorch/internal/console"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/metrics"
	"github.com/roelfdiedericks/aiorch/internal/paths"
	"github.com/roelfdiedericks/aiorch/internal/prompt"
	"github.com/roelfdiedericks/aiorch/internal/session"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ChatCmd runs the interactive conversation loop.
type ChatCmd struct {
	Session string `help:"Resume the conversation with this id" short:"s"`
	New     bool   `help:"Start a new conversation without asking" short:"n"`
}

func (c *ChatCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(g, os.Stdout, "error")
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.printer
	p.Blank()
	p.Header("◢ AI ORCHESTRATOR")
	p.Rule()
	a.warnNoCredentials()

	in := bufio.NewReader(os.Stdin)
	id, err := c.pick(ctx, a, in)
	if errors.Is(err, console.ErrAborted) {
		return nil
	}
	if err != nil {
		return err
	}

	history, err := a.sessions.LoadHistory(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if m, err := a.router.CurrentModel(); err == nil {
		p.Dim(fmt.Sprintf("%s · %d messages · model %s", a.sessions.Title(ctx, id), len(history), m.DisplayName()))
	}
	p.Dim("Type /help for commands, exit to quit.")
	p.Blank()

	chat := &console.Chat{
		In:        in,
		Printer:   p,
		Router:    a.router,
		Sessions:  a.sessions,
		Windower:  a.windower,
		Prompt:    prompt.New(""),
		Commands:  a.commands,
		SessionID: id,
		History:   history,
	}
	L_info("chat: started", "session", id, "messages", len(history))
	return chat.Run(ctx)
}

func (c *ChatCmd) pick(ctx context.Context, a *app, in *bufio.Reader) (string, error) {
	switch {
	case c.Session != "":
		return c.Session, nil
	case c.New:
		return session.NewID(), nil
	}
	picker := console.NewPicker(in, a.printer)
	picker.Interactive = interactive()
	id, _, err := picker.Pick(ctx, a.sessions)
	return id, err
}

// AskCmd sends one prompt through the router without saving a session.
type AskCmd struct {
	Prompt []string `arg:"" help:"Prompt text; @file mentions are attached"`
}

func (c *AskCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	// Progress goes to stderr so stdout carries only the answer.
	a, err := newApp(g, os.Stderr, "error")
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnNoCredentials()

	content, _ := prompt.New("").Process(strings.Join(c.Prompt, " "))
	history := append(a.sessions.Fresh(), llm.UserMessage(content))

	res, err := a.router.AskWithResult(ctx, a.windower.Window(history))
	if err != nil {
		return errors.New(llm.FormatErrorForUser(err))
	}
	fmt.Println(strings.TrimRight(res.Text, "\n"))
	return nil
}

// ModelsCmd prints the candidate list in priority order.
type ModelsCmd struct{}

func (c *ModelsCmd) Run(g *Globals) error {
	cfg, err := setup(g, "warn")
	if err != nil {
		return err
	}
	defer Close()

	reg := llm.NewRegistry(cfg.Catalog())
	pool := llm.BuildPool(reg.Families(), llm.CredentialsFromEnv(nil), cfg.AdapterOptions())

	rows := make([][]string, 0, reg.Count())
	for i, m := range reg.Sorted() {
		avail := "yes"
		if !pool.Has(m.Family) {
			avail = "no (" + llm.CredentialEnv[m.Family] + ")"
		}
		rows = append(rows, []string{strconv.Itoa(i), m.DisplayName(), m.Family, strconv.Itoa(m.Priority), avail})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "MODEL", "PROVIDER", "PRIORITY", "AVAILABLE").
		Rows(rows...)
	fmt.Println(t.Render())
	return nil
}

// SessionsCmd lists saved conversations, newest first.
type SessionsCmd struct {
	Delete string `help:"Delete the conversation with this id"`
}

func (c *SessionsCmd) Run(g *Globals) error {
	ctx := context.Background()
	cfg, err := setup(g, "warn")
	if err != nil {
		return err
	}
	defer Close()

	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Delete != "" {
		if err := store.Delete(ctx, c.Delete); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", c.Delete)
		return nil
	}

	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, info := range list {
		rows = append(rows, []string{info.ID, info.Title, strconv.Itoa(info.Messages), info.UpdatedAt.Format("2006-01-02 15:04")})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "MESSAGES", "UPDATED").
		Rows(rows...)
	fmt.Println(t.Render())
	return nil
}

// StatsCmd prints persisted attempt statistics.
type StatsCmd struct {
	JQ    string `name:"jq" help:"Filter the report with a jq query, e.g. .models[].model"`
	Reset bool   `help:"Delete all persisted statistics"`
}

func (c *StatsCmd) Run(g *Globals) error {
	cfg, err := setup(g, "warn")
	if err != nil {
		return err
	}
	defer Close()

	path, err := cfg.ResolveMetricsPath()
	if err != nil {
		return err
	}
	store, err := metrics.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Reset {
		n, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d models\n", n)
		return nil
	}

	collector := metrics.NewCollector()
	if _, err := store.Load(collector); err != nil {
		return err
	}
	if c.JQ != "" {
		return collector.WriteQuery(os.Stdout, c.JQ)
	}
	return collector.WriteJSON(os.Stdout)
}

// ConfigCmd groups config file helpers.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write a starter config file"`
	Path ConfigPathCmd `cmd:"" help:"Print the config file in use"`
}

// ConfigInitCmd writes the default config.
type ConfigInitCmd struct {
	Output string `arg:"" optional:"" help:"Destination (default ~/.ai-orch/config.toml)" type:"path"`
}

func (c *ConfigInitCmd) Run(g *Globals) error {
	dest := c.Output
	if dest == "" {
		var err error
		dest, err = paths.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if err := paths.EnsureParentDir(dest); err != nil {
		return err
	}
	if err := config.WriteDefault(dest); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", dest)
	return nil
}

// ConfigPathCmd prints the resolved config path.
type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(g *Globals) error {
	if g.Config != "" {
		fmt.Println(g.Config)
		return nil
	}
	found, err := paths.ConfigPath()
	if err != nil {
		return err
	}
	if found == "" {
		fmt.Println("(none, using defaults)")
		return nil
	}
	fmt.Println(found)
	return nil
}

// VersionCmd shows version information
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("aiorch %s\n", version)
	return nil
}
