package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roelfdiedericks/aiorch/internal/commands"
	"github.com/roelfdiedericks/aiorch/internal/config"
	"github.com/roelfdiedericks/aiorch/internal/console"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/metrics"
	"github.com/roelfdiedericks/aiorch/internal/session"
)

// app holds everything a command needs, built from config once.
type app struct {
	cfg      *config.Config
	printer  *console.Printer
	registry *llm.Registry
	pool     llm.Pool
	router   *llm.Router
	metrics  *metrics.Collector // nil when disabled
	store    session.Store
	sessions *session.Manager
	windower *session.Windower
	commands *commands.Manager
}

// setup loads env files and config, then initializes logging. level is the
// log level used when neither --debug nor the config sets one.
func setup(g *Globals, level string) (*config.Config, error) {
	if _, err := config.LoadEnv(); err != nil {
		L_warn("config: env file not loaded", "error", err)
	}

	cfg, usedPath, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	logCfg := DefaultConfig()
	name := cfg.Log.Level
	if name == "" {
		name = level
	}
	if lvl, ok := ParseLevel(name); ok {
		logCfg.Level = lvl
	} else {
		logCfg.Level = LevelInfo
	}
	if g.Debug {
		logCfg.Level = LevelDebug
		logCfg.ShowCaller = true
	}
	logCfg.File = cfg.Log.File
	if g.LogFile != "" {
		logCfg.File = g.LogFile
	}
	if err := Init(logCfg); err != nil {
		L_warn("logging: falling back to stderr", "error", err)
	}

	if usedPath != "" {
		L_debug("config: using file", "path", usedPath)
	}
	return cfg, nil
}

// newApp wires the router, stores and commands. Progress lines and all
// other output go to out.
func newApp(g *Globals, out io.Writer, level string) (*app, error) {
	cfg, err := setup(g, level)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		printer:  console.NewPrinter(out),
		registry: llm.NewRegistry(cfg.Catalog()),
	}
	a.pool = llm.BuildPool(a.registry.Families(), llm.CredentialsFromEnv(nil), cfg.AdapterOptions())

	observers := llm.Observers{console.NewProgress(a.printer)}
	if !cfg.Metrics.Disabled {
		a.metrics = openMetrics(cfg)
		observers = append(observers, a.metrics)
	}
	a.router = llm.NewRouter(a.registry, a.pool, llm.RouterOptions{Observer: observers})

	a.store, err = session.Open(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a.sessions = session.NewManager(a.store, cfg.SystemPrompt)
	a.windower = &session.Windower{
		MaxMessages:  cfg.MaxContextMessages,
		MaxTokens:    cfg.MaxContextTokens,
		SystemPrompt: cfg.SystemPrompt,
	}
	a.commands = commands.NewManager(&commands.Env{
		Router:   a.router,
		Sessions: a.sessions,
		Windower: a.windower,
		Metrics:  a.metrics,
	})

	L_debug("app: ready", "models", a.registry.Count(), "families", len(a.pool))
	return a, nil
}

// openMetrics returns a collector, persisted when the metrics database can
// be opened and in-memory otherwise.
func openMetrics(cfg *config.Config) *metrics.Collector {
	c := metrics.NewCollector()
	path, err := cfg.ResolveMetricsPath()
	if err != nil {
		L_warn("metrics: no database path, keeping in memory", "error", err)
		return c
	}
	store, err := metrics.OpenStore(path)
	if err != nil {
		L_warn("metrics: failed to open database, keeping in memory", "path", path, "error", err)
		return c
	}
	c.Persist(store)
	return c
}

// Close flushes metrics and releases the stores and log file.
func (a *app) Close() {
	if a.metrics != nil {
		if err := a.metrics.Close(); err != nil {
			L_warn("metrics: close failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			L_warn("session: close failed", "error", err)
		}
	}
	Close()
}

// warnNoCredentials tells the user when no model can be reached.
func (a *app) warnNoCredentials() {
	if len(a.pool) > 0 {
		return
	}
	envs := make([]string, 0, len(llm.CredentialEnv))
	for _, family := range a.registry.Families() {
		if env, ok := llm.CredentialEnv[family]; ok {
			envs = append(envs, env)
		}
	}
	a.printer.Warn("No provider credentials found. Set one of: " + strings.Join(envs, ", "))
}

// interactive reports whether both ends of the session are a terminal.
func interactive() bool {
	return console.IsTerminal(os.Stdin) && console.IsTerminal(os.Stdout)
}
