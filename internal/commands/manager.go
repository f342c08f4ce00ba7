// Package commands implements the slash commands of the chat console.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Command represents a slash command
type Command struct {
	Name        string   // e.g., "/status"
	Description string   // e.g., "Show session info"
	Usage       string   // argument usage, e.g. "<n>" (optional)
	Aliases     []string // e.g., ["/quit"]
	Handler     CommandHandler
}

// CommandHandler is the function signature for command handlers
type CommandHandler func(ctx context.Context, args *CommandArgs) *CommandResult

// CommandArgs contains the arguments passed to a command handler
type CommandArgs struct {
	SessionID string
	History   []llm.Message // current in-memory history, read-only
	Env       *Env
	Manager   *Manager
	RawArgs   string // Everything after the command name
	Usage     string // Copy of Command.Usage for error messages
}

// Manager is the command registry
type Manager struct {
	mu       sync.RWMutex
	commands map[string]*Command // keyed by name (lowercase)
	env      *Env
}

// NewManager returns a manager with the built-in commands registered.
func NewManager(env *Env) *Manager {
	m := &Manager{
		commands: make(map[string]*Command),
		env:      env,
	}
	registerBuiltins(m)
	return m
}

// Register adds a command to the manager
func (m *Manager) Register(cmd *Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(cmd.Name)
	m.commands[name] = cmd

	for _, alias := range cmd.Aliases {
		m.commands[strings.ToLower(alias)] = cmd
	}
}

// Get returns a command by name (or alias)
func (m *Manager) Get(name string) *Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commands[strings.ToLower(name)]
}

// List returns all unique commands (no aliases), sorted by name
func (m *Manager) List() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Deduplicate (aliases point to same command)
	seen := make(map[*Command]bool)
	var list []*Command
	for _, cmd := range m.commands {
		if !seen[cmd] {
			seen[cmd] = true
			list = append(list, cmd)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	return list
}

// Execute runs the command in line against the given conversation.
func (m *Manager) Execute(ctx context.Context, line, sessionID string, history []llm.Message) *CommandResult {
	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, " ", 2)
	name := strings.ToLower(parts[0])
	rawArgs := ""
	if len(parts) > 1 {
		rawArgs = strings.TrimSpace(parts[1])
	}

	cmd := m.Get(name)
	if cmd == nil {
		return errorResult(nil, fmt.Sprintf("Unknown command: %s\nType /help for available commands.", name))
	}

	L_debug("commands: executing", "command", cmd.Name, "session", sessionID)
	return cmd.Handler(ctx, &CommandArgs{
		SessionID: sessionID,
		History:   history,
		Env:       m.env,
		Manager:   m,
		RawArgs:   rawArgs,
		Usage:     cmd.Usage,
	})
}

// IsCommand checks if text is a command
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}
