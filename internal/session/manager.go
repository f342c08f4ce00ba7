package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Default titles.
const (
	DefaultTitle  = "New conversation"
	UntitledTitle = "Untitled"
)

// Manager creates, loads and saves conversations on top of a Store.
type Manager struct {
	store        Store
	systemPrompt string
}

// NewManager wraps store. systemPrompt seeds conversations that do not exist yet.
func NewManager(store Store, systemPrompt string) *Manager {
	return &Manager{store: store, systemPrompt: systemPrompt}
}

// NewID returns a fresh conversation id.
func NewID() string {
	return uuid.NewString()
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// SystemPrompt returns the prompt used to seed new conversations.
func (m *Manager) SystemPrompt() string { return m.systemPrompt }

// Fresh returns the history of a brand-new conversation.
func (m *Manager) Fresh() []llm.Message {
	if m.systemPrompt == "" {
		return nil
	}
	return []llm.Message{llm.SystemMessage(m.systemPrompt)}
}

// Save stores history under id. An empty title keeps the existing title,
// or DefaultTitle for a new conversation.
func (m *Manager) Save(ctx context.Context, id string, history []llm.Message, title string) error {
	if title == "" {
		existing, err := m.store.Get(ctx, id)
		switch {
		case err == nil && existing.Title != "":
			title = existing.Title
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		default:
			title = DefaultTitle
		}
	}

	return m.store.Put(ctx, &Conversation{ID: id, Title: title, History: history})
}

// LoadHistory returns the stored history of id, or a fresh history when the
// conversation does not exist.
func (m *Manager) LoadHistory(ctx context.Context, id string) ([]llm.Message, error) {
	conv, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return m.Fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	return conv.History, nil
}

// Rename retitles an existing conversation. A blank title becomes UntitledTitle.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	conv, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("no session with id %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	conv.Title = strings.TrimSpace(title)
	if conv.Title == "" {
		conv.Title = UntitledTitle
	}
	if err := m.store.Put(ctx, conv); err != nil {
		return err
	}
	L_debug("session: renamed", "id", id, "title", conv.Title)
	return nil
}

// List returns conversations most recently updated first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	return m.store.List(ctx)
}

// Delete removes a conversation.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Title returns the stored title of id, or DefaultTitle.
func (m *Manager) Title(ctx context.Context, id string) string {
	conv, err := m.store.Get(ctx, id)
	if err != nil || conv.Title == "" {
		return DefaultTitle
	}
	return conv.Title
}
