// Package session stores conversations and bounds the history sent to models.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/roelfdiedericks/aiorch/internal/llm"
)

// ErrNotFound is returned for an unknown conversation id.
var ErrNotFound = errors.New("session not found")

// Conversation is one stored chat.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	History   []llm.Message `json:"history"`
	UpdatedAt time.Time     `json:"-"`
}

// Info is a lightweight listing entry.
type Info struct {
	ID        string
	Title     string
	Messages  int
	UpdatedAt time.Time
}

// Store is the interface for conversation storage backends.
// Implementations: FileStore (one JSON file per conversation), SQLiteStore.
type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	Put(ctx context.Context, conv *Conversation) error
	// List returns conversations most recently updated first.
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
