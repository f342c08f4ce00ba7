package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roelfdiedericks/aiorch/internal/config"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/paths"
)

// FileStore keeps each conversation in <dir>/<id>.json as
// {"id", "title", "history"}. Listing order is file modification time.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := paths.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Get reads a conversation. Unreadable or corrupt files report ErrNotFound,
// so a damaged session starts over instead of blocking the chat.
func (s *FileStore) Get(_ context.Context, id string) (*Conversation, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		L_warn("session: unreadable file", "path", p, "error", err)
		return nil, ErrNotFound
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		L_warn("session: corrupt file", "path", p, "error", err)
		return nil, ErrNotFound
	}
	if conv.ID == "" {
		conv.ID = id
	}
	if info, err := os.Stat(p); err == nil {
		conv.UpdatedAt = info.ModTime()
	}
	return &conv, nil
}

// Put writes a conversation atomically.
func (s *FileStore) Put(_ context.Context, conv *Conversation) error {
	p, err := s.path(conv.ID)
	if err != nil {
		return err
	}
	if err := config.AtomicWriteJSON(p, conv, 0600); err != nil {
		return fmt.Errorf("failed to save session %s: %w", conv.ID, err)
	}
	return nil
}

// List returns all conversations, newest modification first. Files that
// cannot be parsed are still listed, titled by their id.
func (s *FileStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		info := Info{ID: id, Title: id}

		if fi, err := e.Info(); err == nil {
			info.UpdatedAt = fi.ModTime()
		}

		if data, err := os.ReadFile(filepath.Join(s.dir, name)); err == nil {
			var conv Conversation
			if json.Unmarshal(data, &conv) == nil {
				if conv.Title != "" {
					info.Title = conv.Title
				}
				info.Messages = len(conv.History)
			}
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a conversation. Deleting an unknown id returns ErrNotFound.
func (s *FileStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
