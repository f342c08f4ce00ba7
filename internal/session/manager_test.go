package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/roelfdiedericks/aiorch/internal/config"
	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewManager(s, "sys")
}

func TestNewIDIsUUID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestLoadHistoryFreshWhenMissing(t *testing.T) {
	m := newTestManager(t)
	h, err := m.LoadHistory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{llm.SystemMessage("sys")}, h)
}

func TestFreshWithoutPrompt(t *testing.T) {
	m := NewManager(nil, "")
	assert.Empty(t, m.Fresh())
}

func TestSaveTitles(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	history := append(m.Fresh(), llm.UserMessage("hi"), llm.AssistantMessage("hello"))

	require.NoError(t, m.Save(ctx, "s1", history, ""))
	assert.Equal(t, DefaultTitle, m.Title(ctx, "s1"))

	require.NoError(t, m.Save(ctx, "s1", history, "Chosen"))
	assert.Equal(t, "Chosen", m.Title(ctx, "s1"))

	// Blank title on a later save keeps the existing one.
	require.NoError(t, m.Save(ctx, "s1", history, ""))
	assert.Equal(t, "Chosen", m.Title(ctx, "s1"))

	loaded, err := m.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	err := m.Rename(ctx, "ghost", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, "s1", m.Fresh(), ""))
	require.NoError(t, m.Rename(ctx, "s1", "  Parser work  "))
	assert.Equal(t, "Parser work", m.Title(ctx, "s1"))

	require.NoError(t, m.Rename(ctx, "s1", "   "))
	assert.Equal(t, UntitledTitle, m.Title(ctx, "s1"))
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.Save(ctx, "a", m.Fresh(), "A"))
	require.NoError(t, m.Save(ctx, "b", m.Fresh(), "B"))

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, m.Delete(ctx, "a"))
	list, err = m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestOpenBackends(t *testing.T) {
	t.Setenv("AIORCH_HOME", t.TempDir())

	cfg := config.Default()
	s, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	cfg.SessionStore = config.SessionStoreSQLite
	cfg.SessionsDir = filepath.Join(t.TempDir(), "db")
	s, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.SessionStore = "redis"
	_, err = Open(cfg)
	assert.Error(t, err)
}
