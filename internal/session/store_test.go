package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
	// touch makes id look updated at ts, for deterministic ordering.
	touch func(t *testing.T, s Store, id string, ts time.Time)
}

func backends() []storeFactory {
	return []storeFactory{
		{
			name: "file",
			open: func(t *testing.T) Store {
				s, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
				require.NoError(t, err)
				return s
			},
			touch: func(t *testing.T, s Store, id string, ts time.Time) {
				p := filepath.Join(s.(*FileStore).Dir(), id+".json")
				require.NoError(t, os.Chtimes(p, ts, ts))
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			},
			touch: func(t *testing.T, s Store, id string, ts time.Time) {
				_, err := s.(*SQLiteStore).db.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", ts.UnixMilli(), id)
				require.NoError(t, err)
			},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			conv := &Conversation{
				ID:    "abc",
				Title: "Refactor",
				History: []llm.Message{
					llm.SystemMessage("sys"),
					llm.UserMessage("hi"),
					llm.AssistantMessage("hello"),
				},
			}
			require.NoError(t, s.Put(ctx, conv))

			got, err := s.Get(ctx, "abc")
			require.NoError(t, err)
			assert.Equal(t, "abc", got.ID)
			assert.Equal(t, "Refactor", got.Title)
			assert.Equal(t, conv.History, got.History)
			assert.False(t, got.UpdatedAt.IsZero())

			conv.Title = "Renamed"
			conv.History = conv.History[:1]
			require.NoError(t, s.Put(ctx, conv))
			got, err = s.Get(ctx, "abc")
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Title)
			assert.Len(t, got.History, 1)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			_, err := b.open(t).Get(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			base := time.Now().Add(-time.Hour)
			for i, id := range []string{"old", "mid", "new"} {
				require.NoError(t, s.Put(ctx, &Conversation{
					ID:      id,
					Title:   "t-" + id,
					History: []llm.Message{llm.UserMessage(id)},
				}))
				b.touch(t, s, id, base.Add(time.Duration(i)*time.Minute))
			}

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "mid", list[1].ID)
			assert.Equal(t, "old", list[2].ID)
			assert.Equal(t, "t-new", list[0].Title)
			assert.Equal(t, 1, list[0].Messages)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			require.NoError(t, s.Put(ctx, &Conversation{ID: "x", Title: "x"}))
			require.NoError(t, s.Delete(ctx, "x"))
			_, err := s.Get(ctx, "x")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "x"), ErrNotFound)
		})
	}
}

func TestFileStoreCorruptFileIsNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.json"), []byte("{not json"), 0600))

	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bad", list[0].Title, "unparseable files are titled by id")
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "../escape", `a\b`} {
		err := s.Put(context.Background(), &Conversation{ID: id})
		assert.Error(t, err, "id %q", id)
	}
}

func TestFileStoreFileFormat(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), &Conversation{
		ID:      "fmt",
		Title:   "Format",
		History: []llm.Message{llm.UserMessage("hi")},
	}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "fmt.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"fmt","title":"Format","history":[{"role":"user","content":"hi"}]}`, string(data))
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, &Conversation{ID: "keep", Title: "Keep"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Title)
}
