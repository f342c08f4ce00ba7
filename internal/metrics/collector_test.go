package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fast = llm.ModelDescriptor{ID: "fast", Family: "groq", Priority: 1}
	slow = llm.ModelDescriptor{ID: "slow", Family: "google", Priority: 2}
	gone = llm.ModelDescriptor{ID: "gone", Family: "xai", Priority: 3}
)

func finished(c *Collector, m llm.ModelDescriptor, kind llm.FailureKind, d time.Duration, fallback bool) {
	var err error
	switch kind {
	case llm.FailureRateLimited:
		err = llm.RateLimited(m.Family, m.ID, 429, errors.New("slow down"))
	case llm.FailureRequest:
		err = llm.RequestFailed(m.Family, m.ID, 500, "boom", nil)
	case llm.FailureCanceled:
		err = errors.New("context canceled")
	case llm.FailureUnavailable:
		err = &llm.AdapterError{Kind: llm.FailureUnavailable, Family: m.Family, Model: m.ID}
	}
	if kind != llm.FailureUnavailable {
		c.AttemptStarted(0, m, fallback)
	}
	c.AttemptFinished(llm.Attempt{Model: m, Kind: kind, Err: err, Duration: d})
}

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	// Search 1: fast rate limited, slow answers on fallback.
	finished(c, fast, llm.FailureRateLimited, 10*time.Millisecond, false)
	finished(c, slow, "", 30*time.Millisecond, true)
	// Search 2: slow answers first.
	finished(c, slow, "", 50*time.Millisecond, false)
	// Search 3: slow fails, unavailable model skipped, fast answers.
	finished(c, slow, llm.FailureRequest, 20*time.Millisecond, false)
	finished(c, gone, llm.FailureUnavailable, 0, true)
	finished(c, fast, "", 10*time.Millisecond, true)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "google/slow", snap[0].Model)
	assert.Equal(t, "groq/fast", snap[1].Model)
	assert.Equal(t, "xai/gone", snap[2].Model)

	s := snap[0]
	assert.EqualValues(t, 3, s.Attempts)
	assert.EqualValues(t, 2, s.Successes)
	assert.EqualValues(t, 1, s.Failures)
	assert.EqualValues(t, 1, s.Failovers)
	assert.InDelta(t, 66.6, s.SuccessRate, 0.1)
	assert.InDelta(t, 33.3, s.AvgMs, 0.1)
	assert.InDelta(t, 20, s.LastMs, 0.001)
	assert.Contains(t, s.LastError, "boom")
	assert.Equal(t, HealthWarning, s.Health)

	f := snap[1]
	assert.EqualValues(t, 2, f.Attempts)
	assert.EqualValues(t, 1, f.RateLimited)
	assert.EqualValues(t, 1, f.Failovers)

	g := snap[2]
	assert.EqualValues(t, 1, g.Unavailable)
	assert.Zero(t, g.SuccessRate)
	assert.Equal(t, HealthGood, g.Health, "never reached")

	tot := c.Totals()
	assert.EqualValues(t, 6, tot.Attempts)
	assert.EqualValues(t, 3, tot.Successes)
	assert.EqualValues(t, 1, tot.RateLimited)
	assert.EqualValues(t, 1, tot.Failures)
	assert.EqualValues(t, 1, tot.Unavailable)
	assert.EqualValues(t, 2, tot.Failovers)
}

func TestCollectorCanceledExcludedFromLatency(t *testing.T) {
	c := NewCollector()
	finished(c, fast, "", 10*time.Millisecond, false)
	finished(c, fast, llm.FailureCanceled, time.Second, false)

	s, ok := c.Model("groq/fast")
	require.True(t, ok)
	assert.EqualValues(t, 1, s.Canceled)
	assert.InDelta(t, 10, s.AvgMs, 0.001)
	assert.InDelta(t, 100, s.SuccessRate, 0.001)
}

func TestCollectorModelUnknown(t *testing.T) {
	s, ok := NewCollector().Model("nope/x")
	assert.False(t, ok)
	assert.Equal(t, "nope/x", s.Model)
}

func TestCollectorAsRouterObserver(t *testing.T) {
	reg := llm.NewRegistry([]llm.ModelDescriptor{fast, slow})
	pool := llm.Pool{
		"groq": llm.AdapterFunc(func(_ context.Context, _ []llm.Message, _ string) (string, error) {
			return "", llm.RateLimited("groq", "fast", 429, nil)
		}),
		"google": llm.AdapterFunc(func(_ context.Context, _ []llm.Message, _ string) (string, error) {
			return "ok", nil
		}),
	}
	c := NewCollector()
	r := llm.NewRouter(reg, pool, llm.RouterOptions{Observer: c})

	_, err := r.Ask(context.Background(), []llm.Message{llm.UserMessage("hi")})
	require.NoError(t, err)

	tot := c.Totals()
	assert.EqualValues(t, 2, tot.Attempts)
	assert.EqualValues(t, 1, tot.RateLimited)
	assert.EqualValues(t, 1, tot.Failovers)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, calculatePercentile(nil, 95))

	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	assert.InDelta(t, 96, calculatePercentile(samples, 95), 0.001)
	assert.InDelta(t, 100, calculatePercentile(samples, 100), 0.001)
}

func TestSampleRingBuffer(t *testing.T) {
	m := &modelMetric{}
	for i := 0; i < maxSamples+5; i++ {
		m.addSample(time.Duration(i))
	}
	assert.Len(t, m.samples, maxSamples)
	assert.Equal(t, 5, m.sampleIdx)
}

func TestStorePersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	store, err := OpenStore(path)
	require.NoError(t, err)
	c := NewCollector()
	c.Persist(store)
	finished(c, fast, "", 10*time.Millisecond, false)
	finished(c, fast, llm.FailureRateLimited, 5*time.Millisecond, false)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")

	store, err = OpenStore(path)
	require.NoError(t, err)
	restored := NewCollector()
	restored.Persist(store)
	defer restored.Close()

	s, ok := restored.Model("groq/fast")
	require.True(t, ok)
	assert.EqualValues(t, 2, s.Attempts)
	assert.EqualValues(t, 1, s.Successes)
	assert.EqualValues(t, 1, s.RateLimited)
	assert.InDelta(t, 5, s.LastMs, 0.001)
	assert.NotZero(t, s.P95Ms)
}

func TestStorePrune(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer store.Close()

	c := NewCollector()
	finished(c, fast, "", time.Millisecond, false)
	require.NoError(t, store.Save(c))

	_, err = store.db.Exec("UPDATE model_metrics SET updated_at = ?", time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)

	n, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := store.Load(NewCollector())
	require.NoError(t, err)
	assert.Zero(t, loaded)
}

func TestPersistDropsIdleModels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	store, err := OpenStore(path)
	require.NoError(t, err)

	old := NewCollector()
	finished(old, fast, "", time.Millisecond, false)
	finished(old, gone, "", time.Millisecond, false)
	idle := time.Now().Add(-60 * 24 * time.Hour)
	old.models["xai/gone"].LastAttempt = idle
	require.NoError(t, store.Save(old))

	var updated int64
	require.NoError(t, store.db.QueryRow("SELECT updated_at FROM model_metrics WHERE model = ?", "xai/gone").Scan(&updated))
	assert.Equal(t, idle.Unix(), updated, "rows age by last attempt")

	c := NewCollector()
	c.Persist(store)
	_, ok := c.Model("xai/gone")
	assert.False(t, ok, "idle model is pruned before load")
	_, ok = c.Model("groq/fast")
	assert.True(t, ok)
	require.NoError(t, c.Close())

	store, err = OpenStore(path)
	require.NoError(t, err)
	defer store.Close()
	reloaded := NewCollector()
	n, err := store.Load(reloaded)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok = reloaded.Model("xai/gone")
	assert.False(t, ok, "final save does not resurrect the pruned model")
}

func TestStoreClear(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer store.Close()

	c := NewCollector()
	finished(c, fast, "", time.Millisecond, false)
	require.NoError(t, store.Save(c))

	n, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := store.Load(NewCollector())
	require.NoError(t, err)
	assert.Zero(t, loaded)
}

func TestWriteJSON(t *testing.T) {
	c := NewCollector()
	finished(c, fast, "", time.Millisecond, false)

	var buf bytes.Buffer
	require.NoError(t, c.WriteJSON(&buf))

	var r Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &r))
	assert.EqualValues(t, 1, r.Totals.Successes)
	require.Len(t, r.Models, 1)
	assert.Equal(t, "groq/fast", r.Models[0].Model)
}

func TestWriteQuery(t *testing.T) {
	c := NewCollector()
	finished(c, fast, "", time.Millisecond, false)
	finished(c, slow, llm.FailureRequest, time.Millisecond, true)

	var buf bytes.Buffer
	require.NoError(t, c.WriteQuery(&buf, ".models[] | select(.failures > 0) | .model"))
	assert.Equal(t, "google/slow\n", buf.String())

	buf.Reset()
	require.NoError(t, c.WriteQuery(&buf, ".totals.attempts"))
	assert.Equal(t, "2\n", buf.String())

	assert.Error(t, c.WriteQuery(&buf, ".models[] |"))
}

func TestHealthInReport(t *testing.T) {
	c := NewCollector()
	finished(c, slow, llm.FailureRequest, time.Millisecond, false)

	var buf bytes.Buffer
	require.NoError(t, c.WriteQuery(&buf, ".models[0].health"))
	assert.Equal(t, "critical\n", buf.String())
}
