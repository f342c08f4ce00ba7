package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers per model id: "" means fail with a generic error,
// "rate" means rate limited, anything else is returned as the response.
type scripted struct {
	mu      sync.Mutex
	answers map[string]string
	calls   []string
}

func (s *scripted) Ask(_ context.Context, _ []Message, modelID string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, modelID)
	answer := s.answers[modelID]
	s.mu.Unlock()

	switch answer {
	case "":
		return "", RequestFailed("f", modelID, 500, "boom", nil)
	case "rate":
		return "", RateLimited("f", modelID, 429, errors.New("slow down"))
	}
	return answer, nil
}

func (s *scripted) set(modelID, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[modelID] = answer
}

func (s *scripted) reset() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := s.calls
	s.calls = nil
	return calls
}

func models(n int) []ModelDescriptor {
	out := make([]ModelDescriptor, n)
	for i := range out {
		out[i] = ModelDescriptor{ID: fmt.Sprintf("m%d", i), Family: "f", Priority: i + 1}
	}
	return out
}

func newTestRouter(n int) (*Router, *scripted) {
	s := &scripted{answers: make(map[string]string)}
	r := NewRouter(NewRegistry(models(n)), Pool{"f": s}, RouterOptions{})
	return r, s
}

var hi = []Message{UserMessage("hi")}

func TestExhaustiveCoverageFromAnyStart(t *testing.T) {
	const n = 5
	for start := 0; start < n; start++ {
		t.Run(fmt.Sprintf("start=%d", start), func(t *testing.T) {
			r, s := newTestRouter(n)
			require.True(t, r.SetModel(start))

			_, err := r.Ask(context.Background(), hi)
			require.ErrorIs(t, err, ErrPoolExhausted)

			calls := s.reset()
			require.Len(t, calls, n)
			seen := make(map[string]bool)
			for _, c := range calls {
				assert.False(t, seen[c], "model %s tried twice", c)
				seen[c] = true
			}
			assert.Equal(t, fmt.Sprintf("m%d", start), calls[0])
			assert.Equal(t, start, r.CurrentIndex(), "cursor moved on exhaustion")

			var pe *PoolExhaustedError
			require.ErrorAs(t, err, &pe)
			assert.Len(t, pe.Attempts, n)
		})
	}
}

func TestStickyCursorOnSuccess(t *testing.T) {
	r, s := newTestRouter(4)
	s.set("m2", "from m2")

	text, err := r.Ask(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, "from m2", text)
	assert.Equal(t, 2, r.CurrentIndex())
	assert.Equal(t, []string{"m0", "m1", "m2"}, s.reset())

	// Everyone healthy now; the next call must start and stop at m2.
	for _, id := range []string{"m0", "m1", "m3"} {
		s.set(id, "from "+id)
	}
	text, err = r.Ask(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, "from m2", text)
	assert.Equal(t, []string{"m2"}, s.reset())
}

func TestWraparound(t *testing.T) {
	const n = 4
	r, s := newTestRouter(n)
	require.True(t, r.SetModel(n-1))
	s.set("m0", "ok")

	text, err := r.Ask(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"m3", "m0"}, s.reset())
	assert.Equal(t, 0, r.CurrentIndex())

	// Full order when nobody answers.
	s.set("m0", "")
	require.True(t, r.SetModel(n-1))
	_, err = r.Ask(context.Background(), hi)
	require.Error(t, err)
	assert.Equal(t, []string{"m3", "m0", "m1", "m2"}, s.reset())
}

func TestRateLimitAndFailureParity(t *testing.T) {
	run := func(first string) ([]string, string, int) {
		r, s := newTestRouter(3)
		s.set("m0", first)
		s.set("m2", "done")
		text, err := r.Ask(context.Background(), hi)
		require.NoError(t, err)
		return s.reset(), text, r.CurrentIndex()
	}

	failCalls, failText, failIdx := run("")
	rateCalls, rateText, rateIdx := run("rate")

	assert.Equal(t, failCalls, rateCalls)
	assert.Equal(t, failText, rateText)
	assert.Equal(t, failIdx, rateIdx)
}

func TestScenarioBothFail(t *testing.T) {
	r, _ := newTestRouter(2)

	_, err := r.Ask(context.Background(), hi)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.NotErrorIs(t, err, ErrEmptyPool)
	assert.Equal(t, 0, r.CurrentIndex())
}

func TestScenarioRateLimitedThenSuccess(t *testing.T) {
	r, s := newTestRouter(2)
	s.set("m0", "rate")
	s.set("m1", "hello")

	res, err := r.AskWithResult(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 1, r.CurrentIndex())
	assert.True(t, res.FailedOver)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, FailureRateLimited, res.Attempts[0].Kind)
	assert.True(t, res.Attempts[1].OK())
}

func TestScenarioSetModelOutOfRange(t *testing.T) {
	r, _ := newTestRouter(2)

	assert.False(t, r.SetModel(5))
	assert.False(t, r.SetModel(-1))
	assert.Equal(t, 0, r.CurrentIndex())
	assert.True(t, r.SetModel(1))
	assert.Equal(t, 1, r.CurrentIndex())
}

func TestScenarioEmptyRegistry(t *testing.T) {
	called := false
	pool := Pool{"f": AdapterFunc(func(context.Context, []Message, string) (string, error) {
		called = true
		return "x", nil
	})}
	r := NewRouter(NewRegistry(nil), pool, RouterOptions{})

	_, err := r.Ask(context.Background(), hi)
	assert.ErrorIs(t, err, ErrEmptyPool)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.False(t, called)

	_, err = r.CurrentModel()
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestMissingAdapterIsSkipped(t *testing.T) {
	s := &scripted{answers: map[string]string{"b1": "from b"}}
	reg := NewRegistry([]ModelDescriptor{
		{ID: "a1", Family: "absent", Priority: 1},
		{ID: "b1", Family: "f", Priority: 2},
	})
	r := NewRouter(reg, Pool{"f": s}, RouterOptions{})

	res, err := r.AskWithResult(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, "from b", res.Text)
	assert.Equal(t, []string{"b1"}, s.reset(), "absent family must not reach any adapter")
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, FailureUnavailable, res.Attempts[0].Kind)
	assert.Equal(t, 1, r.CurrentIndex())
	assert.False(t, r.Available(0))
	assert.True(t, r.Available(1))
}

func TestCanceledContextStopsSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	pool := Pool{"f": AdapterFunc(func(ctx context.Context, _ []Message, id string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})}
	r := NewRouter(NewRegistry(models(3)), pool, RouterOptions{})
	require.True(t, r.SetModel(1))

	_, err := r.Ask(ctx, hi)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.CurrentIndex())
}

func TestCancelDuringLastAttemptIsNotExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls []string
	pool := Pool{"f": AdapterFunc(func(_ context.Context, _ []Message, id string) (string, error) {
		calls = append(calls, id)
		if id == "m2" {
			// Cancel lands after the backend already failed for its own reason.
			cancel()
		}
		return "", RequestFailed("f", id, 500, "boom", nil)
	})}
	r := NewRouter(NewRegistry(models(3)), pool, RouterOptions{})

	_, err := r.Ask(ctx, hi)
	assert.ErrorIs(t, err, context.Canceled)
	var exhausted *PoolExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Equal(t, []string{"m0", "m1", "m2"}, calls)
	assert.Equal(t, 0, r.CurrentIndex())
}

func TestGenericErrorsAreClassified(t *testing.T) {
	pool := Pool{"f": AdapterFunc(func(_ context.Context, _ []Message, id string) (string, error) {
		if id == "m0" {
			return "", errors.New("HTTP 429 Too Many Requests")
		}
		return "fine", nil
	})}
	r := NewRouter(NewRegistry(models(2)), pool, RouterOptions{})

	res, err := r.AskWithResult(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, FailureRateLimited, res.Attempts[0].Kind)
}

type recordingObserver struct {
	started  []string
	fallback []bool
	finished []FailureKind
}

func (o *recordingObserver) AttemptStarted(_ int, m ModelDescriptor, fallback bool) {
	o.started = append(o.started, m.ID)
	o.fallback = append(o.fallback, fallback)
}

func (o *recordingObserver) AttemptFinished(a Attempt) {
	o.finished = append(o.finished, a.Kind)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	s := &scripted{answers: map[string]string{"m0": "rate", "m2": "yes"}}
	ob := &recordingObserver{}
	r := NewRouter(NewRegistry(models(3)), Pool{"f": s}, RouterOptions{Observer: Observers{ob, nil}})

	_, err := r.Ask(context.Background(), hi)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2"}, ob.started)
	assert.Equal(t, []bool{false, true, true}, ob.fallback)
	assert.Equal(t, []FailureKind{FailureRateLimited, FailureRequest, ""}, ob.finished)
}

func TestConcurrentAsk(t *testing.T) {
	r, s := newTestRouter(3)
	s.set("m1", "ok")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := r.Ask(context.Background(), hi)
			assert.NoError(t, err)
			assert.Equal(t, "ok", text)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.CurrentIndex())
}

func TestModelsMatchesRegistry(t *testing.T) {
	r, _ := newTestRouter(3)
	got := r.Models()
	require.Len(t, got, 3)
	got[0].ID = "mutated"
	assert.Equal(t, "m0", r.Models()[0].ID, "Models must return a copy")

	cur, err := r.CurrentModel()
	require.NoError(t, err)
	assert.Equal(t, "m0", cur.ID)
}
