package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Observer receives per-attempt events during a search. Calls are made on
// the goroutine running Ask, in attempt order.
type Observer interface {
	AttemptStarted(index int, model ModelDescriptor, fallback bool)
	AttemptFinished(a Attempt)
}

// Observers fans events out to several observers; nil entries are skipped.
type Observers []Observer

func (o Observers) AttemptStarted(index int, model ModelDescriptor, fallback bool) {
	for _, ob := range o {
		if ob != nil {
			ob.AttemptStarted(index, model, fallback)
		}
	}
}

func (o Observers) AttemptFinished(a Attempt) {
	for _, ob := range o {
		if ob != nil {
			ob.AttemptFinished(a)
		}
	}
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Observer Observer
}

// AskResult describes a successful search.
type AskResult struct {
	Text       string
	Model      ModelDescriptor
	Index      int
	Attempts   []Attempt // every attempt made, the successful one last
	FailedOver bool      // true if the answering model was not the starting one
}

// Router dispatches a conversation to the first candidate able to answer,
// starting at the sticky cursor (the last model that succeeded).
//
// The cursor is guarded by a mutex but the lock is not held across adapter
// calls. Concurrent Ask calls on one Router are safe; each reads the cursor
// once at start and the last success wins.
type Router struct {
	registry *Registry
	pool     Pool
	observer Observer

	mu      sync.Mutex
	current int
}

// NewRouter builds a router over reg. The pool must not be mutated afterwards.
func NewRouter(reg *Registry, pool Pool, opts RouterOptions) *Router {
	if pool == nil {
		pool = Pool{}
	}
	return &Router{
		registry: reg,
		pool:     pool,
		observer: opts.Observer,
	}
}

// CurrentModel returns the model at the cursor.
func (r *Router) CurrentModel() (ModelDescriptor, error) {
	if r.registry.Count() == 0 {
		return ModelDescriptor{}, ErrEmptyPool
	}
	return r.registry.At(r.CurrentIndex()), nil
}

// CurrentIndex returns the cursor position in the sorted candidate list.
func (r *Router) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetModel moves the cursor. Returns false and leaves state unchanged when
// index is out of range.
func (r *Router) SetModel(index int) bool {
	if index < 0 || index >= r.registry.Count() {
		return false
	}
	r.mu.Lock()
	r.current = index
	r.mu.Unlock()
	L_debug("router: model selected", "index", index, "model", r.registry.At(index).Ref())
	return true
}

// Models returns the sorted candidate list.
func (r *Router) Models() []ModelDescriptor {
	return r.registry.Sorted()
}

// Available reports whether the candidate at index has an adapter.
func (r *Router) Available(index int) bool {
	if index < 0 || index >= r.registry.Count() {
		return false
	}
	return r.pool.Has(r.registry.At(index).Family)
}

// Ask returns the first successful response text.
func (r *Router) Ask(ctx context.Context, messages []Message) (string, error) {
	res, err := r.AskWithResult(ctx, messages)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// AskWithResult walks candidates (cursor+offset) mod n for offset 0..n-1.
// Success moves the cursor to the answering candidate. Any failure, including
// a family with no adapter, moves on without touching the cursor. A canceled
// context ends the search with ctx.Err(), cursor unchanged.
func (r *Router) AskWithResult(ctx context.Context, messages []Message) (*AskResult, error) {
	n := r.registry.Count()
	if n == 0 {
		return nil, ErrEmptyPool
	}

	start := r.CurrentIndex()
	attempts := make([]Attempt, 0, 1)

	for offset := 0; offset < n; offset++ {
		if err := ctx.Err(); err != nil {
			L_debug("router: search canceled", "attempts", len(attempts), "error", err)
			return nil, err
		}

		idx := (start + offset) % n
		model := r.registry.At(idx)

		adapter, ok := r.pool[model.Family]
		if !ok {
			a := Attempt{
				Index: idx,
				Model: model,
				Kind:  FailureUnavailable,
				Err:   &AdapterError{Kind: FailureUnavailable, Family: model.Family, Model: model.ID, Class: ErrorTypeUnknown},
			}
			attempts = append(attempts, a)
			r.finished(a)
			L_trace("router: skipping model, no adapter", "model", model.Ref())
			continue
		}

		if r.observer != nil {
			r.observer.AttemptStarted(idx, model, offset > 0)
		}

		began := time.Now()
		text, err := adapter.Ask(ctx, messages, model.ID)
		a := Attempt{Index: idx, Model: model, Err: err, Duration: time.Since(began)}

		if err == nil {
			attempts = append(attempts, a)
			r.finished(a)

			r.mu.Lock()
			r.current = idx
			r.mu.Unlock()

			if offset > 0 {
				L_info("router: recovered on fallback model", "model", model.Ref(), "attempts", len(attempts))
			}
			L_elapsed(began, "router: response", "model", model.Ref(), "chars", len(text))
			return &AskResult{
				Text:       text,
				Model:      model,
				Index:      idx,
				Attempts:   attempts,
				FailedOver: offset > 0,
			}, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				a.Kind = FailureCanceled
				attempts = append(attempts, a)
				r.finished(a)
				return nil, ctx.Err()
			}
		}

		a.Kind = KindOf(err)
		attempts = append(attempts, a)
		r.finished(a)

		if a.Kind == FailureRateLimited {
			L_warn("failover: rate limited, trying next model", "failed", model.Ref(), "error", err)
		} else {
			L_warn("failover: request failed, trying next model", "failed", model.Ref(), "error", err)
		}
	}

	// A cancel that lands during the last attempt may surface as a plain
	// adapter error; the caller still asked to stop.
	if err := ctx.Err(); err != nil {
		L_debug("router: search canceled", "attempts", len(attempts), "error", err)
		return nil, err
	}

	L_warn("router: all models failed", "count", n, "attempts", len(attempts))
	return nil, &PoolExhaustedError{Attempts: attempts}
}

func (r *Router) finished(a Attempt) {
	if r.observer != nil {
		r.observer.AttemptFinished(a)
	}
}
