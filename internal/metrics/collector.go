package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/roelfdiedericks/aiorch/internal/llm"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Collector records router attempts per model. It implements llm.Observer
// and is safe for concurrent use.
type Collector struct {
	mu     sync.RWMutex
	models map[string]*modelMetric

	store    *Store
	stopSave chan struct{}
	saveDone chan struct{}
}

var _ llm.Observer = (*Collector)(nil)

// NewCollector returns an empty in-memory collector.
func NewCollector() *Collector {
	return &Collector{models: make(map[string]*modelMetric)}
}

// getOrCreate must be called with c.mu held for writing.
func (c *Collector) getOrCreate(key string) *modelMetric {
	m, ok := c.models[key]
	if !ok {
		m = &modelMetric{samples: make([]time.Duration, 0, maxSamples)}
		c.models[key] = m
	}
	return m
}

// AttemptStarted implements llm.Observer.
func (c *Collector) AttemptStarted(_ int, model llm.ModelDescriptor, fallback bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(model.Ref())
	m.InFlight++
	if fallback {
		m.fallbacks++
	}
}

// AttemptFinished implements llm.Observer.
func (c *Collector) AttemptFinished(a llm.Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(a.Model.Ref())
	m.Attempts++
	m.LastAttempt = time.Now()

	// Unavailable candidates are never started.
	if a.Kind != llm.FailureUnavailable {
		if m.InFlight > 0 {
			m.InFlight--
		}
		if a.Kind != llm.FailureCanceled {
			m.Total += a.Duration
			m.Last = a.Duration
			m.addSample(a.Duration)
		}
	}

	fellBack := false
	if a.Kind != llm.FailureUnavailable && m.fallbacks > 0 {
		m.fallbacks--
		fellBack = true
	}

	switch {
	case a.OK():
		m.Successes++
		if fellBack {
			m.Failovers++
		}
	case a.Kind == llm.FailureRateLimited:
		m.RateLimited++
		m.LastError = a.Err.Error()
	case a.Kind == llm.FailureUnavailable:
		m.Unavailable++
	case a.Kind == llm.FailureCanceled:
		m.Canceled++
	default:
		m.Failures++
		m.LastError = a.Err.Error()
	}
	L_trace("metrics: attempt recorded", "model", a.Model.Ref(), "kind", a.Kind)
}

// Snapshot returns per-model counters sorted by model reference.
func (c *Collector) Snapshot() []ModelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ModelSnapshot, 0, len(c.models))
	for key, m := range c.models {
		out = append(out, snapshotOf(key, m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Model returns the snapshot for one model reference ("family/id").
func (c *Collector) Model(ref string) (ModelSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.models[ref]
	if !ok {
		return ModelSnapshot{Model: ref}, false
	}
	return snapshotOf(ref, m), true
}

// Totals aggregates all models.
func (c *Collector) Totals() Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var t Totals
	for _, m := range c.models {
		t.Attempts += m.Attempts
		t.Successes += m.Successes
		t.RateLimited += m.RateLimited
		t.Failures += m.Failures
		t.Unavailable += m.Unavailable
		t.Failovers += m.Failovers
	}
	return t
}

// Reset clears all counters.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.models = make(map[string]*modelMetric)
	c.mu.Unlock()
}

func snapshotOf(key string, m *modelMetric) ModelSnapshot {
	s := ModelSnapshot{
		Model:       key,
		Attempts:    m.Attempts,
		Successes:   m.Successes,
		RateLimited: m.RateLimited,
		Failures:    m.Failures,
		Unavailable: m.Unavailable,
		Canceled:    m.Canceled,
		Failovers:   m.Failovers,
		LastMs:      toMs(m.Last),
		LastError:   m.LastError,
		LastAttempt: m.LastAttempt,
		P95Ms:       calculatePercentile(m.samples, 95),
	}

	reached := m.Attempts - m.Unavailable - m.Canceled
	if reached > 0 {
		s.SuccessRate = float64(m.Successes) / float64(reached) * 100
		s.AvgMs = toMs(m.Total) / float64(reached)
		s.Health = getSuccessHealth(s.SuccessRate)
	}
	return s
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// calculatePercentile calculates the Nth percentile from samples
func calculatePercentile(samples []time.Duration, percentile int) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := (len(sorted) * percentile) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return toMs(sorted[idx])
}

// getSuccessHealth grades a success rate in percent.
func getSuccessHealth(rate float64) HealthStatus {
	if rate < 50 {
		return HealthCritical
	}
	if rate < 90 {
		return HealthWarning
	}
	return HealthGood
}
