// Package metrics counts router attempts per model and optionally persists
// the counters in SQLite between runs.
package metrics

import (
	"time"
)

const (
	maxSamples = 200 // latency samples kept per model for percentiles
)

// HealthStatus summarizes how a model has been behaving.
type HealthStatus int

const (
	HealthGood     HealthStatus = iota // Green
	HealthWarning                      // Yellow
	HealthCritical                     // Red
)

func (h HealthStatus) String() string {
	switch h {
	case HealthWarning:
		return "warning"
	case HealthCritical:
		return "critical"
	default:
		return "good"
	}
}

// MarshalText renders the status by name in JSON reports.
func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a status name; unknown names are good.
func (h *HealthStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "warning":
		*h = HealthWarning
	case "critical":
		*h = HealthCritical
	default:
		*h = HealthGood
	}
	return nil
}

// modelMetric is the live counter set for one model. Guarded by Collector.mu.
type modelMetric struct {
	Attempts    int64
	Successes   int64
	RateLimited int64
	Failures    int64
	Unavailable int64
	Canceled    int64
	Failovers   int64         // successes reached by failing over
	Total       time.Duration // latency of attempts that reached the backend
	Last        time.Duration
	LastError   string
	LastAttempt time.Time
	InFlight    int64
	fallbacks   int64 // started attempts that were not the cursor's model

	samples   []time.Duration // ring buffer
	sampleIdx int
}

func (m *modelMetric) addSample(d time.Duration) {
	if len(m.samples) < maxSamples {
		m.samples = append(m.samples, d)
		return
	}
	m.samples[m.sampleIdx] = d
	m.sampleIdx = (m.sampleIdx + 1) % maxSamples
}

// ModelSnapshot is a point-in-time copy of one model's counters.
type ModelSnapshot struct {
	Model       string       `json:"model"`
	Attempts    int64        `json:"attempts"`
	Successes   int64        `json:"successes"`
	RateLimited int64        `json:"rate_limited"`
	Failures    int64        `json:"failures"`
	Unavailable int64        `json:"unavailable"`
	Canceled    int64        `json:"canceled,omitempty"`
	Failovers   int64        `json:"failovers"`
	SuccessRate float64      `json:"success_rate"`
	AvgMs       float64      `json:"avg_ms"`
	P95Ms       float64      `json:"p95_ms,omitempty"`
	LastMs      float64      `json:"last_ms"`
	LastError   string       `json:"last_error,omitempty"`
	LastAttempt time.Time    `json:"last_attempt"`
	Health      HealthStatus `json:"health"`
}

// Totals aggregates every model.
type Totals struct {
	Attempts    int64 `json:"attempts"`
	Successes   int64 `json:"successes"`
	RateLimited int64 `json:"rate_limited"`
	Failures    int64 `json:"failures"`
	Unavailable int64 `json:"unavailable"`
	// Failovers counts searches that succeeded on a model other than the first tried.
	Failovers int64 `json:"failovers"`
}
