// Package tokens provides token estimation utilities using tiktoken.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
)

// Counter counts tokens in a string.
type Counter interface {
	Count(text string) int
}

// Estimator provides token estimation using tiktoken
type Estimator struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

// DefaultEncoding is cl100k_base. It is not exact for Llama, Qwen or Gemini
// tokenizers, but close enough for budgeting.
const DefaultEncoding = "cl100k_base"

// MessageOverhead approximates per-message framing tokens (role, separators).
const MessageOverhead = 4

var (
	globalEstimator     *Estimator
	globalEstimatorOnce sync.Once
)

// Get returns the global token estimator (singleton)
func Get() *Estimator {
	globalEstimatorOnce.Do(func() {
		var err error
		globalEstimator, err = New()
		if err != nil {
			L_warn("tokens: failed to create estimator, using fallback", "error", err)
			globalEstimator = &Estimator{}
		}
	})
	return globalEstimator
}

// New creates a new token estimator
func New() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the token count for a string.
// Falls back to chars/4 if tiktoken unavailable.
func (e *Estimator) Count(text string) int {
	if e == nil || e.encoding == nil {
		return CharEstimate(text)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.encoding.Encode(text, nil, nil))
}

// CountWithOverhead returns token count plus per-message overhead.
func (e *Estimator) CountWithOverhead(text string) int {
	return e.Count(text) + MessageOverhead
}

// Estimate is a convenience function using the global estimator.
func Estimate(text string) int {
	return Get().Count(text)
}

// CharEstimate is the chars/4 heuristic, rounded up.
func CharEstimate(text string) int {
	return (len(text) + 3) / 4
}

// CharCounter is a Counter using CharEstimate. It needs no encoding files,
// which makes it handy in tests and offline runs.
type CharCounter struct{}

func (CharCounter) Count(text string) int { return CharEstimate(text) }
