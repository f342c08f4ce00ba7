package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CharEstimate(tt.in), tt.in)
		assert.Equal(t, tt.want, CharCounter{}.Count(tt.in), tt.in)
	}
}

func TestFallbackEstimator(t *testing.T) {
	var e *Estimator
	assert.Equal(t, 2, e.Count("12345678"))

	e = &Estimator{}
	assert.Equal(t, 2+MessageOverhead, e.CountWithOverhead("12345678"))
}

func TestEstimatorSatisfiesCounter(t *testing.T) {
	var _ Counter = (*Estimator)(nil)
	var _ Counter = CharCounter{}
}
