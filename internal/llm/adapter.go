package llm

import "context"

// Adapter is one backend family. It performs exactly one network attempt per
// call, never retries, and returns the complete response text. Failures must
// be *AdapterError values of kind FailureRateLimited or FailureRequest.
type Adapter interface {
	Ask(ctx context.Context, messages []Message, modelID string) (string, error)
}

// AdapterFunc adapts a plain function to Adapter.
type AdapterFunc func(ctx context.Context, messages []Message, modelID string) (string, error)

// Ask implements Adapter.
func (f AdapterFunc) Ask(ctx context.Context, messages []Message, modelID string) (string, error) {
	return f(ctx, messages, modelID)
}

// Pool maps a provider family to its adapter. Read-only once built.
type Pool map[string]Adapter

// Has reports whether family has an adapter.
func (p Pool) Has(family string) bool {
	_, ok := p[family]
	return ok
}

// Families returns the families present in the pool, in no particular order.
func (p Pool) Families() []string {
	out := make([]string, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	return out
}
