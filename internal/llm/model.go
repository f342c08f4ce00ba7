package llm

import (
	"sort"
	"strconv"
)

// ModelDescriptor describes one routable model.
type ModelDescriptor struct {
	// ID is opaque and forwarded verbatim to the backend.
	ID string `json:"id" toml:"id" yaml:"id"`
	// Family selects the adapter ("groq", "google", ...).
	Family string `json:"provider" toml:"provider" yaml:"provider"`
	Label  string `json:"label" toml:"label" yaml:"label"`
	// Priority orders candidates; lower is preferred.
	Priority int `json:"priority" toml:"priority" yaml:"priority"`
}

// DisplayName returns the label, or the id when no label is set.
func (d ModelDescriptor) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}

// Ref returns "family/id", used as a stable key in logs and metrics.
func (d ModelDescriptor) Ref() string {
	return d.Family + "/" + d.ID
}

// String implements fmt.Stringer.
func (d ModelDescriptor) String() string {
	return d.DisplayName() + " (" + d.Family + ", p" + strconv.Itoa(d.Priority) + ")"
}

// Registry is the immutable model catalog in candidate order: ascending
// priority, ties kept in declaration order. Ids are not deduplicated.
type Registry struct {
	sorted []ModelDescriptor
}

// NewRegistry copies models and sorts them once.
func NewRegistry(models []ModelDescriptor) *Registry {
	sorted := make([]ModelDescriptor, len(models))
	copy(sorted, models)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Registry{sorted: sorted}
}

// Sorted returns a copy of the candidate list.
func (r *Registry) Sorted() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// At returns the i-th candidate. Callers must keep 0 <= i < Count().
func (r *Registry) At(i int) ModelDescriptor {
	return r.sorted[i]
}

// Count returns the number of candidates.
func (r *Registry) Count() int {
	return len(r.sorted)
}

// Families returns the distinct provider families in first-seen candidate order.
func (r *Registry) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range r.sorted {
		if !seen[m.Family] {
			seen[m.Family] = true
			out = append(out, m.Family)
		}
	}
	return out
}
