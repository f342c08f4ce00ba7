package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryStableSort(t *testing.T) {
	reg := NewRegistry([]ModelDescriptor{
		{ID: "c", Family: "x", Label: "zzz", Priority: 2},
		{ID: "a", Family: "y", Label: "aaa", Priority: 1},
		{ID: "d", Family: "x", Label: "aaa", Priority: 2},
		{ID: "b", Family: "x", Label: "mmm", Priority: 1},
		{ID: "a", Family: "y", Label: "dup", Priority: 0},
	})

	var ids []string
	for _, m := range reg.Sorted() {
		ids = append(ids, m.Label)
	}
	// Ties keep declaration order; labels and ids never break ties.
	assert.Equal(t, []string{"dup", "aaa", "mmm", "zzz", "aaa"}, ids)
	assert.Equal(t, 5, reg.Count())
	assert.Equal(t, "d", reg.At(4).ID)
	assert.Equal(t, []string{"y", "x"}, reg.Families())
}

func TestRegistryIsImmutable(t *testing.T) {
	in := []ModelDescriptor{{ID: "a", Priority: 1}}
	reg := NewRegistry(in)
	in[0].ID = "changed"

	out := reg.Sorted()
	out[0].ID = "changed too"

	assert.Equal(t, "a", reg.At(0).ID)
}

func TestDefaultCatalogOrder(t *testing.T) {
	reg := NewRegistry(DefaultCatalog())
	sorted := reg.Sorted()
	require.Len(t, sorted, len(defaultCatalog))

	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1].Priority, sorted[i].Priority)
	}

	// Priority 1 is declared groq, groq, google.
	assert.Equal(t, "openai/gpt-oss-120b", sorted[0].ID)
	assert.Equal(t, "qwen/qwen3-32b", sorted[1].ID)
	assert.Equal(t, "gemini-2.5-flash", sorted[2].ID)
	assert.Equal(t, FamilyGoogle, sorted[2].Family)

	assert.ElementsMatch(t,
		[]string{FamilyGroq, FamilyGoogle, FamilyAnthropic, FamilyXAI},
		reg.Families())
}

func TestDescriptorNames(t *testing.T) {
	d := ModelDescriptor{ID: "m", Family: "groq", Priority: 3}
	assert.Equal(t, "m", d.DisplayName())
	assert.Equal(t, "groq/m", d.Ref())
	d.Label = "Model"
	assert.Equal(t, "Model (groq, p3)", d.String())
}
