package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"trace", LevelTrace, true},
		{"DEBUG", LevelDebug, true},
		{" info ", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiorch.log")
	require.NoError(t, Init(&Config{Level: LevelInfo, TimeFormat: "15:04:05", File: path}))
	defer Close()

	L_info("router: switched", "model", "groq/llama")
	L_debug("hidden at info")
	L_warnf("count is %d", 3)
	L_info("100%s literal", "model", "groq/llama")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "router: switched")
	assert.Contains(t, out, "model=groq/llama")
	assert.Contains(t, out, "count is 3")
	assert.Contains(t, out, "100%s literal", "key/value messages are never formatted")
	assert.NotContains(t, out, "hidden at info")
}

func TestInitFallsBackToStderr(t *testing.T) {
	err := Init(&Config{Level: LevelWarn, File: filepath.Join(t.TempDir(), "missing", "x.log")})
	defer Close()
	assert.Error(t, err)
}
