package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masklinn/pytest-sessions/pkg/sessions/config"
)

// TestNew verifies Config creation from maps.
func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"rerun": "failed"}, "rerun", "default", "failed"},
		{"key missing", map[string]any{"other": "value"}, "rerun", "default", "default"},
		{"empty string", map[string]any{"rerun": ""}, "rerun", "default", ""},
		{"wrong type int", map[string]any{"rerun": 123}, "rerun", "default", "default"},
		{"wrong type bool", map[string]any{"rerun": true}, "rerun", "default", "default"},
		{"nil map", nil, "rerun", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			got := cfg.String(tt.key, tt.defaultVal)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestBool verifies boolean extraction with defaults.
func TestBool(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal bool
		want       bool
	}{
		{"true value", map[string]any{"show_session": true}, "show_session", false, true},
		{"false value", map[string]any{"show_session": false}, "show_session", true, false},
		{"key missing", map[string]any{}, "show_session", true, true},
		{"wrong type", map[string]any{"show_session": "yes"}, "show_session", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			got := cfg.Bool(tt.key, tt.defaultVal)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestInt verifies integer extraction with various input types.
func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int value", map[string]any{"limit": 10}, "limit", 1, 10},
		{"int64 value", map[string]any{"limit": int64(10)}, "limit", 1, 10},
		{"float64 whole", map[string]any{"limit": float64(10)}, "limit", 1, 10},
		{"float64 fractional", map[string]any{"limit": 10.5}, "limit", 1, 1},
		{"key missing", map[string]any{}, "limit", 1, 1},
		{"wrong type", map[string]any{"limit": "ten"}, "limit", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			got := cfg.Int(tt.key, tt.defaultVal)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestStringSlice verifies string slice extraction.
func TestStringSlice(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal []string
		want       []string
	}{
		{"string slice", map[string]any{"paths": []string{"a", "b"}}, "paths", nil, []string{"a", "b"}},
		{"any slice of strings", map[string]any{"paths": []any{"a", "b"}}, "paths", nil, []string{"a", "b"}},
		{"any slice mixed", map[string]any{"paths": []any{"a", 1}}, "paths", []string{"x"}, []string{"x"}},
		{"key missing", map[string]any{}, "paths", []string{"x"}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			got := cfg.StringSlice(tt.key, tt.defaultVal)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestHas verifies key existence checks.
func TestHas(t *testing.T) {
	cfg := config.New(map[string]any{"rerun": "failed"})
	assert.True(t, cfg.Has("rerun"))
	assert.False(t, cfg.Has("missing"))
}

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte("rerun: failed\nsessions_limit: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "failed", cfg.String("rerun", ""))
	assert.Equal(t, 5, cfg.Int("sessions_limit", 0))

	_, err = config.FromYAML([]byte("[unclosed"))
	assert.Error(t, err)
}

// TestFromJSON verifies JSON parsing.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"rerun": "failed", "sessions_limit": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "failed", cfg.String("rerun", ""))
	assert.Equal(t, 5, cfg.Int("sessions_limit", 0))

	_, err = config.FromJSON([]byte("not json"))
	assert.Error(t, err)
}

// TestFromFile verifies format auto-detection by extension.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("rerun: failed\n"), 0o644))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "failed", cfg.String("rerun", ""))

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"rerun": "failed"}`), 0o644))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "failed", cfg.String("rerun", ""))

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("rerun = 'failed'\n"), 0o644))
	_, err = config.FromFile(tomlPath)
	assert.Error(t, err)

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
