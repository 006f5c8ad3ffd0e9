package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linked/internal/mutation"
	"github.com/roach88/linked/internal/namespace"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultAnonBase, cfg.Binding.AnonBase)
	assert.Equal(t, "id", cfg.Binding.IDVariable)
	assert.Equal(t, mutation.Atomic, cfg.ModifyMode())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.Empty(t, cfg.Namespaces)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "linked.toml", `
[database]
path = "books.db"

[binding]
modify_mode = "two-phase"
id_variable = "book"

[namespaces]
ex = "http://example.org/"

[log]
level = "debug"
development = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "books.db", cfg.Database.Path)
	assert.Equal(t, mutation.TwoPhase, cfg.ModifyMode())
	assert.Equal(t, "book", cfg.Binding.IDVariable)
	assert.Equal(t, map[string]string{"ex": "http://example.org/"}, cfg.Namespaces)
	assert.True(t, cfg.Log.Development)

	r := namespace.NewEmptyResolver()
	cfg.Register(r)
	assert.Equal(t, "http://example.org/b1", r.SafeResolve("ex:b1"))
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "linked.yaml", "database:\n  path: other.db\nbinding:\n  modify_mode: atomic\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.db", cfg.Database.Path)
	assert.Equal(t, mutation.Atomic, cfg.ModifyMode())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LINKED_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("LINKED_BINDING_MODIFY_MODE", "two-phase")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, mutation.TwoPhase, cfg.ModifyMode())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"modify mode", "[binding]\nmodify_mode = \"sometimes\"\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
		{"namespace", "[namespaces]\nex = \"not-a-uri\"\n"},
		{"anon base", "[binding]\nanon_base = \"anon\"\n"},
		{"database path", "[database]\npath = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "linked.toml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	log, err := cfg.Logger(2)
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(-1), "-vv enables debug")
}
