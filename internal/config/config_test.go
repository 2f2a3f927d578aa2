package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/duynguyendang/blockbaker/pkg/expr"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	s, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, &Settings{
		DataDir:   DefaultDataDir,
		Backend:   store.BackendFS,
		LogLevel:  "info",
		Project:   DefaultProject,
		Port:      DefaultPort,
		CacheSize: expr.DefaultCacheSize,
	}, s)
	assert.Equal(t, ":8080", s.Addr())
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		check   func(t *testing.T, s *Settings)
		wantErr bool
	}{
		{
			name: "overrides",
			vars: map[string]string{EnvDataDir: "/srv/tags", EnvBackend: "badger", EnvCacheSize: "16", EnvPort: "9000", EnvProject: "vanilla"},
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, "/srv/tags", s.DataDir)
				assert.Equal(t, store.BackendBadger, s.Backend)
				assert.Equal(t, 16, s.CacheSize)
				assert.Equal(t, ":9000", s.Addr())
				assert.Equal(t, "vanilla", s.Project)
			},
		},
		{
			name: "blank values fall back",
			vars: map[string]string{EnvDataDir: "  ", EnvLogLevel: ""},
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, DefaultDataDir, s.DataDir)
				assert.Equal(t, "info", s.LogLevel)
			},
		},
		{name: "bad backend", vars: map[string]string{EnvBackend: "sqlite"}, wantErr: true},
		{name: "bad cache size", vars: map[string]string{EnvCacheSize: "-1"}, wantErr: true},
		{name: "bad port", vars: map[string]string{EnvPort: "http"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromEnv(env(tt.vars))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BLOCKBAKER_PROJECT=from_file\n"), 0o644))
	t.Setenv(EnvProject, "")
	require.NoError(t, os.Unsetenv(EnvProject))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", s.Project)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestStorageConfig(t *testing.T) {
	s, err := FromEnv(env(map[string]string{EnvBackend: "badger"}))
	require.NoError(t, err)
	cfg := s.StorageConfig(true)
	assert.Equal(t, store.BackendBadger, cfg.Backend)
	assert.True(t, cfg.ReadOnly)
	assert.True(t, cfg.Compression)
}
