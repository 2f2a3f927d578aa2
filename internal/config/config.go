// Package config reads process settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/expr"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvDataDir   = "BLOCKBAKER_DATA_DIR"
	EnvBackend   = "BLOCKBAKER_BACKEND"
	EnvLogLevel  = "BLOCKBAKER_LOG_LEVEL"
	EnvCacheSize = "BLOCKBAKER_CACHE_SIZE"
	EnvProject   = "BLOCKBAKER_PROJECT"
	EnvPort      = "PORT"
)

// Defaults.
const (
	DefaultDataDir = "./data"
	DefaultProject = "default"
	DefaultPort    = "8080"
)

// Settings holds the process configuration.
type Settings struct {
	DataDir   string
	Backend   store.Backend
	LogLevel  string
	Project   string
	Port      string
	CacheSize int
}

// Load reads .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Settings, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range envFiles {
			if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds Settings from a variable lookup.
func FromEnv(lookup func(string) (string, bool)) (*Settings, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	s := &Settings{
		DataDir:   get(EnvDataDir, DefaultDataDir),
		Backend:   store.Backend(get(EnvBackend, string(store.BackendFS))),
		LogLevel:  get(EnvLogLevel, "info"),
		Project:   get(EnvProject, DefaultProject),
		Port:      get(EnvPort, DefaultPort),
		CacheSize: expr.DefaultCacheSize,
	}
	if v := get(EnvCacheSize, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", EnvCacheSize, v)
		}
		s.CacheSize = n
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	switch s.Backend {
	case store.BackendFS, store.BackendBadger, store.BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want fs, badger or memory)", s.Backend)
	}
	if s.DataDir == "" {
		return fmt.Errorf("data directory must be specified")
	}
	if _, err := strconv.Atoi(s.Port); err != nil {
		return fmt.Errorf("invalid port %q", s.Port)
	}
	return nil
}

// StorageConfig returns the storage template for projects.
func (s *Settings) StorageConfig(readOnly bool) store.Config {
	cfg := store.DefaultConfig(s.DataDir)
	cfg.Backend = s.Backend
	cfg.ReadOnly = readOnly
	return *cfg
}

// Addr returns the HTTP listen address.
func (s *Settings) Addr() string {
	return ":" + s.Port
}
