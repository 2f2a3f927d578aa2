// Package store persists tag contents.
//
// A tag occupies a location named after its "/" separated path. A bool tag
// keeps its blocks under the BoolKey entry, whose presence also marks the
// location as bool. An enum tag keeps one entry per value, named after the
// value. Entries hold canonical descriptor strings, one per line.
//
// Two backends are provided: FileStore mirrors tag paths as directories with
// one .tsv file per entry, and BadgerStore keeps the same layout as keys in
// an embedded BadgerDB.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"go.uber.org/zap"
)

// BoolKey is the entry holding a bool tag's blocks.
const BoolKey = "_bool"

// Kind is the kind of tag recorded at a location.
type Kind int

const (
	KindUnknown Kind = iota
	KindBool
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ErrReadOnly is returned by writes against a read-only store.
var ErrReadOnly = fmt.Errorf("store is read-only: %w", apperrors.ErrIllegalMutation)

// Storage is the persistence collaborator of a tag library.
type Storage interface {
	// Kind reports the kind of tag at a location and whether the location exists.
	Kind(tag string) (Kind, bool, error)
	// Create makes the location for a tag. Creating a bool tag also writes an
	// empty BoolKey entry.
	Create(tag string, kind Kind) error
	// Load reads one entry. It reports false when the entry does not exist.
	Load(tag, key string) (*block.Collection, bool, error)
	// Save writes one entry, creating the location if needed.
	Save(tag, key string, blocks *block.Collection) error
	// DeleteKey removes one entry.
	DeleteKey(tag, key string) error
	// Keys lists the enum value entries of a tag, sorted, excluding BoolKey.
	Keys(tag string) ([]string, error)
	// Delete removes a location and everything below it.
	Delete(tag string) error
	// List returns every tag location, sorted.
	List() ([]string, error)
	// Root describes where the data lives, for logs and watchers.
	Root() string
	Close() error
}

// Backend selects a Storage implementation.
type Backend string

const (
	BackendFS     Backend = "fs"
	BackendBadger Backend = "badger"
	// BackendMemory keeps tags in memory only; Open returns a nil Storage.
	BackendMemory Backend = "memory"
)

// Config holds the storage configuration.
type Config struct {
	// Backend selects the implementation.
	Backend Backend

	// DataDir is the root directory of the tag data.
	DataDir string

	// InMemory runs BadgerDB without touching disk (useful for testing).
	InMemory bool

	// Compression enables S2 compression of BadgerDB values.
	Compression bool

	// SyncWrites enables synchronous BadgerDB writes.
	SyncWrites bool

	// ReadOnly rejects every write.
	ReadOnly bool
}

// DefaultConfig returns the file-backed configuration rooted at dataDir.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		Backend:     BackendFS,
		DataDir:     dataDir,
		Compression: true,
		SyncWrites:  true,
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.DataDir == "" {
			return fmt.Errorf("DataDir must be specified for the %s backend", c.Backend)
		}
	case BackendBadger:
		if c.DataDir == "" && !c.InMemory {
			return fmt.Errorf("DataDir must be specified when InMemory is false")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

// Open returns the Storage selected by cfg. BackendMemory yields a nil
// Storage, which makes a library memory-only.
func Open(cfg *Config, logger *zap.Logger) (Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendFS:
		return NewFileStore(cfg.DataDir, cfg.ReadOnly)
	case BackendBadger:
		return OpenBadgerStore(cfg, logger)
	default:
		return nil, nil
	}
}

func encode(blocks *block.Collection) []byte {
	return []byte(strings.Join(blocks.Strings(), "\n"))
}

// decode accepts one descriptor per line; tab separated cells on a line are
// read as separate descriptors.
func decode(data []byte) (*block.Collection, error) {
	out := block.NewCollection()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		for _, cell := range strings.Split(scanner.Text(), "\t") {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			b, err := block.Parse(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out.Insert(b)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func notFound(tag string) error {
	return fmt.Errorf("tag location %s: %w", tag, apperrors.ErrNotFound)
}
