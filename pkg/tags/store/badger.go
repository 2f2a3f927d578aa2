package store

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/klauspost/compress/s2"
	"go.uber.org/zap"
)

// Key layout:
//
//	t/<tag>            -> "bool" | "enum"     (location marker)
//	v/<tag>\x00<key>   -> header byte + entry  (0 = raw, 1 = S2)
const (
	markerPrefix = "t/"
	valuePrefix  = "v/"
	keySep       = "\x00"

	encRaw byte = 0
	encS2  byte = 1
)

// BadgerStore keeps the tag layout in an embedded BadgerDB.
// Writing a location also marks its ancestors, matching the directory
// semantics of FileStore.
type BadgerStore struct {
	db       *badger.DB
	root     string
	compress bool
	readOnly bool
	logger   *zap.Logger
}

// OpenBadgerStore opens (or creates) the BadgerDB described by cfg.
func OpenBadgerStore(cfg *Config, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(filepath.Join(cfg.DataDir, "badger"))
	root := cfg.DataDir
	if cfg.InMemory {
		opts = badger.DefaultOptions("")
		opts.InMemory = true
		root = ":memory:"
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.ReadOnly = cfg.ReadOnly && !cfg.InMemory
	opts.Logger = badgerLogger{logger.Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		logger.Error("failed to open BadgerDB", zap.String("dir", opts.Dir), zap.Error(err))
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	logger.Info("BadgerDB opened", zap.String("root", root), zap.Bool("compression", cfg.Compression))

	return &BadgerStore{
		db:       db,
		root:     root,
		compress: cfg.Compression,
		readOnly: cfg.ReadOnly,
		logger:   logger,
	}, nil
}

func markerKey(tag string) []byte { return []byte(markerPrefix + tag) }

func valueKey(tag, key string) []byte { return []byte(valuePrefix + tag + keySep + key) }

func (s *BadgerStore) Kind(tag string) (Kind, bool, error) {
	var kind Kind
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		kind, found, err = readMarker(txn, tag)
		return err
	})
	return kind, found, err
}

func (s *BadgerStore) Create(tag string, kind Kind) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := markAncestors(txn, tag); err != nil {
			return err
		}
		existing, ok, err := readMarker(txn, tag)
		if err != nil {
			return err
		}
		if kind != KindBool {
			if ok && existing == KindBool {
				return nil
			}
			return txn.Set(markerKey(tag), []byte(KindEnum.String()))
		}
		if err := txn.Set(markerKey(tag), []byte(KindBool.String())); err != nil {
			return err
		}
		if _, err := txn.Get(valueKey(tag, BoolKey)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(valueKey(tag, BoolKey), s.pack(nil))
	})
}

func (s *BadgerStore) Load(tag, key string) (*block.Collection, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(tag, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s:%s: %w", tag, key, err)
	}
	raw, err := unpack(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress %s:%s: %w", tag, key, err)
	}
	blocks, err := decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode %s:%s: %w", tag, key, err)
	}
	return blocks, true, nil
}

// Save records the location marker too; writing BoolKey marks it bool.
func (s *BadgerStore) Save(tag, key string, blocks *block.Collection) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := markAncestors(txn, tag); err != nil {
			return err
		}
		existing, ok, err := readMarker(txn, tag)
		if err != nil {
			return err
		}
		switch {
		case key == BoolKey && existing != KindBool:
			err = txn.Set(markerKey(tag), []byte(KindBool.String()))
		case !ok:
			err = txn.Set(markerKey(tag), []byte(KindEnum.String()))
		}
		if err != nil {
			return err
		}
		return txn.Set(valueKey(tag, key), s.pack(encode(blocks)))
	})
}

func (s *BadgerStore) DeleteKey(tag, key string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(valueKey(tag, key))
	})
}

func (s *BadgerStore) Keys(tag string) ([]string, error) {
	prefix := []byte(valuePrefix + tag + keySep)
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range scanKeys(txn, prefix) {
			key := string(k[len(prefix):])
			if key != BoolKey {
				keys = append(keys, key)
			}
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

func (s *BadgerStore) Delete(tag string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if _, ok, err := s.Kind(tag); err != nil {
		return err
	} else if !ok {
		return notFound(tag)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		doomed := [][]byte{markerKey(tag)}
		for _, prefix := range []string{
			markerPrefix + tag + "/",
			valuePrefix + tag + keySep,
			valuePrefix + tag + "/",
		} {
			doomed = append(doomed, scanKeys(txn, []byte(prefix))...)
		}
		for _, k := range doomed {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) List() ([]string, error) {
	var tags []string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range scanKeys(txn, []byte(markerPrefix)) {
			tags = append(tags, string(k[len(markerPrefix):]))
		}
		return nil
	})
	sort.Strings(tags)
	return tags, err
}

func (s *BadgerStore) Root() string { return s.root }

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) pack(data []byte) []byte {
	if s.compress {
		return append([]byte{encS2}, s2.Encode(nil, data)...)
	}
	return append([]byte{encRaw}, data...)
}

func unpack(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch data[0] {
	case encRaw:
		return data[1:], nil
	case encS2:
		return s2.Decode(nil, data[1:])
	default:
		return nil, fmt.Errorf("unknown value encoding %d", data[0])
	}
}

func readMarker(txn *badger.Txn, tag string) (Kind, bool, error) {
	item, err := txn.Get(markerKey(tag))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return KindUnknown, false, nil
	}
	if err != nil {
		return KindUnknown, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return KindUnknown, false, err
	}
	if bytes.Equal(val, []byte(KindBool.String())) {
		return KindBool, true, nil
	}
	return KindEnum, true, nil
}

func scanKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// markAncestors gives every ancestor of tag an enum marker unless it
// already has one.
func markAncestors(txn *badger.Txn, tag string) error {
	for p := path.Dir(tag); p != "." && p != "/"; p = path.Dir(p) {
		_, ok, err := readMarker(txn, p)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := txn.Set(markerKey(p), []byte(KindEnum.String())); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger routes BadgerDB's own logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
