package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/block"
)

const fileExt = ".tsv"

// FileStore keeps each tag in a directory mirroring its path.
type FileStore struct {
	root     string
	readOnly bool
}

// NewFileStore returns a FileStore rooted at root, creating the directory
// unless readOnly is set.
func NewFileStore(root string, readOnly bool) (*FileStore, error) {
	if !readOnly {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return &FileStore{root: root, readOnly: readOnly}, nil
}

func (s *FileStore) dir(tag string) string {
	return filepath.Join(s.root, filepath.FromSlash(tag))
}

func (s *FileStore) file(tag, key string) string {
	return filepath.Join(s.dir(tag), key+fileExt)
}

// Kind reports bool when the directory holds the BoolKey file, enum otherwise.
func (s *FileStore) Kind(tag string) (Kind, bool, error) {
	info, err := os.Stat(s.dir(tag))
	if errors.Is(err, fs.ErrNotExist) {
		return KindUnknown, false, nil
	}
	if err != nil {
		return KindUnknown, false, err
	}
	if !info.IsDir() {
		return KindUnknown, false, nil
	}
	if _, err := os.Stat(s.file(tag, BoolKey)); err == nil {
		return KindBool, true, nil
	}
	return KindEnum, true, nil
}

func (s *FileStore) Create(tag string, kind Kind) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := os.MkdirAll(s.dir(tag), 0o755); err != nil {
		return err
	}
	if kind != KindBool {
		return nil
	}
	if _, err := os.Stat(s.file(tag, BoolKey)); err == nil {
		return nil
	}
	return s.Save(tag, BoolKey, nil)
}

func (s *FileStore) Load(tag, key string) (*block.Collection, bool, error) {
	data, err := os.ReadFile(s.file(tag, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	blocks, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", s.file(tag, key), err)
	}
	return blocks, true, nil
}

// Save writes through a temporary file so a failed write never truncates
// the previous contents.
func (s *FileStore) Save(tag, key string, blocks *block.Collection) error {
	if s.readOnly {
		return ErrReadOnly
	}
	dir := s.dir(tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+key+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(encode(blocks)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.file(tag, key))
}

func (s *FileStore) DeleteKey(tag, key string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	err := os.Remove(s.file(tag, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Keys(tag string) ([]string, error) {
	entries, err := os.ReadDir(s.dir(tag))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		key := strings.TrimSuffix(e.Name(), fileExt)
		if key == BoolKey || strings.HasPrefix(key, ".") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Delete(tag string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if _, ok, err := s.Kind(tag); err != nil {
		return err
	} else if !ok {
		return notFound(tag)
	}
	return os.RemoveAll(s.dir(tag))
}

// List returns every directory below the root as a tag path.
func (s *FileStore) List() ([]string, error) {
	var tags []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() || path == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		tags = append(tags, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Close() error { return nil }
