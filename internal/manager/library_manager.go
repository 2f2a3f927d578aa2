package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/duynguyendang/blockbaker/pkg/bake"
	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/expr"
	"github.com/duynguyendang/blockbaker/pkg/mixins"
	"github.com/duynguyendang/blockbaker/pkg/tags"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ProjectMetadata represents the project information exposed by the API.
type ProjectMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	MaxOpenLibraries = 10
	ProjectListTTL   = 1 * time.Minute
	DefaultDebounce  = 500 * time.Millisecond
	metadataFile     = "metadata.json"
)

// ErrProjectClosed is returned by Project.Do after the project was evicted.
// Callers fetch the project again and retry.
var ErrProjectClosed = errors.New("project closed")

// Project is one open tag library together with the evaluator and baker
// bound to it. A Library is not safe for concurrent use, so every access
// goes through Do.
type Project struct {
	ID        string
	Library   *tags.Library
	Evaluator *expr.Evaluator
	Baker     *bake.Baker

	mu      sync.Mutex
	storage store.Storage
	closed  bool
}

// Do runs fn while holding the project lock.
func (p *Project) Do(fn func(p *Project) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProjectClosed
	}
	return fn(p)
}

func (p *Project) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.storage == nil {
		return nil
	}
	return p.storage.Close()
}

// Options configures a LibraryManager.
type Options struct {
	// BaseDir holds one directory per project.
	BaseDir string
	// Storage is the template for every project's storage; DataDir is
	// replaced with the project directory.
	Storage store.Config
	// MaxOpen bounds the number of open libraries.
	MaxOpen int
	// CacheSize bounds each evaluator's parsed expression cache.
	CacheSize int
	// Debounce is how long Watch collects changes before invalidating.
	Debounce time.Duration
	Logger   *zap.Logger
}

// LibraryManager manages the tag libraries of multiple projects.
type LibraryManager struct {
	baseDir   string
	template  store.Config
	cacheSize int
	debounce  time.Duration
	logger    *zap.Logger

	projects      *lru.Cache[string, *Project]
	mu            sync.RWMutex
	cachedList    []ProjectMetadata
	lastListBuild time.Time
}

// NewLibraryManager creates a new LibraryManager.
func NewLibraryManager(opts Options) (*LibraryManager, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("base directory must be specified: %w", apperrors.ErrInvalidInput)
	}
	if opts.MaxOpen <= 0 {
		opts.MaxOpen = MaxOpenLibraries
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = expr.DefaultCacheSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Storage.Backend == "" {
		opts.Storage.Backend = store.BackendFS
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &LibraryManager{
		baseDir:   opts.BaseDir,
		template:  opts.Storage,
		cacheSize: opts.CacheSize,
		debounce:  opts.Debounce,
		logger:    logger,
	}
	// Evicted libraries close their storage once no request holds them.
	cache, err := lru.NewWithEvict[string, *Project](opts.MaxOpen, func(id string, p *Project) {
		if err := p.close(); err != nil {
			m.logger.Warn("Failed to close project storage", zap.String("project", id), zap.Error(err))
		}
		m.logger.Debug("Closed project", zap.String("project", id))
	})
	if err != nil {
		return nil, err
	}
	m.projects = cache
	return m, nil
}

// BaseDir returns the directory holding the projects.
func (m *LibraryManager) BaseDir() string { return m.baseDir }

// Backend returns the storage backend used for projects.
func (m *LibraryManager) Backend() store.Backend { return m.template.Backend }

// Get retrieves a project by ID, opening it if necessary.
func (m *LibraryManager) Get(projectID string) (*Project, error) {
	if err := validProjectID(projectID); err != nil {
		return nil, err
	}
	if p, ok := m.projects.Get(projectID); ok {
		return p, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check under lock
	if p, ok := m.projects.Get(projectID); ok {
		return p, nil
	}

	dir := m.projectDir(projectID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project %s: %w", projectID, apperrors.ErrNotFound)
	}

	p, err := m.open(projectID, dir)
	if err != nil {
		return nil, err
	}
	m.projects.Add(projectID, p)
	return p, nil
}

// Create makes a new empty project and opens it.
func (m *LibraryManager) Create(projectID string) (*Project, error) {
	if err := validProjectID(projectID); err != nil {
		return nil, err
	}
	if m.template.ReadOnly {
		return nil, fmt.Errorf("create project %s: %w", projectID, store.ErrReadOnly)
	}

	m.mu.Lock()
	dir := m.projectDir(projectID)
	if _, err := os.Stat(dir); err == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("project %s: %w", projectID, apperrors.ErrAlreadyExists)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to create project %s: %w", projectID, err)
	}
	m.cachedList = nil
	m.mu.Unlock()

	m.logger.Info("Created project", zap.String("project", projectID))
	return m.Get(projectID)
}

// GetOrCreate opens a project, creating it when it does not exist.
func (m *LibraryManager) GetOrCreate(projectID string) (*Project, error) {
	p, err := m.Get(projectID)
	if errors.Is(err, apperrors.ErrNotFound) {
		p, err = m.Create(projectID)
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return m.Get(projectID)
		}
	}
	return p, err
}

func (m *LibraryManager) open(projectID, dir string) (*Project, error) {
	cfg := m.template
	cfg.DataDir = dir
	if cfg.Backend == store.BackendMemory {
		// Tags of a memory project last until it is evicted.
		cfg.Backend = store.BackendBadger
		cfg.InMemory = true
	}
	logger := m.logger.With(zap.String("project", projectID))

	storage, err := store.Open(&cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage for project %s: %w", projectID, err)
	}

	lib := tags.New(storage, tags.WithLogger(logger))
	if err := mixins.RegisterAll(lib); err != nil {
		closeStorage(storage)
		return nil, fmt.Errorf("failed to register mixins for project %s: %w", projectID, err)
	}
	eval, err := expr.NewEvaluator(lib, expr.WithCacheSize(m.cacheSize), expr.WithLogger(logger))
	if err != nil {
		closeStorage(storage)
		return nil, err
	}

	logger.Info("Opened project", zap.String("backend", string(cfg.Backend)), zap.String("dir", dir))
	return &Project{
		ID:        projectID,
		Library:   lib,
		Evaluator: eval,
		Baker:     bake.New(eval, bake.WithLogger(logger)),
		storage:   storage,
	}, nil
}

func closeStorage(s store.Storage) {
	if s != nil {
		_ = s.Close()
	}
}

// Invalidate drops the cached library of a project so the next Get reloads
// it from storage.
func (m *LibraryManager) Invalidate(projectID string) {
	if m.projects.Remove(projectID) {
		m.logger.Debug("Invalidated project", zap.String("project", projectID))
	}
	m.mu.Lock()
	m.cachedList = nil
	m.mu.Unlock()
}

// IsOpen reports whether a project's library is cached.
func (m *LibraryManager) IsOpen(projectID string) bool {
	return m.projects.Contains(projectID)
}

// ListProjects returns a list of available projects.
func (m *LibraryManager) ListProjects() ([]ProjectMetadata, error) {
	m.mu.RLock()
	if time.Since(m.lastListBuild) < ProjectListTTL && m.cachedList != nil {
		list := make([]ProjectMetadata, len(m.cachedList))
		copy(list, m.cachedList)
		m.mu.RUnlock()
		return list, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check
	if time.Since(m.lastListBuild) < ProjectListTTL && m.cachedList != nil {
		list := make([]ProjectMetadata, len(m.cachedList))
		copy(list, m.cachedList)
		return list, nil
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return []ProjectMetadata{}, nil
	}
	if err != nil {
		return nil, err
	}

	projects := []ProjectMetadata{}
	for _, entry := range entries {
		if !entry.IsDir() || validProjectID(entry.Name()) != nil {
			continue
		}
		id := entry.Name()
		meta := ProjectMetadata{ID: id, Name: id}

		if data, err := os.ReadFile(filepath.Join(m.baseDir, id, metadataFile)); err == nil {
			var jsonMeta ProjectMetadata
			if err := json.Unmarshal(data, &jsonMeta); err == nil {
				if jsonMeta.Name != "" {
					meta.Name = jsonMeta.Name
				}
				meta.Description = jsonMeta.Description
			}
		}
		projects = append(projects, meta)
	}

	m.cachedList = projects
	m.lastListBuild = time.Now()

	list := make([]ProjectMetadata, len(projects))
	copy(list, projects)
	return list, nil
}

// CloseAll closes all open libraries.
func (m *LibraryManager) CloseAll() {
	m.projects.Purge()
}

func (m *LibraryManager) projectDir(projectID string) string {
	return filepath.Join(m.baseDir, projectID)
}

// projectOf maps a path below the base directory to its project ID.
func (m *LibraryManager) projectOf(path string) (string, bool) {
	rel, err := filepath.Rel(m.baseDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	id := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return id, validProjectID(id) == nil
}

func validProjectID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("invalid project id %q: %w", id, apperrors.ErrInvalidInput)
	}
	return nil
}
