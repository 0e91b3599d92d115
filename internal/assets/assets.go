// Package assets resolves model and map files from GRF archives and loose
// data directories, caching what it reads.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
	"github.com/Faultbox/midgard-vat/pkg/grf"
)

// ErrNotFound is returned when no source holds the requested file.
var ErrNotFound = errors.New("asset not found")

// Manager handles asset loading from GRF archives and data directories.
// Directories take priority over archives; within each kind the last added
// source wins.
type Manager struct {
	archives []*grf.Archive
	dirs     []string
	cache    *Cache
	mu       sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddArchive opens a GRF archive and adds it to the manager.
func (m *Manager) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()

	return nil
}

// AddDir adds a directory of loose files laid out like an archive
// (data/model/..., data/*.rsw). Names are looked up in lower case.
func (m *Manager) AddDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding data dir: %s is not a directory", dir)
	}

	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()

	return nil
}

// Load returns the content of name, an archive path in either slash style.
func (m *Manager) Load(name string) ([]byte, error) {
	key := encoding.NormalizeGRFPath(name)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.dirs) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(m.dirs[i], filepath.FromSlash(key)))
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}

	for i := len(m.archives) - 1; i >= 0; i-- {
		if !m.archives[i].Contains(key) {
			continue
		}
		data, err := m.archives[i].Read(key)
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, data)
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Match lists archive paths matching pattern with one of exts across every
// archive, sorted and without duplicates.
func (m *Manager) Match(pattern string, exts ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, a := range m.archives {
		names, err := a.Match(pattern, exts...)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			seen[n] = true
		}
	}
	for _, dir := range m.dirs {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			key := encoding.NormalizeGRFPath(filepath.ToSlash(rel))
			if matches(key, encoding.NormalizeGRFPath(pattern), exts) {
				seen[key] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	result := make([]string, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Strings(result)
	return result, nil
}

func matches(key, pattern string, exts []string) bool {
	if len(exts) > 0 {
		ok := false
		for _, e := range exts {
			ok = ok || strings.EqualFold(path.Ext(key), e)
		}
		if !ok {
			return false
		}
	}
	if pattern == "" {
		return true
	}
	if ok, _ := path.Match(pattern, key); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(key))
	return ok
}

// Stats returns cache hits and misses.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.archives {
		archive.Close()
	}
	m.archives = nil
	m.dirs = nil
	m.cache.Clear()
}

// Cache is an in-memory cache of loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear drops every item and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
