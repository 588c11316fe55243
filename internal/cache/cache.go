// Package cache implements the cleanroom Change-Aware Cache (spec.md
// section 4.9): a scenario-name-to-hash map persisted at a user-local
// path, consulted only for skip decisions, never for validation outcomes.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"

	"github.com/seanchatmangpt/cleanroom/internal/clnrmerr"
)

// fileName is the cache file's name under the resolved state directory.
const fileName = "cache.json"

// Cache maps scenario name to content hash, backed by a single-writer
// discipline: the Orchestrator is the sole writer during a run (spec.md
// section 5).
type Cache struct {
	mu    sync.RWMutex
	path  string
	data  map[string]string
	dirty bool
}

// DefaultPath resolves <xdg.StateHome>/clnrm/cache.json, falling back to
// ~/.clnrm/cache.json via go-homedir when XDG resolution fails — mirroring
// the teacher's own home-dir fallback in its legacy config loader.
func DefaultPath() (string, error) {
	p, err := xdg.StateFile(filepath.Join("clnrm", fileName))
	if err == nil {
		return p, nil
	}
	home, herr := homedir.Dir()
	if herr != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindIO, herr, "resolving cache directory (xdg and homedir both failed)")
	}
	dir := filepath.Join(home, ".clnrm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", clnrmerr.Wrap(clnrmerr.KindIO, err, "creating fallback cache directory")
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the cache at path. A missing or corrupt file is not an
// error: it is discarded with a logged warning and the cache starts
// empty (spec.md section 4.9: "no cache != error").
func Load(path string) *Cache {
	c := &Cache{path: path, data: map[string]string{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", path).Warn("cache: failed to read cache file, starting fresh")
		}
		return c
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("cache: corrupt cache file, discarding and rebuilding from zero")
		return c
	}
	c.data = m
	return c
}

// HasChanged reports whether name's recorded hash differs from hash (or
// is absent).
func (c *Cache) HasChanged(name, hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	existing, ok := c.data[name]
	return !ok || existing != hash
}

// Update records name's new hash.
func (c *Cache) Update(name, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[name] = hash
	c.dirty = true
}

// Clear empties the cache in memory; Save must be called to persist.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]string{}
	c.dirty = true
}

// Save persists the cache via atomic write-then-rename, surviving crashes
// mid-write (spec.md section 4.9).
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return clnrmerr.Wrap(clnrmerr.KindIO, err, "creating cache directory")
	}

	b, err := json.Marshal(c.data)
	if err != nil {
		return clnrmerr.Wrap(clnrmerr.KindIO, err, "encoding cache")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return clnrmerr.Wrap(clnrmerr.KindIO, err, "writing temp cache file")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return clnrmerr.Wrap(clnrmerr.KindIO, err, "renaming temp cache file into place")
	}
	c.dirty = false
	return nil
}
