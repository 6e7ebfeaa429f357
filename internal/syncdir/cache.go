// SPDX-License-Identifier: MPL-2.0

package syncdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LexLattice/true-modules/internal/issue"
)

// CacheFile is the cache location relative to the output directory.
const CacheFile = ".tm/copy-hashes.json"

// Kind distinguishes the two catalog namespaces sharing one cache file.
type Kind string

const (
	KindModule Kind = "module"
	KindGlue   Kind = "glue"
)

// Key builds the cache key for one synchronized tree.
func Key(kind Kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// Cache is the persisted tree-hash map. It is loaded once per run, updated in
// memory, and flushed once at the end, and only when something changed.
// Entries not touched during a run belong to ids no longer in the plan and
// are pruned before the flush.
type Cache struct {
	path    string
	entries map[string]string
	touched map[string]bool
	dirty   bool
}

// LoadCache reads the cache file under outDir. A missing or unreadable file
// starts an empty cache; a corrupted cache only costs recopies.
func LoadCache(outDir string) (*Cache, error) {
	c := &Cache{
		path:    filepath.Join(outDir, filepath.FromSlash(CacheFile)),
		entries: make(map[string]string),
		touched: make(map[string]bool),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, issue.Wrap(issue.CodeIO, err, "read sync cache %s", c.path)
	}
	if jerr := json.Unmarshal(data, &c.entries); jerr != nil {
		c.entries = make(map[string]string)
		c.dirty = true
	}
	return c, nil
}

// Get returns the recorded digest for a key and marks the key active.
func (c *Cache) Get(key string) (string, bool) {
	c.touched[key] = true
	digest, ok := c.entries[key]
	return digest, ok
}

// Put records a digest after a successful copy.
func (c *Cache) Put(key, digest string) {
	c.touched[key] = true
	if c.entries[key] == digest {
		return
	}
	c.entries[key] = digest
	c.dirty = true
}

// Drop removes a key whose source tree disappeared.
func (c *Cache) Drop(key string) {
	c.touched[key] = true
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.dirty = true
}

// Prune removes entries that were never touched this run and returns their
// keys, so the caller can remove the matching destination directories.
func (c *Cache) Prune() []string {
	var removed []string
	for key := range c.entries {
		if !c.touched[key] {
			removed = append(removed, key)
			delete(c.entries, key)
			c.dirty = true
		}
	}
	return removed
}

// Flush writes the cache back if anything changed. An unchanged cache leaves
// the file byte-identical, which keeps repeated runs idempotent.
func (c *Cache) Flush() error {
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return issue.Wrap(issue.CodeIO, err, "encode sync cache")
	}
	data = append(data, '\n')

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return issue.Wrap(issue.CodeIO, err, "create cache directory %s", dir)
	}

	// Temp file plus rename so a crash never leaves a truncated cache.
	tmp, err := os.CreateTemp(dir, "copy-hashes-*.json")
	if err != nil {
		return issue.Wrap(issue.CodeIO, err, "create cache temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return issue.Wrap(issue.CodeIO, err, "write sync cache")
	}
	if err := tmp.Chmod(0o644); err != nil {
		return issue.Wrap(issue.CodeIO, err, "chmod sync cache")
	}
	if err := tmp.Close(); err != nil {
		return issue.Wrap(issue.CodeIO, err, "close sync cache")
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return issue.Wrap(issue.CodeIO, err, "commit sync cache")
	}
	c.dirty = false
	return nil
}

// Entries returns a copy of the current hash map, for status reporting.
func (c *Cache) Entries() map[string]string {
	out := make(map[string]string, len(c.entries))
	for key, digest := range c.entries {
		out[key] = digest
	}
	return out
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}
