// SPDX-License-Identifier: MPL-2.0

package syncdir

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/LexLattice/true-modules/internal/issue"
)

// Action reports what one Sync call did.
type Action string

const (
	// ActionSkip means the destination already matches the source digest.
	ActionSkip Action = "skip"
	// ActionCopy means the destination was rebuilt from the source tree.
	ActionCopy Action = "copy"
	// ActionRemove means the source disappeared and the destination was
	// removed along with its cache entry.
	ActionRemove Action = "remove"
)

// Syncer copies catalog trees into the output workspace, consulting the hash
// cache to skip trees whose content did not change since the last run.
type Syncer struct {
	cache  *Cache
	logger *log.Logger
}

// NewSyncer wires a syncer to a loaded cache. A nil logger disables the
// per-tree debug output.
func NewSyncer(cache *Cache, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Syncer{cache: cache, logger: logger}
}

// Sync brings dst in line with src for one catalog entry. The destination is
// rebuilt from scratch on any content change, so deletions inside the source
// tree propagate.
func (s *Syncer) Sync(kind Kind, id, src, dst string) (Action, error) {
	key := Key(kind, id)

	digest, ok, err := HashTree(src)
	if err != nil {
		return "", issue.Wrap(issue.CodeIO, err, "hash %s source %s", kind, src)
	}
	if !ok {
		s.cache.Drop(key)
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			return "", issue.Wrap(issue.CodeIO, rmErr, "remove stale %s %s", kind, dst)
		}
		s.logger.Debug("source gone, destination removed", "kind", kind, "id", id)
		return ActionRemove, nil
	}

	cached, hit := s.cache.Get(key)
	if hit && cached == digest && destinationExists(dst) {
		s.logger.Debug("unchanged, copy skipped", "kind", kind, "id", id)
		return ActionSkip, nil
	}

	if err := os.RemoveAll(dst); err != nil {
		return "", issue.Wrap(issue.CodeIO, err, "clear destination %s", dst)
	}
	if err := copyTree(src, dst); err != nil {
		return "", issue.Wrap(issue.CodeIO, err, "copy %s %s", kind, id)
	}
	s.cache.Put(key, digest)
	s.logger.Debug("copied", "kind", kind, "id", id)
	return ActionCopy, nil
}

// RemovePruned deletes the destinations of cache keys pruned after a run, for
// ids that dropped out of the plan. Keys are "<kind>:<id>"; the destination
// is <out>/<kind plural dir>/<id>.
func (s *Syncer) RemovePruned(outDir string, prunedKeys []string) error {
	for _, key := range prunedKeys {
		kind, id, ok := splitKey(key)
		if !ok {
			continue
		}
		dst := DestDir(outDir, kind, id)
		if err := os.RemoveAll(dst); err != nil {
			return issue.Wrap(issue.CodeIO, err, "remove pruned %s", dst)
		}
		s.logger.Debug("pruned", "kind", kind, "id", id)
	}
	return nil
}

// DestDir returns the workspace destination for one catalog entry.
func DestDir(outDir string, kind Kind, id string) string {
	switch kind {
	case KindGlue:
		return filepath.Join(outDir, "glue", id)
	default:
		return filepath.Join(outDir, "modules", id)
	}
}

func destinationExists(dst string) bool {
	info, err := os.Stat(dst)
	return err == nil && info.IsDir()
}

func splitKey(key string) (Kind, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return Kind(key[:i]), key[i+1:], true
		}
	}
	return "", "", false
}

// copyTree replicates src at dst, preserving file modes and recreating
// symlinks with their original targets.
func copyTree(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, lerr := os.Readlink(srcPath)
			if lerr != nil {
				return lerr
			}
			if serr := os.Symlink(target, dstPath); serr != nil {
				return serr
			}
		case entry.IsDir():
			if derr := copyTree(srcPath, dstPath); derr != nil {
				return derr
			}
		default:
			if ferr := copyFile(srcPath, dstPath, info.Mode().Perm()); ferr != nil {
				return ferr
			}
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
