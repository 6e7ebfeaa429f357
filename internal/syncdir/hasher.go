// SPDX-License-Identifier: MPL-2.0

// Package syncdir implements the content-addressable directory sync used by
// materialization. Source trees are hashed by content; a persisted hash map
// lets repeated runs skip copies whose sources did not change.
package syncdir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Entry type tags fed into the digest ahead of each path. Distinct tags keep
// a file named like a directory from colliding with the directory itself.
const (
	tagDir     = "d"
	tagFile    = "f"
	tagSymlink = "l"
)

// HashTree computes a deterministic content digest for the tree rooted at
// root. Entries are enumerated relative to root and sorted lexicographically,
// so the digest is independent of filesystem iteration order. Each entry
// contributes its type tag and relative path; files additionally contribute
// their raw bytes and symlinks their target text.
//
// A missing root reports ok=false with no error: the caller treats it as
// "nothing to provide".
func HashTree(root string) (digest string, ok bool, err error) {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if !info.IsDir() {
		return "", false, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", false, err
	}
	sort.Strings(paths)

	hasher := sha256.New()
	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		entryInfo, lerr := os.Lstat(full)
		if lerr != nil {
			return "", false, lerr
		}

		switch {
		case entryInfo.Mode()&os.ModeSymlink != 0:
			target, rlerr := os.Readlink(full)
			if rlerr != nil {
				return "", false, rlerr
			}
			writeField(hasher, []byte(tagSymlink))
			writeField(hasher, []byte(rel))
			writeField(hasher, []byte(target))
		case entryInfo.IsDir():
			writeField(hasher, []byte(tagDir))
			writeField(hasher, []byte(rel))
		default:
			writeField(hasher, []byte(tagFile))
			writeField(hasher, []byte(rel))
			if herr := hashFileContent(hasher, full); herr != nil {
				return "", false, herr
			}
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), true, nil
}

// writeField writes length-prefixed data so adjacent fields cannot alias.
func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

// hashFileContent streams one file's bytes into the digest, length-prefixed.
func hashFileContent(h hash.Hash, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(info.Size()))
	h.Write(prefix[:])

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(h, f)
	return err
}
