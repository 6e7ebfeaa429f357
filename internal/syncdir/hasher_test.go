// SPDX-License-Identifier: MPL-2.0

package syncdir

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHashTreeDeterministic(t *testing.T) {
	t.Parallel()

	a := t.TempDir()
	b := t.TempDir()
	files := map[string]string{
		"src/index.ts": "export const x = 1\n",
		"module.json":  `{"id": "mod.a"}`,
	}
	writeTree(t, a, files)
	writeTree(t, b, files)

	ha, ok, err := HashTree(a)
	if err != nil || !ok {
		t.Fatalf("HashTree(a) = %v, %v", ok, err)
	}
	hb, _, err := HashTree(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("identical trees must hash equal: %s != %s", ha, hb)
	}
}

func TestHashTreeSensitivity(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTree(t, base, map[string]string{"a.txt": "one", "dir/b.txt": "two"})
	baseline, _, err := HashTree(base)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("content change", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "ONE", "dir/b.txt": "two"})
		h, _, err := HashTree(root)
		if err != nil {
			t.Fatal(err)
		}
		if h == baseline {
			t.Error("changed file content must change the digest")
		}
	})

	t.Run("rename", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"z.txt": "one", "dir/b.txt": "two"})
		h, _, err := HashTree(root)
		if err != nil {
			t.Fatal(err)
		}
		if h == baseline {
			t.Error("renamed entry must change the digest")
		}
	})

	t.Run("deletion", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "one"})
		h, _, err := HashTree(root)
		if err != nil {
			t.Fatal(err)
		}
		if h == baseline {
			t.Error("deleted entry must change the digest")
		}
	})
}

func TestHashTreeSymlinkTarget(t *testing.T) {
	t.Parallel()

	a := t.TempDir()
	writeTree(t, a, map[string]string{"real.txt": "data"})
	if err := os.Symlink("real.txt", filepath.Join(a, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	b := t.TempDir()
	writeTree(t, b, map[string]string{"real.txt": "data"})
	if err := os.Symlink("other.txt", filepath.Join(b, "link")); err != nil {
		t.Fatal(err)
	}

	ha, _, err := HashTree(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _, err := HashTree(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Error("symlink target must contribute to the digest")
	}
}

func TestHashTreeMissingRoot(t *testing.T) {
	t.Parallel()

	_, ok, err := HashTree(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing root must not error, got %v", err)
	}
	if ok {
		t.Error("missing root must report ok=false")
	}
}

func TestHashTreeEmptyDirCounts(t *testing.T) {
	t.Parallel()

	a := t.TempDir()
	writeTree(t, a, map[string]string{"a.txt": "x"})

	b := t.TempDir()
	writeTree(t, b, map[string]string{"a.txt": "x"})
	if err := os.Mkdir(filepath.Join(b, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	ha, _, _ := HashTree(a)
	hb, _, _ := HashTree(b)
	if ha == hb {
		t.Error("an added empty directory must change the digest")
	}
}
