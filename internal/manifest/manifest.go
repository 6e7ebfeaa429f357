// SPDX-License-Identifier: MPL-2.0

// Package manifest loads module manifests from the module catalog. A manifest
// lives at <root>/<id>/module.json and is read-only for the whole run.
package manifest

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/LexLattice/true-modules/internal/cueutil"
	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/ports"
)

// FileName is the manifest file name inside each catalog entry.
const FileName = "module.json"

//go:embed manifest_schema.cue
var manifestSchema string

// Manifest is one module's catalog entry. Author-facing fields outside the
// typed set are preserved in Extra and never interpreted by the core.
type Manifest struct {
	// ID is the catalog-unique module identifier.
	ID string `json:"id"`
	// Version is the module's declared semantic version.
	Version string `json:"version"`
	// Provides are the port identifiers this module offers.
	Provides []string `json:"provides,omitempty"`
	// Requires are the port identifiers this module depends on.
	Requires []string `json:"requires,omitempty"`
	// Extra carries passthrough fields (invariants, tests, evidence, ...).
	Extra map[string]any `json:"-"`
}

// CheckRoot verifies the catalog root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return issue.New(issue.CodeModulesRoot, "modules root does not exist: %s", root)
		}
		return issue.Wrap(issue.CodeIO, err, "stat modules root %s", root)
	}
	if !info.IsDir() {
		return issue.New(issue.CodeModulesRoot, "modules root must be a directory: %s", root)
	}
	return nil
}

// Load reads and validates the manifest for one module id.
func Load(root, id string) (*Manifest, error) {
	path := filepath.Join(root, id, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, issue.New(issue.CodeManifestNotFound,
				"manifest for module %q not found at %s", id, path)
		}
		return nil, issue.Wrap(issue.CodeIO, err, "read manifest for module %q", id)
	}

	result, err := cueutil.ParseAndDecodeString[Manifest](
		manifestSchema,
		data,
		"#Manifest",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, issue.Wrap(issue.CodeManifestNotFound, err,
			"manifest for module %q is unreadable", id)
	}

	m := result.Value
	if m.ID != id {
		return nil, issue.New(issue.CodeCompose,
			"manifest at %s declares id %q, want catalog directory name %q", path, m.ID, id)
	}

	m.Extra = extraFields(result)

	return m, nil
}

// LoadAll reads the manifests for every plan entry, in plan order. Loading is
// all-or-nothing: the first failure aborts, since every later stage assumes a
// complete manifest set.
func LoadAll(root string, ids []string) ([]*Manifest, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}

	manifests := make([]*Manifest, 0, len(ids))
	for _, id := range ids {
		m, err := Load(root, id)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// SourceDir returns the module's source tree inside the catalog.
func (m *Manifest) SourceDir(root string) string {
	return filepath.Join(root, m.ID)
}

// Ports extracts the module's port surface for the resolution core.
func (m *Manifest) Ports() ports.ModulePorts {
	return ports.ModulePorts{
		ID:       m.ID,
		Version:  m.Version,
		Provides: m.Provides,
		Requires: m.Requires,
	}
}

// PortSurfaces converts a manifest set for registry construction.
func PortSurfaces(manifests []*Manifest) []ports.ModulePorts {
	out := make([]ports.ModulePorts, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, m.Ports())
	}
	return out
}

// extraFields decodes the unified value into a generic map and strips the
// typed keys, leaving only author-facing passthrough fields.
func extraFields[T any](result *cueutil.ParseResult[T]) map[string]any {
	var all map[string]any
	if err := result.Unified.Decode(&all); err != nil {
		return nil
	}
	for _, key := range []string{"id", "version", "provides", "requires"} {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}
