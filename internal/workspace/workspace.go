// SPDX-License-Identifier: MPL-2.0

// Package workspace emits the output artifacts of a successful composition:
// the port census, the machine-readable report, and a minimal project
// scaffold around the synchronized module trees.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/manifest"
	"github.com/LexLattice/true-modules/internal/plan"
	"github.com/LexLattice/true-modules/internal/ports"
)

// DefaultName is the scaffold package name when the plan has no run id.
const DefaultName = "tm-workspace"

type (
	// Params carries everything the materializer writes into the workspace.
	Params struct {
		OutDir      string
		Plan        *plan.Plan
		Manifests   []*manifest.Manifest
		Registry    *ports.Registry
		Notes       []string
		Composer    string
		GeneratedAt time.Time
	}

	// Report is the machine-readable record of one composition run. It is
	// write-once; nothing in the pipeline reads it back.
	Report struct {
		Context         ReportContext     `json:"context"`
		BillOfMaterials []BOMEntry        `json:"bill_of_materials"`
		Wiring          []plan.WiringEdge `json:"wiring"`
		Glue            []plan.GlueRef    `json:"glue"`
		Constraints     []any             `json:"constraints"`
		Notes           []string          `json:"notes"`
	}

	// ReportContext identifies the run that produced the workspace.
	ReportContext struct {
		RunID       string `json:"run_id,omitempty"`
		Composer    string `json:"composer"`
		GeneratedAt string `json:"generated_at"`
	}

	// BOMEntry is one resolved module identity.
	BOMEntry struct {
		ID      string `json:"id"`
		Version string `json:"version"`
	}

	packageDescriptor struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Private bool   `json:"private"`
	}
)

// Materialize writes all report artifacts and the project scaffold. The
// synchronized modules/ and glue/ trees must already be in place; this step
// touches nothing outside the output directory.
func Materialize(p Params) error {
	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		return issue.Wrap(issue.CodeIO, err, "create output directory %s", p.OutDir)
	}

	if err := writeJSON(filepath.Join(p.OutDir, "ports.map.json"), p.Registry.NameCensus()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(p.OutDir, "report.json"), buildReport(p)); err != nil {
		return err
	}

	name := scaffoldName(p.Plan.RunID)
	version := scaffoldVersion(p)

	if err := writeJSON(filepath.Join(p.OutDir, "package.json"), packageDescriptor{
		Name:    name,
		Version: version,
		Private: true,
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(p.OutDir, "tsconfig.json"), tsconfigStub); err != nil {
		return err
	}
	return writeFile(filepath.Join(p.OutDir, "README.md"), readme(p, name, version))
}

func buildReport(p Params) Report {
	bom := make([]BOMEntry, 0, len(p.Manifests))
	for _, m := range p.Manifests {
		bom = append(bom, BOMEntry{ID: m.ID, Version: m.Version})
	}

	wiring := p.Plan.Wiring
	if wiring == nil {
		wiring = []plan.WiringEdge{}
	}
	glue := p.Plan.Glue
	if glue == nil {
		glue = []plan.GlueRef{}
	}
	constraints := p.Plan.Constraints
	if constraints == nil {
		constraints = []any{}
	}
	notes := p.Notes
	if notes == nil {
		notes = []string{}
	}

	return Report{
		Context: ReportContext{
			RunID:       p.Plan.RunID,
			Composer:    p.Composer,
			GeneratedAt: p.GeneratedAt.UTC().Format(time.RFC3339),
		},
		BillOfMaterials: bom,
		Wiring:          wiring,
		Glue:            glue,
		Constraints:     constraints,
		Notes:           notes,
	}
}

// scaffoldName derives the package name from the run id, slugified.
func scaffoldName(runID string) string {
	slug := slugify(runID)
	if slug == "" {
		return DefaultName
	}
	return slug
}

// scaffoldVersion derives the scaffold version from the lead module's
// declared version, with the run id appended as a prerelease suffix. An
// unparsable or absent lead version falls back to 0.0.0.
func scaffoldVersion(p Params) string {
	base := "0.0.0"
	if len(p.Manifests) > 0 {
		if v, err := semver.NewVersion(p.Manifests[0].Version); err == nil {
			base = v.String()
		}
	}

	slug := slugify(p.Plan.RunID)
	if slug == "" {
		return base
	}

	v, err := semver.NewVersion(base)
	if err != nil {
		return base
	}
	withPre, err := v.SetPrerelease(slug)
	if err != nil {
		return base
	}
	return withPre.String()
}

// slugify lowercases and collapses anything outside [a-z0-9] into single
// hyphens, trimming them from both ends.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func readme(p Params, name, version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "Workspace composed by %s (version %s).\n\n", p.Composer, version)
	b.WriteString("## Modules\n\n")
	for _, m := range p.Manifests {
		fmt.Fprintf(&b, "- `%s` %s\n", m.ID, m.Version)
	}
	if len(p.Plan.Glue) > 0 {
		b.WriteString("\n## Glue\n\n")
		for _, g := range p.Plan.Glue {
			fmt.Fprintf(&b, "- `%s`\n", g.ID)
		}
	}
	b.WriteString("\nSee `report.json` for the full composition record and `ports.map.json` for the provider census.\n")
	return b.String()
}

const tsconfigStub = `{
  "compilerOptions": {
    "target": "ES2022",
    "module": "node16",
    "moduleResolution": "node16",
    "strict": true,
    "noEmit": true
  },
  "include": ["modules/**/*", "glue/**/*"]
}
`

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return issue.Wrap(issue.CodeIO, err, "encode %s", filepath.Base(path))
	}
	return writeFile(path, string(data)+"\n")
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return issue.Wrap(issue.CodeIO, err, "write %s", filepath.Base(path))
	}
	return nil
}
