// SPDX-License-Identifier: MPL-2.0

// Package plan loads and normalizes compose plans. A plan names the modules
// to include, how their ports are wired to the orchestrator, which glue
// bundles to carry along, and constraints on provider selection.
package plan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/LexLattice/true-modules/internal/cueutil"
	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/ports"
)

//go:embed plan_schema.cue
var planSchema string

type (
	// Plan is a parsed compose plan. Constraints stay in their raw plan form
	// so the report can echo them verbatim; Preferences() normalizes them.
	Plan struct {
		RunID       string       `json:"run_id,omitempty"`
		Modules     []ModuleRef  `json:"modules"`
		Wiring      []WiringEdge `json:"wiring,omitempty"`
		Glue        []GlueRef    `json:"glue,omitempty"`
		Constraints []any        `json:"constraints,omitempty"`
	}

	// ModuleRef selects one module from the catalog. Version is advisory; the
	// manifest's declared version is authoritative.
	ModuleRef struct {
		ID      string `json:"id"`
		Version string `json:"version,omitempty"`
	}

	// WiringEdge is one declared connection in the plan.
	WiringEdge struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	// GlueRef selects one glue bundle from the catalog.
	GlueRef struct {
		ID string `json:"id"`
	}
)

// preferPattern matches the string constraint form "prefer:<port>=<module>".
// The major is mandatory here; only manifest port ids may omit it.
var preferPattern = regexp.MustCompile(
	`^prefer:([A-Za-z][A-Za-z0-9]*Port@[0-9]+)=([a-z][a-z0-9_.-]+)$`)

// Load reads and validates a compose plan file.
func Load(path string) (*Plan, error) {
	return LoadWithOverrides(path, "")
}

// LoadWithOverrides reads a plan and, when overridesPath is non-empty, merges
// the overrides document over it. The merge is shallow: each top-level key in
// the overrides replaces the plan's key wholesale.
func LoadWithOverrides(path, overridesPath string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, issue.New(issue.CodeInput, "compose plan not found: %s", path)
		}
		return nil, issue.Wrap(issue.CodeIO, err, "read compose plan %s", path)
	}

	if overridesPath != "" {
		overrides, oerr := os.ReadFile(overridesPath)
		if oerr != nil {
			if os.IsNotExist(oerr) {
				return nil, issue.New(issue.CodeInput, "overrides file not found: %s", overridesPath)
			}
			return nil, issue.Wrap(issue.CodeIO, oerr, "read overrides %s", overridesPath)
		}
		data, err = mergeShallow(data, overrides)
		if err != nil {
			return nil, issue.Wrap(issue.CodeInput, err, "apply overrides %s", overridesPath)
		}
	}

	result, err := cueutil.ParseAndDecodeString[Plan](
		planSchema,
		data,
		"#ComposePlan",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, issue.Wrap(issue.CodeInput, err, "compose plan %s is invalid", path)
	}

	p := result.Value
	if len(p.Modules) == 0 {
		return nil, issue.New(issue.CodeInput, "compose plan %s selects no modules", path)
	}
	return p, nil
}

// mergeShallow overlays top-level override keys onto the base document.
func mergeShallow(base, overrides []byte) ([]byte, error) {
	var baseDoc, overDoc map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseDoc); err != nil {
		return nil, fmt.Errorf("base plan: %w", err)
	}
	if err := json.Unmarshal(overrides, &overDoc); err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	for key, value := range overDoc {
		baseDoc[key] = value
	}
	return json.Marshal(baseDoc)
}

// ModuleIDs returns the selected module ids in plan order.
func (p *Plan) ModuleIDs() []string {
	ids := make([]string, 0, len(p.Modules))
	for _, m := range p.Modules {
		ids = append(ids, m.ID)
	}
	return ids
}

// GlueIDs returns the selected glue ids in plan order.
func (p *Plan) GlueIDs() []string {
	ids := make([]string, 0, len(p.Glue))
	for _, g := range p.Glue {
		ids = append(ids, g.ID)
	}
	return ids
}

// Edges converts the plan's wiring into resolver edges.
func (p *Plan) Edges() []ports.WiringEdge {
	edges := make([]ports.WiringEdge, 0, len(p.Wiring))
	for _, w := range p.Wiring {
		edges = append(edges, ports.WiringEdge{From: w.From, To: w.To})
	}
	return edges
}

// Preferences normalizes the plan's constraints into provider preferences.
// Two forms are accepted: the string form "prefer:<Name>Port@<major>=<module>"
// and the object form {"preferred_providers": {"<port>": "<module>"}}. Any
// other string constraint is carried through as a free-text note. A string
// that starts with "prefer:" but does not match the grammar is an authoring
// error, not a note.
func (p *Plan) Preferences() ([]ports.Preference, []string, error) {
	var prefs []ports.Preference
	var notes []string

	for _, raw := range p.Constraints {
		switch c := raw.(type) {
		case string:
			if !strings.HasPrefix(c, "prefer:") {
				notes = append(notes, c)
				continue
			}
			match := preferPattern.FindStringSubmatch(c)
			if match == nil {
				return nil, nil, issue.New(issue.CodePreferUnsat,
					"malformed preference constraint %q, want prefer:<Name>Port@<major>=<module-id>", c)
			}
			port, err := ports.ParsePortID(match[1])
			if err != nil {
				return nil, nil, err
			}
			prefs = append(prefs, ports.Preference{Port: port, Module: match[2]})
		case map[string]any:
			pp, ok := c["preferred_providers"].(map[string]any)
			if !ok {
				return nil, nil, issue.New(issue.CodePreferUnsat,
					"constraint object must carry preferred_providers, got %v", c)
			}
			converted, err := preferencesFromMap(pp)
			if err != nil {
				return nil, nil, err
			}
			prefs = append(prefs, converted...)
		default:
			return nil, nil, issue.New(issue.CodePreferUnsat,
				"unsupported constraint %v", raw)
		}
	}

	return prefs, notes, nil
}

// preferencesFromMap converts an object-form constraint, iterating port keys
// in sorted order so repeated runs see preferences in a stable order.
func preferencesFromMap(pp map[string]any) ([]ports.Preference, error) {
	keys := make([]string, 0, len(pp))
	for key := range pp {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	prefs := make([]ports.Preference, 0, len(keys))
	for _, key := range keys {
		module, ok := pp[key].(string)
		if !ok || module == "" {
			return nil, issue.New(issue.CodePreferUnsat,
				"preferred provider for %s must be a module id, got %v", key, pp[key])
		}
		port, err := ports.ParsePortID(key)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, ports.Preference{Port: port, Module: module})
	}
	return prefs, nil
}
