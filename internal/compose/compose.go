// SPDX-License-Identifier: MPL-2.0

// Package compose runs the composition pipeline: load the plan and the
// selected manifests, resolve one provider per port major, validate declared
// requirements, then synchronize sources and materialize the workspace.
// Any failure aborts before materialization begins.
package compose

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/manifest"
	"github.com/LexLattice/true-modules/internal/plan"
	"github.com/LexLattice/true-modules/internal/ports"
	"github.com/LexLattice/true-modules/internal/syncdir"
	"github.com/LexLattice/true-modules/internal/workspace"
)

type (
	// Options configures one pipeline run.
	Options struct {
		// PlanPath locates the compose plan JSON.
		PlanPath string
		// OverridesPath optionally overlays top-level plan keys.
		OverridesPath string
		// ModulesRoot is the module catalog root.
		ModulesRoot string
		// GlueRoot is the glue catalog root; defaults to ModulesRoot.
		GlueRoot string
		// OutDir is the workspace output directory.
		OutDir string
		// Composer identifies the tool in the report context.
		Composer string
		// ValidateOnly stops after resolution and requires validation,
		// leaving the output directory untouched.
		ValidateOnly bool
		// Now supplies the report timestamp; defaults to time.Now.
		Now func() time.Time
		// Logger receives warnings and per-tree sync decisions.
		Logger *log.Logger
	}

	// Result is the outcome of a successful run.
	Result struct {
		Plan       *plan.Plan
		Manifests  []*manifest.Manifest
		Registry   *ports.Registry
		Resolution *ports.Resolution
		// Warnings are non-fatal conditions, already logged.
		Warnings []string
		// Actions records what the sync step did per cache key. Empty in
		// validate-only runs.
		Actions map[string]syncdir.Action
	}
)

// Run executes the pipeline.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	p, err := plan.LoadWithOverrides(opts.PlanPath, opts.OverridesPath)
	if err != nil {
		return nil, err
	}

	manifests, err := manifest.LoadAll(opts.ModulesRoot, p.ModuleIDs())
	if err != nil {
		return nil, err
	}

	reg, err := ports.NewRegistry(manifest.PortSurfaces(manifests))
	if err != nil {
		return nil, err
	}

	prefs, constraintNotes, err := p.Preferences()
	if err != nil {
		return nil, err
	}

	resolution, warnings, err := ports.Resolve(reg, p.Edges(), prefs)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	if err := ports.ValidateRequires(reg); err != nil {
		return nil, err
	}

	result := &Result{
		Plan:       p,
		Manifests:  manifests,
		Registry:   reg,
		Resolution: resolution,
		Warnings:   warnings,
	}
	if opts.ValidateOnly {
		return result, nil
	}

	actions, err := synchronize(ctx, opts, p, manifests, logger)
	if err != nil {
		return nil, err
	}
	result.Actions = actions

	notes := append(append([]string{}, constraintNotes...), warnings...)
	err = workspace.Materialize(workspace.Params{
		OutDir:      opts.OutDir,
		Plan:        p,
		Manifests:   manifests,
		Registry:    reg,
		Notes:       notes,
		Composer:    opts.Composer,
		GeneratedAt: opts.Now(),
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// synchronize copies every selected module and glue tree into the workspace
// and prunes cache entries (and destinations) for ids no longer in the plan.
// The cache is flushed exactly once, after the prune.
func synchronize(ctx context.Context, opts Options, p *plan.Plan, manifests []*manifest.Manifest, logger *log.Logger) (map[string]syncdir.Action, error) {
	cache, err := syncdir.LoadCache(opts.OutDir)
	if err != nil {
		return nil, err
	}
	syncer := syncdir.NewSyncer(cache, logger)
	actions := make(map[string]syncdir.Action)

	for _, m := range manifests {
		if err := ctx.Err(); err != nil {
			return nil, issue.Wrap(issue.CodeIO, err, "composition canceled")
		}
		key := syncdir.Key(syncdir.KindModule, m.ID)
		action, err := syncer.Sync(syncdir.KindModule, m.ID,
			m.SourceDir(opts.ModulesRoot),
			syncdir.DestDir(opts.OutDir, syncdir.KindModule, m.ID))
		if err != nil {
			return nil, err
		}
		actions[key] = action
	}

	for _, id := range p.GlueIDs() {
		if err := ctx.Err(); err != nil {
			return nil, issue.Wrap(issue.CodeIO, err, "composition canceled")
		}
		key := syncdir.Key(syncdir.KindGlue, id)
		action, err := syncer.Sync(syncdir.KindGlue, id,
			filepath.Join(opts.GlueRoot, id),
			syncdir.DestDir(opts.OutDir, syncdir.KindGlue, id))
		if err != nil {
			return nil, err
		}
		actions[key] = action
	}

	pruned := cache.Prune()
	if err := syncer.RemovePruned(opts.OutDir, pruned); err != nil {
		return nil, err
	}

	if err := cache.Flush(); err != nil {
		return nil, err
	}
	return actions, nil
}

func checkOptions(opts *Options) error {
	if opts.PlanPath == "" {
		return issue.New(issue.CodeInput, "no compose plan given")
	}
	if opts.ModulesRoot == "" {
		return issue.New(issue.CodeInput, "no modules root given")
	}
	if !opts.ValidateOnly && opts.OutDir == "" {
		return issue.New(issue.CodeInput, "no output directory given")
	}
	if opts.GlueRoot == "" {
		opts.GlueRoot = opts.ModulesRoot
	}
	if opts.Composer == "" {
		opts.Composer = "tm"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return nil
}
