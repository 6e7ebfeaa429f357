// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LexLattice/true-modules/internal/issue"
	"github.com/LexLattice/true-modules/internal/syncdir"
)

// fixedClock keeps report output byte-stable across runs in one test.
func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	root     string
	planPath string
	out      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		root:     filepath.Join(base, "catalog"),
		planPath: filepath.Join(base, "compose.json"),
		out:      filepath.Join(base, "out"),
	}
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) addModule(t *testing.T, id, version string, provides, requires []string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(f.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	m := map[string]any{"id": id, "version": version}
	if provides != nil {
		m["provides"] = provides
	}
	if requires != nil {
		m["requires"] = requires
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "module.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) addGlue(t *testing.T, id string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(f.root, id)
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) writePlan(t *testing.T, body string) {
	t.Helper()
	if err := os.WriteFile(f.planPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) options() Options {
	return Options{
		PlanPath:    f.planPath,
		ModulesRoot: f.root,
		OutDir:      f.out,
		Composer:    "tm@test",
		Now:         fixedClock,
	}
}

func (f *fixture) run(t *testing.T) (*Result, error) {
	t.Helper()
	return Run(context.Background(), f.options())
}

func TestSoleProviderComposition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.clock", "1.0.0", []string{"ClockPort@1"}, nil,
		map[string]string{"src/clock.ts": "export const now = () => 0\n"})
	f.addModule(t, "mod.app", "2.1.0", []string{"AppPort@1"}, []string{"ClockPort@1"},
		map[string]string{"src/app.ts": "export {}\n"})
	f.writePlan(t, `{
		"run_id": "sole",
		"modules": [{"id": "mod.app"}, {"id": "mod.clock"}]
	}`)

	result, err := f.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	chosen, ok := result.Resolution.Lookup("ClockPort@1")
	if !ok || chosen.Chosen != "mod.clock" || chosen.Reason != "sole" {
		t.Errorf("ClockPort@1 = %+v", chosen)
	}
	if _, err := os.Stat(filepath.Join(f.out, "modules", "mod.clock", "src", "clock.ts")); err != nil {
		t.Errorf("synchronized tree missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.out, "report.json")); err != nil {
		t.Errorf("report missing: %v", err)
	}
}

func TestIdempotentRerun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.a", "1.0.0", []string{"FooPort@1"}, nil,
		map[string]string{"src/a.ts": "a\n"})
	f.writePlan(t, `{"run_id": "idem", "modules": [{"id": "mod.a"}]}`)

	if _, err := f.run(t); err != nil {
		t.Fatal(err)
	}
	artifacts := map[string][]byte{}
	for _, name := range []string{"report.json", "ports.map.json", "package.json", "README.md"} {
		data, err := os.ReadFile(filepath.Join(f.out, name))
		if err != nil {
			t.Fatal(err)
		}
		artifacts[name] = data
	}
	cacheBefore, err := os.Stat(filepath.Join(f.out, ".tm", "copy-hashes.json"))
	if err != nil {
		t.Fatal(err)
	}

	second, err := f.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.Actions["module:mod.a"]; got != syncdir.ActionSkip {
		t.Errorf("second run action = %s, want %s", got, syncdir.ActionSkip)
	}
	for name, before := range artifacts {
		after, err := os.ReadFile(filepath.Join(f.out, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(after) != string(before) {
			t.Errorf("%s changed across identical runs", name)
		}
	}
	cacheAfter, err := os.Stat(filepath.Join(f.out, ".tm", "copy-hashes.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !cacheAfter.ModTime().Equal(cacheBefore.ModTime()) {
		t.Error("cache file must stay untouched on an unchanged rerun")
	}
}

func TestCachePrecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.a", "1.0.0", []string{"FooPort@1"}, nil,
		map[string]string{"src/a.ts": "a\n"})
	f.addModule(t, "mod.b", "1.0.0", []string{"BarPort@1"}, nil,
		map[string]string{"src/b.ts": "b\n"})
	f.writePlan(t, `{"modules": [{"id": "mod.a"}, {"id": "mod.b"}]}`)

	if _, err := f.run(t); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(f.root, "mod.a", "src", "a.ts"), []byte("A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := f.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if second.Actions["module:mod.a"] != syncdir.ActionCopy {
		t.Errorf("mutated module action = %s, want copy", second.Actions["module:mod.a"])
	}
	if second.Actions["module:mod.b"] != syncdir.ActionSkip {
		t.Errorf("untouched module action = %s, want skip", second.Actions["module:mod.b"])
	}
}

func TestAmbiguityDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.one", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.addModule(t, "mod.two", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.writePlan(t, `{"modules": [{"id": "mod.one"}, {"id": "mod.two"}]}`)

	_, err := f.run(t)
	if issue.CodeOf(err) != issue.CodeDupProvider {
		t.Fatalf("code = %s, want %s", issue.CodeOf(err), issue.CodeDupProvider)
	}
	if !strings.Contains(err.Error(), "[mod.one, mod.two]") {
		t.Errorf("error must list both providers sorted, got %q", err.Error())
	}
	if _, serr := os.Stat(filepath.Join(f.out, "report.json")); !os.IsNotExist(serr) {
		t.Error("failed resolution must not materialize a report")
	}
}

func TestWiringPrecedenceOverPreference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.one", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.addModule(t, "mod.two", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.writePlan(t, `{
		"modules": [{"id": "mod.one"}, {"id": "mod.two"}],
		"wiring": [{"from": "mod.one:FooPort", "to": "orchestrator:FooPort"}],
		"constraints": ["prefer:FooPort@1=mod.two"]
	}`)

	result, err := f.run(t)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chosen, _ := result.Resolution.Lookup("FooPort@1")
	if chosen.Chosen != "mod.one" || chosen.Reason != "wired" {
		t.Errorf("FooPort@1 = %+v, want wired mod.one", chosen)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "overridden by wiring") {
		t.Errorf("Warnings = %v, want override warning", result.Warnings)
	}
}

func TestRequiresGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.app", "1.0.0", nil, []string{"BarPort@1"}, nil)
	f.writePlan(t, `{"modules": [{"id": "mod.app"}]}`)

	_, err := f.run(t)
	if issue.CodeOf(err) != issue.CodeRequireUnsat {
		t.Fatalf("code = %s, want %s", issue.CodeOf(err), issue.CodeRequireUnsat)
	}
	if !strings.Contains(err.Error(), "mod.app requires BarPort@1") {
		t.Errorf("error must name the module and port, got %q", err.Error())
	}
}

func TestPruningRemovedModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.keep", "1.0.0", []string{"KeepPort@1"}, nil,
		map[string]string{"k.ts": "k"})
	f.addModule(t, "mod.gone", "1.0.0", []string{"GonePort@1"}, nil,
		map[string]string{"g.ts": "g"})
	f.writePlan(t, `{"modules": [{"id": "mod.keep"}, {"id": "mod.gone"}]}`)

	if _, err := f.run(t); err != nil {
		t.Fatal(err)
	}

	f.writePlan(t, `{"modules": [{"id": "mod.keep"}]}`)
	if _, err := f.run(t); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(f.out, "modules", "mod.gone")); !os.IsNotExist(err) {
		t.Error("dropped module's destination must be pruned")
	}
	cache, err := syncdir.LoadCache(f.out)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Entries()["module:mod.gone"]; ok {
		t.Error("dropped module's cache entry must be pruned")
	}
}

func TestGlueSynchronization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.a", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.addGlue(t, "glue.http", map[string]string{"adapter.ts": "export {}\n"})
	f.writePlan(t, `{
		"modules": [{"id": "mod.a"}],
		"glue": [{"id": "glue.http"}]
	}`)

	result, err := f.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if result.Actions["glue:glue.http"] != syncdir.ActionCopy {
		t.Errorf("glue action = %s", result.Actions["glue:glue.http"])
	}
	if _, err := os.Stat(filepath.Join(f.out, "glue", "glue.http", "adapter.ts")); err != nil {
		t.Errorf("glue tree missing: %v", err)
	}
}

func TestValidateOnlyTouchesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.a", "1.0.0", []string{"FooPort@1"}, nil,
		map[string]string{"a.ts": "a"})
	f.writePlan(t, `{"modules": [{"id": "mod.a"}]}`)

	opts := f.options()
	opts.ValidateOnly = true
	result, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Actions != nil {
		t.Errorf("Actions = %v, want none in validate-only mode", result.Actions)
	}
	if _, serr := os.Stat(f.out); !os.IsNotExist(serr) {
		t.Error("validate-only run must not create the output directory")
	}
}

func TestMissingManifestAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writePlan(t, `{"modules": [{"id": "mod.ghost"}]}`)

	_, err := f.run(t)
	if issue.CodeOf(err) != issue.CodeManifestNotFound {
		t.Fatalf("code = %s, want %s", issue.CodeOf(err), issue.CodeManifestNotFound)
	}
}

func TestCanceledContextAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addModule(t, "mod.a", "1.0.0", []string{"FooPort@1"}, nil, nil)
	f.writePlan(t, `{"modules": [{"id": "mod.a"}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, f.options())
	if err == nil {
		t.Fatal("Run() with canceled context must fail")
	}
}
