// SPDX-License-Identifier: MPL-2.0

package ports

import (
	"errors"
	"strings"
	"testing"

	"github.com/LexLattice/true-modules/internal/issue"
)

func TestParsePortID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		raw       string
		wantName  string
		wantMajor string
	}{
		{"no version", "DiffPort", "DiffPort", "1"},
		{"major only", "DiffPort@2", "DiffPort", "2"},
		{"major and minor", "StoragePort@2.3", "StoragePort", "2"},
		{"deep minors", "IndexPort@1.4.7", "IndexPort", "1"},
		{"empty version suffix", "WorktreePort@", "WorktreePort", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePortID(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.wantName || got.Major != tt.wantMajor {
				t.Errorf("ParsePortID(%q) = %v, want {%s %s}", tt.raw, got, tt.wantName, tt.wantMajor)
			}
		})
	}
}

func TestParsePortID_EmptyName(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "@1", "@"} {
		_, err := ParsePortID(raw)
		if err == nil {
			t.Errorf("ParsePortID(%q): expected error", raw)
			continue
		}
		if issue.CodeOf(err) != issue.CodeCompose {
			t.Errorf("ParsePortID(%q): code = %s, want E_COMPOSE", raw, issue.CodeOf(err))
		}
	}
}

func TestPortID_Key(t *testing.T) {
	t.Parallel()
	id := PortID{Name: "DiffPort", Major: "2"}
	if got, want := id.Key(), "DiffPort@2"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestRegistry_MinorsCollapseToOneContentionGroup(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry([]ModulePorts{
		{ID: "modulea", Provides: []string{"DiffPort@1.0", "DiffPort@1.2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := reg.ProvidersFor("DiffPort@1"); len(got) != 1 || got[0] != "modulea" {
		t.Errorf("ProvidersFor(DiffPort@1) = %v, want [modulea]", got)
	}
	if got := reg.MajorsFor("modulea", "DiffPort"); len(got) != 1 || got[0] != "1" {
		t.Errorf("MajorsFor = %v, want [1]", got)
	}
}

func TestRegistry_NameCensusSorted(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry([]ModulePorts{
		{ID: "zeta", Provides: []string{"FooPort@1"}},
		{ID: "alpha", Provides: []string{"FooPort@2", "BarPort@1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	census := reg.NameCensus()
	foo := census["FooPort"]
	if len(foo) != 2 || foo[0] != "alpha" || foo[1] != "zeta" {
		t.Errorf("census[FooPort] = %v, want [alpha zeta]", foo)
	}
	if bar := census["BarPort"]; len(bar) != 1 || bar[0] != "alpha" {
		t.Errorf("census[BarPort] = %v, want [alpha]", bar)
	}
}

func TestRegistry_InvalidProvideAborts(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry([]ModulePorts{
		{ID: "modulea", Provides: []string{"@2"}},
	})
	if issue.CodeOf(err) != issue.CodeCompose {
		t.Fatalf("expected E_COMPOSE, got %v", err)
	}
}

func TestValidateRequires_Satisfied(t *testing.T) {
	t.Parallel()
	reg := mustRegistry(t, []ModulePorts{
		{ID: "modulea", Provides: []string{"FooPort@1"}, Requires: []string{"BarPort@2"}},
		{ID: "moduleb", Provides: []string{"BarPort@1"}},
	})

	// Requirement matching is name-only: BarPort@2 required, BarPort@1 provided.
	if err := ValidateRequires(reg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRequires_CollectsAllViolations(t *testing.T) {
	t.Parallel()
	reg := mustRegistry(t, []ModulePorts{
		{ID: "modulea", Provides: []string{"FooPort@1"}, Requires: []string{"BarPort@1", "BazPort@1"}},
		{ID: "moduleb", Requires: []string{"QuxPort@3"}},
	})

	err := ValidateRequires(reg)
	if issue.CodeOf(err) != issue.CodeRequireUnsat {
		t.Fatalf("expected E_REQUIRE_UNSAT, got %v", err)
	}

	var ce *issue.ComposeError
	if !errors.As(err, &ce) {
		t.Fatal("expected ComposeError")
	}
	for _, want := range []string{
		"modulea requires BarPort@1 but no selected module provides BarPort",
		"modulea requires BazPort@1 but no selected module provides BazPort",
		"moduleb requires QuxPort@3 but no selected module provides QuxPort",
	} {
		if !strings.Contains(ce.Message, want) {
			t.Errorf("message missing violation %q in %q", want, ce.Message)
		}
	}
}

func mustRegistry(t *testing.T, modules []ModulePorts) *Registry {
	t.Helper()
	reg, err := NewRegistry(modules)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}
