// SPDX-License-Identifier: MPL-2.0

package ports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LexLattice/true-modules/internal/issue"
)

// Orchestrator is the literal naming the composing caller in wiring edges.
const Orchestrator = "orchestrator"

// Reason records how a provider was selected for a port major.
type Reason string

const (
	// ReasonWired means an explicit wiring edge forced the selection.
	ReasonWired Reason = "wired"
	// ReasonPreferred means a prefer constraint selected the provider.
	ReasonPreferred Reason = "preferred"
	// ReasonSole means the port major had exactly one provider.
	ReasonSole Reason = "sole"
)

type (
	// Preference is a normalized provider preference: select Module for Port.
	// Plans produce these from both string and object constraints.
	Preference struct {
		Port   PortID
		Module string
	}

	// WiringEdge is a declared connection between a module's port and the
	// orchestrator, carried verbatim from the plan.
	WiringEdge struct {
		From string
		To   string
	}

	// Provider is the transient per-port-major resolution state.
	Provider struct {
		// Port is the parsed port major this entry resolves.
		Port PortID
		// Providers is the sorted set of module ids offering the port major.
		Providers []string
		// Chosen is the selected module id, empty while unresolved.
		Chosen string
		// Reason records the selection rule that applied.
		Reason Reason
	}

	// Resolution is the complete outcome of provider conflict resolution.
	Resolution struct {
		byKey map[string]*Provider
	}
)

// Resolve selects exactly one provider per port major, or fails explaining
// the ambiguity. Steps run in strict order: wiring, then preferences, then
// sole-provider defaulting; later steps never override earlier assignments.
// Returned warnings are non-fatal conditions (a preference overridden by
// wiring) for the caller to log.
func Resolve(reg *Registry, wiring []WiringEdge, prefs []Preference) (*Resolution, []string, error) {
	res := &Resolution{byKey: make(map[string]*Provider)}
	for _, key := range reg.Keys() {
		id, _ := reg.PortID(key)
		res.byKey[key] = &Provider{
			Port:      id,
			Providers: reg.ProvidersFor(key),
		}
	}

	preferred, err := validatePreferences(reg, prefs)
	if err != nil {
		return nil, nil, err
	}

	if err := res.applyWiring(reg, wiring); err != nil {
		return nil, nil, err
	}

	warnings := res.applyPreferences(preferred)
	res.applySoleDefaults()

	if err := res.failOnConflicts(); err != nil {
		return nil, warnings, err
	}

	return res, warnings, nil
}

// validatePreferences checks the normalized preference set against the
// registry: no port major preferred toward two different modules, every
// preferred port known, every named module actually providing it.
func validatePreferences(reg *Registry, prefs []Preference) (map[string]string, error) {
	preferred := make(map[string]string)
	for _, pref := range prefs {
		key := pref.Port.Key()
		if existing, ok := preferred[key]; ok && existing != pref.Module {
			return nil, issue.New(issue.CodePreferUnsat,
				"conflicting preferences for %s: %s vs %s", key, existing, pref.Module)
		}

		providers := reg.ProvidersFor(key)
		if len(providers) == 0 {
			return nil, issue.New(issue.CodePreferUnsat,
				"preference names unknown port %s: no selected module provides it", key)
		}
		if !contains(providers, pref.Module) {
			return nil, issue.New(issue.CodePreferUnsat,
				"preference names module %q for %s, but it does not provide that port (providers: %s)",
				pref.Module, key, strings.Join(providers, ", "))
		}

		preferred[key] = pref.Module
	}
	return preferred, nil
}

// applyWiring assigns providers from wiring edges. Each edge must have the
// orchestrator on exactly one side; the module side names a port by full name
// ("FooPort") or by base name ("Foo"), resolved to a single major via the
// per-module index.
func (res *Resolution) applyWiring(reg *Registry, wiring []WiringEdge) error {
	for _, edge := range wiring {
		moduleSide, err := moduleSideOf(edge)
		if err != nil {
			return err
		}

		moduleID, portName, ok := strings.Cut(moduleSide, ":")
		if !ok || moduleID == "" || portName == "" {
			return issue.New(issue.CodeCompose,
				"invalid wiring endpoint %q: want \"<module-id>:<PortName>\"", moduleSide)
		}

		majors := reg.MajorsFor(moduleID, portName)
		if len(majors) == 0 && !strings.HasSuffix(portName, "Port") {
			portName += "Port"
			majors = reg.MajorsFor(moduleID, portName)
		}
		switch len(majors) {
		case 0:
			return issue.New(issue.CodeCompose,
				"wiring names port %q on module %q, but the module does not provide it", portName, moduleID)
		case 1:
			// resolved below
		default:
			return issue.New(issue.CodeCompose,
				"wiring names port %q on module %q ambiguously: module provides majors %s; "+
					"disambiguate with an explicit major or a prefer constraint",
				portName, moduleID, strings.Join(majors, ", "))
		}

		key := PortID{Name: portName, Major: majors[0]}.Key()
		entry := res.byKey[key]
		if entry.Reason == ReasonWired && entry.Chosen != moduleID {
			return issue.New(issue.CodeDupProvider,
				"wiring selects two different providers for %s: %s and %s", key, entry.Chosen, moduleID)
		}
		entry.Chosen = moduleID
		entry.Reason = ReasonWired
	}
	return nil
}

// applyPreferences assigns preferred providers to ports not already wired.
// Wiring wins: a conflicting preference produces a warning, not an error.
func (res *Resolution) applyPreferences(preferred map[string]string) []string {
	keys := make([]string, 0, len(preferred))
	for key := range preferred {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var warnings []string
	for _, key := range keys {
		module := preferred[key]
		entry := res.byKey[key]
		if entry.Reason == ReasonWired {
			if entry.Chosen != module {
				warnings = append(warnings, fmt.Sprintf(
					"preference %s=%s overridden by wiring (wired to %s)", key, module, entry.Chosen))
			}
			continue
		}
		entry.Chosen = module
		entry.Reason = ReasonPreferred
	}
	return warnings
}

// applySoleDefaults auto-selects the provider for every still-unresolved port
// major that has exactly one.
func (res *Resolution) applySoleDefaults() {
	for _, entry := range res.byKey {
		if entry.Chosen == "" && len(entry.Providers) == 1 {
			entry.Chosen = entry.Providers[0]
			entry.Reason = ReasonSole
		}
	}
}

// failOnConflicts reports the lexicographically smallest unresolved port
// major with its sorted provider list and a remediation hint.
func (res *Resolution) failOnConflicts() error {
	var unresolved []string
	for key, entry := range res.byKey {
		if entry.Chosen == "" {
			unresolved = append(unresolved, key)
		}
	}
	if len(unresolved) == 0 {
		return nil
	}
	sort.Strings(unresolved)

	key := unresolved[0]
	providers := res.byKey[key].Providers
	return issue.New(issue.CodeDupProvider,
		"conflicting providers for %s: [%s]; add a wiring edge from %q or a constraint like prefer:%s=%s",
		key, strings.Join(providers, ", "), Orchestrator, key, providers[0])
}

// moduleSideOf returns the non-orchestrator endpoint of a wiring edge,
// failing unless the orchestrator appears on exactly one side.
func moduleSideOf(edge WiringEdge) (string, error) {
	fromOrch := isOrchestrator(edge.From)
	toOrch := isOrchestrator(edge.To)

	switch {
	case fromOrch && toOrch:
		return "", issue.New(issue.CodeCompose,
			"invalid wiring edge %s -> %s: both sides are the orchestrator", edge.From, edge.To)
	case fromOrch:
		return edge.To, nil
	case toOrch:
		return edge.From, nil
	default:
		return "", issue.New(issue.CodeCompose,
			"invalid wiring edge %s -> %s: one side must be %q", edge.From, edge.To, Orchestrator)
	}
}

// isOrchestrator matches the bare literal and the "orchestrator:<Port>" form.
func isOrchestrator(endpoint string) bool {
	if endpoint == Orchestrator {
		return true
	}
	name, _, ok := strings.Cut(endpoint, ":")
	return ok && name == Orchestrator
}

// Providers returns the per-port-major state sorted by port key.
func (res *Resolution) Providers() []*Provider {
	keys := make([]string, 0, len(res.byKey))
	for key := range res.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*Provider, 0, len(keys))
	for _, key := range keys {
		out = append(out, res.byKey[key])
	}
	return out
}

// Lookup returns the resolution entry for a port-major key.
func (res *Resolution) Lookup(key string) (*Provider, bool) {
	entry, ok := res.byKey[key]
	return entry, ok
}
