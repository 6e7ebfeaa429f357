// SPDX-License-Identifier: MPL-2.0

package ports

import (
	"sort"
)

type (
	// ModulePorts is one selected module's port surface, extracted from its
	// manifest. The registry works on these plain values so the core stays
	// decoupled from manifest loading.
	ModulePorts struct {
		// ID is the catalog-unique module id.
		ID string
		// Version is the module's declared version (echoed into the report).
		Version string
		// Provides are the raw provided port identifiers, in manifest order.
		Provides []string
		// Requires are the raw required port identifiers, in manifest order.
		Requires []string
	}

	// Registry indexes which modules provide which port majors. It is rebuilt
	// fresh every run from the loaded manifests.
	Registry struct {
		// providers maps a port-major key to the sorted set of provider ids.
		providers map[string][]string
		// ids maps a port-major key back to its parsed PortID.
		ids map[string]PortID
		// byModule maps module id -> port name -> sorted majors provided.
		byModule map[string]map[string][]string
		// names maps a port name to the sorted set of module ids providing any
		// major of it (the census behind ports.map.json).
		names map[string][]string
		// modules holds the input, keyed by id, for the requires gate.
		modules []ModulePorts
	}
)

// NewRegistry builds the provider indexes from the selected modules' port
// surfaces. A structurally invalid provided identifier aborts registration.
func NewRegistry(modules []ModulePorts) (*Registry, error) {
	r := &Registry{
		providers: make(map[string][]string),
		ids:       make(map[string]PortID),
		byModule:  make(map[string]map[string][]string),
		names:     make(map[string][]string),
		modules:   modules,
	}

	for _, mod := range modules {
		for _, raw := range mod.Provides {
			id, err := ParsePortID(raw)
			if err != nil {
				return nil, err
			}
			r.register(mod.ID, id)
		}
	}

	for key := range r.providers {
		sort.Strings(r.providers[key])
	}
	for name := range r.names {
		sort.Strings(r.names[name])
	}
	for _, byName := range r.byModule {
		for name := range byName {
			sort.Strings(byName[name])
		}
	}

	return r, nil
}

// register adds one module/port pair to every index, deduplicating: a module
// providing several minors of the same major collapses to one contention entry.
func (r *Registry) register(moduleID string, id PortID) {
	key := id.Key()
	r.ids[key] = id

	if !contains(r.providers[key], moduleID) {
		r.providers[key] = append(r.providers[key], moduleID)
	}
	if !contains(r.names[id.Name], moduleID) {
		r.names[id.Name] = append(r.names[id.Name], moduleID)
	}

	byName := r.byModule[moduleID]
	if byName == nil {
		byName = make(map[string][]string)
		r.byModule[moduleID] = byName
	}
	if !contains(byName[id.Name], id.Major) {
		byName[id.Name] = append(byName[id.Name], id.Major)
	}
}

// Keys returns all registered port-major keys in lexicographic order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ProvidersFor returns the sorted module ids providing the given port major.
func (r *Registry) ProvidersFor(key string) []string {
	return r.providers[key]
}

// PortID returns the parsed identifier for a registered port-major key.
func (r *Registry) PortID(key string) (PortID, bool) {
	id, ok := r.ids[key]
	return id, ok
}

// MajorsFor returns the sorted majors a module provides under a port name.
func (r *Registry) MajorsFor(moduleID, portName string) []string {
	return r.byModule[moduleID][portName]
}

// NameCensus returns the full port-name to provider-ids mapping, independent
// of any resolution outcome. Provider lists are sorted.
func (r *Registry) NameCensus() map[string][]string {
	census := make(map[string][]string, len(r.names))
	for name, ids := range r.names {
		census[name] = append([]string(nil), ids...)
	}
	return census
}

// ProvidesName reports whether any selected module provides the port name,
// under any major.
func (r *Registry) ProvidesName(name string) bool {
	return len(r.names[name]) > 0
}

// Modules returns the module port surfaces the registry was built from.
func (r *Registry) Modules() []ModulePorts {
	return r.modules
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
