// SPDX-License-Identifier: MPL-2.0

// Package ports implements the composition core: the port registry, the
// provider conflict resolution algorithm, and the requires gate. It operates
// on plain module/port values and performs no I/O.
package ports

import (
	"strings"

	"github.com/LexLattice/true-modules/internal/issue"
)

// DefaultMajor is assumed when a port identifier carries no version suffix.
const DefaultMajor = "1"

// PortID is the parsed form of a port identifier string such as "DiffPort@1"
// or "StoragePort@2.3". Identifiers are parsed once at the boundary; the raw
// string is never re-parsed downstream.
type PortID struct {
	// Name is the port name including the conventional "Port" suffix.
	Name string
	// Major is the compatibility major as a decimal string, "1" by default.
	Major string
}

// ParsePortID parses a raw port identifier into its name and major. Minor
// segments after the major are accepted and discarded: two identifiers are
// the same port major iff name and major match.
func ParsePortID(raw string) (PortID, error) {
	name := raw
	major := DefaultMajor

	if at := strings.Index(raw, "@"); at >= 0 {
		name = raw[:at]
		version := raw[at+1:]
		if dot := strings.Index(version, "."); dot >= 0 {
			version = version[:dot]
		}
		if version != "" {
			major = version
		}
	}

	if name == "" {
		return PortID{}, issue.New(issue.CodeCompose, "invalid port identifier %q: empty port name", raw)
	}

	return PortID{Name: name, Major: major}, nil
}

// Key returns the canonical "<name>@<major>" form used as the unit of
// conflict detection.
func (p PortID) Key() string {
	return p.Name + "@" + p.Major
}

// String returns the canonical identifier form.
func (p PortID) String() string {
	return p.Key()
}
