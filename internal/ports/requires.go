// SPDX-License-Identifier: MPL-2.0

package ports

import (
	"fmt"
	"strings"

	"github.com/LexLattice/true-modules/internal/issue"
)

// ValidateRequires checks every selected module's requires[] entries against
// the names exported by the selected providers. Matching is by port name only
// (version-insensitive). All violations are collected and reported in one
// error rather than failing on the first. The check never mutates resolution
// state; it is a pure gate after resolution.
func ValidateRequires(reg *Registry) error {
	var unmet []string
	for _, mod := range reg.Modules() {
		for _, raw := range mod.Requires {
			id, err := ParsePortID(raw)
			if err != nil {
				return err
			}
			if !reg.ProvidesName(id.Name) {
				unmet = append(unmet, fmt.Sprintf(
					"%s requires %s but no selected module provides %s", mod.ID, raw, id.Name))
			}
		}
	}

	if len(unmet) == 0 {
		return nil
	}
	return issue.New(issue.CodeRequireUnsat, "%s", strings.Join(unmet, "; "))
}
