// SPDX-License-Identifier: MPL-2.0

// Package issue defines the compose pipeline's error taxonomy and a catalog
// of remediation pages shown when the CLI runs with --explain.
package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MarkdownMsg is a remediation page in Markdown, rendered via glamour.
type MarkdownMsg string

// Issue pairs a failure code with guidance on how to fix the plan.
type Issue struct {
	code  Code
	mdMsg MarkdownMsg
}

// Code returns the failure code this issue explains.
func (i *Issue) Code() Code { return i.code }

// MarkdownMsg returns the raw remediation markdown.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Render renders the remediation page with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		code: CodeManifestNotFound,
		mdMsg: `
# Module manifest not found!

A module named in the compose plan has no readable module.json in the catalog.

## Things you can check:
- The module id in the plan matches the catalog directory name exactly
- The catalog root passed via --modules-root is the directory that contains
  one subdirectory per module
- The manifest exists at:
~~~
<modules-root>/<module-id>/module.json
~~~

The run aborts on the first missing manifest: every later stage assumes a
complete manifest set, so partial loading is never attempted.`,
	}

	composeIssue = &Issue{
		code: CodeCompose,
		mdMsg: `
# Invalid port or wiring!

Either a port identifier is structurally invalid, or a wiring edge names a
port the module does not provide (or provides under more than one major).

## Port identifier format:
~~~
<Name>Port@<major>         e.g. DiffPort@1, StoragePort@2
~~~
The version suffix is optional and defaults to major 1.

## Wiring edges:
Exactly one side of each edge must be the literal "orchestrator". The module
side names a port by base name:
~~~json
{"from": "modulea:Diff", "to": "orchestrator:Diff"}
~~~

If the module provides the same port name under several majors, the edge is
ambiguous. Disambiguate with a prefer constraint naming an explicit major:
~~~
prefer:DiffPort@2=modulea
~~~`,
	}

	preferUnsatIssue = &Issue{
		code: CodePreferUnsat,
		mdMsg: `
# Preference cannot be satisfied!

A prefer constraint conflicts with another preference, or names a module/port
combination that does not exist in the selected module set.

## Constraint grammar:
~~~
prefer:<Name>Port@<major>=<module-id>
~~~

## Things you can check:
- Two constraints do not prefer the same port major toward different modules
- The named module is listed in the plan's modules[]
- The named module actually declares the port major in its provides[]`,
	}

	dupProviderIssue = &Issue{
		code: CodeDupProvider,
		mdMsg: `
# Conflicting providers!

More than one selected module provides the same port major, and neither wiring
nor a preference constraint disambiguates the choice.

## Two ways to resolve the conflict:
- Add a wiring edge from the orchestrator to the provider you want:
~~~json
{"from": "modulea:Foo", "to": "orchestrator:Foo"}
~~~
- Or add a prefer constraint naming one of the listed providers:
~~~
prefer:FooPort@1=modulea
~~~

Wiring is explicit topology and always wins; preferences are advisory and are
overridden (with a warning) when wiring already decided the port.`,
	}

	requireUnsatIssue = &Issue{
		code: CodeRequireUnsat,
		mdMsg: `
# Unsatisfied requirements!

One or more selected modules declare a requires[] entry with no selected
module providing that port name. All violations are listed together.

## Things you can check:
- Add a module that provides the missing port to the plan's modules[]
- Or remove the requiring module if the capability is not needed

Requirement matching is by port name only. Any provided major satisfies a
requirement; version differences are not checked here.`,
	}

	inputIssue = &Issue{
		code: CodeInput,
		mdMsg: `
# Malformed input!

The compose plan or overrides file is not valid JSON, or does not match the
plan schema.

## Plan shape:
~~~json
{
  "run_id": "demo-1",
  "modules": [{"id": "modulea", "version": "1.0.0"}],
  "wiring": [{"from": "modulea:Foo", "to": "orchestrator:Foo"}],
  "glue": [{"id": "shared-types"}],
  "constraints": ["prefer:FooPort@1=modulea"]
}
~~~

Constraints accept either prefer strings or objects carrying a
"preferred_providers" mapping of port identifier to module id.`,
	}

	modulesRootIssue = &Issue{
		code: CodeModulesRoot,
		mdMsg: `
# Module catalog root not usable!

The --modules-root path does not exist or is not a directory.

## Things you can check:
- Pass --modules-root explicitly, or set modules_root in the tm config file
- The TM_MODULES_ROOT environment variable, if you rely on it, points at the
  catalog directory (the one containing one folder per module)`,
	}

	issues = map[Code]*Issue{
		manifestNotFoundIssue.Code(): manifestNotFoundIssue,
		composeIssue.Code():          composeIssue,
		preferUnsatIssue.Code():      preferUnsatIssue,
		dupProviderIssue.Code():      dupProviderIssue,
		requireUnsatIssue.Code():     requireUnsatIssue,
		inputIssue.Code():            inputIssue,
		modulesRootIssue.Code():      modulesRootIssue,
	}
)

// Values returns all catalog entries, sorted by code for deterministic listings.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int {
		switch {
		case a.code < b.code:
			return -1
		case a.code > b.code:
			return 1
		}
		return 0
	})
	return all
}

// Get returns the catalog entry for a code, or nil when the code has no page.
func Get(code Code) *Issue {
	return issues[code]
}
