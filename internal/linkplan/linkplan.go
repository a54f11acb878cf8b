// Package linkplan resolves the static link order of the bridge and the
// native libraries.
//
// The linker resolves static archives left to right and never looks back,
// so every library must come before the libraries it depends on: the
// bridge glue, the domain library, its numerics dependency, the utility
// library and finally the C++ runtime. Search paths come before all of
// them. Resolve only describes the link; nothing here checks that the
// named files exist.
package linkplan

import (
	"fmt"
	"io"
	"slices"

	"github.com/goplus/trajbuild/internal/bridge"
	"github.com/goplus/trajbuild/internal/native"
	"github.com/goplus/trajbuild/internal/toolchain"
)

// Kind is the kind of a directive.
type Kind string

const (
	Search  Kind = "link-search"
	Library Kind = "link-lib"
)

// Directive is one instruction for the downstream link.
type Directive struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

func (d Directive) String() string {
	return string(d.Kind) + "=" + d.Value
}

// Plan is an ordered list of directives, search paths first.
type Plan struct {
	Directives []Directive `json:"directives"`
}

// Resolve returns the plan for linking art against the native build at
// loc. libs lists the native libraries dependents first. The result only
// depends on its arguments.
func Resolve(art *bridge.Artifact, loc native.Location, libs []string, tc toolchain.Toolchain) *Plan {
	p := &Plan{}
	for _, dir := range []string{loc.Bin(), loc.Lib(), art.Dir()} {
		p.Directives = append(p.Directives, Directive{Search, dir})
	}
	p.Directives = append(p.Directives, Directive{Library, art.Name})
	for _, lib := range libs {
		p.Directives = append(p.Directives, Directive{Library, lib})
	}
	if tc.RuntimeLib != "" {
		p.Directives = append(p.Directives, Directive{Library, tc.RuntimeLib})
	}
	return p
}

// SearchPaths returns the search directories in order.
func (p *Plan) SearchPaths() []string {
	return p.values(Search)
}

// Libraries returns the library names in link order.
func (p *Plan) Libraries() []string {
	return p.values(Library)
}

func (p *Plan) values(k Kind) []string {
	var out []string
	for _, d := range p.Directives {
		if d.Kind == k {
			out = append(out, d.Value)
		}
	}
	return out
}

// Equal reports whether p and q hold the same directives in the same order.
func (p *Plan) Equal(q *Plan) bool {
	if p == nil || q == nil {
		return p == q
	}
	return slices.Equal(p.Directives, q.Directives)
}

// Emit writes one directive per line to w.
func (p *Plan) Emit(w io.Writer) error {
	for _, d := range p.Directives {
		if _, err := fmt.Fprintln(w, d); err != nil {
			return err
		}
	}
	return nil
}
