// Package tracking decides when the cached bridge must be rebuilt.
//
// The tracked set is declared, not discovered: it is exactly the bridge
// sources named in the pipeline definition plus the files that define the
// pipeline itself. A source missing from the set would let an edit slip
// past the cache unnoticed.
package tracking

import (
	"fmt"
	"io"
	"slices"

	"github.com/goplus/trajbuild/internal/config"
)

// Set is an ordered list of absolute paths without duplicates.
type Set []string

// Inputs returns the paths whose modification invalidates the cached
// bridge: the interface description, every adapter source and header,
// the pipeline definition file and the host-build driver. It does not
// touch the filesystem.
func Inputs(cfg *config.Config) Set {
	var s Set
	s.add(cfg.Path(cfg.Bridge.Interface))
	for _, p := range cfg.Paths(cfg.Bridge.Adapters) {
		s.add(p)
	}
	for _, p := range cfg.Paths(cfg.Bridge.Headers) {
		s.add(p)
	}
	s.add(cfg.File)
	s.add(cfg.Path(cfg.Driver))
	return s
}

func (s *Set) add(p string) {
	if p == "" || slices.Contains(*s, p) {
		return
	}
	*s = append(*s, p)
}

// Contains reports whether p is tracked.
func (s Set) Contains(p string) bool {
	return slices.Contains(s, p)
}

// Emit writes one rerun-if-changed line per tracked path to w, for
// downstream tools that schedule the pipeline themselves.
func (s Set) Emit(w io.Writer) error {
	for _, p := range s {
		if _, err := fmt.Fprintf(w, "rerun-if-changed=%s\n", p); err != nil {
			return err
		}
	}
	return nil
}
