package linkplan

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Header marks files written by WriteCgo.
const Header = "// Code generated by trajbuild. DO NOT EDIT."

// Cgo holds what the generated cgo file declares besides the plan.
type Cgo struct {
	Package  string
	GOOS     string   // build constraint; empty for none
	Standard string   // C++ standard of the glue
	Includes []string // headers the glue includes
}

// Source renders the cgo file for p as it would be written to dir.
// Absolute paths are written relative to ${SRCDIR}, so the generated
// file survives moving the checkout.
func (p *Plan) Source(dir string, c Cgo) []byte {
	var ld []string
	for _, d := range p.Directives {
		switch d.Kind {
		case Search:
			ld = append(ld, "-L"+srcdir(dir, d.Value))
		case Library:
			ld = append(ld, "-l"+d.Value)
		}
	}
	var cxx []string
	if c.Standard != "" {
		cxx = append(cxx, "-std="+c.Standard)
	}
	for _, inc := range c.Includes {
		cxx = append(cxx, "-I"+srcdir(dir, inc))
	}

	var b bytes.Buffer
	fmt.Fprintln(&b, Header)
	fmt.Fprintln(&b)
	if c.GOOS != "" {
		fmt.Fprintf(&b, "//go:build %s\n\n", c.GOOS)
	}
	fmt.Fprintf(&b, "package %s\n\n", c.Package)
	if len(cxx) > 0 {
		fmt.Fprintf(&b, "// #cgo CXXFLAGS: %s\n", strings.Join(cxx, " "))
	}
	fmt.Fprintf(&b, "// #cgo LDFLAGS: %s\n", strings.Join(ld, " "))
	fmt.Fprintln(&b, `import "C"`)
	return b.Bytes()
}

// WriteCgo writes the cgo file for p to path, leaving the file untouched
// when its content would not change. It reports whether it wrote.
func (p *Plan) WriteCgo(fs afero.Fs, path string, c Cgo) (bool, error) {
	data := p.Source(filepath.Dir(path), c)
	if old, err := afero.ReadFile(fs, path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func srcdir(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	return "${SRCDIR}/" + filepath.ToSlash(rel)
}
