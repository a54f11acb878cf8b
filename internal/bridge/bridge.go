// Package bridge compiles the Go bridge to the external library.
//
// The interface description is run through SWIG, which writes the Go side
// of the bridge into the Go package and the C++ glue into the work
// directory. The glue and the hand-written adapter sources are then
// compiled against the installed headers of the native build and archived
// into a single static library. The archive is not linked: its references
// into the native library are resolved by the final cgo link.
package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/native"
	"github.com/goplus/trajbuild/internal/run"
	"github.com/goplus/trajbuild/internal/toolchain"
	"github.com/qiniu/x/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// Standard is the C++ standard both the generated glue and the external
// library's headers are compiled with. There is no fallback.
const Standard = "c++20"

// Flags fixed by this package, part of the bridge's identity.
var (
	swigFlags = []string{"-go", "-c++", "-cgo", "-intgosize", "64"}
	unixFlags = []string{"-O2", "-fPIC"}
	msvcFlags = []string{"/nologo", toolchain.EHsc, "/O2", "/MD"}
)

// Spec lists the bridge inputs. All paths are absolute.
type Spec struct {
	Name      string
	Interface string
	Adapters  []string
	Include   []string // extra include directories
	GoPackage string   // receives the SWIG-generated Go file
	// PackageName is the package clause of the generated Go file; empty
	// leaves it to SWIG.
	PackageName string
	WorkDir     string // objects, glue and the archive
	Jobs        int
}

// SrcDir is the directory of the interface description, searched first
// so the adapters see the generated glue's headers.
func (s Spec) SrcDir() string {
	return filepath.Dir(s.Interface)
}

// Includes returns the include search path in order.
func (s Spec) Includes(loc native.Location) []string {
	inc := []string{s.SrcDir(), loc.Include()}
	return append(inc, s.Include...)
}

// Glue returns the path of the generated C++ glue.
func (s Spec) Glue() string {
	return filepath.Join(s.WorkDir, s.Name+"_wrap.cxx")
}

// GoFile returns the path of the generated Go glue. SWIG is run with
// -module Name, which fixes the file name.
func (s Spec) GoFile() string {
	return filepath.Join(s.GoPackage, s.Name+".go")
}

// ArchiveName returns the file name of the bridge archive.
func ArchiveName(name string, tc toolchain.Toolchain) string {
	if tc.MSVC {
		return name + ".lib"
	}
	return "lib" + name + ".a"
}

// Artifact is a compiled bridge.
type Artifact struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	GoFile   string   `json:"go_file,omitempty"`
	Standard string   `json:"standard"`
	Includes []string `json:"includes"`
}

// Dir is the directory holding the archive.
func (a *Artifact) Dir() string {
	return filepath.Dir(a.Path)
}

// Outputs lists the files a compile leaves behind.
func (a *Artifact) Outputs() []string {
	if a.GoFile == "" {
		return []string{a.Path}
	}
	return []string{a.Path, a.GoFile}
}

// Compiler compiles bridges with one toolchain.
type Compiler struct {
	Runner    run.Runner
	FS        afero.Fs
	Toolchain toolchain.Toolchain
}

// Expect returns the artifact Compile would produce, without running
// anything.
func (c *Compiler) Expect(spec Spec, loc native.Location) *Artifact {
	return &Artifact{
		Name:     spec.Name,
		Path:     filepath.Join(spec.WorkDir, ArchiveName(spec.Name, c.Toolchain)),
		GoFile:   spec.GoFile(),
		Standard: Standard,
		Includes: spec.Includes(loc),
	}
}

// Signature identifies the fixed flags Compile passes to the generator,
// the compiler and the archiver.
func (c *Compiler) Signature() string {
	parts := []string{strings.Join(swigFlags, " "), Standard}
	if c.Toolchain.MSVC {
		parts = append(parts, strings.Join(msvcFlags, " "), "/nologo /OUT:")
	} else {
		parts = append(parts, strings.Join(unixFlags, " "), "crs")
	}
	return strings.Join(parts, "|")
}

// Compile builds the bridge described by spec against loc. The first
// failing translation unit cancels the ones not yet started.
func (c *Compiler) Compile(ctx context.Context, spec Spec, loc native.Location) (*Artifact, error) {
	if err := loc.Check(c.FS); err != nil {
		return nil, failure.New(failure.BridgeCompile, "precondition", err)
	}
	art := c.Expect(spec, loc)
	objDir := filepath.Join(spec.WorkDir, "obj")
	for _, dir := range []string{objDir, spec.GoPackage} {
		if err := c.FS.MkdirAll(dir, 0o755); err != nil {
			return nil, failure.New(failure.BridgeCompile, "prepare", err)
		}
	}

	log.Debugf("bridge: generating glue from %s", spec.Interface)
	if err := c.Runner.Run(ctx, c.generate(spec, art.Includes)); err != nil {
		return nil, failure.New(failure.BridgeCompile, "generate", err)
	}

	units := append([]string{spec.Glue()}, spec.Adapters...)
	objs := make([]string, len(units))
	p := pool.New().
		WithMaxGoroutines(max(spec.Jobs, 1)).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, src := range units {
		objs[i] = filepath.Join(objDir, objectName(src, c.Toolchain))
		cmd := c.compile(src, objs[i], art.Includes)
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debugf("bridge: compiling %s", src)
			if err := c.Runner.Run(ctx, cmd); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(src), err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, failure.New(failure.BridgeCompile, "compile", err)
	}

	// ar appends to an existing archive; start from scratch so removed
	// objects never linger.
	if err := c.FS.Remove(art.Path); err != nil && !os.IsNotExist(err) {
		return nil, failure.New(failure.BridgeCompile, "archive", err)
	}
	if err := c.Runner.Run(ctx, c.archive(art.Path, objs)); err != nil {
		return nil, failure.New(failure.BridgeCompile, "archive", err)
	}
	return art, nil
}

func (c *Compiler) generate(spec Spec, includes []string) run.Cmd {
	args := append([]string{}, swigFlags...)
	args = append(args, "-module", spec.Name)
	if spec.PackageName != "" {
		args = append(args, "-package", spec.PackageName)
	}
	for _, dir := range includes {
		args = append(args, "-I"+dir)
	}
	args = append(args, "-outdir", spec.GoPackage, "-o", spec.Glue(), spec.Interface)
	return run.Cmd{Name: "swig", Args: args}
}

func (c *Compiler) compile(src, obj string, includes []string) run.Cmd {
	if c.Toolchain.MSVC {
		args := append([]string{"/std:" + Standard}, msvcFlags...)
		for _, dir := range includes {
			args = append(args, "/I"+dir)
		}
		args = append(args, "/c", src, "/Fo"+obj)
		return toolchain.Command(c.Toolchain.CXX, args...)
	}
	args := append([]string{"-std=" + Standard}, unixFlags...)
	for _, dir := range includes {
		args = append(args, "-I"+dir)
	}
	args = append(args, "-c", src, "-o", obj)
	return toolchain.Command(c.Toolchain.CXX, args...)
}

func (c *Compiler) archive(out string, objs []string) run.Cmd {
	if c.Toolchain.MSVC {
		args := append([]string{"/nologo", "/OUT:" + out}, objs...)
		return toolchain.Command(c.Toolchain.AR, args...)
	}
	args := append([]string{"crs", out}, objs...)
	return toolchain.Command(c.Toolchain.AR, args...)
}

func objectName(src string, tc toolchain.Toolchain) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if tc.MSVC {
		return base + ".obj"
	}
	return base + ".o"
}
