// Package native builds the external C++ library with CMake.
//
// Every build is a Release build with the project's test targets disabled
// and static libraries forced, whatever the caller asked for: the link
// stage only knows how to plan static archives.
package native

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/run"
	"github.com/goplus/trajbuild/internal/toolchain"
	"github.com/qiniu/x/log"
	"github.com/spf13/afero"
)

// Switches forced on every build.
const (
	Profile     = "Release"
	SharedLibs  = "BUILD_SHARED_LIBS"
	TestingFlag = "BUILD_TESTING"
	cxxFlags    = "CMAKE_CXX_FLAGS"
)

// ProjectFile is the descriptor the source root must contain.
const ProjectFile = "CMakeLists.txt"

// Setup returns the CMake invocation for building sourceDir into
// outDir. Caller defines are applied first and pass through unchecked;
// the forced switches and the toolchain selection are applied after them
// so nothing the caller supplies can override them.
func Setup(r run.Runner, sourceDir, outDir string, defines []config.Define, tc toolchain.Toolchain) *CMake {
	loc := Location{Root: filepath.Join(outDir, "native")}
	c := NewCMake(r, sourceDir, filepath.Join(outDir, "cmake-build"), loc.Root)

	var userCXXFlags string
	for _, d := range defines {
		if d.Key == cxxFlags {
			userCXXFlags = d.Value
		}
		c.DefineTyped(d.Key, d.Type, d.Value)
	}

	c.BuildType(Profile)
	c.DefineBool(TestingFlag, false)
	c.DefineBool(SharedLibs, false)

	if tc.Generator != "" {
		c.Generator(tc.Generator)
	}
	if len(tc.CXXFlags) > 0 {
		flags := append(strings.Fields(userCXXFlags), tc.CXXFlags...)
		c.Define(cxxFlags, strings.Join(flags, " "))
	}
	return c
}

// Location is the install tree of the external build.
type Location struct {
	Root string
}

func (l Location) Include() string { return filepath.Join(l.Root, "include") }
func (l Location) Lib() string     { return filepath.Join(l.Root, "lib") }
func (l Location) Bin() string     { return filepath.Join(l.Root, "bin") }

var (
	ErrNoLocation    = errors.New("build output location does not exist")
	ErrEmptyLocation = errors.New("build output location holds no headers")
)

// Check verifies the location exists and holds installed headers.
func (l Location) Check(fs afero.Fs) error {
	if l.Root == "" {
		return ErrNoLocation
	}
	if ok, err := afero.DirExists(fs, l.Root); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNoLocation, l.Root)
	}
	entries, err := afero.ReadDir(fs, l.Include())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrEmptyLocation, l.Include())
		}
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyLocation, l.Include())
	}
	return nil
}

// CheckSource verifies dir holds a CMake project.
func CheckSource(fs afero.Fs, dir string) error {
	ok, err := afero.Exists(fs, filepath.Join(dir, ProjectFile))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s not found in %s", ProjectFile, dir)
	}
	return nil
}

// Invoke configures, builds and installs b. Any step that fails aborts
// the remaining ones; the tool's own diagnostics have already been
// streamed to the operator.
func Invoke(ctx context.Context, b BuildSystem) (Location, error) {
	steps := []struct {
		op string
		fn func(context.Context) error
	}{
		{"configure", b.Configure},
		{"build", b.Build},
		{"install", b.Install},
	}
	for _, s := range steps {
		log.Debugf("native: %s", s.op)
		if err := s.fn(ctx); err != nil {
			return Location{}, failure.New(failure.NativeBuild, s.op, err)
		}
	}
	return Location{Root: b.OutputDir()}, nil
}
