// Package toolchain selects the native toolchain for a host platform.
package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goplus/trajbuild/internal/run"
)

// Toolchain describes how native code is built on one platform.
type Toolchain struct {
	GOOS string
	// Generator is the CMake generator; empty uses CMake's default.
	Generator string
	// CXXFlags are appended to CMAKE_CXX_FLAGS of the external build.
	CXXFlags []string
	// MSVC selects cl.exe/lib.exe argument syntax for the bridge.
	MSVC bool
	CXX  string // C++ compiler driver, possibly with leading arguments
	AR   string // static archiver, possibly with leading arguments
	// RuntimeLib is the C++ standard library the final link must name
	// explicitly, empty when the linker adds it on its own.
	RuntimeLib string
	// MinCMake is the lowest CMake version (semver) that supports Generator.
	MinCMake string
}

const (
	// VisualStudio is the generator used where CMake cannot discover a
	// native toolchain on its own.
	VisualStudio = "Visual Studio 17 2022"
	// EHsc enables standard C++ exception handling under MSVC.
	EHsc = "/EHsc"
)

var errNoPlatform = errors.New("no target platform given")

// Select returns the toolchain for goos. It has no side effects.
func Select(goos string) (Toolchain, error) {
	switch goos {
	case "":
		return Toolchain{}, errNoPlatform
	case "windows":
		return Toolchain{
			GOOS:      goos,
			Generator: VisualStudio,
			CXXFlags:  []string{EHsc},
			MSVC:      true,
			CXX:       "cl",
			AR:        "lib",
			MinCMake:  "v3.21.0",
		}, nil
	case "linux":
		return unix(goos, "stdc++"), nil
	case "darwin", "freebsd":
		return unix(goos, "c++"), nil
	}
	return Toolchain{}, fmt.Errorf("unsupported platform %q", goos)
}

func unix(goos, runtime string) Toolchain {
	return Toolchain{
		GOOS:       goos,
		CXX:        "c++",
		AR:         "ar",
		RuntimeLib: runtime,
		MinCMake:   "v3.16.0",
	}
}

// Default reports whether the platform's default CMake toolchain is used
// unmodified.
func (t Toolchain) Default() bool {
	return t.Generator == "" && len(t.CXXFlags) == 0
}

// WithEnv returns a copy using the CXX and AR overrides found through
// getenv, the way native build drivers conventionally honor them.
func (t Toolchain) WithEnv(getenv func(string) string) Toolchain {
	if getenv == nil {
		return t
	}
	if cxx := getenv("CXX"); len(strings.Fields(cxx)) > 0 {
		t.CXX = cxx
	}
	if ar := getenv("AR"); len(strings.Fields(ar)) > 0 {
		t.AR = ar
	}
	return t
}

// Tools lists the executables the pipeline runs on this platform.
func (t Toolchain) Tools() []string {
	return []string{"cmake", "swig", executable(t.CXX), executable(t.AR)}
}

// Command returns the invocation of a tool setting such as CXX. Settings
// may carry leading arguments ("ccache c++"); they precede args.
func Command(tool string, args ...string) run.Cmd {
	f := strings.Fields(tool)
	if len(f) == 0 {
		return run.Cmd{Name: tool, Args: args}
	}
	return run.Cmd{Name: f[0], Args: append(f[1:len(f):len(f)], args...)}
}

func executable(tool string) string {
	if f := strings.Fields(tool); len(f) > 0 {
		return f[0]
	}
	return tool
}

// String identifies the toolchain in change-tracking digests.
func (t Toolchain) String() string {
	return strings.Join([]string{
		t.GOOS,
		t.Generator,
		strings.Join(t.CXXFlags, " "),
		t.CXX,
		t.AR,
	}, "|")
}
