package native

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/run"
	"github.com/goplus/trajbuild/internal/run/runtest"
	"github.com/goplus/trajbuild/internal/toolchain"
	"github.com/spf13/afero"
)

func mustSelect(t *testing.T, goos string) toolchain.Toolchain {
	t.Helper()
	tc, err := toolchain.Select(goos)
	if err != nil {
		t.Fatal(err)
	}
	return tc
}

func TestSetupForcesStaticOutput(t *testing.T) {
	overrides := [][]config.Define{
		nil,
		{{Key: SharedLibs, Value: "ON"}},
		{{Key: SharedLibs, Type: "BOOL", Value: "ON"}},
		{{Key: SharedLibs, Value: "1"}, {Key: "OTHER", Value: "x"}},
	}
	for _, goos := range []string{"linux", "darwin", "windows"} {
		for _, defs := range overrides {
			c := Setup(&runtest.Recorder{}, "/src", "/out", defs, mustSelect(t, goos))
			v, typ, ok := c.Lookup(SharedLibs)
			if !ok || v != "OFF" || typ != "BOOL" {
				t.Errorf("%s %v: %s = %q:%q (ok=%v), want OFF:BOOL", goos, defs, SharedLibs, v, typ, ok)
			}
			if !slices.Contains(c.ConfigureArgs(), "-DBUILD_SHARED_LIBS:BOOL=OFF") {
				t.Errorf("%s %v: configure args %v lack forced static output", goos, defs, c.ConfigureArgs())
			}
		}
	}
}

func TestSetupDisablesTesting(t *testing.T) {
	defs := []config.Define{{Key: TestingFlag, Value: "ON"}}
	c := Setup(&runtest.Recorder{}, "/src", "/out", defs, mustSelect(t, "linux"))
	args := c.ConfigureArgs()
	if !slices.Contains(args, "-DBUILD_TESTING:BOOL=OFF") {
		t.Errorf("configure args %v lack -DBUILD_TESTING:BOOL=OFF", args)
	}
	if slices.Contains(args, "-DBUILD_TESTING:STRING=ON") {
		t.Errorf("caller override of BUILD_TESTING survived: %v", args)
	}
}

func TestSetupReleaseProfile(t *testing.T) {
	defs := []config.Define{{Key: "CMAKE_BUILD_TYPE", Value: "Debug"}}
	c := Setup(&runtest.Recorder{}, "/src", "/out", defs, mustSelect(t, "linux"))
	if v, _, _ := c.Lookup("CMAKE_BUILD_TYPE"); v != Profile {
		t.Errorf("CMAKE_BUILD_TYPE = %q, want %q", v, Profile)
	}
	if got := c.BuildArgs(); !reflect.DeepEqual(got, []string{"--build", "/out/cmake-build", "--config", "Release"}) {
		t.Errorf("BuildArgs() = %v", got)
	}
}

func TestSetupPlatformBranch(t *testing.T) {
	t.Run("windows", func(t *testing.T) {
		defs := []config.Define{{Key: "CMAKE_CXX_FLAGS", Value: "/W4"}}
		c := Setup(&runtest.Recorder{}, "/src", "/out", defs, mustSelect(t, "windows"))
		args := c.ConfigureArgs()
		i := slices.Index(args, "-G")
		if i < 0 || args[i+1] != toolchain.VisualStudio {
			t.Errorf("configure args %v lack -G %q", args, toolchain.VisualStudio)
		}
		if !slices.Contains(args, "-DCMAKE_CXX_FLAGS:STRING=/W4 /EHsc") {
			t.Errorf("configure args %v lack /EHsc in CMAKE_CXX_FLAGS", args)
		}
	})
	for _, goos := range []string{"linux", "darwin"} {
		t.Run(goos, func(t *testing.T) {
			c := Setup(&runtest.Recorder{}, "/src", "/out", nil, mustSelect(t, goos))
			if c.GeneratorName() != "" {
				t.Errorf("generator = %q, want default", c.GeneratorName())
			}
			for _, a := range c.ConfigureArgs() {
				if a == "-G" || strings.Contains(a, "/EHsc") || strings.HasPrefix(a, "-DCMAKE_CXX_FLAGS") {
					t.Errorf("unexpected toolchain argument %q", a)
				}
			}
		})
	}
}

func TestConfigureArgsSortedAndPassThrough(t *testing.T) {
	defs := []config.Define{
		{Key: "ZZZ_UNKNOWN", Value: "kept"},
		{Key: "AAA", Type: "", Value: "1"},
	}
	c := Setup(&runtest.Recorder{}, "/src", "/out", defs, mustSelect(t, "linux"))
	want := []string{
		"-S", "/src", "-B", "/out/cmake-build",
		"-DAAA=1",
		"-DBUILD_SHARED_LIBS:BOOL=OFF",
		"-DBUILD_TESTING:BOOL=OFF",
		"-DCMAKE_BUILD_TYPE:STRING=Release",
		"-DCMAKE_INSTALL_PREFIX:PATH=/out/native",
		"-DZZZ_UNKNOWN=kept",
	}
	if got := c.ConfigureArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("ConfigureArgs() =\n%v\nwant\n%v", got, want)
	}
}

func TestInvoke(t *testing.T) {
	r := &runtest.Recorder{}
	c := Setup(r, "/src", "/out", nil, mustSelect(t, "linux"))

	loc, err := Invoke(context.Background(), c)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if loc.Root != "/out/native" {
		t.Errorf("Root = %q, want /out/native", loc.Root)
	}
	lines := r.Lines()
	if len(lines) != 3 {
		t.Fatalf("ran %d commands, want 3: %v", len(lines), lines)
	}
	for i, prefix := range []string{"cmake -S /src", "cmake --build /out/cmake-build", "cmake --install /out/cmake-build"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("command %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if !strings.HasSuffix(lines[2], "--prefix /out/native") {
		t.Errorf("install = %q, want --prefix /out/native", lines[2])
	}
}

func TestInvokeAbortsOnFailure(t *testing.T) {
	r := &runtest.Recorder{Hook: func(c run.Cmd) error {
		if c.Args[0] == "--build" {
			return runtest.Exit(2, c)
		}
		return nil
	}}
	c := Setup(r, "/src", "/out", nil, mustSelect(t, "linux"))

	_, err := Invoke(context.Background(), c)
	if !failure.Is(err, failure.NativeBuild) {
		t.Fatalf("Invoke err = %v, want native build failure", err)
	}
	if got := failure.ExitStatus(err); got != 2 {
		t.Errorf("ExitStatus = %d, want 2", got)
	}
	if r.Ran("cmake --install") {
		t.Errorf("install ran after failed build: %v", r.Lines())
	}
}

func TestLocationCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	loc := Location{Root: "/out/native"}

	if err := loc.Check(fs); !errors.Is(err, ErrNoLocation) {
		t.Errorf("missing root: err = %v, want ErrNoLocation", err)
	}
	if err := fs.MkdirAll(loc.Include(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := loc.Check(fs); !errors.Is(err, ErrEmptyLocation) {
		t.Errorf("empty include: err = %v, want ErrEmptyLocation", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(loc.Include(), "trajopt", "TrajoptLib.h"), []byte("#pragma once\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loc.Check(fs); err != nil {
		t.Errorf("populated location: %v", err)
	}
	if (Location{}).Check(fs) == nil {
		t.Error("zero Location passed Check")
	}
}

func TestCheckSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := CheckSource(fs, "/src"); err == nil {
		t.Error("expected error without CMakeLists.txt")
	}
	if err := afero.WriteFile(fs, "/src/CMakeLists.txt", []byte("project(x)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckSource(fs, "/src"); err != nil {
		t.Errorf("CheckSource: %v", err)
	}
}
