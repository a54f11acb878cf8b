package toolchain

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goplus/trajbuild/internal/run/runtest"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		goos        string
		wantDefault bool
		wantGen     string
		wantFlags   []string
		wantRuntime string
	}{
		{goos: "linux", wantDefault: true, wantRuntime: "stdc++"},
		{goos: "darwin", wantDefault: true, wantRuntime: "c++"},
		{goos: "freebsd", wantDefault: true, wantRuntime: "c++"},
		{goos: "windows", wantGen: VisualStudio, wantFlags: []string{EHsc}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			tc, err := Select(tt.goos)
			if err != nil {
				t.Fatalf("Select(%q): %v", tt.goos, err)
			}
			if tc.Default() != tt.wantDefault {
				t.Errorf("Default() = %v, want %v", tc.Default(), tt.wantDefault)
			}
			if tc.Generator != tt.wantGen {
				t.Errorf("Generator = %q, want %q", tc.Generator, tt.wantGen)
			}
			if !reflect.DeepEqual(tc.CXXFlags, tt.wantFlags) {
				t.Errorf("CXXFlags = %v, want %v", tc.CXXFlags, tt.wantFlags)
			}
			if tc.RuntimeLib != tt.wantRuntime {
				t.Errorf("RuntimeLib = %q, want %q", tc.RuntimeLib, tt.wantRuntime)
			}
		})
	}
}

func TestSelectUnsupported(t *testing.T) {
	for _, goos := range []string{"", "plan9", "js"} {
		if _, err := Select(goos); err == nil {
			t.Errorf("Select(%q) succeeded, want error", goos)
		}
	}
}

func TestWithEnv(t *testing.T) {
	tc, _ := Select("linux")
	env := map[string]string{"CXX": "clang++", "AR": "llvm-ar"}
	got := tc.WithEnv(func(k string) string { return env[k] })
	if got.CXX != "clang++" || got.AR != "llvm-ar" {
		t.Errorf("WithEnv = %q/%q, want clang++/llvm-ar", got.CXX, got.AR)
	}
	if tc.CXX != "c++" {
		t.Errorf("WithEnv modified the receiver")
	}
}

func TestWithEnvWrapper(t *testing.T) {
	tc, _ := Select("linux")
	env := map[string]string{"CXX": "ccache c++", "AR": "  "}
	got := tc.WithEnv(func(k string) string { return env[k] })
	if got.AR != "ar" {
		t.Errorf("blank AR overrode the default: %q", got.AR)
	}
	if tools := got.Tools(); !reflect.DeepEqual(tools, []string{"cmake", "swig", "ccache", "ar"}) {
		t.Errorf("Tools() = %v", tools)
	}
	cmd := Command(got.CXX, "-c", "a.cpp")
	if cmd.Name != "ccache" || !reflect.DeepEqual(cmd.Args, []string{"c++", "-c", "a.cpp"}) {
		t.Errorf("Command = %s", cmd)
	}
	if cmd := Command("ar", "crs"); cmd.Name != "ar" || !reflect.DeepEqual(cmd.Args, []string{"crs"}) {
		t.Errorf("Command = %s", cmd)
	}
}

func TestParseCMakeVersion(t *testing.T) {
	tests := []struct {
		out     string
		want    string
		wantErr bool
	}{
		{out: "cmake version 3.28.1\n\nCMake suite maintained and supported by Kitware (kitware.com/cmake).", want: "v3.28.1"},
		{out: "cmake version 3.30.0-rc1", want: "v3.30.0-rc1"},
		{out: "cmake version 3.22", want: "v3.22"},
		{out: "cmake3 version", wantErr: true},
		{out: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCMakeVersion(tt.out)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCMakeVersion(%q) err = %v, wantErr %v", tt.out, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCMakeVersion(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

func found(string) (string, error) { return "/usr/bin/tool", nil }

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		version string
		wantErr string
	}{
		{"recent", "linux", "cmake version 3.28.1", ""},
		{"old for linux", "linux", "cmake version 3.10.2", "older than required"},
		{"old for windows", "windows", "cmake version 3.20.0", "older than required"},
		{"windows ok", "windows", "cmake version 3.21.0", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, _ := Select(tt.goos)
			r := &runtest.Recorder{Outputs: map[string]string{"cmake --version": tt.version}}
			err := Check(context.Background(), r, tc, found)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Check: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Check err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckMissingTools(t *testing.T) {
	tc, _ := Select("linux")
	r := &runtest.Recorder{}
	look := func(name string) (string, error) {
		if name == "swig" || name == "ar" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	err := Check(context.Background(), r, tc, look)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, tool := range []string{"swig", "ar"} {
		if !strings.Contains(err.Error(), tool) {
			t.Errorf("error %q does not mention %s", err, tool)
		}
	}
	if len(r.Cmds()) != 0 {
		t.Errorf("ran %v before reporting missing tools", r.Lines())
	}
}
