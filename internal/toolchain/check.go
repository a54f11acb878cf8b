package toolchain

import (
	"context"
	"fmt"
	"regexp"

	"github.com/goplus/trajbuild/internal/run"
	"github.com/qiniu/x/errors"
	"golang.org/x/mod/semver"
)

var cmakeVersion = regexp.MustCompile(`cmake version (\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?)`)

// ParseCMakeVersion extracts the version from "cmake --version" output
// as a semver string ("v3.28.1").
func ParseCMakeVersion(out string) (string, error) {
	m := cmakeVersion.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized cmake --version output %q", out)
	}
	v := "v" + m[1]
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid cmake version %q", m[1])
	}
	return v, nil
}

// Check verifies that every tool in t.Tools is on PATH and that cmake is
// recent enough for the selected generator. All missing tools are
// reported together.
func Check(ctx context.Context, r run.Runner, t Toolchain, lookPath func(string) (string, error)) error {
	var errs errors.List
	for _, tool := range t.Tools() {
		if _, err := lookPath(tool); err != nil {
			errs.Add(fmt.Errorf("%s not found in PATH", tool))
		}
	}
	if err := errs.ToError(); err != nil {
		return err
	}

	out, err := r.Output(ctx, run.Cmd{Name: "cmake", Args: []string{"--version"}})
	if err != nil {
		return fmt.Errorf("failed to query cmake version: %w", err)
	}
	v, err := ParseCMakeVersion(out)
	if err != nil {
		return err
	}
	if t.MinCMake != "" && semver.Compare(v, t.MinCMake) < 0 {
		return fmt.Errorf("cmake %s is older than required %s", v, t.MinCMake)
	}
	return nil
}
