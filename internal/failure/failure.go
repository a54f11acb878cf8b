// Package failure classifies the ways a pipeline run can stop.
//
// Every stage fails closed: a stage returns a *Error and the driver stops
// at the first one. The kind tells the operator which stage gave up, the
// wrapped error carries the underlying diagnostics and, for subprocess
// failures, the exit status to propagate.
package failure

import (
	"errors"
	"fmt"

	"github.com/magefile/mage/sh"
)

// Kind identifies the stage category of a failure.
type Kind int

const (
	// Config is an unsupported platform, a missing tool or an invalid
	// pipeline definition. Raised before any build subprocess runs.
	Config Kind = iota + 1
	// NativeBuild is a non-zero exit from the external project's
	// configure, build or install step.
	NativeBuild
	// BridgeCompile covers a missing build output location, glue
	// generation errors and compiler or archiver diagnostics.
	BridgeCompile
	// Tracking is a tracked input that cannot be read.
	Tracking
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "configuration error"
	case NativeBuild:
		return "native build failure"
	case BridgeCompile:
		return "bridge compile failure"
	case Tracking:
		return "change tracking error"
	}
	return fmt.Sprintf("failure(%d)", int(k))
}

// Error is a stage failure.
type Error struct {
	Kind Kind
	Op   string // step that failed, e.g. "configure", "archive"
	Err  error
}

// New returns a failure of kind k for step op.
func New(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitStatus returns the exit status of the subprocess that caused the
// failure, or 1 when the failure did not come from a subprocess.
func (e *Error) ExitStatus() int {
	var st interface{ ExitStatus() int }
	if errors.As(e.Err, &st) {
		return st.ExitStatus()
	}
	if code := sh.ExitStatus(e.Err); code != 0 {
		return code
	}
	return 1
}

// Is reports whether err is a failure of kind k.
func Is(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// ExitStatus returns the status a process should exit with after err.
// It is 0 for a nil error.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.ExitStatus()
	}
	var st interface{ ExitStatus() int }
	if errors.As(err, &st) {
		return st.ExitStatus()
	}
	return sh.ExitStatus(err)
}
