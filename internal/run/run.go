// Package run executes the external tools the pipeline drives.
package run

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/sh"
	"github.com/qiniu/x/log"
)

// Cmd is a single subprocess invocation.
type Cmd struct {
	Name string
	Args []string
	Env  map[string]string // merged over the process environment
}

func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner runs commands synchronously. A non-zero exit is returned as an
// error whose exit status can be read with sh.ExitStatus.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) error
	Output(ctx context.Context, cmd Cmd) (string, error)
}

// Shell runs commands through mage's sh package, streaming their output
// verbatim to Stdout and Stderr.
type Shell struct {
	Stdout io.Writer
	Stderr io.Writer
}

var _ Runner = (*Shell)(nil)

// NewShell returns a Shell wired to the process stdout and stderr.
func NewShell() *Shell {
	return &Shell{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (s *Shell) Run(ctx context.Context, cmd Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debugf("exec: %s", cmd)
	_, err := sh.Exec(cmd.Env, s.stdout(), s.stderr(), cmd.Name, cmd.Args...)
	return err
}

// Output runs cmd and returns its stdout without the trailing newline.
func (s *Shell) Output(ctx context.Context, cmd Cmd) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log.Debugf("exec: %s", cmd)
	var buf bytes.Buffer
	_, err := sh.Exec(cmd.Env, &buf, s.stderr(), cmd.Name, cmd.Args...)
	return strings.TrimSuffix(buf.String(), "\n"), err
}

func (s *Shell) stdout() io.Writer {
	if s.Stdout == nil {
		return io.Discard
	}
	return s.Stdout
}

func (s *Shell) stderr() io.Writer {
	if s.Stderr == nil {
		return io.Discard
	}
	return s.Stderr
}
