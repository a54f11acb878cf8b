// Package runtest provides a run.Runner that records commands instead of
// executing them.
package runtest

import (
	"context"
	"strings"
	"sync"

	"github.com/goplus/trajbuild/internal/run"
	"github.com/magefile/mage/mg"
)

// Recorder is a run.Runner for tests. It is safe for concurrent use.
type Recorder struct {
	// Hook, if set, is called for every command. A non-nil error is
	// returned from Run/Output as is.
	Hook func(cmd run.Cmd) error
	// Outputs maps a command line (Cmd.String) to what Output returns.
	Outputs map[string]string

	mu   sync.Mutex
	cmds []run.Cmd
}

var _ run.Runner = (*Recorder)(nil)

func (r *Recorder) Run(ctx context.Context, cmd run.Cmd) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	hook := r.Hook
	r.mu.Unlock()
	if hook != nil {
		return hook(cmd)
	}
	return nil
}

func (r *Recorder) Output(ctx context.Context, cmd run.Cmd) (string, error) {
	if err := r.Run(ctx, cmd); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Outputs[cmd.String()], nil
}

// Cmds returns the recorded commands in order.
func (r *Recorder) Cmds() []run.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]run.Cmd(nil), r.cmds...)
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	cmds := r.Cmds()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}

// Ran reports whether a command line starting with prefix was recorded.
func (r *Recorder) Ran(prefix string) bool {
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

// Reset forgets the recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}

// Exit returns an error carrying exit status code, shaped like the errors
// run.Shell returns for failed subprocesses.
func Exit(code int, cmd run.Cmd) error {
	return mg.Fatalf(code, "running %q failed with exit code %d", cmd.String(), code)
}

// Arg returns the value following flag in args, or "".
func Arg(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
