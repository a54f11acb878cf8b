// Package pipeline drives one build: native library, bridge, link plan.
//
// The stages run strictly in sequence and the first failure stops the
// run. Only the bridge stage is skipped when nothing it depends on has
// changed; the native build always runs and leaves incrementality to
// CMake.
package pipeline

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goplus/trajbuild/internal/bridge"
	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/linkplan"
	"github.com/goplus/trajbuild/internal/native"
	"github.com/goplus/trajbuild/internal/run"
	"github.com/goplus/trajbuild/internal/toolchain"
	"github.com/goplus/trajbuild/internal/tracking"
	"github.com/qiniu/x/log"
	"github.com/spf13/afero"
)

// Options holds the environment a run executes in.
type Options struct {
	Runner run.Runner
	FS     afero.Fs
	GOOS   string
	Getenv func(string) string
	// LookPath finds tools for the preflight check; nil skips it.
	LookPath func(string) (string, error)
	// Stdout receives the link and rerun directives.
	Stdout io.Writer
	Now    func() time.Time
}

// DefaultOptions returns options for running on the host.
func DefaultOptions() Options {
	return Options{
		Runner:   run.NewShell(),
		FS:       afero.NewOsFs(),
		GOOS:     runtime.GOOS,
		Getenv:   os.Getenv,
		LookPath: exec.LookPath,
		Stdout:   os.Stdout,
		Now:      time.Now,
	}
}

// Result describes a successful run.
type Result struct {
	RunID    string
	Location native.Location
	Artifact *bridge.Artifact
	Plan     *linkplan.Plan
	Inputs   tracking.Set
	CgoFile  string
	// Rebuilt is false when the cached bridge was reused.
	Rebuilt bool
}

// Preview is what a run would do, computed without running anything.
type Preview struct {
	Toolchain toolchain.Toolchain
	Configure []string
	Inputs    tracking.Set
	Artifact  *bridge.Artifact
	Plan      *linkplan.Plan
	CgoFile   string
	Settings  string
}

type setup struct {
	*Preview
	cmake    *native.CMake
	loc      native.Location
	spec     bridge.Spec
	compiler *bridge.Compiler
}

func prepare(cfg *config.Config, opts Options) (*setup, error) {
	tc, err := toolchain.Select(opts.GOOS)
	if err != nil {
		return nil, failure.New(failure.Config, "platform", err)
	}
	tc = tc.WithEnv(opts.Getenv)
	defines, err := cfg.Defines()
	if err != nil {
		return nil, failure.New(failure.Config, "defines", err)
	}

	outDir := cfg.Path(cfg.OutDir)
	cm := native.Setup(opts.Runner, cfg.Path(cfg.Native.Source), outDir, defines, tc).Parallel(cfg.Native.Parallel)
	loc := native.Location{Root: cm.OutputDir()}
	spec := bridge.Spec{
		Name:        cfg.Bridge.Name,
		Interface:   cfg.Path(cfg.Bridge.Interface),
		Adapters:    cfg.Paths(cfg.Bridge.Adapters),
		Include:     cfg.Paths(cfg.Bridge.Include),
		GoPackage:   cfg.Path(cfg.Bridge.Package),
		PackageName: cfg.GoPackage(),
		WorkDir:     filepath.Join(outDir, "bridge"),
		Jobs:        cfg.Bridge.Jobs,
	}
	compiler := &bridge.Compiler{Runner: opts.Runner, FS: opts.FS, Toolchain: tc}
	art := compiler.Expect(spec, loc)

	p := &Preview{
		Toolchain: tc,
		Configure: cm.ConfigureArgs(),
		Inputs:    tracking.Inputs(cfg),
		Artifact:  art,
		Plan:      linkplan.Resolve(art, loc, cfg.Link.Libraries, tc),
		CgoFile:   filepath.Join(spec.GoPackage, cfg.Link.CgoFile),
	}
	p.Settings = tracking.Digest(
		bridge.Standard,
		spec.Name,
		spec.GoPackage,
		spec.PackageName,
		strings.Join(art.Includes, "\n"),
		tc.String(),
		compiler.Signature(),
		strings.Join(p.Configure, "\n"),
	)
	return &setup{Preview: p, cmake: cm, loc: loc, spec: spec, compiler: compiler}, nil
}

// Plan computes what Run would do for cfg on opts.GOOS. It neither runs
// subprocesses nor reads the filesystem.
func Plan(cfg *config.Config, opts Options) (*Preview, error) {
	s, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}
	return s.Preview, nil
}

// Run executes the pipeline for cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	id := uuid.NewString()
	fs := opts.FS
	s, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}
	log.Infof("run %s: %s toolchain, output in %s", id, s.Toolchain.GOOS, cfg.Path(cfg.OutDir))

	if err := native.CheckSource(fs, cfg.Path(cfg.Native.Source)); err != nil {
		return nil, failure.New(failure.Config, "source", err)
	}
	if opts.LookPath != nil {
		if err := toolchain.Check(ctx, opts.Runner, s.Toolchain, opts.LookPath); err != nil {
			return nil, failure.New(failure.Config, "preflight", err)
		}
	}
	fp, err := tracking.Snapshot(fs, s.Inputs, s.Settings)
	if err != nil {
		return nil, failure.New(failure.Tracking, "snapshot", err)
	}

	log.Infof("run %s: building native library", id)
	loc, err := native.Invoke(ctx, s.cmake)
	if err != nil {
		return nil, err
	}
	// The bridge compiles against the installed headers, so they are
	// tracked like any other input.
	if fp.Native, err = tracking.TreeDigest(fs, loc.Include()); err != nil {
		return nil, failure.New(failure.Tracking, "native headers", err)
	}

	outDir := cfg.Path(cfg.OutDir)
	stamp, err := tracking.LoadStamp(fs, outDir)
	if err != nil {
		log.Warnf("run %s: ignoring unreadable stamp: %v", id, err)
		stamp = nil
	}
	res := &Result{RunID: id, Location: loc, Inputs: s.Inputs, CgoFile: s.CgoFile}
	if stamp.Fresh(fs, fp) {
		log.Infof("run %s: bridge up to date", id)
		res.Artifact = stamp.Artifact
	} else {
		if stamp != nil {
			log.Infof("run %s: rebuilding bridge: %s", id, strings.Join(fp.Diff(stamp.Fingerprint), ", "))
		} else {
			log.Infof("run %s: compiling bridge", id)
		}
		if res.Artifact, err = s.compiler.Compile(ctx, s.spec, loc); err != nil {
			return nil, err
		}
		res.Rebuilt = true
	}

	res.Plan = linkplan.Resolve(res.Artifact, loc, cfg.Link.Libraries, s.Toolchain)
	if err := res.Plan.Emit(opts.Stdout); err != nil {
		return nil, err
	}
	if err := s.Inputs.Emit(opts.Stdout); err != nil {
		return nil, err
	}
	wrote, err := res.Plan.WriteCgo(fs, s.CgoFile, linkplan.Cgo{
		Package:  cfg.GoPackage(),
		GOOS:     s.Toolchain.GOOS,
		Standard: res.Artifact.Standard,
		Includes: res.Artifact.Includes,
	})
	if err != nil {
		return nil, failure.New(failure.BridgeCompile, "link file", err)
	}
	if wrote {
		log.Infof("run %s: wrote %s", id, s.CgoFile)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	err = tracking.SaveStamp(fs, outDir, &tracking.Stamp{
		RunID:       id,
		BuildTime:   now(),
		Fingerprint: fp,
		Artifact:    res.Artifact,
		Plan:        res.Plan,
	})
	if err != nil {
		return nil, failure.New(failure.Tracking, "stamp", err)
	}
	log.Infof("run %s: done", id)
	return res, nil
}
