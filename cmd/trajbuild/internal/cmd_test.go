package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/pipeline"
	"github.com/spf13/cobra"
)

func TestInitWritesLoadableDefaults(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := runInit(cmd, []string{dir}); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if !strings.Contains(out.String(), "trajbuild.yaml") {
		t.Errorf("output = %q", out.String())
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.File != filepath.Join(dir, "trajbuild.yaml") {
		t.Errorf("File = %q", cfg.File)
	}
	d := config.Default()
	if cfg.Bridge.Name != d.Bridge.Name || cfg.Bridge.Interface != d.Bridge.Interface {
		t.Errorf("Bridge = %+v, want %+v", cfg.Bridge, d.Bridge)
	}
	if !reflect.DeepEqual(cfg.Bridge.Adapters, d.Bridge.Adapters) || !reflect.DeepEqual(cfg.Link.Libraries, d.Link.Libraries) {
		t.Errorf("loaded %v %v, want %v %v", cfg.Bridge.Adapters, cfg.Link.Libraries, d.Bridge.Adapters, d.Link.Libraries)
	}

	if err := runInit(cmd, []string{dir}); err == nil {
		t.Error("second init overwrote the definition")
	}
}

func TestLoadConfigError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trajbuild.yaml"), []byte("bridge:\n  name: \"bad name\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := loadConfig([]string{dir})
	if !failure.Is(err, failure.Config) {
		t.Errorf("err = %v, want config failure", err)
	}
	if failure.ExitStatus(err) != 1 {
		t.Errorf("ExitStatus = %d, want 1", failure.ExitStatus(err))
	}
}

func TestPrintPreview(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = "/proj"
	opts := pipeline.Options{GOOS: "linux"}
	p, err := pipeline.Plan(cfg, opts)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := printPreview(&out, p); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"link-search=/proj/build/trajbuild/native/lib\n",
		"link-lib=trajoptgo\n",
		"rerun-if-changed=/proj/src/trajoptlibgo.cpp\n",
		"# bridge /proj/build/trajbuild/bridge/libtrajoptgo.a\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("preview lacks %q:\n%s", want, got)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "plan", "watch", "init"} {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("no -v flag")
	}
}

func TestInitTracksDriver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "magefile.go"), []byte("//go:build mage\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	if err := runInit(cmd, []string{dir}); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != "magefile.go" {
		t.Errorf("Driver = %q, want magefile.go", cfg.Driver)
	}
}
