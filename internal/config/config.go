// Package config loads the pipeline definition (trajbuild.yaml).
//
// The definition names the external project, the bridge sources and the
// libraries to link. Switches the pipeline depends on for correctness
// (release profile, static output, disabled tests, the C++ standard) are
// not part of the definition and cannot be changed here.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Name is the base name of the pipeline definition file. Any extension
// viper understands is accepted (yaml, yml, toml, json).
const Name = "trajbuild"

// Config is the pipeline definition.
type Config struct {
	// OutDir is where every stage writes, relative to Dir.
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
	// Driver is an optional host-build driver file (e.g. magefile.go)
	// whose edits must invalidate the cached bridge.
	Driver string       `mapstructure:"driver" yaml:"driver,omitempty"`
	Native NativeConfig `mapstructure:"native" yaml:"native"`
	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge"`
	Link   LinkConfig   `mapstructure:"link" yaml:"link"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`

	// Dir is the absolute project directory.
	Dir string `mapstructure:"-" yaml:"-"`
	// File is the definition file that was read, empty if none exists.
	File string `mapstructure:"-" yaml:"-"`
}

// NativeConfig describes the external CMake project.
type NativeConfig struct {
	// Source is the directory holding CMakeLists.txt.
	Source string `mapstructure:"source" yaml:"source"`
	// Defines are extra cache entries in KEY=VALUE or KEY:TYPE=VALUE form.
	// They are passed through to CMake unvalidated.
	Defines []string `mapstructure:"defines" yaml:"defines,omitempty"`
	// Parallel is the job count for "cmake --build"; 0 leaves it to CMake.
	Parallel int `mapstructure:"parallel" yaml:"parallel,omitempty"`
}

// BridgeConfig lists the bridge sources explicitly; directories are never
// scanned.
type BridgeConfig struct {
	// Name names the bridge archive (libNAME.a / NAME.lib).
	Name string `mapstructure:"name" yaml:"name"`
	// Interface is the SWIG interface description.
	Interface string   `mapstructure:"interface" yaml:"interface"`
	Adapters  []string `mapstructure:"adapters" yaml:"adapters"`
	Headers   []string `mapstructure:"headers" yaml:"headers,omitempty"`
	// Include lists extra include directories.
	Include []string `mapstructure:"include" yaml:"include,omitempty"`
	// Package is the Go package directory receiving the generated Go glue
	// and the cgo link file.
	Package string `mapstructure:"package" yaml:"package"`
	// Jobs bounds concurrent translation units.
	Jobs int `mapstructure:"jobs" yaml:"jobs"`
}

// LinkConfig orders the native libraries linked after the bridge glue.
type LinkConfig struct {
	// Libraries must be listed dependents first: domain library, then
	// its numerics dependency, then utility libraries.
	Libraries []string `mapstructure:"libraries" yaml:"libraries"`
	// CgoFile is the generated link file, relative to Bridge.Package.
	CgoFile string `mapstructure:"cgo_file" yaml:"cgo_file"`
	// GoPackage overrides the package clause of CgoFile. Defaults to the
	// base name of Bridge.Package.
	GoPackage string `mapstructure:"go_package" yaml:"go_package,omitempty"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the definition used for keys the file leaves out.
func Default() *Config {
	return &Config{
		OutDir: filepath.Join("build", "trajbuild"),
		Native: NativeConfig{
			Source: ".",
		},
		Bridge: BridgeConfig{
			Name:      "trajoptgo",
			Interface: "src/trajopt.i",
			Adapters:  []string{"src/trajoptlibgo.cpp"},
			Headers:   []string{"src/trajoptlibgo.hpp"},
			Package:   "trajopt",
			Jobs:      1,
		},
		Link: LinkConfig{
			Libraries: []string{"TrajoptLib", "Sleipnir", "fmt"},
			CgoFile:   "zz_cgo_link.go",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("native.source", d.Native.Source)
	v.SetDefault("native.defines", d.Native.Defines)
	v.SetDefault("native.parallel", d.Native.Parallel)
	v.SetDefault("bridge.name", d.Bridge.Name)
	v.SetDefault("bridge.interface", d.Bridge.Interface)
	v.SetDefault("bridge.adapters", d.Bridge.Adapters)
	v.SetDefault("bridge.headers", d.Bridge.Headers)
	v.SetDefault("bridge.include", d.Bridge.Include)
	v.SetDefault("bridge.package", d.Bridge.Package)
	v.SetDefault("bridge.jobs", d.Bridge.Jobs)
	v.SetDefault("link.libraries", d.Link.Libraries)
	v.SetDefault("link.cgo_file", d.Link.CgoFile)
	v.SetDefault("link.go_package", d.Link.GoPackage)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads the definition from dir. A missing file is not an error:
// the defaults apply and File is left empty. TRAJBUILD_* environment
// variables override file values (TRAJBUILD_LOG_LEVEL for log.level).
func Load(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(Name)
	v.AddConfigPath(abs)
	v.SetEnvPrefix("TRAJBUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", Name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", Name, err)
	}
	cfg.Dir = abs
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var bridgeName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the definition for values no stage can work with.
func (c *Config) Validate() error {
	if c.Native.Source == "" {
		return errors.New("native.source is empty")
	}
	if _, err := c.Defines(); err != nil {
		return err
	}
	if !bridgeName.MatchString(c.Bridge.Name) {
		return fmt.Errorf("bridge.name %q is not a valid library name", c.Bridge.Name)
	}
	if c.Bridge.Interface == "" {
		return errors.New("bridge.interface is empty")
	}
	if len(c.Bridge.Adapters) == 0 {
		return errors.New("bridge.adapters is empty")
	}
	glue := c.Bridge.Name + "_wrap"
	seen := make(map[string]string, len(c.Bridge.Adapters))
	for _, a := range c.Bridge.Adapters {
		base := strings.TrimSuffix(filepath.Base(a), filepath.Ext(a))
		if base == glue {
			return fmt.Errorf("bridge.adapters %q compiles to the same object as the generated glue", a)
		}
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("bridge.adapters %q and %q compile to the same object", prev, a)
		}
		seen[base] = a
	}
	if c.Bridge.Package == "" {
		return errors.New("bridge.package is empty")
	}
	if c.Bridge.Jobs < 1 {
		c.Bridge.Jobs = 1
	}
	if len(c.Link.Libraries) == 0 {
		return errors.New("link.libraries is empty")
	}
	for _, lib := range c.Link.Libraries {
		if lib == "" || lib == c.Bridge.Name {
			return fmt.Errorf("link.libraries contains invalid entry %q", lib)
		}
	}
	if c.Link.CgoFile == "" || filepath.Ext(c.Link.CgoFile) != ".go" {
		return fmt.Errorf("link.cgo_file %q must name a .go file", c.Link.CgoFile)
	}
	return nil
}

// Path resolves p against the project directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Paths resolves every element of ps against the project directory.
func (c *Config) Paths(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, c.Path(p))
	}
	return out
}

// GoPackage returns the package clause for the generated cgo file.
func (c *Config) GoPackage() string {
	if c.Link.GoPackage != "" {
		return c.Link.GoPackage
	}
	return filepath.Base(c.Path(c.Bridge.Package))
}

// Define is a parsed native.defines entry.
type Define struct {
	Key   string
	Type  string // empty when the entry had no :TYPE
	Value string
}

// Defines parses native.defines, keeping their order.
func (c *Config) Defines() ([]Define, error) {
	out := make([]Define, 0, len(c.Native.Defines))
	for _, s := range c.Native.Defines {
		d, err := ParseDefine(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseDefine parses KEY=VALUE or KEY:TYPE=VALUE.
func ParseDefine(s string) (Define, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return Define{}, fmt.Errorf("native.defines entry %q is not KEY=VALUE", s)
	}
	d := Define{Key: k, Value: v}
	if key, typ, ok := strings.Cut(k, ":"); ok {
		if key == "" || typ == "" {
			return Define{}, fmt.Errorf("native.defines entry %q has an empty key or type", s)
		}
		d.Key, d.Type = key, typ
	}
	return d, nil
}
