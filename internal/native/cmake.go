package native

import (
	"context"
	"sort"
	"strconv"

	"github.com/goplus/trajbuild/internal/run"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake drives an out-of-tree CMake build with chainable configuration.
type CMake struct {
	runner     run.Runner
	sourceDir  string
	buildDir   string
	installDir string
	generator  string
	buildType  string
	parallel   int
	defines    map[string]defineValue
}

var _ BuildSystem = (*CMake)(nil)

// NewCMake returns a CMake building sourceDir in buildDir and installing
// into installDir.
func NewCMake(r run.Runner, sourceDir, buildDir, installDir string) *CMake {
	return &CMake{
		runner:     r,
		sourceDir:  sourceDir,
		buildDir:   buildDir,
		installDir: installDir,
		defines:    make(map[string]defineValue),
	}
}

// Generator sets the CMake generator (e.g. "Ninja", "Visual Studio 17 2022").
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// BuildType sets CMAKE_BUILD_TYPE and the --config of multi-config generators.
func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

// Parallel sets the job count of the build step.
func (c *CMake) Parallel(n int) *CMake {
	c.parallel = n
	return c
}

// Define adds a -D<key>:STRING=<value> definition.
func (c *CMake) Define(key, value string) *CMake {
	return c.DefineTyped(key, "STRING", value)
}

// DefineTyped adds a -D<key>:<type>=<value> definition. An empty type
// emits -D<key>=<value>.
func (c *CMake) DefineTyped(key, typeName, value string) *CMake {
	c.defines[key] = defineValue{value: value, typeName: typeName}
	return c
}

// DefineBool adds a -D<key>:BOOL=ON/OFF definition.
func (c *CMake) DefineBool(key string, value bool) *CMake {
	v := "OFF"
	if value {
		v = "ON"
	}
	return c.DefineTyped(key, "BOOL", v)
}

// Lookup returns the value and type of a definition as it will be passed
// to CMake.
func (c *CMake) Lookup(key string) (value, typeName string, ok bool) {
	switch key {
	case "CMAKE_BUILD_TYPE":
		if c.buildType != "" {
			return c.buildType, "STRING", true
		}
	case "CMAKE_INSTALL_PREFIX":
		if c.installDir != "" {
			return c.installDir, "PATH", true
		}
	}
	d, ok := c.defines[key]
	return d.value, d.typeName, ok
}

// GeneratorName returns the configured generator, empty for CMake's default.
func (c *CMake) GeneratorName() string {
	return c.generator
}

// ConfigureArgs returns the arguments of the configure step.
func (c *CMake) ConfigureArgs() []string {
	args := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	return append(args, c.definesArgs()...)
}

// BuildArgs returns the arguments of the build step.
func (c *CMake) BuildArgs() []string {
	args := []string{"--build", c.buildDir}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	if c.parallel > 0 {
		args = append(args, "--parallel", strconv.Itoa(c.parallel))
	}
	return args
}

// InstallArgs returns the arguments of the install step.
func (c *CMake) InstallArgs() []string {
	args := []string{"--install", c.buildDir}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	if c.installDir != "" {
		args = append(args, "--prefix", c.installDir)
	}
	return args
}

// Configure runs "cmake -S <source> -B <build>" with all definitions.
func (c *CMake) Configure(ctx context.Context) error {
	return c.run(ctx, c.ConfigureArgs())
}

// Build runs "cmake --build <build>".
func (c *CMake) Build(ctx context.Context) error {
	return c.run(ctx, c.BuildArgs())
}

// Install runs "cmake --install <build>".
func (c *CMake) Install(ctx context.Context) error {
	return c.run(ctx, c.InstallArgs())
}

// OutputDir returns installDir if set, otherwise buildDir.
func (c *CMake) OutputDir() string {
	if c.installDir != "" {
		return c.installDir
	}
	return c.buildDir
}

func (c *CMake) run(ctx context.Context, args []string) error {
	return c.runner.Run(ctx, run.Cmd{Name: "cmake", Args: args})
}

func (c *CMake) definesArgs() []string {
	defs := make(map[string]defineValue, len(c.defines)+2)
	for k, v := range c.defines {
		defs[k] = v
	}
	if c.installDir != "" {
		defs["CMAKE_INSTALL_PREFIX"] = defineValue{value: c.installDir, typeName: "PATH"}
	}
	if c.buildType != "" {
		defs["CMAKE_BUILD_TYPE"] = defineValue{value: c.buildType, typeName: "STRING"}
	}
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := defs[k]
		if d.typeName != "" {
			args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
			continue
		}
		args = append(args, "-D"+k+"="+d.value)
	}
	return args
}
