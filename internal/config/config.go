// Package config provides configuration handling for objcbind.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	SDK          string `yaml:"sdk" json:"sdk"`
	DeveloperDir string `yaml:"developerDir" json:"developerDir"`

	Frameworks []string `yaml:"frameworks" json:"frameworks"`
	// Headers are loose system headers bound without a framework, e.g. "objc/NSObject.h".
	Headers []string `yaml:"headers" json:"headers"`

	Snapshots     string              `yaml:"snapshots" json:"snapshots"`
	ClangArgs     []string            `yaml:"clangArgs" json:"clangArgs"`
	ExtraIncludes map[string][]string `yaml:"extraIncludes" json:"extraIncludes"`

	DeploymentTarget string            `yaml:"deploymentTarget" json:"deploymentTarget"`
	Fallbacks        map[string]string `yaml:"fallbacks" json:"fallbacks"`

	Runtime  Runtime `yaml:"runtime" json:"runtime"`
	Output   Output  `yaml:"output" json:"output"`
	Parallel int     `yaml:"parallel" json:"parallel"`
	Log      Log     `yaml:"log" json:"log"`
}

type Runtime struct {
	ImportPath string `yaml:"importPath" json:"importPath"`
}

type Output struct {
	Dir      string `yaml:"dir" json:"dir"`
	Package  string `yaml:"package" json:"package"`
	Clean    bool   `yaml:"clean" json:"clean"`
	Manifest bool   `yaml:"manifest" json:"manifest"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		DeveloperDir:  DefaultDeveloperDir,
		Frameworks:    slices.Clone(DefaultFrameworks),
		Headers:       slices.Clone(DefaultHeaders),
		ExtraIncludes: DefaultExtraIncludes(),
		Fallbacks:     DefaultFallbacks(),
		Runtime:       Runtime{ImportPath: DefaultRuntimeImportPath},
		Output:        Output{Dir: "./output/", Package: "bindings", Manifest: true},
		Parallel:      1,
		Log:           Log{Level: "info", Format: "auto"},
	}
}

// switches records which booleans a file sets, so an explicit false is told
// apart from an absent key.
type switches struct {
	Output struct {
		Clean    *bool `yaml:"clean" json:"clean"`
		Manifest *bool `yaml:"manifest" json:"manifest"`
	} `yaml:"output" json:"output"`
}

// LoadFile loads configuration from a file (YAML or JSON based on extension).
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	format, unmarshal := "YAML", yaml.Unmarshal
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format, unmarshal = "JSON", json.Unmarshal
	}

	var loaded Config
	var set switches
	if err := unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s config: %w", format, err)
	}
	if err := unmarshal(data, &set); err != nil {
		return fmt.Errorf("parsing %s config: %w", format, err)
	}

	c.merge(&loaded, &set)
	return nil
}

// merge merges the loaded config into the current config. Set values win.
func (c *Config) merge(loaded *Config, set *switches) {
	setString(&c.SDK, loaded.SDK)
	setString(&c.DeveloperDir, loaded.DeveloperDir)
	setString(&c.Snapshots, loaded.Snapshots)
	setString(&c.DeploymentTarget, loaded.DeploymentTarget)
	setString(&c.Runtime.ImportPath, loaded.Runtime.ImportPath)
	setString(&c.Output.Dir, loaded.Output.Dir)
	setString(&c.Output.Package, loaded.Output.Package)
	setString(&c.Log.Level, loaded.Log.Level)
	setString(&c.Log.Format, loaded.Log.Format)

	if loaded.Frameworks != nil {
		c.Frameworks = loaded.Frameworks
	}
	if loaded.Headers != nil {
		c.Headers = loaded.Headers
	}
	if loaded.ClangArgs != nil {
		c.ClangArgs = loaded.ClangArgs
	}
	for framework, includes := range loaded.ExtraIncludes {
		c.ExtraIncludes[framework] = includes
	}
	for name, framework := range loaded.Fallbacks {
		c.Fallbacks[name] = framework
	}
	if set.Output.Clean != nil {
		c.Output.Clean = *set.Output.Clean
	}
	if set.Output.Manifest != nil {
		c.Output.Manifest = *set.Output.Manifest
	}
	if loaded.Parallel > 0 {
		c.Parallel = loaded.Parallel
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Validate reports settings no run can start with.
func (c *Config) Validate() error {
	if len(c.Frameworks) == 0 && len(c.Headers) == 0 {
		return fmt.Errorf("nothing to generate: no frameworks or headers configured")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is empty")
	}
	if c.Output.Package == "" {
		return fmt.Errorf("output.package is empty")
	}
	if c.Runtime.ImportPath == "" {
		return fmt.Errorf("runtime.importPath is empty")
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	return nil
}
