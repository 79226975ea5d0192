package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	c := New()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if !c.Output.Manifest || c.Output.Clean {
		t.Errorf("output = %+v", c.Output)
	}
	if c.Fallbacks["NSString"] != "Foundation" {
		t.Errorf("fallbacks = %v", c.Fallbacks)
	}

	// Defaults are copies, so configs never share state.
	c.Frameworks[0] = "AppKit"
	c.Fallbacks["NSArray"] = "Foundation"
	fresh := New()
	if fresh.Frameworks[0] != "Foundation" || len(fresh.Fallbacks) != 1 {
		t.Errorf("defaults mutated through a config: %v, %v", fresh.Frameworks, fresh.Fallbacks)
	}
}

func TestLoadFileMergesYAML(t *testing.T) {
	path := writeConfig(t, "objcbind.yaml", `
sdk: /sdk/MacOSX14.sdk
frameworks: [AppKit, QuartzCore]
extraIncludes:
  Metal: [Metal/MTLDevice.h]
fallbacks:
  NSURL: Foundation
deploymentTarget: "11.0"
runtime:
  importPath: example.com/objc
output:
  dir: ./gen
  manifest: false
parallel: 4
log:
  level: debug
`)
	c := New()
	if err := c.LoadFile(path); err != nil {
		t.Fatal(err)
	}

	if c.SDK != "/sdk/MacOSX14.sdk" || c.DeveloperDir != DefaultDeveloperDir {
		t.Errorf("sdk = %q, developerDir = %q", c.SDK, c.DeveloperDir)
	}
	if !reflect.DeepEqual(c.Frameworks, []string{"AppKit", "QuartzCore"}) {
		t.Errorf("frameworks = %v", c.Frameworks)
	}
	if !reflect.DeepEqual(c.Headers, DefaultHeaders) {
		t.Errorf("headers = %v, want defaults kept", c.Headers)
	}
	if len(c.ExtraIncludes["IOSurface"]) != 1 || len(c.ExtraIncludes["Metal"]) != 1 {
		t.Errorf("extra includes = %v", c.ExtraIncludes)
	}
	if c.Fallbacks["NSString"] != "Foundation" || c.Fallbacks["NSURL"] != "Foundation" {
		t.Errorf("fallbacks = %v", c.Fallbacks)
	}
	if c.Output.Dir != "./gen" || c.Output.Package != "bindings" {
		t.Errorf("output = %+v", c.Output)
	}
	if c.Output.Manifest {
		t.Error("explicit manifest: false ignored")
	}
	if c.Parallel != 4 || c.Log.Level != "debug" || c.Log.Format != "auto" {
		t.Errorf("parallel = %d, log = %+v", c.Parallel, c.Log)
	}
	if c.Runtime.ImportPath != "example.com/objc" || c.DeploymentTarget != "11.0" {
		t.Errorf("runtime = %+v, target = %q", c.Runtime, c.DeploymentTarget)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeConfig(t, "objcbind.json", `{"headers": [], "output": {"clean": true}, "snapshots": "./ast"}`)
	c := New()
	if err := c.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if len(c.Headers) != 0 {
		t.Errorf("headers = %v, want the explicit empty list", c.Headers)
	}
	if !c.Output.Clean || !c.Output.Manifest {
		t.Errorf("output = %+v", c.Output)
	}
	if c.Snapshots != "./ast" {
		t.Errorf("snapshots = %q", c.Snapshots)
	}
}

func TestLoadFileErrors(t *testing.T) {
	c := New()
	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("missing file err = %v", err)
	}
	bad := writeConfig(t, "bad.yaml", "frameworks: {")
	if err := c.LoadFile(bad); err == nil || !strings.Contains(err.Error(), "parsing YAML config") {
		t.Errorf("malformed file err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"nothing to do", func(c *Config) { c.Frameworks, c.Headers = nil, nil }, "nothing to generate"},
		{"no output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"no package", func(c *Config) { c.Output.Package = "" }, "output.package"},
		{"no runtime", func(c *Config) { c.Runtime.ImportPath = "" }, "runtime.importPath"},
		{"no workers", func(c *Config) { c.Parallel = 0 }, "parallel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.mutate(c)
			if err := c.Validate(); err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
