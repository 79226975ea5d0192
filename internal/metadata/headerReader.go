// The package used for reading Objective-C headers into a declaration catalog.
package metadata

import (
	"context"
	"fmt"
	"path/filepath"

	"objcbind/internal/clang"
)

// Compiler arguments every translation unit is parsed with
var baseArguments = []string{
	"-ObjC",
	"-fobjc-arc",
	"-fno-objc-exceptions",
	"-fobjc-abi-version=2",
}

type HeaderReader struct {
	index     clang.Index
	sdk       SDK
	options   Options
	extraArgs []string
}

// Generates a new header reader parsing against the given SDK
func NewReader(index clang.Index, sdk SDK, options Options, extraArgs []string) *HeaderReader {
	if options.DeploymentTarget == nil {
		options.DeploymentTarget = sdk.DeploymentTarget
	}
	return &HeaderReader{
		index:     index,
		sdk:       sdk,
		options:   options,
		extraArgs: extraArgs,
	}
}

func (reader *HeaderReader) SDK() SDK {
	return reader.sdk
}

// Gets the directory holding the public headers of a framework
func (reader *HeaderReader) FrameworkHeaders(name string) string {
	return filepath.Join(reader.sdk.FrameworksDir(), name+".framework", "Headers")
}

// Gets the umbrella header of a framework
func (reader *HeaderReader) UmbrellaHeader(name string) string {
	return filepath.Join(reader.FrameworkHeaders(name), name+".h")
}

// Builds the compiler arguments for parsing mainFile. Each include is force-included before it.
func (reader *HeaderReader) Arguments(mainFile string, includes []string) []string {
	args := append([]string(nil), baseArguments...)
	args = append(args,
		"-F"+reader.sdk.FrameworksDir(),
		"-I"+filepath.Join(reader.sdk.Root, "usr", "include"),
	)
	args = append(args, reader.extraArgs...)
	for _, include := range includes {
		args = append(args, "-include", include)
	}
	return append(args, mainFile)
}

// Reads the umbrella header of a framework
func (reader *HeaderReader) ReadFramework(ctx context.Context, name string, includes []string) (*Catalog, error) {
	mainFile := reader.UmbrellaHeader(name)
	catalog, err := reader.read(ctx, mainFile, reader.Arguments(mainFile, includes))
	if err != nil {
		return nil, fmt.Errorf("framework %s: %w", name, err)
	}
	return catalog, nil
}

// Gets the path of a loose header given relative to the SDK include directory
func (reader *HeaderReader) HeaderPath(header string) string {
	if filepath.IsAbs(header) {
		return header
	}
	return filepath.Join(reader.sdk.Root, "usr", "include", header)
}

// Reads a loose header, e.g. "objc/NSObject.h"
func (reader *HeaderReader) ReadFile(ctx context.Context, header string) (*Catalog, error) {
	mainFile := reader.HeaderPath(header)
	catalog, err := reader.read(ctx, mainFile, reader.Arguments(mainFile, nil))
	if err != nil {
		return nil, fmt.Errorf("header %s: %w", header, err)
	}
	return catalog, nil
}

func (reader *HeaderReader) read(ctx context.Context, mainFile string, args []string) (*Catalog, error) {
	tu, err := reader.index.Parse(ctx, mainFile, args)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", mainFile, err)
	}

	builder := NewBuilder(reader.options)
	if err := builder.Build(tu.Root()); err != nil {
		return nil, fmt.Errorf("could not read declarations: %w", err)
	}
	return builder.Finalize()
}
