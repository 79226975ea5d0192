// Command objcbind generates Go bindings for the Objective-C frameworks of a macOS SDK.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"

	"objcbind/internal"
	"objcbind/internal/clang/snapshot"
	"objcbind/internal/config"
	"objcbind/internal/driver"
	"objcbind/internal/generation"
	"objcbind/internal/logging"
	"objcbind/internal/metadata"
)

var errNotConfirmed = errors.New("explicit agreement was not given")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath = flag.String("config", "", "The path to a YAML or JSON configuration file.")
	var sdkPath = flag.String("sdk", "", "The root of the macOS SDK. Default: newest SDK below the developer directory")
	var developerDir = flag.String("developerDir", config.DefaultDeveloperDir, "The developer directory searched for SDKs.")
	var frameworks = flag.String("frameworks", "", "Comma separated frameworks to generate. Default: Foundation")
	var headers = flag.String("headers", "", "Comma separated loose headers, relative to usr/include, to generate first.")
	var snapshots = flag.String("snapshots", "", "The directory holding AST snapshots of the headers.")
	var deploymentTarget = flag.String("deploymentTarget", "", "The macOS version availability is judged against. Default: SDK default")
	var outputPath = flag.String("outputPath", "./output/", "The path where all generated files will be placed.")
	var packageName = flag.String("packageName", "bindings", "The name of the package with generated code.")
	var runtimePath = flag.String("runtime", config.DefaultRuntimeImportPath, "The import path of the runtime support package.")
	var forceClean = flag.Bool("forceCleanOutput", false, "If given forces cleaning output directory before generation.")
	var parallel = flag.Int("parallel", 1, "How many frameworks are generated at once.")
	var logLevel = flag.String("logLevel", "info", "One of debug, info, warn or error.")
	var logFormat = flag.String("logFormat", logging.FormatAuto, "One of text, json or auto.")
	var check = flag.Bool("check", false, "Regenerates and fails if the output differs from the manifest.")
	flag.Usage = func() {
		fmt.Println("App that generates Go bindings for Objective-C frameworks.")
		flag.PrintDefaults()
	}
	// The command line flag set exits on bad flags, so an error here is a wiring mistake.
	internal.PanicOnError(flag.CommandLine.Parse(os.Args[1:]))

	cfg := config.New()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return err
		}
	}

	// Flags given explicitly win over the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sdk":
			cfg.SDK = *sdkPath
		case "developerDir":
			cfg.DeveloperDir = *developerDir
		case "frameworks":
			cfg.Frameworks = splitList(*frameworks)
		case "headers":
			cfg.Headers = splitList(*headers)
		case "snapshots":
			cfg.Snapshots = *snapshots
		case "deploymentTarget":
			cfg.DeploymentTarget = *deploymentTarget
		case "outputPath":
			cfg.Output.Dir = *outputPath
		case "packageName":
			cfg.Output.Package = *packageName
		case "runtime":
			cfg.Runtime.ImportPath = *runtimePath
		case "forceCleanOutput":
			cfg.Output.Clean = *forceClean
		case "parallel":
			cfg.Parallel = *parallel
		case "logLevel":
			cfg.Log.Level = *logLevel
		case "logFormat":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level, logConfig.Format = cfg.Log.Level, cfg.Log.Format
	logger, err := logging.Init(logConfig)
	if err != nil {
		return err
	}

	if cfg.SDK == "" {
		if cfg.SDK, err = metadata.LocateSDK(cfg.DeveloperDir); err != nil {
			return err
		}
	}
	sdk, err := metadata.OpenSDK(cfg.SDK, cfg.DeploymentTarget)
	if err != nil {
		return err
	}
	logger.Info("using SDK", "root", sdk.Root, "version", versionString(sdk.Version), "deploymentTarget", versionString(sdk.DeploymentTarget))

	if cfg.Snapshots == "" {
		return errors.New("no snapshot directory configured")
	}
	index, err := snapshot.NewIndex(cfg.Snapshots)
	if err != nil {
		return err
	}
	reader := metadata.NewReader(index, sdk, metadata.Options{Logger: logger}, cfg.ClangArgs)

	manifestPath := filepath.Join(cfg.Output.Dir, driver.ManifestName)
	var previous *driver.Manifest
	if *check {
		if previous, err = driver.LoadManifest(manifestPath); err != nil {
			return err
		}
	} else {
		err = os.Mkdir(cfg.Output.Dir, os.ModePerm)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		if err := ClearDirectoryIfNotEmpty(cfg.Output.Dir, cfg.Output.Clean); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	generator := generation.NewGenerator(cfg.Output.Package, cfg.Output.Dir, cfg.Runtime.ImportPath)
	results, runErr := driver.New(reader, &generator, driver.Options{
		Frameworks:    cfg.Frameworks,
		Headers:       cfg.Headers,
		ExtraIncludes: cfg.ExtraIncludes,
		Fallbacks:     cfg.Fallbacks,
		Parallel:      cfg.Parallel,
		Logger:        logger,
	}).Run(ctx)
	for _, r := range results {
		logger.Info("framework done", "name", r.Name, "files", len(r.Files), "dependencies", r.Dependencies)
	}
	if runErr != nil {
		return runErr
	}

	if !cfg.Output.Manifest && previous == nil {
		return nil
	}
	manifest, err := driver.NewManifest(cfg.Output.Dir, results)
	if err != nil {
		return err
	}
	if previous != nil {
		if err := manifest.Compare(previous); err != nil {
			return err
		}
		logger.Info("output matches manifest", "path", manifestPath)
		return nil
	}
	if err := manifest.Save(manifestPath); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	logger.Debug("manifest written", "path", manifestPath, "frameworks", len(manifest.Frameworks))
	return nil
}

func versionString(v *version.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Removes the generated files below path, asking first unless silent.
func ClearDirectoryIfNotEmpty(path string, silent bool) error {
	directory, err := os.Open(path)
	if err != nil {
		return err
	}
	defer directory.Close()

	_, err = directory.Readdirnames(1)
	if err == io.EOF {
		return nil
	}

	if err != nil {
		return err
	}

	var response string
	if !silent {
		fmt.Print("Output directory is not empty. Continuation will result in removing all output file. Proceed? [Y/n]")
		fmt.Scan(&response)
		if strings.ToUpper(response) != "Y" {
			return errNotConfirmed
		}
	}

	slog.Info("cleaning output directory", "path", path)
	return os.RemoveAll(path)
}
