// Package driver runs the generator over an SDK: loose headers first, then the
// requested frameworks and every framework they turn out to depend on.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"objcbind/internal/generation"
	"objcbind/internal/metadata"
)

var ErrNoFramework = errors.New("framework not found")

// Frameworks are linked from their install location, not from the SDK.
const systemFrameworks = "/System/Library/Frameworks"

type Options struct {
	Frameworks []string
	Headers    []string
	// ExtraIncludes are force-included before the umbrella header of a framework.
	ExtraIncludes map[string][]string
	Fallbacks     map[string]string
	// Parallel bounds how many frameworks of one wave run at once.
	Parallel int
	Logger   *slog.Logger
}

// Result is the outcome of one generator invocation.
type Result struct {
	// Name is the framework, or the header for a file mode run.
	Name     string
	FileMode bool
	Units    []string
	Files    []string
	// Dependencies is the transitive set of frameworks the output references.
	Dependencies []string
	// Dropped counts declarations and members left out of the output.
	Dropped int

	direct    []string
	published []publication
}

// publication is what one unit adds to the shared index once its wave is done.
type publication struct {
	origin generation.Origin
	names  []metadata.ReferencedName
}

type Driver struct {
	reader    *metadata.HeaderReader
	generator *generation.Generator
	index     *generation.SharedIndex
	opts      Options
	log       *slog.Logger
}

func New(reader *metadata.HeaderReader, generator *generation.Generator, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Driver{
		reader:    reader,
		generator: generator,
		index:     generation.NewSharedIndex(),
		opts:      opts,
		log:       logger.With("component", "driver"),
	}
}

// Run generates every configured header and framework plus the frameworks they
// depend on. A failing framework does not stop the others; all failures are
// joined into the returned error.
func (d *Driver) Run(ctx context.Context) ([]*Result, error) {
	var results []*Result
	var errs []error

	// Loose headers declare the root classes frameworks build on, so they go first.
	done, failed := d.wave(ctx, dedupe(d.opts.Headers), d.generateHeader)
	results = append(results, done...)
	errs = append(errs, failed...)

	queued := make(map[string]bool)
	pending := dedupe(d.opts.Frameworks)
	for _, name := range pending {
		queued[name] = true
	}
	for wave := 1; len(pending) > 0; wave++ {
		d.log.Info("starting wave", "wave", wave, "frameworks", pending)
		done, failed := d.wave(ctx, pending, d.generateFramework)
		results = append(results, done...)
		errs = append(errs, failed...)

		var next []string
		for _, r := range done {
			for _, dep := range r.direct {
				if !queued[dep] {
					queued[dep] = true
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		pending = next
	}

	closeDependencies(results)
	return results, errors.Join(errs...)
}

// wave runs one generator invocation per name, at most Parallel at a time.
func (d *Driver) wave(ctx context.Context, names []string, run func(context.Context, string) (*Result, error)) ([]*Result, []error) {
	results := make([]*Result, len(names))
	errs := make([]error, len(names))

	g := new(errgroup.Group)
	g.SetLimit(d.opts.Parallel)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
				return nil
			}
			results[i], errs[i] = run(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	// Publishing after the whole wave keeps resolution independent of scheduling.
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, p := range r.published {
			d.index.Publish(p.origin, p.names)
		}
	}

	var done []*Result
	var failed []error
	for i := range names {
		if errs[i] != nil {
			d.log.Error("generation failed", "target", names[i], "error", errs[i])
			failed = append(failed, errs[i])
			continue
		}
		done = append(done, results[i])
	}
	return done, failed
}

func (d *Driver) generateFramework(ctx context.Context, name string) (*Result, error) {
	frameworksDir := d.reader.SDK().FrameworksDir()
	if _, err := os.Stat(d.reader.FrameworkHeaders(name)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoFramework)
	}

	catalog, err := d.reader.ReadFramework(ctx, name, d.opts.ExtraIncludes[name])
	if err != nil {
		return nil, err
	}
	units, err := frameworkUnits(frameworksDir, []string{name})
	if err != nil {
		return nil, fmt.Errorf("framework %s: %w", name, err)
	}
	return d.emit(name, false, catalog, units)
}

func (d *Driver) generateHeader(ctx context.Context, header string) (*Result, error) {
	catalog, err := d.reader.ReadFile(ctx, header)
	if err != nil {
		return nil, err
	}
	unit := generation.Unit{Name: HeaderUnitName(header), BasePath: d.reader.HeaderPath(header)}
	return d.emit(header, true, catalog, []generation.Unit{unit})
}

// emit binds and writes every unit of one catalog.
func (d *Driver) emit(name string, fileMode bool, catalog *metadata.Catalog, units []generation.Unit) (*Result, error) {
	result := &Result{Name: name, FileMode: fileMode}
	deps := make(map[string]bool)

	for _, unit := range units {
		b := generation.Bind(unit, catalog, d.index, generation.Options{Fallbacks: d.opts.Fallbacks, Logger: d.opts.Logger})
		file, err := d.generator.Generate(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result.published = append(result.published, publication{
			origin: generation.Origin{Framework: unit.Framework, Unit: unit.Name},
			names:  b.Resolution.Names(),
		})
		result.Units = append(result.Units, unit.Name)
		result.Files = append(result.Files, file)
		for _, dep := range b.Resolution.Dependencies {
			deps[dep] = true
		}
		for _, e := range b.Trace {
			if e.Stage == generation.StageDropped {
				result.Dropped++
			}
		}
	}

	delete(deps, name)
	for dep := range deps {
		result.direct = append(result.direct, dep)
	}
	sort.Strings(result.direct)

	d.log.Info("generated",
		"target", name, "units", len(result.Units), "dropped", result.Dropped,
		"diagnostics", len(catalog.Diagnostics()), "dependencies", result.direct)
	return result, nil
}

// frameworkUnits lists the unit of the innermost framework of chain followed by
// the units of its nested frameworks, depth first.
func frameworkUnits(dir string, chain []string) ([]generation.Unit, error) {
	name := chain[len(chain)-1]
	frameworkDir := filepath.Join(dir, name+".framework")
	unit := generation.Unit{
		Name:      generation.UnitName(chain),
		Framework: chain[0],
		BasePath:  filepath.Join(frameworkDir, "Headers"),
		Library:   libraryPath(chain),
	}

	nestedDir := filepath.Join(frameworkDir, "Frameworks")
	entries, err := os.ReadDir(nestedDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var nested []generation.Unit
	for _, entry := range entries {
		sub, ok := strings.CutSuffix(entry.Name(), ".framework")
		if !ok || !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(nestedDir, entry.Name(), "Headers")); err != nil {
			continue
		}
		subUnits, err := frameworkUnits(nestedDir, append(append([]string(nil), chain...), sub))
		if err != nil {
			return nil, err
		}
		unit.SubUnits = append(unit.SubUnits, subUnits[0].Name)
		nested = append(nested, subUnits...)
	}
	return append([]generation.Unit{unit}, nested...), nil
}

// libraryPath is the install path of the image of a framework chain.
func libraryPath(chain []string) string {
	p := systemFrameworks
	for i, name := range chain {
		if i > 0 {
			p = path.Join(p, "Frameworks")
		}
		p = path.Join(p, name+".framework")
	}
	return path.Join(p, chain[len(chain)-1])
}

// HeaderUnitName names the unit of a loose header, e.g. "objc/NSObject.h" is "objc_NSObject".
func HeaderUnitName(header string) string {
	header = strings.TrimSuffix(filepath.ToSlash(header), filepath.Ext(header))
	header = strings.TrimPrefix(header, "/")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, header)
}

// closeDependencies expands every result's direct dependencies to their
// transitive closure over the frameworks generated in this run.
func closeDependencies(results []*Result) {
	direct := make(map[string][]string, len(results))
	for _, r := range results {
		direct[r.Name] = r.direct
	}
	for _, r := range results {
		seen := make(map[string]bool)
		stack := append([]string(nil), r.direct...)
		for len(stack) > 0 {
			dep := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[dep] || dep == r.Name {
				continue
			}
			seen[dep] = true
			stack = append(stack, direct[dep]...)
		}
		r.Dependencies = make([]string, 0, len(seen))
		for dep := range seen {
			r.Dependencies = append(r.Dependencies, dep)
		}
		sort.Strings(r.Dependencies)
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
