// Package bundle drives esbuild for a nodeworker build: it owns the worker
// units emitted while loading modules, builds them in follow-up passes, and
// rewrites placeholder tokens once every output name is known.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"

	"github.com/jsh-team/nodeworker/internal/nodeworker"
	"github.com/jsh-team/nodeworker/internal/sourcemap"
	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
	"github.com/jsh-team/nodeworker/internal/utils/hash"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

var (
	ErrBuildFailed   = errors.New("build failed")
	ErrUnknownHandle = errors.New("unknown worker handle")
	ErrNotFinalized  = errors.New("worker unit has no output yet")
)

const (
	handleLength     = 12
	unitHashLength   = 8
	ManifestFileName = "nodeworker-manifest.json"
)

// Options configures a Bundler.
type Options struct {
	Entries    []string
	WorkingDir string
	Outdir     string
	WorkerDir  string
	Target     string
	External   []string
	Sourcemap  bool
	Minify     bool
	Splitting  bool
	Manifest   bool
}

// OutputFile is one finalized build output.
type OutputFile struct {
	Path     string // relative to the output directory, slash-separated
	Contents []byte
}

// WorkerUnit describes one built worker entry.
type WorkerUnit struct {
	Source    string
	File      string
	Handles   []nodeworker.Handle
	Importers []string
}

// Result is the outcome of Run.
type Result struct {
	BuildID   string
	Outdir    string
	Outputs   []OutputFile
	Workers   []WorkerUnit
	Metafile  *Metafile
	Passes    int
	Rewritten int
}

type unit struct {
	source     string
	outputBase string
	fileName   string
	handles    []nodeworker.Handle
	importers  []string
}

// Bundler is the emission side of the build: it hands out handles for worker
// units and, after the build, resolves them to file names. It is safe for
// concurrent use by esbuild callbacks.
type Bundler struct {
	opts Options

	mu       sync.Mutex
	calls    map[string]int
	units    map[nodeworker.Handle]*unit
	bySource map[string]*unit
	ordered  []*unit
	pending  []*unit
}

// New validates opts and returns a Bundler.
func New(opts Options) (*Bundler, error) {
	if len(opts.Entries) == 0 {
		return nil, fmt.Errorf("no entry points configured")
	}
	if opts.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.WorkingDir = wd
	}
	wd, err := filepath.Abs(opts.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	opts.WorkingDir = wd

	if opts.Outdir == "" {
		opts.Outdir = "dist"
	}
	if !filepath.IsAbs(opts.Outdir) {
		opts.Outdir = filepath.Join(wd, opts.Outdir)
	}
	if opts.WorkerDir == "" {
		opts.WorkerDir = "workers"
	}
	opts.WorkerDir = strings.Trim(filesystem.ToSlash(path.Clean(filesystem.ToSlash(opts.WorkerDir))), "/")
	if opts.WorkerDir == "" || opts.WorkerDir == "." || strings.HasPrefix(opts.WorkerDir, "..") {
		return nil, fmt.Errorf("worker dir %q must stay inside the output directory", opts.WorkerDir)
	}
	if _, err := parseTarget(opts.Target); err != nil {
		return nil, err
	}

	return &Bundler{
		opts:     opts,
		calls:    make(map[string]int),
		units:    make(map[nodeworker.Handle]*unit),
		bySource: make(map[string]*unit),
	}, nil
}

// Outdir returns the absolute output directory.
func (b *Bundler) Outdir() string { return b.opts.Outdir }

// EmitChunk registers sourcePath, as imported from importer, as a worker
// entry. Every call returns a fresh handle; calls naming the same resolved
// module share one output unit. importer is either absolute or relative to
// the working directory.
//
// Handles and unit names hash working-directory-relative paths and a
// per-request call count, never the order in which esbuild's concurrent
// callbacks arrive, so identical builds name everything identically.
func (b *Bundler) EmitChunk(sourcePath, importer string) (nodeworker.Handle, error) {
	if sourcePath == "" {
		return "", fmt.Errorf("empty worker path")
	}
	source := b.resolveSource(sourcePath, importer)
	key := relativeTo(b.opts.WorkingDir, source)
	importerKey := relativeTo(b.opts.WorkingDir, importer)

	b.mu.Lock()
	defer b.mu.Unlock()

	callKey := key + "\x00" + importerKey
	var h nodeworker.Handle
	for {
		b.calls[callKey]++
		h = nodeworker.Handle(hash.ShortHash(handleLength, key, importerKey, strconv.Itoa(b.calls[callKey])))
		if _, taken := b.units[h]; !taken {
			break
		}
	}

	u, ok := b.bySource[source]
	if !ok {
		u = &unit{
			source:     source,
			outputBase: path.Join(b.opts.WorkerDir, filesystem.EntryBaseName(source)+"-"+hash.ShortHash(unitHashLength, key)),
		}
		b.bySource[source] = u
		b.ordered = append(b.ordered, u)
		b.pending = append(b.pending, u)
		logger.Debug("Emitted worker unit %s for %s", u.outputBase, source)
	}
	u.handles = append(u.handles, h)
	u.importers = append(u.importers, importer)
	b.units[h] = u
	return h, nil
}

// FileName returns the output name of the unit behind h.
func (b *Bundler) FileName(h nodeworker.Handle) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.units[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if u.fileName == "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrNotFinalized, h, u.source)
	}
	return u.fileName, nil
}

func (b *Bundler) resolveSource(sourcePath, importer string) string {
	switch {
	case filepath.IsAbs(sourcePath):
		return filepath.Clean(sourcePath)
	case strings.HasPrefix(sourcePath, "."):
		base := b.opts.WorkingDir
		if importer != "" {
			base = filepath.Dir(absoluteFrom(b.opts.WorkingDir, importer))
		}
		return filepath.Join(base, filepath.FromSlash(sourcePath))
	default:
		// bare specifier, left for esbuild to resolve as a package entry
		return sourcePath
	}
}

func (b *Bundler) takePending() []*unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.pending
	b.pending = nil
	// emission order follows esbuild's callback scheduling
	sort.Slice(batch, func(i, j int) bool { return batch[i].outputBase < batch[j].outputBase })
	return batch
}

func (b *Bundler) finalize(u *unit, fileName string) {
	b.mu.Lock()
	u.fileName = fileName
	b.mu.Unlock()
}

// Run builds the entries, then every worker they request, then rewrites the
// placeholder tokens in all outputs. Nothing is written to disk.
func (b *Bundler) Run(ctx context.Context) (*Result, error) {
	plugin := Plugin(nodeworker.NewEmitter(b), b.opts.WorkingDir)
	result := &Result{
		BuildID:  uuid.NewString(),
		Outdir:   b.opts.Outdir,
		Metafile: newMetafile(),
	}
	outputs := make(map[string]*OutputFile)
	var order []string

	collect := func(files []api.OutputFile) error {
		for _, f := range files {
			rel, err := filepath.Rel(b.opts.Outdir, f.Path)
			if err != nil {
				return fmt.Errorf("output %s is outside %s: %w", f.Path, b.opts.Outdir, err)
			}
			name := filesystem.ToSlash(rel)
			if _, seen := outputs[name]; !seen {
				order = append(order, name)
			}
			outputs[name] = &OutputFile{Path: name, Contents: f.Contents}
		}
		return nil
	}

	opts, err := b.buildOptions(plugin, "chunks/[name]-[hash]")
	if err != nil {
		return nil, err
	}
	opts.EntryPoints = b.opts.Entries
	if err := b.build(opts, 0, result, collect); err != nil {
		return nil, err
	}

	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := b.takePending()
		if len(batch) == 0 {
			break
		}

		opts, err := b.buildOptions(plugin, path.Join(b.opts.WorkerDir, "chunks/[name]-[hash]"))
		if err != nil {
			return nil, err
		}
		for _, u := range batch {
			opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
				InputPath:  u.source,
				OutputPath: u.outputBase,
			})
		}
		logger.Info("Building %d worker unit(s), pass %d", len(batch), pass)
		if err := b.build(opts, pass, result, collect); err != nil {
			return nil, err
		}

		for _, u := range batch {
			name := u.outputBase + ".js"
			if _, ok := outputs[name]; !ok {
				return nil, fmt.Errorf("%w: worker %s produced no %s", ErrBuildFailed, u.source, name)
			}
			b.finalize(u, name)
		}
	}

	rewriter := nodeworker.NewRewriter(b, nodeworker.RewriterOptions{Sourcemap: b.opts.Sourcemap})
	for _, name := range order {
		if !strings.HasSuffix(name, ".js") {
			continue
		}
		out := outputs[name]
		rendered, err := rewriter.RenderChunk(string(out.Contents), name)
		if err != nil {
			return nil, err
		}
		if rendered == nil {
			continue
		}
		out.Contents = []byte(rendered.Code)
		result.Rewritten++

		if rendered.Map == nil {
			continue
		}
		if err := b.updateMap(outputs, name, rendered); err != nil {
			return nil, err
		}
	}

	for _, name := range order {
		result.Outputs = append(result.Outputs, *outputs[name])
	}
	result.Workers = b.workerUnits()

	if b.opts.Manifest {
		manifest, err := buildManifest(result, b.opts)
		if err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, OutputFile{Path: ManifestFileName, Contents: manifest})
	}

	logger.Info("Built %d output file(s) with %d worker unit(s) in %d pass(es), %d rewritten",
		len(result.Outputs), len(result.Workers), result.Passes, result.Rewritten)
	return result, nil
}

func (b *Bundler) build(opts api.BuildOptions, pass int, result *Result, collect func([]api.OutputFile) error) error {
	res := api.Build(opts)
	for _, msg := range api.FormatMessages(res.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		logger.Warn("%s", strings.TrimSpace(msg))
	}
	if len(res.Errors) > 0 {
		msgs := api.FormatMessages(res.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return fmt.Errorf("%w: pass %d: %d error(s)\n%s", ErrBuildFailed, pass, len(res.Errors), strings.Join(msgs, ""))
	}
	result.Passes++
	if err := result.Metafile.merge(res.Metafile); err != nil {
		return err
	}
	return collect(res.OutputFiles)
}

// updateMap folds the rewrite map of name into the map esbuild emitted for
// it, so the result still points at the original sources.
func (b *Bundler) updateMap(outputs map[string]*OutputFile, name string, rendered *nodeworker.Rendered) error {
	mapName := companionMap(name, rendered.Code)
	mapFile, ok := outputs[mapName]
	if !ok {
		return nil
	}
	upstream, err := sourcemap.Parse(mapFile.Contents)
	if err != nil {
		return fmt.Errorf("%s: %w", mapName, err)
	}
	composed, err := sourcemap.Compose(rendered.Map, upstream)
	if err != nil {
		return fmt.Errorf("%s: %w", mapName, err)
	}
	contents, err := composed.JSON()
	if err != nil {
		return err
	}
	mapFile.Contents = contents
	return nil
}

// companionMap returns the output name of the map linked from code, or
// name+".map" when code links none or inlines it.
func companionMap(name, code string) string {
	ref := sourcemap.FindSourceMappingURL(code)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.Contains(ref, "://") || strings.HasPrefix(ref, "/") {
		return name + ".map"
	}
	return path.Join(path.Dir(name), ref)
}

func (b *Bundler) workerUnits() []WorkerUnit {
	b.mu.Lock()
	defer b.mu.Unlock()

	units := make([]WorkerUnit, 0, len(b.ordered))
	for _, u := range b.ordered {
		units = append(units, WorkerUnit{
			Source:    u.source,
			File:      u.fileName,
			Handles:   append([]nodeworker.Handle(nil), u.handles...),
			Importers: append([]string(nil), u.importers...),
		})
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].File < units[j].File })
	return units
}

func (b *Bundler) buildOptions(plugin api.Plugin, chunkNames string) (api.BuildOptions, error) {
	opts := api.BuildOptions{
		AbsWorkingDir:     b.opts.WorkingDir,
		Outdir:            b.opts.Outdir,
		ChunkNames:        chunkNames,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformNode,
		Splitting:         b.opts.Splitting,
		External:          b.opts.External,
		MinifyWhitespace:  b.opts.Minify,
		MinifyIdentifiers: b.opts.Minify,
		MinifySyntax:      b.opts.Minify,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{plugin},
	}
	if b.opts.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	target, err := parseTarget(b.opts.Target)
	if err != nil {
		return opts, err
	}
	opts.Target = target.target
	opts.Engines = target.engines
	return opts, nil
}

type buildTarget struct {
	target  api.Target
	engines []api.Engine
}

var esTargets = map[string]api.Target{
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

// parseTarget accepts "esnext", "es20XX" or "node<version>".
func parseTarget(s string) (buildTarget, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return buildTarget{target: api.ESNext}, nil
	}
	if t, ok := esTargets[s]; ok {
		return buildTarget{target: t}, nil
	}
	if v := strings.TrimPrefix(s, "node"); v != s && v != "" {
		for _, part := range strings.Split(v, ".") {
			if _, err := strconv.Atoi(part); err != nil {
				return buildTarget{}, fmt.Errorf("invalid node target %q", s)
			}
		}
		return buildTarget{
			target:  api.ESNext,
			engines: []api.Engine{{Name: api.EngineNode, Version: v}},
		}, nil
	}
	return buildTarget{}, fmt.Errorf("unsupported target %q", s)
}
