package bundle

import (
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/jsh-team/nodeworker/internal/nodeworker"
	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
)

const (
	PluginName = "node-worker"
	// Namespace holds the glue modules generated for worker imports.
	Namespace = "node-worker"
)

// workerFilter preselects specifiers whose query mentions the tag; the
// emitter makes the final decision.
const workerFilter = `\?(?:[^#]*&)?` + nodeworker.QueryTag + `(?:[=&#]|$)`

// Plugin exposes the emitter's resolve and load steps to esbuild. It must be
// first in the plugin list so no other plugin rewrites the specifier before
// the query is read. Importers are recorded relative to workingDir, since the
// namespace path ends up in generated identifiers and comments.
func Plugin(e *nodeworker.Emitter, workingDir string) api.Plugin {
	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: workerFilter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					id, ok := e.ResolveID(args.Path, relativeTo(workingDir, args.Importer))
					if !ok {
						return api.OnResolveResult{}, nil
					}
					return api.OnResolveResult{Path: id, Namespace: Namespace}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: Namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					code, ok, err := e.Load(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					if !ok {
						return api.OnLoadResult{}, nil
					}
					result := api.OnLoadResult{Contents: &code, Loader: api.LoaderJS}
					if q, _ := nodeworker.ParseRequest(args.Path); q[nodeworker.QueryImporter] != "" {
						result.ResolveDir = filepath.Dir(absoluteFrom(workingDir, q[nodeworker.QueryImporter]))
					}
					return result, nil
				})
		},
	}
}

// relativeTo returns p relative to dir with forward slashes. Paths that are
// not absolute, or that have no relative form, are returned unchanged.
func relativeTo(dir, p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return p
	}
	return filesystem.ToSlash(rel)
}

// absoluteFrom is the inverse of relativeTo.
func absoluteFrom(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}
