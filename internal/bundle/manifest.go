package bundle

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jsh-team/nodeworker/internal/nodeworker"
	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
)

// Manifest lists what a build produced. It is written next to the outputs
// when the manifest option is on.
type Manifest struct {
	BuildID   string           `json:"buildId"`
	CreatedAt time.Time        `json:"createdAt"`
	Entries   []string         `json:"entries"`
	Outputs   []string         `json:"outputs"`
	Workers   []ManifestWorker `json:"workers"`
}

// ManifestWorker describes one worker unit.
type ManifestWorker struct {
	File      string              `json:"file"`
	Source    string              `json:"source"`
	Handles   []nodeworker.Handle `json:"handles"`
	Importers []string            `json:"importers"`
	Bytes     int                 `json:"bytes"`
	Inputs    []string            `json:"inputs,omitempty"`
}

func buildManifest(res *Result, opts Options) ([]byte, error) {
	m := Manifest{
		BuildID:   res.BuildID,
		CreatedAt: time.Now().UTC(),
		Entries:   append([]string{}, opts.Entries...),
		Outputs:   make([]string, 0, len(res.Outputs)),
		Workers:   make([]ManifestWorker, 0, len(res.Workers)),
	}

	sizes := make(map[string]int, len(res.Outputs))
	for _, out := range res.Outputs {
		m.Outputs = append(m.Outputs, out.Path)
		sizes[out.Path] = len(out.Contents)
	}

	for _, w := range res.Workers {
		importers := make([]string, 0, len(w.Importers))
		for _, imp := range w.Importers {
			importers = append(importers, relativeTo(opts.WorkingDir, imp))
		}
		m.Workers = append(m.Workers, ManifestWorker{
			File:      w.File,
			Source:    relativeTo(opts.WorkingDir, w.Source),
			Handles:   w.Handles,
			Importers: importers,
			Bytes:     sizes[w.File],
			Inputs:    metafileInputs(res.Metafile, opts, w.File),
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// metafileInputs returns the inputs esbuild reports for the output named
// file. Metafile keys are relative to the working directory.
func metafileInputs(meta *Metafile, opts Options, file string) []string {
	if meta == nil {
		return nil
	}
	key := filesystem.ToSlash(filepath.Join(opts.Outdir, filepath.FromSlash(file)))
	if rel, err := filepath.Rel(opts.WorkingDir, filepath.Join(opts.Outdir, filepath.FromSlash(file))); err == nil {
		key = filesystem.ToSlash(rel)
	}
	out, ok := meta.Outputs[key]
	if !ok {
		return nil
	}
	inputs := make([]string, 0, len(out.Inputs))
	for in := range out.Inputs {
		inputs = append(inputs, in)
	}
	sort.Strings(inputs)
	return inputs
}
