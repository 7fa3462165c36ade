package bundle

import (
	"encoding/json"
	"fmt"
)

// Metafile represents the esbuild metafile JSON structure
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"` // "cjs" or "esm"
}

// MetafileImport represents an import in the metafile
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

// InputContrib represents the contribution of an input to an output
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

func newMetafile() *Metafile {
	return &Metafile{
		Inputs:  make(map[string]MetafileInput),
		Outputs: make(map[string]MetafileOutput),
	}
}

// merge folds the metafile of one esbuild pass into m.
func (m *Metafile) merge(raw string) error {
	if raw == "" {
		return nil
	}
	var pass Metafile
	if err := json.Unmarshal([]byte(raw), &pass); err != nil {
		return fmt.Errorf("failed to parse esbuild metafile: %w", err)
	}
	for k, v := range pass.Inputs {
		m.Inputs[k] = v
	}
	for k, v := range pass.Outputs {
		m.Outputs[k] = v
	}
	return nil
}
