// Package nodeworker turns `?nodeWorker` imports into separately built worker
// entries. Loading such an import emits a deferred unit and returns glue code
// holding a placeholder token; once the build has settled every output path,
// Rewriter swaps each token for the unit's path relative to the file it ended
// up in.
package nodeworker

import (
	"fmt"

	urlutils "github.com/jsh-team/nodeworker/internal/utils/url"
)

// ChunkEmitter registers a module as an additional output unit of the build.
// Every call returns a new handle; whether two calls share one unit is up to
// the implementation.
type ChunkEmitter interface {
	EmitChunk(sourcePath, importer string) (Handle, error)
}

// workerModule is the glue returned for a worker import. %s is the token,
// left bare so bundlers treat it as a free identifier and keep it verbatim.
const workerModule = `
import { Worker } from 'node:worker_threads';
export default function (options) { return new Worker(new URL(%s, import.meta.url), options); }
`

// Emitter implements the resolve and load steps of a worker import.
type Emitter struct {
	chunks ChunkEmitter
}

// NewEmitter returns an Emitter registering units through chunks.
func NewEmitter(chunks ChunkEmitter) *Emitter {
	return &Emitter{chunks: chunks}
}

// ResolveID returns id with the importer recorded in its query, so that the
// load step, which only sees the id, knows who asked for the worker. An id
// that already names an importer is returned as is. ok is false when id is
// not a worker request.
func (e *Emitter) ResolveID(id, importer string) (string, bool) {
	q, err := ParseRequest(id)
	if err != nil || !IsWorkerRequest(q) {
		return "", false
	}
	if q[QueryImporter] != "" {
		return id, true
	}
	return urlutils.WithParam(id, QueryImporter, importer), true
}

// Load emits the worker unit for an augmented id and returns the glue module.
// ok is false when id is not an augmented worker id; the caller should then
// fall back to its default loader.
func (e *Emitter) Load(id string) (code string, ok bool, err error) {
	req, ok := parseAugmented(id)
	if !ok {
		return "", false, nil
	}
	ph, err := e.Emit(req)
	if err != nil {
		return "", false, err
	}
	return fmt.Sprintf(workerModule, ph.Token()), true, nil
}

// Emit registers req as a new deferred unit.
func (e *Emitter) Emit(req WorkerRequest) (Placeholder, error) {
	h, err := e.chunks.EmitChunk(req.TargetPath, req.Importer)
	if err != nil {
		return Placeholder{}, fmt.Errorf("failed to emit worker %s for %s: %w", req.TargetPath, req.Importer, err)
	}
	if err := h.Validate(); err != nil {
		return Placeholder{}, fmt.Errorf("worker %s: %w", req.TargetPath, err)
	}
	return Placeholder{Handle: h}, nil
}
