package nodeworker

import (
	urlutils "github.com/jsh-team/nodeworker/internal/utils/url"
)

const (
	// QueryTag marks an import as a worker request: `./job.js?nodeWorker`.
	QueryTag = "nodeWorker"
	// QueryImporter carries the requesting module on an augmented id.
	QueryImporter = "importer"
)

// Query holds the decoded query parameters of a module id.
type Query map[string]string

// Has reports whether the parameter is present, whatever its value.
func (q Query) Has(name string) bool {
	_, ok := q[name]
	return ok
}

// ParseRequest decodes the query of a module id. It returns nil when the id
// carries no query or an empty one. A malformed query yields the pairs that
// did decode together with the decoding error.
func ParseRequest(id string) (Query, error) {
	_, raw, _ := urlutils.SplitID(id)
	if raw == "" {
		return nil, nil
	}
	params, err := urlutils.ParseQuery(raw)
	return Query(params), err
}

// IsWorkerRequest reports whether q carries the worker tag.
func IsWorkerRequest(q Query) bool {
	return q != nil && q.Has(QueryTag)
}

// CleanURL strips the fragment and query from a module id.
func CleanURL(id string) string {
	return urlutils.RemoveQueryString(id)
}

// WorkerRequest is a recognised worker import, ready to be emitted.
type WorkerRequest struct {
	TargetPath string
	Importer   string
}

// parseAugmented recovers the request from an augmented id. ok is false for
// anything that is not a well-formed augmented worker id.
func parseAugmented(id string) (req WorkerRequest, ok bool) {
	q, err := ParseRequest(id)
	if err != nil || !IsWorkerRequest(q) || !q.Has(QueryImporter) {
		return WorkerRequest{}, false
	}
	importer := q[QueryImporter]
	target := CleanURL(id)
	if importer == "" || target == "" {
		return WorkerRequest{}, false
	}
	return WorkerRequest{TargetPath: target, Importer: importer}, true
}
