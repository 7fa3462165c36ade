package nodeworker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jsh-team/nodeworker/internal/sourcemap"
	"github.com/jsh-team/nodeworker/internal/splice"
	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
)

// ErrUnresolvedHandle means a token names a unit the build never finalized.
var ErrUnresolvedHandle = errors.New("unresolved worker handle")

// FileNameResolver maps a handle to the finalized file name of its unit,
// relative to the output directory.
type FileNameResolver interface {
	FileName(h Handle) (string, error)
}

// RewriterOptions is fixed when the Rewriter is built.
type RewriterOptions struct {
	// Sourcemap makes RenderChunk return a map of its edits.
	Sourcemap bool
}

// Rendered is a rewritten output unit.
type Rendered struct {
	Code string
	Map  *sourcemap.Map
}

// Rewriter replaces placeholder tokens with relative paths to their units.
type Rewriter struct {
	files FileNameResolver
	opts  RewriterOptions
}

// NewRewriter returns a Rewriter resolving handles through files.
func NewRewriter(files FileNameResolver, opts RewriterOptions) *Rewriter {
	return &Rewriter{files: files, opts: opts}
}

// RenderChunk replaces every token in code, the finalized text of the unit
// named fileName. It returns nil when code holds no token.
func (r *Rewriter) RenderChunk(code, fileName string) (*Rendered, error) {
	matches := Scan(code)
	if len(matches) == 0 {
		return nil, nil
	}

	s := splice.New(code)
	for _, m := range matches {
		target, err := r.files.FileName(m.Handle)
		if err != nil {
			return nil, fmt.Errorf("%s: handle %s: %w: %v", fileName, m.Handle, ErrUnresolvedHandle, err)
		}
		if target == "" {
			return nil, fmt.Errorf("%s: handle %s: %w", fileName, m.Handle, ErrUnresolvedHandle)
		}
		literal, err := quote(RelativePath(target, fileName))
		if err != nil {
			return nil, err
		}
		if err := s.Overwrite(m.Start, m.End, literal); err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
	}

	out := &Rendered{Code: s.String()}
	if r.opts.Sourcemap {
		out.Map = s.GenerateMap(splice.MapOptions{
			Source: path.Base(fileName),
			File:   path.Base(fileName),
		})
	}
	return out, nil
}

// RelativePath returns filename relative to the directory of importer, always
// starting with '.' so it reads as a relative module specifier.
func RelativePath(filename, importer string) string {
	rel := filesystem.RelPosix(path.Dir(filesystem.ToSlash(importer)), filename)
	if rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "./") {
		return rel
	}
	return "./" + rel
}

// quote renders s as a JSON string literal without HTML escaping.
func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
