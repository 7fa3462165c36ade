package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jsh-team/nodeworker/internal/utils/files"
	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
)

// OutputPath joins an output-relative file name onto outdir, refusing names
// that would escape it.
func OutputPath(outdir, name string) (string, error) {
	rel := filesystem.ToSlash(name)
	if rel == "" || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("invalid output name %q", name)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output name %q escapes the output directory", name)
	}
	return filepath.Join(outdir, cleaned), nil
}

// SaveOutput writes one finalized output file below outdir and returns its
// absolute path.
func SaveOutput(outdir, name string, content []byte) (string, error) {
	fullPath, err := OutputPath(outdir, name)
	if err != nil {
		return "", err
	}
	if err := files.WriteFile(fullPath, content); err != nil {
		return "", fmt.Errorf("failed to save output %s: %w", name, err)
	}
	return fullPath, nil
}
