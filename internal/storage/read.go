package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jsh-team/nodeworker/internal/utils/filesystem"
)

// OutputFile is a file read back from an output directory.
type OutputFile struct {
	Name     string // slash-separated, relative to the output directory
	FullPath string
	Content  []byte
}

// IsScript reports whether name is a JavaScript output worth scanning.
func IsScript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

// ReadScripts returns every JavaScript file below dir, sorted by name.
func ReadScripts(dir string) ([]OutputFile, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read output directory %s: %w", dir, err)
	}

	var out []OutputFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsScript(d.Name()) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, OutputFile{
			Name:     filesystem.ToSlash(rel),
			FullPath: path,
			Content:  content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
