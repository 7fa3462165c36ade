package filesystem

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleDots = regexp.MustCompile(`\.{2,}`)
)

// ToSlash normalises a path to forward slashes regardless of the host OS.
func ToSlash(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

// RelPosix returns target relative to the directory baseDir using POSIX
// semantics, so output names computed on Windows still use '/'.
func RelPosix(baseDir, target string) string {
	base := splitClean(baseDir)
	dest := splitClean(target)

	common := 0
	for common < len(base) && common < len(dest) && base[common] == dest[common] {
		common++
	}

	parts := make([]string, 0, len(base)-common+len(dest)-common)
	for i := common; i < len(base); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, dest[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

func splitClean(p string) []string {
	cleaned := path.Clean("/" + ToSlash(p))
	if cleaned == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
}

// CleanPathComponent cleans a single path component
func CleanPathComponent(component string) string {
	if component == "" {
		return ""
	}

	// Replace invalid characters
	component = invalidChars.ReplaceAllString(component, "_")

	// Replace multiple dots with single dot
	component = multipleDots.ReplaceAllString(component, ".")

	// Trim dots and spaces from ends
	component = strings.Trim(component, ". ")

	// Replace spaces with underscores
	component = strings.ReplaceAll(component, " ", "_")

	// Limit length
	if len(component) > 50 {
		component = component[:50]
	}

	return component
}

// EntryBaseName turns a module path into a file-name stem: the last path
// element without extension, cleaned for filesystem use.
func EntryBaseName(modulePath string) string {
	base := path.Base(ToSlash(modulePath))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	base = CleanPathComponent(base)
	if base == "" {
		return "worker"
	}
	return base
}
