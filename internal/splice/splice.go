// Package splice applies byte-range replacements to a string against its
// original offsets and can describe the result with a source map.
package splice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrOverlap = errors.New("edit overlaps an earlier edit")

type edit struct {
	start, end int
	content    string
}

// String is an original text plus pending edits. Offsets passed to Overwrite
// always refer to the original text, however many edits came before.
type String struct {
	original string
	edits    []edit
}

// New wraps original.
func New(original string) *String {
	return &String{original: original}
}

// Overwrite replaces original[start:end] with content. The range must be
// non-empty and must not overlap a previous edit.
func (s *String) Overwrite(start, end int, content string) error {
	if start < 0 || end > len(s.original) || start >= end {
		return fmt.Errorf("invalid range [%d, %d) for text of length %d", start, end, len(s.original))
	}
	i := sort.Search(len(s.edits), func(i int) bool { return s.edits[i].start >= start })
	if i > 0 && s.edits[i-1].end > start {
		return fmt.Errorf("[%d, %d): %w", start, end, ErrOverlap)
	}
	if i < len(s.edits) && s.edits[i].start < end {
		return fmt.Errorf("[%d, %d): %w", start, end, ErrOverlap)
	}
	s.edits = append(s.edits, edit{})
	copy(s.edits[i+1:], s.edits[i:])
	s.edits[i] = edit{start: start, end: end, content: content}
	return nil
}

// String renders the edited text.
func (s *String) String() string {
	if len(s.edits) == 0 {
		return s.original
	}
	var sb strings.Builder
	size := len(s.original)
	for _, e := range s.edits {
		size += len(e.content) - (e.end - e.start)
	}
	sb.Grow(size)
	last := 0
	for _, e := range s.edits {
		sb.WriteString(s.original[last:e.start])
		sb.WriteString(e.content)
		last = e.end
	}
	sb.WriteString(s.original[last:])
	return sb.String()
}
