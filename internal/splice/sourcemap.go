package splice

import "github.com/jsh-team/nodeworker/internal/sourcemap"

// MapOptions names the files recorded in a generated map.
type MapOptions struct {
	// Source is the name of the original text in the map's sources.
	Source string
	// File is the name of the generated file.
	File string
}

// position tracks a line and a UTF-16 column, the unit source maps count in.
type position struct {
	line, column int
}

func (p *position) advance(r rune) {
	if r == '\n' {
		p.line++
		p.column = 0
		return
	}
	if r >= 0x10000 {
		p.column += 2
		return
	}
	p.column++
}

// GenerateMap describes the edited text in terms of the original at word
// boundary resolution: unchanged text gets a segment at the start of each word
// and at every other character; each replacement gets one segment at its start.
func (s *String) GenerateMap(opts MapOptions) *sourcemap.Map {
	var (
		lines = sourcemap.Lines{nil}
		gen   position
		orig  position
	)
	add := func() {
		lines[gen.line] = append(lines[gen.line], sourcemap.Segment{
			GenColumn: gen.column,
			HasSource: true,
			Line:      orig.line,
			Column:    orig.column,
		})
	}
	advanceGen := func(r rune) {
		gen.advance(r)
		for len(lines) <= gen.line {
			lines = append(lines, nil)
		}
	}

	unchanged := func(text string) {
		inWord := false
		for _, r := range text {
			if r == '\n' {
				inWord = false
				advanceGen(r)
				orig.advance(r)
				continue
			}
			if isWordRune(r) {
				if !inWord {
					add()
					inWord = true
				}
			} else {
				add()
				inWord = false
			}
			advanceGen(r)
			orig.advance(r)
		}
	}

	last := 0
	for _, e := range s.edits {
		unchanged(s.original[last:e.start])
		add()
		for _, r := range e.content {
			advanceGen(r)
		}
		for _, r := range s.original[e.start:e.end] {
			orig.advance(r)
		}
		last = e.end
	}
	unchanged(s.original[last:])

	return &sourcemap.Map{
		Version:  3,
		File:     opts.File,
		Sources:  []string{opts.Source},
		Names:    []string{},
		Mappings: sourcemap.EncodeMappings(lines),
	}
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
