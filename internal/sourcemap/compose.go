package sourcemap

import "fmt"

// Compose maps every segment of outer, whose sources all refer to the file
// inner describes, through inner. The result points the final text straight at
// inner's original sources.
func Compose(outer, inner *Map) (*Map, error) {
	outerLines, err := outer.Lines()
	if err != nil {
		return nil, fmt.Errorf("failed to decode outer mappings: %w", err)
	}
	innerLines, err := inner.Lines()
	if err != nil {
		return nil, fmt.Errorf("failed to decode inner mappings: %w", err)
	}

	names := append([]string{}, inner.Names...)
	nameIndex := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := nameIndex[n]; !ok {
			nameIndex[n] = i
		}
	}
	internName := func(n string) int {
		if i, ok := nameIndex[n]; ok {
			return i
		}
		names = append(names, n)
		nameIndex[n] = len(names) - 1
		return len(names) - 1
	}

	composed := make(Lines, len(outerLines))
	for i, segs := range outerLines {
		var out []Segment
		for _, seg := range segs {
			if !seg.HasSource {
				out = append(out, Segment{GenColumn: seg.GenColumn})
				continue
			}
			target, ok := lookup(innerLines, seg.Line, seg.Column)
			if !ok {
				continue
			}
			next := Segment{GenColumn: seg.GenColumn}
			if target.HasSource {
				next.HasSource = true
				next.Source, next.Line, next.Column = target.Source, target.Line, target.Column
				switch {
				case target.HasName:
					next.HasName, next.Name = true, target.Name
				case seg.HasName && seg.Name < len(outer.Names):
					next.HasName, next.Name = true, internName(outer.Names[seg.Name])
				}
			}
			out = append(out, next)
		}
		composed[i] = out
	}

	file := outer.File
	if file == "" {
		file = inner.File
	}
	return &Map{
		Version:        3,
		File:           file,
		SourceRoot:     inner.SourceRoot,
		Sources:        append([]string{}, inner.Sources...),
		SourcesContent: append([]*string(nil), inner.SourcesContent...),
		Names:          names,
		Mappings:       EncodeMappings(composed),
	}, nil
}

// lookup finds the segment covering (line, column): the last one on that line
// whose generated column is not after column.
func lookup(lines Lines, line, column int) (Segment, bool) {
	if line < 0 || line >= len(lines) {
		return Segment{}, false
	}
	segs := lines[line]
	lo, hi := 0, len(segs)
	for lo < hi {
		mid := (lo + hi) / 2
		if segs[mid].GenColumn <= column {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return Segment{}, false
	}
	return segs[lo-1], true
}
