package sourcemap

import (
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		idx[base64Chars[i]] = int8(i)
	}
	return idx
}()

// Segment is one decoded mapping. Lines and columns are zero-based; Source and
// Name index into the map's sources and names.
type Segment struct {
	GenColumn int
	HasSource bool
	Source    int
	Line      int
	Column    int
	HasName   bool
	Name      int
}

// Lines holds decoded segments per generated line.
type Lines [][]Segment

// DecodeMappings parses a mappings string.
func DecodeMappings(mappings string) (Lines, error) {
	var (
		lines                      Lines
		source, line, column, name int
	)
	for _, rawLine := range strings.Split(mappings, ";") {
		var segs []Segment
		genColumn := 0
		if rawLine != "" {
			for _, rawSeg := range strings.Split(rawLine, ",") {
				if rawSeg == "" {
					continue
				}
				fields, err := decodeVLQ(rawSeg)
				if err != nil {
					return nil, err
				}
				switch len(fields) {
				case 1, 4, 5:
				default:
					return nil, fmt.Errorf("invalid mapping segment %q: %d fields", rawSeg, len(fields))
				}
				genColumn += fields[0]
				seg := Segment{GenColumn: genColumn}
				if len(fields) >= 4 {
					source += fields[1]
					line += fields[2]
					column += fields[3]
					seg.HasSource, seg.Source, seg.Line, seg.Column = true, source, line, column
				}
				if len(fields) == 5 {
					name += fields[4]
					seg.HasName, seg.Name = true, name
				}
				segs = append(segs, seg)
			}
		}
		lines = append(lines, segs)
	}
	return lines, nil
}

// EncodeMappings renders decoded lines back into a mappings string.
func EncodeMappings(lines Lines) string {
	var (
		sb                         strings.Builder
		source, line, column, name int
	)
	for i, segs := range lines {
		if i > 0 {
			sb.WriteByte(';')
		}
		genColumn := 0
		for j, seg := range segs {
			if j > 0 {
				sb.WriteByte(',')
			}
			encodeVLQ(&sb, seg.GenColumn-genColumn)
			genColumn = seg.GenColumn
			if !seg.HasSource {
				continue
			}
			encodeVLQ(&sb, seg.Source-source)
			encodeVLQ(&sb, seg.Line-line)
			encodeVLQ(&sb, seg.Column-column)
			source, line, column = seg.Source, seg.Line, seg.Column
			if seg.HasName {
				encodeVLQ(&sb, seg.Name-name)
				name = seg.Name
			}
		}
	}
	return sb.String()
}

func encodeVLQ(sb *strings.Builder, value int) {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq > 0 {
			digit |= 32
		}
		sb.WriteByte(base64Chars[digit])
		if vlq == 0 {
			return
		}
	}
}

func decodeVLQ(s string) ([]int, error) {
	var (
		fields       []int
		value, shift int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 128 || base64Index[c] < 0 {
			return nil, fmt.Errorf("invalid base64 character %q in mapping %q", c, s)
		}
		digit := int(base64Index[c])
		value += (digit & 31) << shift
		if digit&32 != 0 {
			shift += 5
			continue
		}
		if value&1 == 1 {
			fields = append(fields, -(value >> 1))
		} else {
			fields = append(fields, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated mapping segment %q", s)
	}
	return fields, nil
}
