// Package sourcemap models version 3 source maps: parsing, the base64 VLQ
// mappings codec, and composition of a map onto an upstream map.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Map is the JSON form of a version 3 source map.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

var sourceMappingURLRE = regexp.MustCompile(`//[@#]\s*sourceMappingURL=(.*)`)

// Parse decodes and validates a source map document.
func Parse(content []byte) (*Map, error) {
	if !IsValid(content) {
		return nil, fmt.Errorf("content is not a valid sourcemap")
	}
	var m Map
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("failed to parse sourcemap JSON: %w", err)
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return &m, nil
}

// JSON encodes the map.
func (m *Map) JSON() ([]byte, error) {
	out := *m
	if out.Version == 0 {
		out.Version = 3
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	if out.Names == nil {
		out.Names = []string{}
	}
	return json.Marshal(&out)
}

// Lines decodes the map's mappings.
func (m *Map) Lines() (Lines, error) {
	return DecodeMappings(m.Mappings)
}

// IsValid checks if the content looks like a valid sourcemap
func IsValid(content []byte) bool {
	// Must be valid JSON
	var temp map[string]interface{}
	if err := json.Unmarshal(content, &temp); err != nil {
		return false
	}

	version, hasVersion := temp["version"]
	sources, hasSources := temp["sources"]

	if !hasVersion {
		return false
	}
	if versionNum, ok := version.(float64); !ok || versionNum < 1 {
		return false
	}

	if !hasSources {
		return false
	}
	if _, ok := sources.([]interface{}); !ok {
		return false
	}

	return true
}

// FindSourceMappingURL returns the value of the last sourceMappingURL comment
// in js, or "" when there is none.
func FindSourceMappingURL(js string) string {
	matches := sourceMappingURLRE.FindAllStringSubmatch(js, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
