package url

import (
	"net/url"
	"strings"
)

// SplitID splits a module id into path, raw query and fragment. The query and
// fragment are returned without their leading '?' and '#'.
func SplitID(id string) (path, query, fragment string) {
	path = id
	if i := strings.IndexByte(path, '#'); i >= 0 {
		fragment = path[i+1:]
		path = path[:i]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		query = path[i+1:]
		path = path[:i]
	}
	return path, query, fragment
}

// RemoveQueryString drops the fragment and then the query from a module id.
// Unlike net/url it never fails: module ids are file paths, not URLs.
func RemoveQueryString(id string) string {
	path, _, _ := SplitID(id)
	return path
}

// ParseQuery decodes a raw query string. Pairs that fail to decode are skipped
// and reported through the returned error; repeated keys keep the last value.
func ParseQuery(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) == 0 {
			params[k] = ""
			continue
		}
		params[k] = v[len(v)-1]
	}
	return params, err
}

// WithParam returns id with key=value set in its query, keeping the fragment.
// Existing parameters keep their order; an existing key is replaced in place.
func WithParam(id, key, value string) string {
	path, query, fragment := SplitID(id)

	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	var parts []string
	replaced := false
	if query != "" {
		for _, p := range strings.Split(query, "&") {
			name := p
			if i := strings.IndexByte(p, '='); i >= 0 {
				name = p[:i]
			}
			if unescaped, err := url.QueryUnescape(name); err == nil && unescaped == key {
				if !replaced {
					parts = append(parts, pair)
					replaced = true
				}
				continue
			}
			parts = append(parts, p)
		}
	}
	if !replaced {
		parts = append(parts, pair)
	}

	out := path + "?" + strings.Join(parts, "&")
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}
