package nodeworker

import (
	"fmt"
	"regexp"
)

// A token is TokenPrefix, a handle, then TokenSuffix. It is a valid
// JavaScript identifier, so bundlers carry it through untouched.
const (
	TokenPrefix = "__VITE_NODE_WORKER_ASSET__"
	TokenSuffix = "__"

	handleChars = `[A-Za-z0-9_$]+`
)

var (
	tokenRE  = regexp.MustCompile(regexp.QuoteMeta(TokenPrefix) + "(" + handleChars + ")" + regexp.QuoteMeta(TokenSuffix))
	handleRE = regexp.MustCompile("^" + handleChars + "$")
)

// Handle identifies a deferred output unit. Its value is chosen by the
// emission collaborator and is otherwise opaque.
type Handle string

// Validate checks that h can be embedded in a token.
func (h Handle) Validate() error {
	if !handleRE.MatchString(string(h)) {
		return fmt.Errorf("invalid handle %q: must match %s", string(h), handleChars)
	}
	return nil
}

// Placeholder is a reference to a deferred unit whose output path is not
// known yet.
type Placeholder struct {
	Handle Handle
}

// Token renders the placeholder as it appears in generated code.
func (p Placeholder) Token() string {
	return TokenPrefix + string(p.Handle) + TokenSuffix
}

// Match is one token occurrence in a text, as a byte range.
type Match struct {
	Start  int
	End    int
	Handle Handle
}

// Scan returns the non-overlapping token occurrences in text, left to right.
//
// The handle pattern is greedy and '_' is part of the alphabet, so in
// `__VITE_NODE_WORKER_ASSET__a__b__` the handle is `a__b`, the same as a
// JavaScript /[\w$]+/ would read it.
func Scan(text string) []Match {
	locs := tokenRE.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, Match{
			Start:  loc[0],
			End:    loc[1],
			Handle: Handle(text[loc[2]:loc[3]]),
		})
	}
	return matches
}
