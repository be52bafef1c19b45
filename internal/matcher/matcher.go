// Package matcher turns bound filename templates into patterns that select
// artifacts of other versions.
//
// A template such as "js/[name].abc1234.min.js" bound for token "abc1234"
// yields a matcher for "<name>.<7 word chars>.min.js" that rejects the
// current token. Synthesis runs in separate stages so each step can be
// tested on its own:
//
//	finalComponent       "js/[name].abc1234.min.js" -> "[name].abc1234.min.js"
//	collapsePlaceholders "[name]" becomes a wildcard segment
//	markVersion          first literal "abc1234" becomes the version segment
//	escapeLiterals       literal text is quoted, segments rendered to a pattern
//	compile              anchored and compiled, with the token kept for exclusion
//
// RE2 has no lookahead, so exclusion of the current token is done after
// matching by comparing the "version" capture group with the token.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/schaermu/buildstamp/internal/version"
)

// VersionGroup is the capture group name holding an artifact's version segment.
const VersionGroup = "version"

// wildcardPattern matches the value of a collapsed bracket placeholder.
const wildcardPattern = `[-_\w]+`

// placeholderRe finds host placeholders such as [name] or [contenthash].
var placeholderRe = regexp.MustCompile(`\[\w+\]`)

// ErrNoVersionSegment is returned when the bound filename does not contain the
// token, so no matcher could tell this build's output from older ones.
var ErrNoVersionSegment = errors.New("bound template has no version segment in its filename")

// Matcher recognizes artifact filenames of a template shape whose version
// differs from the current token.
type Matcher struct {
	key     string
	re      *regexp.Regexp
	token   version.Token
	group   int
	pattern string
}

// Key returns the template key the matcher was built for.
func (m *Matcher) Key() string {
	return m.key
}

// Pattern returns the compiled pattern source.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether name is an artifact of another version.
func (m *Matcher) Match(name string) bool {
	if m.group < 0 {
		return m.re.MatchString(name)
	}

	sub := m.re.FindStringSubmatch(name)
	if sub == nil {
		return false
	}
	return sub[m.group] != string(m.token)
}

// Version extracts the version segment from name when it has the matcher's shape.
func (m *Matcher) Version(name string) (string, bool) {
	if m.group < 0 {
		return "", false
	}
	sub := m.re.FindStringSubmatch(name)
	if sub == nil {
		return "", false
	}
	return sub[m.group], true
}

// Synthesize builds the matcher for a bound template and the current token.
func Synthesize(key, bound string, token version.Token) (*Matcher, error) {
	if token == "" {
		return nil, fmt.Errorf("synthesize %s: empty version token", key)
	}

	segs := collapsePlaceholders(finalComponent(bound))
	segs, ok := markVersion(segs, token)
	if !ok {
		return nil, fmt.Errorf("synthesize %s from %q: %w", key, bound, ErrNoVersionSegment)
	}

	return compile(key, escapeLiterals(segs, token.Len()), token)
}

// Compile wraps a caller-supplied pattern. When the pattern defines a
// "version" group, names whose version equals token are rejected like a
// synthesized matcher would; otherwise the pattern matches as written.
func Compile(key, pattern string, token version.Token) (*Matcher, error) {
	return compile(key, pattern, token)
}

type segmentKind int

const (
	literalSegment segmentKind = iota
	wildcardSegment
	versionSegment
)

type segment struct {
	kind segmentKind
	text string
}

// finalComponent drops directory prefixes; directory listings only carry bare names.
func finalComponent(tmpl string) string {
	if i := strings.LastIndex(tmpl, "/"); i >= 0 {
		return tmpl[i+1:]
	}
	return tmpl
}

// collapsePlaceholders splits name into literal text and wildcard segments,
// one wildcard per bracket placeholder.
func collapsePlaceholders(name string) []segment {
	var segs []segment
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(name, -1) {
		if loc[0] > last {
			segs = append(segs, segment{kind: literalSegment, text: name[last:loc[0]]})
		}
		segs = append(segs, segment{kind: wildcardSegment, text: name[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(name) {
		segs = append(segs, segment{kind: literalSegment, text: name[last:]})
	}
	return segs
}

// markVersion replaces the first literal occurrence of token with a version
// segment. It reports false when no literal segment contains the token.
func markVersion(segs []segment, token version.Token) ([]segment, bool) {
	tok := string(token)
	for i, s := range segs {
		if s.kind != literalSegment {
			continue
		}
		idx := strings.Index(s.text, tok)
		if idx < 0 {
			continue
		}

		out := make([]segment, 0, len(segs)+2)
		out = append(out, segs[:i]...)
		if idx > 0 {
			out = append(out, segment{kind: literalSegment, text: s.text[:idx]})
		}
		out = append(out, segment{kind: versionSegment, text: tok})
		if rest := s.text[idx+len(tok):]; rest != "" {
			out = append(out, segment{kind: literalSegment, text: rest})
		}
		out = append(out, segs[i+1:]...)
		return out, true
	}
	return segs, false
}

// escapeLiterals renders segments to an anchored pattern. Literal text is
// quoted so dots and other metacharacters match themselves.
func escapeLiterals(segs []segment, tokenLen int) string {
	var b strings.Builder
	b.WriteString("^")
	for _, s := range segs {
		switch s.kind {
		case literalSegment:
			b.WriteString(regexp.QuoteMeta(s.text))
		case wildcardSegment:
			b.WriteString(wildcardPattern)
		case versionSegment:
			b.WriteString(`(?P<` + VersionGroup + `>\w{` + strconv.Itoa(tokenLen) + `})`)
		}
	}
	b.WriteString("$")
	return b.String()
}

func compile(key, pattern string, token version.Token) (*Matcher, error) {
	re, err := cachedCompile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile matcher %s: %w", key, err)
	}
	return &Matcher{
		key:     key,
		re:      re,
		token:   token,
		group:   re.SubexpIndex(VersionGroup),
		pattern: pattern,
	}, nil
}
