// Package version resolves the token that identifies one build.
//
// A token is either supplied explicitly or derived from a revision source,
// usually the abbreviated git hash of HEAD.
package version

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultLength is the number of revision characters used when none is configured.
const DefaultLength = 7

// Token identifies the output of a single build.
type Token string

// String returns the token text.
func (t Token) String() string {
	return string(t)
}

// Len returns the token length in characters.
func (t Token) Len() int {
	return utf8.RuneCountInString(string(t))
}

// Source supplies revision tokens of a requested length.
// git.ShellClient satisfies it.
type Source interface {
	ShortRevision(ctx context.Context, length int) (string, error)
}

// ResolutionError reports that no token could be obtained for the build.
type ResolutionError struct {
	Length int
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve version token (length %d): %v", e.Length, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// errEmptyRevision is returned when the source answers with blank output.
var errEmptyRevision = errors.New("revision source returned empty output")

// Resolver produces the token for a build.
type Resolver struct {
	explicit string
	length   int
	source   Source
}

// NewResolver creates a resolver. A non-empty explicit token is used verbatim
// and the source is never consulted; otherwise the source is asked for length
// characters (DefaultLength when length is not positive).
func NewResolver(explicit string, length int, source Source) *Resolver {
	if length <= 0 {
		length = DefaultLength
	}
	return &Resolver{
		explicit: explicit,
		length:   length,
		source:   source,
	}
}

// Resolve returns the build token or a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context) (Token, error) {
	if r.explicit != "" {
		return Token(r.explicit), nil
	}

	if r.source == nil {
		return "", &ResolutionError{Length: r.length, Err: errors.New("no revision source configured")}
	}

	raw, err := r.source.ShortRevision(ctx, r.length)
	if err != nil {
		return "", &ResolutionError{Length: r.length, Err: err}
	}

	token := strings.TrimSpace(raw)
	if token == "" {
		return "", &ResolutionError{Length: r.length, Err: errEmptyRevision}
	}

	return Token(token), nil
}
