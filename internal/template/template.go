package template

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/schaermu/buildstamp/internal/matcher"
	"github.com/schaermu/buildstamp/internal/version"
)

// DefaultPlaceholder marks where the version token goes in a template.
const DefaultPlaceholder = "[githash]"

// Template keys understood by the host.
const (
	KeyFilename      = "filename"
	KeyChunkFilename = "chunkFilename"
)

// Binder substitutes the version token into templates and keeps one matcher
// per template key for the lifetime of a build session.
type Binder struct {
	placeholder string
	token       version.Token
	matchers    map[string]*matcher.Matcher
	logger      *slog.Logger
}

// NewBinder creates a binder. preset matchers take precedence over synthesized ones.
func NewBinder(placeholder string, token version.Token, preset map[string]*matcher.Matcher, logger *slog.Logger) *Binder {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binder{
		placeholder: placeholder,
		token:       token,
		matchers:    make(map[string]*matcher.Matcher, len(preset)),
		logger:      logger,
	}
	for key, m := range preset {
		if m != nil {
			b.matchers[key] = m
		}
	}
	return b
}

// Bind replaces the first occurrence of the placeholder in tmpl with the token.
// It returns false, and touches nothing, when tmpl is empty or lacks the placeholder.
func (b *Binder) Bind(key, tmpl string) (string, bool) {
	if tmpl == "" {
		return "", false
	}

	bound := strings.Replace(tmpl, b.placeholder, string(b.token), 1)
	if bound == tmpl {
		return "", false
	}

	if _, ok := b.matchers[key]; !ok {
		m, err := matcher.Synthesize(key, bound, b.token)
		switch {
		case err == nil:
			b.matchers[key] = m
		case errors.Is(err, matcher.ErrNoVersionSegment):
			b.logger.Warn("no cleanup matcher for template, token is not part of the filename",
				"key", key, "template", bound)
		default:
			b.logger.Warn("failed to build cleanup matcher", "key", key, "error", err)
		}
	}

	return bound, true
}

// Matchers returns every cached matcher, preset or synthesized, sorted by key.
func (b *Binder) Matchers() []*matcher.Matcher {
	keys := make([]string, 0, len(b.matchers))
	for key := range b.matchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*matcher.Matcher, 0, len(keys))
	for _, key := range keys {
		out = append(out, b.matchers[key])
	}
	return out
}

// Matcher returns the matcher cached for key.
func (b *Binder) Matcher(key string) (*matcher.Matcher, bool) {
	m, ok := b.matchers[key]
	return m, ok
}
