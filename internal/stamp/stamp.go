// Package stamp wires version resolution, template binding, stale artifact
// cleanup and completion notification into a per-build session.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/schaermu/buildstamp/internal/matcher"
	"github.com/schaermu/buildstamp/internal/notify"
	"github.com/schaermu/buildstamp/internal/reconcile"
	"github.com/schaermu/buildstamp/internal/template"
	"github.com/schaermu/buildstamp/internal/version"
)

// ErrSessionDone is returned when a session's completion handler fires twice.
var ErrSessionDone = errors.New("build session already completed")

// Output is the part of the host configuration the plugin reads and rewrites.
type Output struct {
	Filename      string
	ChunkFilename string
	Path          string
}

// Host is the build tool the plugin attaches to.
type Host interface {
	// Output returns the host's mutable output options.
	Output() *Output
	// OnDone registers fn to run once the build has finished.
	OnDone(fn func(result any) error)
}

// Options configures the plugin. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	Placeholder string            // default "[githash]"
	Cleanup     bool              // delete artifacts of other versions
	SkipHash    string            // explicit token; disables revision lookup
	HashLength  int               // default 7, ignored with SkipHash
	OutputPath  string            // default: host output path
	Regex       map[string]string // pre-supplied patterns by template key
	Callback    notify.Callback
}

// Strategy is the completion behavior chosen once per session.
type Strategy int

const (
	// NotifyOnly skips cleanup and goes straight to the callback.
	NotifyOnly Strategy = iota
	// ReconcileAndNotify deletes stale artifacts, then notifies.
	ReconcileAndNotify
)

func (s Strategy) String() string {
	switch s {
	case ReconcileAndNotify:
		return "reconcile-and-notify"
	default:
		return "notify-only"
	}
}

// Cleaner removes stale artifacts; *reconcile.Reconciler implements it.
type Cleaner interface {
	Reconcile(dir string, matchers []*matcher.Matcher) (*reconcile.Record, error)
}

// Plugin holds the configuration shared by every build it is applied to.
type Plugin struct {
	opts     Options
	resolver *version.Resolver
	cleaner  Cleaner
	logger   *slog.Logger
}

// New creates a plugin. source is consulted only when opts.SkipHash is empty.
func New(opts Options, source version.Source, cleaner Cleaner, logger *slog.Logger) *Plugin {
	if opts.Placeholder == "" {
		opts.Placeholder = template.DefaultPlaceholder
	}
	if opts.SkipHash == "" && opts.HashLength <= 0 {
		opts.HashLength = version.DefaultLength
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Plugin{
		opts:     opts,
		resolver: version.NewResolver(opts.SkipHash, opts.HashLength, source),
		cleaner:  cleaner,
		logger:   logger,
	}
}

// Apply starts a build session on host: it resolves the token, rewrites the
// host's templates and registers exactly one completion handler.
func (p *Plugin) Apply(ctx context.Context, host Host) (*Session, error) {
	token, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	preset, err := p.presetMatchers(token)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Token:   token,
		Bound:   make(map[string]string),
		binder:  template.NewBinder(p.opts.Placeholder, token, preset, p.logger),
		cleaner: p.cleaner,
		notify:  p.opts.Callback,
		logger:  p.logger,
	}

	out := host.Output()
	if bound, ok := s.bind(template.KeyFilename, out.Filename); ok {
		out.Filename = bound
		p.logger.Info("changed output filename", "filename", bound)
	}
	if bound, ok := s.bind(template.KeyChunkFilename, out.ChunkFilename); ok {
		out.ChunkFilename = bound
		p.logger.Info("changed output chunk filename", "chunk_filename", bound)
	}

	s.OutputPath = p.opts.OutputPath
	if s.OutputPath == "" {
		s.OutputPath = out.Path
	}

	s.Strategy = NotifyOnly
	if p.opts.Cleanup && len(s.Bound) > 0 {
		if p.cleaner == nil {
			return nil, fmt.Errorf("cleanup requested but no cleaner configured")
		}
		if s.OutputPath == "" {
			return nil, fmt.Errorf("cleanup requested but no output path configured")
		}
		s.Strategy = ReconcileAndNotify
	}

	p.logger.Debug("build session ready",
		"version", token,
		"bound", len(s.Bound),
		"strategy", s.Strategy.String(),
		"output_path", s.OutputPath)

	host.OnDone(s.done)
	return s, nil
}

// presetMatchers compiles the caller-supplied patterns for token.
func (p *Plugin) presetMatchers(token version.Token) (map[string]*matcher.Matcher, error) {
	if len(p.opts.Regex) == 0 {
		return nil, nil
	}
	out := make(map[string]*matcher.Matcher, len(p.opts.Regex))
	for key, pattern := range p.opts.Regex {
		if pattern == "" {
			continue
		}
		m, err := matcher.Compile(key, pattern, token)
		if err != nil {
			return nil, err
		}
		out[key] = m
	}
	return out, nil
}
