package stamp

import (
	"fmt"
	"log/slog"

	"github.com/schaermu/buildstamp/internal/notify"
	"github.com/schaermu/buildstamp/internal/reconcile"
	"github.com/schaermu/buildstamp/internal/template"
	"github.com/schaermu/buildstamp/internal/version"
)

// Session is the state of one build: the token, the bound templates and,
// once the build completes, the cleanup record and the host result.
type Session struct {
	Token      version.Token
	Bound      map[string]string // template key -> bound template
	OutputPath string
	Strategy   Strategy

	Record *reconcile.Record
	Result any

	binder    *template.Binder
	cleaner   Cleaner
	notify    notify.Callback
	logger    *slog.Logger
	completed bool
}

// Deleted returns the names removed by the session's cleanup pass.
func (s *Session) Deleted() []string {
	if s.Record == nil {
		return []string{}
	}
	return s.Record.Deleted
}

func (s *Session) bind(key, tmpl string) (string, bool) {
	bound, ok := s.binder.Bind(key, tmpl)
	if ok {
		s.Bound[key] = bound
	}
	return bound, ok
}

// done is the single completion handler registered with the host.
func (s *Session) done(result any) error {
	if s.completed {
		return ErrSessionDone
	}
	s.completed = true
	s.Result = result

	if s.Strategy == ReconcileAndNotify {
		s.logger.Info("cleaning up build output",
			"version", s.Token,
			"dir", s.OutputPath)

		record, err := s.cleaner.Reconcile(s.OutputPath, s.binder.Matchers())
		s.Record = record
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	notify.Notify(s.notify, s.Token.String(), s.Deleted(), result)
	return nil
}
