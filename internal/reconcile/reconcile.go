package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/schaermu/buildstamp/internal/artifact"
	"github.com/schaermu/buildstamp/internal/matcher"
)

// Reconciler removes artifacts of previous versions from an output directory
type Reconciler struct {
	policy  Policy
	protect *artifact.ProtectSet
	logger  *slog.Logger
	dryRun  bool
	remove  func(path string) error
}

// NewReconciler creates a new reconciler. An empty policy means PolicyFailFast.
func NewReconciler(policy Policy, protect *artifact.ProtectSet, logger *slog.Logger, dryRun bool) *Reconciler {
	if policy == "" {
		policy = PolicyFailFast
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		policy:  policy,
		protect: protect,
		logger:  logger,
		dryRun:  dryRun,
		remove:  os.Remove,
	}
}

// Reconcile scans dir once and deletes every entry selected by a matcher.
// The returned record is complete when Reconcile returns; under
// PolicyFailFast a partial record is returned together with the error.
func (r *Reconciler) Reconcile(dir string, matchers []*matcher.Matcher) (*Record, error) {
	record := &Record{Dir: dir, Deleted: make([]string, 0)}

	plan, err := r.buildPlan(dir, matchers)
	if err != nil {
		return record, err
	}

	r.logger.Info("cleanup plan", "dir", dir, "delete", len(plan.Delete))

	if r.dryRun {
		r.logPlanDetails(plan)
		for _, op := range plan.Delete {
			record.Planned = append(record.Planned, op.Name)
		}
		r.logger.Info("dry-run complete, no files deleted")
		return record, nil
	}

	return record, r.applyPlan(plan, record)
}

// buildPlan lists dir and selects the entries matched by any matcher
func (r *Reconciler) buildPlan(dir string, matchers []*matcher.Matcher) (*Plan, error) {
	names, err := artifact.List(dir)
	if err != nil {
		return nil, &DirectoryAccessError{Dir: dir, Err: err}
	}

	plan := &Plan{Delete: make([]FileOp, 0)}
	for _, name := range names {
		key, ok := firstMatch(matchers, name)
		if !ok {
			continue
		}
		if r.protect.Protected(name) {
			r.logger.Debug("skipping protected artifact", "file", name, "matcher", key)
			continue
		}
		plan.Delete = append(plan.Delete, FileOp{
			Name:    name,
			Path:    artifact.Path(dir, name),
			Matcher: key,
		})
	}

	return plan, nil
}

// applyPlan deletes the planned artifacts one at a time
func (r *Reconciler) applyPlan(plan *Plan, record *Record) error {
	var errs []error

	for _, op := range plan.Delete {
		err := r.remove(op.Path)
		switch {
		case err == nil:
			r.logger.Info("deleted stale artifact", "file", op.Name, "matcher", op.Matcher)
			record.Deleted = append(record.Deleted, op.Name)
		case errors.Is(err, os.ErrNotExist):
			r.logger.Debug("stale artifact already gone", "file", op.Name)
		default:
			delErr := &DeletionError{Name: op.Name, Err: err}
			if r.policy == PolicyFailFast {
				return delErr
			}
			r.logger.Warn("failed to delete stale artifact", "file", op.Name, "error", err)
			record.Failures = append(record.Failures, Failure{Name: op.Name, Error: err.Error()})
			errs = append(errs, delErr)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d stale artifacts could not be deleted: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// logPlanDetails logs detailed plan information for dry-run
func (r *Reconciler) logPlanDetails(plan *Plan) {
	for _, op := range plan.Delete {
		r.logger.Info("[dry-run] would delete", "file", op.Name, "matcher", op.Matcher)
	}
}

func firstMatch(matchers []*matcher.Matcher, name string) (string, bool) {
	for _, m := range matchers {
		if m != nil && m.Match(name) {
			return m.Key(), true
		}
	}
	return "", false
}
