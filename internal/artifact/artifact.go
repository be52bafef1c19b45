package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// List returns the names of the regular files directly inside dir, sorted by
// name. Subdirectories are never artifacts and are skipped; symlinks are
// listed by their own name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Path joins an artifact name onto its output directory
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}

// ProtectSet holds doublestar globs of artifact names that must never be deleted
type ProtectSet struct {
	patterns []string
}

// NewProtectSet validates patterns and returns the set
func NewProtectSet(patterns []string) (*ProtectSet, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid protect pattern %q", p)
		}
	}
	return &ProtectSet{patterns: append([]string(nil), patterns...)}, nil
}

// Protected reports whether name matches any protect pattern.
// A nil set protects nothing.
func (s *ProtectSet) Protected(name string) bool {
	if s == nil {
		return false
	}
	for _, pattern := range s.patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns returns the configured globs
func (s *ProtectSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}
