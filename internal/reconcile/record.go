package reconcile

import (
	"fmt"
)

// Policy decides what a deletion failure does to the rest of the pass
type Policy string

const (
	// PolicyFailFast aborts the pass on the first failed deletion
	PolicyFailFast Policy = "fail-fast"
	// PolicyBestEffort records failed deletions and keeps scanning
	PolicyBestEffort Policy = "best-effort"
)

// Record is the outcome of one reconciliation pass
type Record struct {
	Dir      string    `json:"dir"`
	Deleted  []string  `json:"deleted"`            // names removed, in directory order
	Planned  []string  `json:"planned,omitempty"`  // names a dry-run would remove
	Failures []Failure `json:"failures,omitempty"` // best-effort deletion failures
}

// Failure is a matched artifact that could not be removed
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Plan lists the artifacts selected for deletion
type Plan struct {
	Delete []FileOp
}

// FileOp represents a deletion candidate
type FileOp struct {
	Name    string // bare file name as listed
	Path    string // absolute or dir-relative path used for removal
	Matcher string // key of the matcher that selected it
}

// DirectoryAccessError reports that the output directory could not be listed
type DirectoryAccessError struct {
	Dir string
	Err error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("read output directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error {
	return e.Err
}

// DeletionError reports that a matched artifact could not be removed
type DeletionError struct {
	Name string
	Err  error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("delete stale artifact %s: %v", e.Name, e.Err)
}

func (e *DeletionError) Unwrap() error {
	return e.Err
}
