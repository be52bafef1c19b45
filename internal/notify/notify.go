// Package notify delivers the outcome of a build to interested parties.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Callback receives the version token, the deleted artifact names and the
// host's build result. The result is passed through untouched.
type Callback func(version string, deleted []string, result any)

// Notify invokes cb once. A nil callback is a no-op.
func Notify(cb Callback, version string, deleted []string, result any) {
	if cb == nil {
		return
	}
	cb(version, deleted, result)
}

// Chain returns a callback invoking each non-nil callback in order.
func Chain(cbs ...Callback) Callback {
	var out []Callback
	for _, cb := range cbs {
		if cb != nil {
			out = append(out, cb)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return func(version string, deleted []string, result any) {
		for _, cb := range out {
			cb(version, deleted, result)
		}
	}
}

// Log returns a callback that writes a build summary to logger.
func Log(logger *slog.Logger) Callback {
	return func(version string, deleted []string, result any) {
		logger.Info("build complete", "version", version, "deleted", len(deleted), "files", deleted)
	}
}

// Manifest is the JSON document written by ManifestWriter
type Manifest struct {
	Version   string    `json:"version"`
	Deleted   []string  `json:"deleted"`
	Result    any       `json:"result,omitempty"`
	Completed time.Time `json:"completed"`
}

// ManifestWriter returns a callback persisting a Manifest at path. Write
// failures are logged; they never fail the build.
func ManifestWriter(path string, logger *slog.Logger) Callback {
	return func(version string, deleted []string, result any) {
		if deleted == nil {
			deleted = []string{}
		}
		m := Manifest{
			Version:   version,
			Deleted:   deleted,
			Result:    result,
			Completed: time.Now().UTC(),
		}
		if err := writeManifest(path, &m); err != nil {
			logger.Warn("failed to write build manifest", "path", path, "error", err)
			return
		}
		logger.Debug("build manifest written", "path", path)
	}
}

// writeManifest writes the manifest via a temp file and rename
func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".buildstamp-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(append(data, '\n')); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// ReadManifest loads a manifest written by ManifestWriter
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
