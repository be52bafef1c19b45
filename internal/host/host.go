// Package host runs a build command as the build tool buildstamp attaches to.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/schaermu/buildstamp/internal/stamp"
)

// Environment variables exported to the build command
const (
	EnvVersion       = "BUILDSTAMP_VERSION"
	EnvFilename      = "BUILDSTAMP_FILENAME"
	EnvChunkFilename = "BUILDSTAMP_CHUNK_FILENAME"
	EnvOutputPath    = "BUILDSTAMP_OUTPUT_PATH"
)

// outputTailLines bounds the build output kept in Result.
const outputTailLines = 20

// Result describes a finished build command
type Result struct {
	Command  []string      `json:"command,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"` // last lines of combined output
}

// Command implements stamp.Host by running an external build command.
// With no command it acts as a clean-only host whose build finishes immediately.
type Command struct {
	args    []string
	dir     string
	out     stamp.Output
	version string
	logger  *slog.Logger
	done    []func(result any) error
}

// NewCommand creates a host for args run in dir with the given output options
func NewCommand(args []string, dir string, out stamp.Output, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{
		args:   append([]string(nil), args...),
		dir:    dir,
		out:    out,
		logger: logger,
	}
}

// Output returns the mutable output options
func (c *Command) Output() *stamp.Output {
	return &c.out
}

// OnDone registers a completion handler
func (c *Command) OnDone(fn func(result any) error) {
	c.done = append(c.done, fn)
}

// SetVersion records the token exported to the build command
func (c *Command) SetVersion(version string) {
	c.version = version
}

// Run executes the build and then the completion handlers. Handlers do not
// run when the build command fails.
func (c *Command) Run(ctx context.Context) error {
	var result any
	if len(c.args) > 0 {
		res, err := c.runBuild(ctx)
		if err != nil {
			return err
		}
		result = res
	}

	for _, fn := range c.done {
		if err := fn(result); err != nil {
			return err
		}
	}
	return nil
}

// runBuild runs the command with the bound templates in its environment
func (c *Command) runBuild(ctx context.Context) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.environ()...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	c.logger.Info("running build command", "command", strings.Join(c.args, " "), "dir", c.dir)

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Command:  c.args,
		Duration: time.Since(start),
		Output:   tail(buf.String(), outputTailLines),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, fmt.Errorf("build command failed: %w: %s", err, res.Output)
	}

	c.logger.Info("build command finished", "duration", res.Duration)
	c.logger.Debug("build output", "output", res.Output)
	return res, nil
}

// environ returns the BUILDSTAMP_* variables for the build command
func (c *Command) environ() []string {
	return []string{
		EnvVersion + "=" + c.version,
		EnvFilename + "=" + c.out.Filename,
		EnvChunkFilename + "=" + c.out.ChunkFilename,
		EnvOutputPath + "=" + c.out.Path,
	}
}

// tail returns the last n lines of s
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
