package git

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client provides read-only revision lookups on a git work tree
type Client interface {
	// ShortRevision returns the abbreviated hash of HEAD with at least length characters
	ShortRevision(ctx context.Context, length int) (string, error)
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	repoDir string
	binary  string
}

// NewShellClient creates a new git client rooted at repoDir.
// An empty repoDir means the current working directory.
func NewShellClient(repoDir string) *ShellClient {
	return &ShellClient{
		repoDir: repoDir,
		binary:  "git",
	}
}

// ShortRevision runs git rev-parse --short=<length> HEAD
func (c *ShellClient) ShortRevision(ctx context.Context, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid revision length %d", length)
	}

	cmd := exec.CommandContext(ctx, c.binary, revParseArgs(c.repoDir, length)...)
	output, err := c.runCommand(cmd)
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}

	return strings.TrimSpace(output), nil
}

// revParseArgs builds the argument list for the short revision lookup.
func revParseArgs(repoDir string, length int) []string {
	args := make([]string, 0, 5)
	if repoDir != "" {
		args = append(args, "-C", repoDir)
	}
	return append(args, "rev-parse", "--short="+strconv.Itoa(length), "HEAD")
}

// runCommand executes a command and returns stdout, or an error carrying stderr on failure
func (c *ShellClient) runCommand(cmd *exec.Cmd) (string, error) {
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(output), nil
}
