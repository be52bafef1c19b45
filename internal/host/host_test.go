package host

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/buildstamp/internal/stamp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommand_ExportsBoundTemplates(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	script := `printf '%s\n%s\n%s\n%s\n' "$BUILDSTAMP_VERSION" "$BUILDSTAMP_FILENAME" "$BUILDSTAMP_CHUNK_FILENAME" "$BUILDSTAMP_OUTPUT_PATH" > env.txt`
	h := NewCommand([]string{"sh", "-c", script}, dir, stamp.Output{Path: "/srv/dist"}, testLogger())

	// Simulate the plugin rewriting the templates before the build runs.
	h.Output().Filename = "app.abc1234.js"
	h.Output().ChunkFilename = "[id].abc1234.js"
	h.SetVersion("abc1234")

	var got any
	calls := 0
	h.OnDone(func(result any) error {
		calls++
		got = result
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "abc1234\napp.abc1234.js\n[id].abc1234.js\n/srv/dist\n"
	if string(data) != want {
		t.Errorf("build saw environment %q, want %q", data, want)
	}

	if calls != 1 {
		t.Fatalf("expected 1 completion call, got %d", calls)
	}
	res, ok := got.(*Result)
	if !ok {
		t.Fatalf("expected *Result, got %T", got)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestCommand_FailedBuildSkipsHandlers(t *testing.T) {
	requireShell(t)

	h := NewCommand([]string{"sh", "-c", "echo compiling; echo boom >&2; exit 3"}, "", stamp.Output{}, testLogger())
	called := false
	h.OnDone(func(any) error {
		called = true
		return nil
	})

	err := h.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing build, got nil")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected build output in error, got %v", err)
	}
	if called {
		t.Error("completion handlers must not run after a failed build")
	}
}

func TestCommand_NoCommandFinishesImmediately(t *testing.T) {
	h := NewCommand(nil, "", stamp.Output{Path: "/srv/dist"}, testLogger())

	var got any = "unset"
	h.OnDone(func(result any) error {
		got = result
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil result for clean-only host, got %v", got)
	}
}

func TestCommand_HandlerErrorPropagates(t *testing.T) {
	h := NewCommand(nil, "", stamp.Output{}, testLogger())
	handlerErr := errors.New("cleanup failed")
	h.OnDone(func(any) error { return handlerErr })

	if err := h.Run(context.Background()); !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "empty", in: "", n: 3, want: ""},
		{name: "short", in: "a\nb\n", n: 3, want: "a\nb"},
		{name: "truncated", in: "a\nb\nc\nd\n", n: 2, want: "c\nd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tail(tt.in, tt.n); got != tt.want {
				t.Errorf("tail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
