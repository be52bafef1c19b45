package matcher

import (
	"errors"
	"testing"

	"github.com/schaermu/buildstamp/internal/version"
)

func TestFinalComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "app.abc1234.min.js", want: "app.abc1234.min.js"},
		{in: "js/app.abc1234.min.js", want: "app.abc1234.min.js"},
		{in: "static/js/[name].abc1234.js", want: "[name].abc1234.js"},
		{in: "dist/", want: ""},
	}

	for _, tt := range tests {
		if got := finalComponent(tt.in); got != tt.want {
			t.Errorf("finalComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapsePlaceholders(t *testing.T) {
	got := collapsePlaceholders("[name]-chunk.[id].abc1234.js")
	want := []segment{
		{kind: wildcardSegment, text: "[name]"},
		{kind: literalSegment, text: "-chunk."},
		{kind: wildcardSegment, text: "[id]"},
		{kind: literalSegment, text: ".abc1234.js"},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCollapsePlaceholders_NoBrackets(t *testing.T) {
	got := collapsePlaceholders("app.js")
	if len(got) != 1 || got[0].kind != literalSegment || got[0].text != "app.js" {
		t.Fatalf("expected single literal segment, got %+v", got)
	}
}

func TestMarkVersion(t *testing.T) {
	t.Run("splits literal", func(t *testing.T) {
		segs, ok := markVersion(collapsePlaceholders("[name].abc1234.min.js"), "abc1234")
		if !ok {
			t.Fatal("expected version segment to be found")
		}
		want := []segment{
			{kind: wildcardSegment, text: "[name]"},
			{kind: literalSegment, text: "."},
			{kind: versionSegment, text: "abc1234"},
			{kind: literalSegment, text: ".min.js"},
		}
		if len(segs) != len(want) {
			t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segs), segs)
		}
		for i := range want {
			if segs[i] != want[i] {
				t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
			}
		}
	})

	t.Run("only first occurrence", func(t *testing.T) {
		segs, ok := markVersion(collapsePlaceholders("abc.abc.js"), "abc")
		if !ok {
			t.Fatal("expected version segment to be found")
		}
		versions := 0
		for _, s := range segs {
			if s.kind == versionSegment {
				versions++
			}
		}
		if versions != 1 {
			t.Errorf("expected exactly one version segment, got %d", versions)
		}
		if segs[0].kind != versionSegment {
			t.Errorf("expected the leading occurrence to be marked, got %+v", segs[0])
		}
	})

	t.Run("ignores collapsed placeholders", func(t *testing.T) {
		_, ok := markVersion(collapsePlaceholders("[abc].js"), "abc")
		if ok {
			t.Error("token inside a bracket placeholder must not become the version segment")
		}
	})
}

func TestEscapeLiterals(t *testing.T) {
	segs, _ := markVersion(collapsePlaceholders("[name]-chunk.abc1234.js"), "abc1234")
	got := escapeLiterals(segs, 7)
	want := `^[-_\w]+-chunk\.(?P<version>\w{7})\.js$`
	if got != want {
		t.Errorf("escapeLiterals() = %q, want %q", got, want)
	}
}

func TestSynthesize_Shape(t *testing.T) {
	m, err := Synthesize("filename", "app.abc1234.min.js", "abc1234")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{name: "app.def5678.min.js", want: true},
		{name: "app.abc1234.min.js", want: false},
		{name: "styles.abc1234.min.css", want: false},
		{name: "styles.def5678.min.css", want: false},
		{name: "app.def56789.min.js", want: false},
		{name: "app.def567.min.js", want: false},
		{name: "appXdef5678XminXjs", want: false},
		{name: "app.def5678.min.js.map", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.name); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v (pattern %s)", tt.name, got, tt.want, m.Pattern())
			}
		})
	}
}

func TestSynthesize_Wildcards(t *testing.T) {
	m, err := Synthesize("chunkFilename", "static/js/[name]-chunk.abc1234.js", "abc1234")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	for name, want := range map[string]bool{
		"vendors-chunk.1111111.js":      true,
		"my_page-2-chunk.2222222.js":    true,
		"vendors-chunk.abc1234.js":      false,
		"static-js-vendors-chunk.12.js": false,
		"-chunk.1111111.js":             false,
	} {
		if got := m.Match(name); got != want {
			t.Errorf("Match(%q) = %v, want %v (pattern %s)", name, got, want, m.Pattern())
		}
	}
}

func TestSynthesize_ExplicitTokenLength(t *testing.T) {
	m, err := Synthesize("filename", "bundle.v1234.js", "v1234")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	if want := `^bundle\.(?P<version>\w{5})\.js$`; m.Pattern() != want {
		t.Errorf("expected pattern %q, got %q", want, m.Pattern())
	}
	if !m.Match("bundle.v1233.js") {
		t.Error("expected other 5-char version to match")
	}
	if m.Match("bundle.abc1234.js") {
		t.Error("7-char version must not match a 5-char token matcher")
	}
}

func TestSynthesize_TokenWithMetacharacters(t *testing.T) {
	m, err := Synthesize("filename", "app-1.2.3.js", "1.2.3")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if m.Match("app-1.2.3.js") {
		t.Error("matcher must never select the current build's output")
	}
}

func TestSynthesize_Idempotent(t *testing.T) {
	a, err := Synthesize("filename", "[name].abc1234.js", "abc1234")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Synthesize("filename", "[name].abc1234.js", "abc1234")
	if err != nil {
		t.Fatal(err)
	}

	if a.Pattern() != b.Pattern() {
		t.Fatalf("patterns differ: %q vs %q", a.Pattern(), b.Pattern())
	}
	for _, name := range []string{"main.abc1234.js", "main.0000000.js", "README.md", "main.js"} {
		if a.Match(name) != b.Match(name) {
			t.Errorf("matchers disagree on %q", name)
		}
	}
}

func TestSynthesize_NoVersionSegment(t *testing.T) {
	tests := []struct {
		name  string
		bound string
	}{
		{name: "token only in directory", bound: "abc1234/app.js"},
		{name: "token absent", bound: "app.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Synthesize("filename", tt.bound, "abc1234")
			if !errors.Is(err, ErrNoVersionSegment) {
				t.Fatalf("expected ErrNoVersionSegment, got %v", err)
			}
		})
	}
}

func TestSynthesize_EmptyToken(t *testing.T) {
	if _, err := Synthesize("filename", "app.js", ""); err == nil {
		t.Fatal("expected error for empty token, got nil")
	}
}

func TestCompile(t *testing.T) {
	t.Run("with version group", func(t *testing.T) {
		m, err := Compile("filename", `^app\.(?P<version>[0-9a-f]+)\.js$`, version.Token("abc1234"))
		if err != nil {
			t.Fatal(err)
		}
		if !m.Match("app.ffff.js") {
			t.Error("expected other version to match")
		}
		if m.Match("app.abc1234.js") {
			t.Error("current version must be excluded")
		}
		if v, ok := m.Version("app.ffff.js"); !ok || v != "ffff" {
			t.Errorf("Version() = %q, %v; want ffff, true", v, ok)
		}
	})

	t.Run("verbatim", func(t *testing.T) {
		m, err := Compile("chunkFilename", `\.chunk\.js$`, version.Token("abc1234"))
		if err != nil {
			t.Fatal(err)
		}
		if !m.Match("a.abc1234.chunk.js") {
			t.Error("pattern without version group should match as written")
		}
		if _, ok := m.Version("a.chunk.js"); ok {
			t.Error("Version() should report false without a version group")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := Compile("filename", `app.(`, "abc1234"); err == nil {
			t.Fatal("expected compile error, got nil")
		}
	})
}
