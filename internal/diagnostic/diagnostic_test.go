package diagnostic

import (
	"strings"
	"testing"

	"github.com/lumen-lang/lumen/internal/position"
)

func spanAt(file string, line, col int) position.Span {
	p := position.Position{Filename: file, Line: line, Column: col, Offset: (line-1)*80 + col}
	return position.Span{Start: p, End: p}
}

func TestBagOrdering(t *testing.T) {
	b := NewBag()
	b.Error(CodeUnknownType, spanAt("b.lum", 3, 1), "unknown type %q", "Maybe")
	b.Warning(CodeNonExhaustiveMatch, spanAt("a.lum", 9, 5), "match is not exhaustive")
	b.Error(CodeUnificationMismatch, spanAt("a.lum", 2, 7), "cannot unify Int with Text")

	items := b.Items()
	if len(items) != 3 {
		t.Fatalf("got %d diagnostics, want 3", len(items))
	}
	if items[0].Span.Start.Filename != "a.lum" || items[0].Span.Start.Line != 2 {
		t.Errorf("first diagnostic should be a.lum:2, got %s", items[0])
	}
	if items[2].Span.Start.Filename != "b.lum" {
		t.Errorf("last diagnostic should be in b.lum, got %s", items[2])
	}
}

func TestBagHasErrors(t *testing.T) {
	b := NewBag()
	if b.HasErrors() {
		t.Error("empty bag should have no errors")
	}
	b.Warning(CodeNonExhaustiveMatch, spanAt("a.lum", 1, 1), "match is not exhaustive")
	if b.HasErrors() {
		t.Error("warnings alone should not count as errors")
	}
	b.Error(CodeMissingSignature, spanAt("a.lum", 4, 1), "redefinition of %q requires an explicit type signature", "greet")
	if !b.HasErrors() {
		t.Error("expected HasErrors after Error")
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Code:     CodeKindMismatch,
		Message:  "expected kind * -> *, found *",
		Span:     spanAt("src/main.lum", 12, 3),
		Severity: SeverityError,
	}
	got := d.String()
	want := "src/main.lum:12:3: error[LUM0005]: expected kind * -> *, found *"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDiagnosticStringWithoutPosition(t *testing.T) {
	d := Diagnostic{
		Code:     CodeNonExhaustiveMatch,
		Message:  `match in "describe" is not exhaustive`,
		Severity: SeverityWarning,
	}
	got := d.String()
	want := `warning[LUM0101]: match in "describe" is not exhaustive`
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBagWrite(t *testing.T) {
	b := NewBag()
	b.Error(CodeUnificationMismatch, spanAt("m.lum", 1, 1), "cannot unify Bool with Int")
	var sb strings.Builder
	if err := b.Write(&sb); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "LUM0001") {
		t.Errorf("output missing code: %q", sb.String())
	}
}
