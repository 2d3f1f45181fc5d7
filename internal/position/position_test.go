package position

import "testing"

func TestPositionValidity(t *testing.T) {
	tests := []struct {
		name  string
		pos   Position
		valid bool
	}{
		{"valid", Position{Filename: "a.lum", Line: 1, Column: 1, Offset: 0}, true},
		{"zero line", Position{Filename: "a.lum", Line: 0, Column: 1, Offset: 0}, false},
		{"zero column", Position{Filename: "a.lum", Line: 1, Column: 0, Offset: 0}, false},
		{"negative offset", Position{Filename: "a.lum", Line: 1, Column: 1, Offset: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSpanContains(t *testing.T) {
	span := Span{
		Start: Position{Filename: "a.lum", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.lum", Line: 1, Column: 11, Offset: 10},
	}
	inside := Position{Filename: "a.lum", Line: 1, Column: 5, Offset: 4}
	if !span.Contains(inside) {
		t.Errorf("span should contain %v", inside)
	}
	atEnd := Position{Filename: "a.lum", Line: 1, Column: 11, Offset: 10}
	if span.Contains(atEnd) {
		t.Errorf("span end is exclusive; should not contain %v", atEnd)
	}
	otherFile := Position{Filename: "b.lum", Line: 1, Column: 5, Offset: 4}
	if span.Contains(otherFile) {
		t.Errorf("span should not contain position from another file")
	}
}

func TestSpanUnion(t *testing.T) {
	a := Span{
		Start: Position{Filename: "a.lum", Line: 1, Column: 1, Offset: 0},
		End:   Position{Filename: "a.lum", Line: 1, Column: 5, Offset: 4},
	}
	b := Span{
		Start: Position{Filename: "a.lum", Line: 2, Column: 1, Offset: 10},
		End:   Position{Filename: "a.lum", Line: 2, Column: 8, Offset: 17},
	}
	u := a.Union(b)
	if u.Start != a.Start || u.End != b.End {
		t.Errorf("union = %v, want start %v end %v", u, a.Start, b.End)
	}
	if u.Length() != 17 {
		t.Errorf("union length = %d, want 17", u.Length())
	}
}

func TestPositionFromOffset(t *testing.T) {
	sf := NewSourceFile("main.lum", "add = a b => a + b\nmain = print (add 1 2)\n")
	pos := sf.PositionFromOffset(19)
	if pos.Line != 2 || pos.Column != 1 {
		t.Errorf("offset 19 = %d:%d, want 2:1", pos.Line, pos.Column)
	}
	if got := sf.GetLine(2); got != "main = print (add 1 2)" {
		t.Errorf("GetLine(2) = %q", got)
	}
}

func TestSourceMap(t *testing.T) {
	sm := NewSourceMap()
	sm.AddFile("a.lum", "one\ntwo\n")
	if got := sm.GetLine(Position{Filename: "a.lum", Line: 2, Column: 1, Offset: 4}); got != "two" {
		t.Errorf("GetLine = %q, want %q", got, "two")
	}
	if sm.GetFile("missing.lum") != nil {
		t.Error("expected nil for unregistered file")
	}
}
