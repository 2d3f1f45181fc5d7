package runtime

import (
	"errors"
	"testing"
)

func TestCloneReleaseBalanced(t *testing.T) {
	h := NewInt(7)
	for i := 0; i < 5; i++ {
		h.Clone()
	}
	for i := 0; i < 6; i++ {
		if err := h.Release(); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if got := h.Refs(); got != 0 {
		t.Fatalf("refs = %d, want 0", got)
	}
}

func TestReleaseUnderflowDetected(t *testing.T) {
	h := NewInt(7)
	const n = 3
	for i := 0; i < n; i++ {
		h.Clone()
	}
	for i := 0; i < n+1; i++ {
		if err := h.Release(); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	// One release past the matching count must be reported, and the
	// count must not go negative.
	if err := h.Release(); !errors.Is(err, ErrRefUnderflow) {
		t.Fatalf("extra release = %v, want ErrRefUnderflow", err)
	}
	if got := h.Refs(); got != 0 {
		t.Fatalf("refs after underflow = %d, want 0", got)
	}
	// The handle stays usable for further detection, not corruption.
	if err := h.Release(); !errors.Is(err, ErrRefUnderflow) {
		t.Fatalf("second extra release = %v, want ErrRefUnderflow", err)
	}
}

func TestReleaseFreesChildren(t *testing.T) {
	inner := NewInt(1)
	outer := NewList([]*Handle{inner, NewInt(2)})
	if err := outer.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := inner.Refs(); got != 0 {
		t.Fatalf("child refs = %d, want 0", got)
	}
}

func TestChildSurvivesWhenClonedElsewhere(t *testing.T) {
	inner := NewInt(1)
	inner.Clone()
	outer := NewTuple([]*Handle{inner})
	if err := outer.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := inner.Refs(); got != 1 {
		t.Fatalf("child refs = %d, want 1", got)
	}
	if inner.Value().Int != 1 {
		t.Fatal("child value corrupted")
	}
}

func TestEqualStructural(t *testing.T) {
	tests := []struct {
		name string
		a, b *Handle
		want bool
	}{
		{"ints", NewInt(3), NewInt(3), true},
		{"int vs float", NewInt(3), NewFloat(3), false},
		{"texts", NewText("hi"), NewText("hi"), true},
		{"lists", NewList([]*Handle{NewInt(1), NewInt(2)}), NewList([]*Handle{NewInt(1), NewInt(2)}), true},
		{"list length", NewList([]*Handle{NewInt(1)}), NewList([]*Handle{NewInt(1), NewInt(2)}), false},
		{"ctor tags", NewCtor("Some", 1, []*Handle{NewInt(1)}), NewCtor("Some", 1, []*Handle{NewInt(1)}), true},
		{"ctor mismatch", NewCtor("Some", 1, []*Handle{NewInt(1)}), NewCtor("None", 0, nil), false},
		{"records", NewRecord([]FieldVal{{"x", NewInt(1)}}), NewRecord([]FieldVal{{"x", NewInt(1)}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShow(t *testing.T) {
	tests := []struct {
		name string
		h    *Handle
		want string
	}{
		{"unit", Unit(), "()"},
		{"int", NewInt(-4), "-4"},
		{"float", NewFloat(3.5), "3.5"},
		{"bool", NewBool(true), "true"},
		{"text", NewText("hi"), "hi"},
		{"list", NewList([]*Handle{NewInt(1), NewInt(2)}), "[1, 2]"},
		{"tuple", NewTuple([]*Handle{NewInt(3), NewFloat(3.5)}), "(3, 3.5)"},
		{"nullary ctor", NewCtor("None", 0, nil), "None"},
		{"ctor", NewCtor("Some", 1, []*Handle{NewInt(1)}), "Some 1"},
		{"record", NewRecord([]FieldVal{{"y", NewInt(2)}, {"x", NewInt(1)}}), "{x: 1, y: 2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Show(tt.h); got != tt.want {
				t.Errorf("Show = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordFieldLookup(t *testing.T) {
	rec := NewRecord([]FieldVal{{"b", NewInt(2)}, {"a", NewInt(1)}, {"c", NewInt(3)}})
	for name, want := range map[string]int64{"a": 1, "b": 2, "c": 3} {
		h, ok := rec.Value().Field(name)
		if !ok {
			t.Fatalf("field %q missing", name)
		}
		if h.Value().Int != want {
			t.Errorf("field %q = %d, want %d", name, h.Value().Int, want)
		}
	}
	if _, ok := rec.Value().Field("d"); ok {
		t.Error("unexpected field d")
	}
}
