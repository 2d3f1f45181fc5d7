//go:build linux && amd64

package jit

import (
	"testing"

	"github.com/lumen-lang/lumen/internal/kernel"
)

func TestExecIntGeneratedCode(t *testing.T) {
	code, err := encodeIntDef([]string{"a", "b"}, prim("+", local("a"), local("b")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fn, err := execInt(code)
	if err != nil {
		t.Skipf("cannot map executable memory: %v", err)
	}
	tests := []struct{ a, b, want int64 }{
		{1, 2, 3},
		{-5, 5, 0},
		{1 << 40, 1, 1<<40 + 1},
	}
	for _, tt := range tests {
		if got := fn(tt.a, tt.b); got != tt.want {
			t.Errorf("fn(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestExecIntExpressionTree(t *testing.T) {
	// (a * b) - 1
	code, err := encodeIntDef([]string{"a", "b"},
		prim("-", prim("*", local("a"), local("b")), &kernel.IntLit{Value: 1}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fn, err := execInt(code)
	if err != nil {
		t.Skipf("cannot map executable memory: %v", err)
	}
	if got := fn(6, 7); got != 41 {
		t.Errorf("fn(6, 7) = %d, want 41", got)
	}
}

func TestExecFloatGeneratedCode(t *testing.T) {
	code, err := encodeFloatDef([]string{"a", "b"}, prim("+", local("a"), local("b")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fn, err := execFloat(code)
	if err != nil {
		t.Skipf("cannot map executable memory: %v", err)
	}
	if got := fn(1.5, 2.0); got != 3.5 {
		t.Errorf("fn(1.5, 2.0) = %g, want 3.5", got)
	}
}
