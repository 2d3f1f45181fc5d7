package jit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lumen-lang/lumen/internal/kernel"
)

func prim(op string, l, r kernel.Expr) kernel.Expr {
	return &kernel.Prim{Op: op, Left: l, Right: r}
}

func local(name string) kernel.Expr { return &kernel.Local{Name: name} }

func TestEncodeIntAdd(t *testing.T) {
	code, err := encodeIntDef([]string{"a", "b"}, prim("+", local("a"), local("b")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x49, 0x89, 0xc0, // mov r8, rax
		0x49, 0x89, 0xd9, // mov r9, rbx
		0x4c, 0x89, 0xc0, // mov rax, r8
		0x50,             // push rax
		0x4c, 0x89, 0xc8, // mov rax, r9
		0x50,             // push rax
		0x59,             // pop rcx
		0x58,             // pop rax
		0x48, 0x01, 0xc8, // add rax, rcx
		0x50, // push rax
		0x58, // pop rax
		0xc3, // ret
	}
	if !bytes.Equal(code, want) {
		t.Fatalf("code = % x\nwant % x", code, want)
	}
}

func TestEncodeIntLiteralTree(t *testing.T) {
	// (a * b) - 1
	code, err := encodeIntDef([]string{"a", "b"},
		prim("-", prim("*", local("a"), local("b")), &kernel.IntLit{Value: 1}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if code[len(code)-1] != 0xc3 {
		t.Fatal("missing ret")
	}
	// mov rax, imm64 for the literal 1
	imm := []byte{0x48, 0xb8, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Contains(code, imm) {
		t.Fatalf("literal load missing from % x", code)
	}
	// imul rax, rcx
	if !bytes.Contains(code, []byte{0x48, 0x0f, 0xaf, 0xc1}) {
		t.Fatalf("imul missing from % x", code)
	}
}

func TestEncodeIntRejectsDivision(t *testing.T) {
	_, err := encodeIntDef([]string{"a", "b"}, prim("/", local("a"), local("b")))
	if !errors.Is(err, ErrFastPathUnsupported) {
		t.Fatalf("encode / = %v, want ErrFastPathUnsupported", err)
	}
}

func TestEncodeIntRejectsForeignNodes(t *testing.T) {
	_, err := encodeIntDef([]string{"a", "b"},
		prim("+", local("a"), &kernel.GlobalRef{Name: "g"}))
	if !errors.Is(err, ErrFastPathUnsupported) {
		t.Fatalf("encode = %v, want ErrFastPathUnsupported", err)
	}
}

func TestEncodeFloatOps(t *testing.T) {
	tests := []struct {
		op   string
		want []byte
	}{
		{"+", []byte{0xf2, 0x0f, 0x58, 0xc1, 0xc3}},
		{"-", []byte{0xf2, 0x0f, 0x5c, 0xc1, 0xc3}},
		{"*", []byte{0xf2, 0x0f, 0x59, 0xc1, 0xc3}},
		{"/", []byte{0xf2, 0x0f, 0x5e, 0xc1, 0xc3}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			code, err := encodeFloatDef([]string{"a", "b"}, prim(tt.op, local("a"), local("b")))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if !bytes.Equal(code, tt.want) {
				t.Fatalf("code = % x, want % x", code, tt.want)
			}
		})
	}
}

func TestEncodeFloatRejectsSwappedOperands(t *testing.T) {
	_, err := encodeFloatDef([]string{"a", "b"}, prim("+", local("b"), local("a")))
	if !errors.Is(err, ErrFastPathUnsupported) {
		t.Fatalf("encode = %v, want ErrFastPathUnsupported", err)
	}
}
