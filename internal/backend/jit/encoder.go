package jit

import (
	"errors"
	"fmt"

	"github.com/lumen-lang/lumen/internal/kernel"
)

// ErrFastPathUnsupported marks a definition the typed path cannot encode;
// the boxed path serves it instead.
var ErrFastPathUnsupported = errors.New("jit: expression not eligible for the typed path")

// asm accumulates raw x64 machine code. Generated functions follow the Go
// internal calling convention for leaf functions: the first two integer
// arguments and the result use RAX and RBX, floats use X0 and X1. R14 and
// X15 are never touched.
type asm struct {
	code []byte
}

func (a *asm) bytes(bs ...byte) { a.code = append(a.code, bs...) }

func (a *asm) movRAXImm(v int64) {
	a.bytes(0x48, 0xb8)
	for i := 0; i < 8; i++ {
		a.bytes(byte(v >> (8 * i)))
	}
}

// Argument registers are parked in R8/R9 so the accumulator is free.
func (a *asm) movR8RAX() { a.bytes(0x49, 0x89, 0xc0) }
func (a *asm) movR9RBX() { a.bytes(0x49, 0x89, 0xd9) }
func (a *asm) movRAXR8() { a.bytes(0x4c, 0x89, 0xc0) }
func (a *asm) movRAXR9() { a.bytes(0x4c, 0x89, 0xc8) }

func (a *asm) pushRAX() { a.bytes(0x50) }
func (a *asm) popRAX()  { a.bytes(0x58) }
func (a *asm) popRCX()  { a.bytes(0x59) }

func (a *asm) addRAXRCX()  { a.bytes(0x48, 0x01, 0xc8) }
func (a *asm) subRAXRCX()  { a.bytes(0x48, 0x29, 0xc8) }
func (a *asm) imulRAXRCX() { a.bytes(0x48, 0x0f, 0xaf, 0xc1) }

func (a *asm) addsdX0X1() { a.bytes(0xf2, 0x0f, 0x58, 0xc1) }
func (a *asm) subsdX0X1() { a.bytes(0xf2, 0x0f, 0x5c, 0xc1) }
func (a *asm) mulsdX0X1() { a.bytes(0xf2, 0x0f, 0x59, 0xc1) }
func (a *asm) divsdX0X1() { a.bytes(0xf2, 0x0f, 0x5e, 0xc1) }

func (a *asm) ret() { a.bytes(0xc3) }

// encodeIntDef encodes a two-argument integer definition whose body is an
// arithmetic tree over the parameters and integer literals. Division is
// left to the boxed path so zero divisors surface as errors, not faults.
func encodeIntDef(params []string, body kernel.Expr) ([]byte, error) {
	var a asm
	a.movR8RAX()
	a.movR9RBX()
	if err := encodeIntExpr(&a, params, body); err != nil {
		return nil, err
	}
	a.popRAX()
	a.ret()
	return a.code, nil
}

// encodeIntExpr compiles one tree node, leaving its value pushed on the
// stack. The stack depth stays small enough that no frame or stack-growth
// check is needed.
func encodeIntExpr(a *asm, params []string, e kernel.Expr) error {
	switch ex := e.(type) {
	case *kernel.Local:
		switch {
		case ex.Name == params[0]:
			a.movRAXR8()
		case ex.Name == params[1]:
			a.movRAXR9()
		default:
			return fmt.Errorf("%w: unbound local %q", ErrFastPathUnsupported, ex.Name)
		}
		a.pushRAX()
		return nil
	case *kernel.IntLit:
		a.movRAXImm(ex.Value)
		a.pushRAX()
		return nil
	case *kernel.Prim:
		if err := encodeIntExpr(a, params, ex.Left); err != nil {
			return err
		}
		if err := encodeIntExpr(a, params, ex.Right); err != nil {
			return err
		}
		a.popRCX()
		a.popRAX()
		switch ex.Op {
		case "+":
			a.addRAXRCX()
		case "-":
			a.subRAXRCX()
		case "*":
			a.imulRAXRCX()
		default:
			return fmt.Errorf("%w: op %q", ErrFastPathUnsupported, ex.Op)
		}
		a.pushRAX()
		return nil
	default:
		return fmt.Errorf("%w: node %T", ErrFastPathUnsupported, e)
	}
}

// encodeFloatDef encodes a two-argument float definition whose body is a
// single arithmetic operation on the parameters.
func encodeFloatDef(params []string, body kernel.Expr) ([]byte, error) {
	prim, ok := body.(*kernel.Prim)
	if !ok {
		return nil, fmt.Errorf("%w: node %T", ErrFastPathUnsupported, body)
	}
	l, lok := prim.Left.(*kernel.Local)
	r, rok := prim.Right.(*kernel.Local)
	if !lok || !rok || l.Name != params[0] || r.Name != params[1] {
		return nil, fmt.Errorf("%w: operands must be the parameters in order", ErrFastPathUnsupported)
	}
	var a asm
	switch prim.Op {
	case "+":
		a.addsdX0X1()
	case "-":
		a.subsdX0X1()
	case "*":
		a.mulsdX0X1()
	case "/":
		a.divsdX0X1()
	default:
		return nil, fmt.Errorf("%w: op %q", ErrFastPathUnsupported, prim.Op)
	}
	a.ret()
	return a.code, nil
}
