package native

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/types"
)

// The object artifact carries machine code for typed specializations in
// the System V calling convention, so a C link step can call them
// directly. Integer arguments arrive in RDI/RSI and return in RAX;
// floats use XMM0/XMM1 and return in XMM0.

type objAsm struct {
	code []byte
}

func (a *objAsm) bytes(bs ...byte) { a.code = append(a.code, bs...) }

func (a *objAsm) movImmRAX(v int64) {
	a.bytes(0x48, 0xb8)
	for i := 0; i < 8; i++ {
		a.bytes(byte(v >> (8 * i)))
	}
}

// encodeSysVInt compiles a two-argument integer body. Arguments are
// parked in R8/R9; the tree evaluates through a small push/pop stack.
func encodeSysVInt(params []string, body kernel.Expr) ([]byte, error) {
	var a objAsm
	a.bytes(0x49, 0x89, 0xf8) // mov r8, rdi
	a.bytes(0x49, 0x89, 0xf1) // mov r9, rsi
	if err := a.intExpr(params, body); err != nil {
		return nil, err
	}
	a.bytes(0x58) // pop rax
	a.bytes(0xc3) // ret
	return a.code, nil
}

func (a *objAsm) intExpr(params []string, e kernel.Expr) error {
	switch ex := e.(type) {
	case *kernel.Local:
		switch {
		case ex.Name == params[0]:
			a.bytes(0x4c, 0x89, 0xc0) // mov rax, r8
		case ex.Name == params[1]:
			a.bytes(0x4c, 0x89, 0xc8) // mov rax, r9
		default:
			return fmt.Errorf("%w: unbound local %q", ErrUnsupportedPattern, ex.Name)
		}
		a.bytes(0x50) // push rax
		return nil
	case *kernel.IntLit:
		a.movImmRAX(ex.Value)
		a.bytes(0x50)
		return nil
	case *kernel.Prim:
		if err := a.intExpr(params, ex.Left); err != nil {
			return err
		}
		if err := a.intExpr(params, ex.Right); err != nil {
			return err
		}
		a.bytes(0x59) // pop rcx
		a.bytes(0x58) // pop rax
		switch ex.Op {
		case "+":
			a.bytes(0x48, 0x01, 0xc8) // add rax, rcx
		case "-":
			a.bytes(0x48, 0x29, 0xc8) // sub rax, rcx
		case "*":
			a.bytes(0x48, 0x0f, 0xaf, 0xc1) // imul rax, rcx
		default:
			return fmt.Errorf("%w: op %q", ErrUnsupportedPattern, ex.Op)
		}
		a.bytes(0x50)
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPattern, e)
	}
}

// encodeSysVFloat compiles a two-argument float body consisting of one
// arithmetic operation on the parameters in order.
func encodeSysVFloat(params []string, body kernel.Expr) ([]byte, error) {
	prim, ok := body.(*kernel.Prim)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPattern, body)
	}
	l, lok := prim.Left.(*kernel.Local)
	r, rok := prim.Right.(*kernel.Local)
	if !lok || !rok || l.Name != params[0] || r.Name != params[1] {
		return nil, fmt.Errorf("%w: operands must be the parameters in order", ErrUnsupportedPattern)
	}
	var a objAsm
	switch prim.Op {
	case "+":
		a.bytes(0xf2, 0x0f, 0x58, 0xc1) // addsd xmm0, xmm1
	case "-":
		a.bytes(0xf2, 0x0f, 0x5c, 0xc1) // subsd xmm0, xmm1
	case "*":
		a.bytes(0xf2, 0x0f, 0x59, 0xc1) // mulsd xmm0, xmm1
	case "/":
		a.bytes(0xf2, 0x0f, 0x5e, 0xc1) // divsd xmm0, xmm1
	default:
		return nil, fmt.Errorf("%w: op %q", ErrUnsupportedPattern, prim.Op)
	}
	a.bytes(0xc3)
	return a.code, nil
}

// encodeVariant picks the encoder for one typed specialization.
func encodeVariant(def *Def, variant types.CgType) ([]byte, error) {
	args, result := variant.Uncurry()
	if len(args) != 2 || len(def.Params) != 2 {
		return nil, fmt.Errorf("%w: only two-argument scalars compile to object code", ErrUnsupportedPattern)
	}
	switch {
	case result.Kind == types.CgInt && args[0].Kind == types.CgInt && args[1].Kind == types.CgInt:
		return encodeSysVInt(def.Params, def.Body)
	case result.Kind == types.CgFloat && args[0].Kind == types.CgFloat && args[1].Kind == types.CgFloat:
		return encodeSysVFloat(def.Params, def.Body)
	default:
		return nil, fmt.Errorf("%w: type %s", ErrUnsupportedPattern, variant.Mangle())
	}
}
