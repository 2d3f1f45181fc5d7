package native

import (
	"fmt"
	"strings"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/types"
)

// scalarVal is one unboxed intermediate value during typed emission.
type scalarVal struct {
	c    string
	kind types.CgKind
}

// emitTypedDef renders the unboxed specialization of a definition at one
// closed scalar type. It must behave identically to the boxed entry; only
// the calling convention differs.
func (e *emitter) emitTypedDef(def *Def, variant types.CgType, linkage string) (string, error) {
	args, result := variant.Uncurry()
	if len(args) != len(def.Params) {
		return "", fmt.Errorf("%w: arity %d under type %s", ErrUnsupportedTyped, len(def.Params), variant.Mangle())
	}
	env := map[string]scalarVal{}
	sig := make([]string, len(args))
	for i, a := range args {
		p := fmt.Sprintf("p%d", i)
		env[def.Params[i]] = scalarVal{c: p, kind: a.Kind}
		sig[i] = scalarCType(a) + " " + p
	}

	e.tmp = 0
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s %s(%s) {\n", linkage, scalarCType(result), typedSymbol(def.Name, variant), strings.Join(sig, ", "))
	v, err := e.emitScalar(&b, "  ", env, def.Body)
	if err != nil {
		return "", err
	}
	if v.kind != result.Kind {
		return "", fmt.Errorf("%w: body yields a different scalar than the declared result", ErrUnsupportedTyped)
	}
	fmt.Fprintf(&b, "  return %s;\n}\n", v.c)
	return b.String(), nil
}

func (e *emitter) emitScalar(b *strings.Builder, ind string, env map[string]scalarVal, x kernel.Expr) (scalarVal, error) {
	none := scalarVal{}
	switch ex := x.(type) {
	case *kernel.Local:
		v, ok := env[ex.Name]
		if !ok {
			return none, fmt.Errorf("%w: unbound local %q", ErrUnsupportedTyped, ex.Name)
		}
		return v, nil
	case *kernel.IntLit:
		return scalarVal{c: fmt.Sprintf("INT64_C(%d)", ex.Value), kind: types.CgInt}, nil
	case *kernel.FloatLit:
		return scalarVal{c: cFloat(ex.Value), kind: types.CgFloat}, nil
	case *kernel.BoolLit:
		c := "0"
		if ex.Value {
			c = "1"
		}
		return scalarVal{c: c, kind: types.CgBool}, nil

	case *kernel.Prim:
		l, err := e.emitScalar(b, ind, env, ex.Left)
		if err != nil {
			return none, err
		}
		r, err := e.emitScalar(b, ind, env, ex.Right)
		if err != nil {
			return none, err
		}
		switch ex.Op {
		case "+", "-", "*", "/":
			if l.kind != r.kind || (l.kind != types.CgInt && l.kind != types.CgFloat) {
				return none, fmt.Errorf("%w: %q on mixed operands", ErrUnsupportedTyped, ex.Op)
			}
			return scalarVal{c: fmt.Sprintf("(%s %s %s)", l.c, ex.Op, r.c), kind: l.kind}, nil
		case "==", "!=", "<", "<=", ">", ">=":
			if l.kind != r.kind {
				return none, fmt.Errorf("%w: %q on mixed operands", ErrUnsupportedTyped, ex.Op)
			}
			return scalarVal{c: fmt.Sprintf("(%s %s %s)", l.c, ex.Op, r.c), kind: types.CgBool}, nil
		case "&&", "||":
			if l.kind != types.CgBool || r.kind != types.CgBool {
				return none, fmt.Errorf("%w: %q on non-booleans", ErrUnsupportedTyped, ex.Op)
			}
			return scalarVal{c: fmt.Sprintf("(%s %s %s)", l.c, ex.Op, r.c), kind: types.CgBool}, nil
		default:
			return none, fmt.Errorf("%w: op %q", ErrUnsupportedTyped, ex.Op)
		}

	case *kernel.Let:
		v, err := e.emitScalar(b, ind, env, ex.Value)
		if err != nil {
			return none, err
		}
		t := e.fresh()
		fmt.Fprintf(b, "%s%s %s = %s;\n", ind, scalarCType(types.CgOf(v.kind)), t, v.c)
		inner := make(map[string]scalarVal, len(env)+1)
		for k, val := range env {
			inner[k] = val
		}
		inner[ex.Name] = scalarVal{c: t, kind: v.kind}
		return e.emitScalar(b, ind, inner, ex.Body)

	case *kernel.If:
		c, err := e.emitScalar(b, ind, env, ex.Cond)
		if err != nil {
			return none, err
		}
		if c.kind != types.CgBool {
			return none, fmt.Errorf("%w: non-boolean condition", ErrUnsupportedTyped)
		}
		tv, err := e.emitScalar(b, ind, env, ex.Then)
		if err != nil {
			return none, err
		}
		ev, err := e.emitScalar(b, ind, env, ex.Else)
		if err != nil {
			return none, err
		}
		if tv.kind != ev.kind {
			return none, fmt.Errorf("%w: branch types differ", ErrUnsupportedTyped)
		}
		return scalarVal{c: fmt.Sprintf("(%s ? %s : %s)", c.c, tv.c, ev.c), kind: tv.kind}, nil

	case *kernel.Apply:
		return e.emitScalarCall(b, ind, env, ex)

	default:
		return none, fmt.Errorf("%w: %T", ErrUnsupportedTyped, x)
	}
}

// emitScalarCall compiles a saturated call to another definition when a
// typed specialization matching the argument kinds exists. This is where
// monomorphized call sites skip boxing entirely.
func (e *emitter) emitScalarCall(b *strings.Builder, ind string, env map[string]scalarVal, ex *kernel.Apply) (scalarVal, error) {
	none := scalarVal{}
	head, argExprs := splitSpine(ex)
	ref, ok := head.(*kernel.GlobalRef)
	if !ok {
		return none, fmt.Errorf("%w: call through a computed function", ErrUnsupportedTyped)
	}
	args := make([]scalarVal, len(argExprs))
	for i, a := range argExprs {
		v, err := e.emitScalar(b, ind, env, a)
		if err != nil {
			return none, err
		}
		args[i] = v
	}
	callee := e.findDef(ref.Name)
	if callee == nil {
		return none, fmt.Errorf("%w: call to %q", ErrUnsupportedTyped, ref.Name)
	}
	for _, variant := range callee.Variants {
		vargs, vresult := variant.Uncurry()
		if !scalarVariant(variant) || len(vargs) != len(args) {
			continue
		}
		match := true
		for i := range args {
			if vargs[i].Kind != args[i].kind {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		cargs := make([]string, len(args))
		for i, a := range args {
			cargs[i] = a.c
		}
		return scalarVal{
			c:    fmt.Sprintf("%s(%s)", typedSymbol(callee.Name, variant), strings.Join(cargs, ", ")),
			kind: vresult.Kind,
		}, nil
	}
	return none, fmt.Errorf("%w: no typed specialization of %q fits the call", ErrUnsupportedTyped, ref.Name)
}

func (e *emitter) findDef(name string) *Def {
	for _, def := range e.prog.Defs {
		if def.Name == name {
			return def
		}
	}
	return nil
}

// splitSpine flattens nested applications into head and argument list.
func splitSpine(x kernel.Expr) (kernel.Expr, []kernel.Expr) {
	var args []kernel.Expr
	cur := x
	for {
		app, ok := cur.(*kernel.Apply)
		if !ok {
			break
		}
		args = append([]kernel.Expr{app.Arg}, args...)
		cur = app.Fn
	}
	return cur, args
}
