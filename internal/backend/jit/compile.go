package jit

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/runtime"
)

// evalFn is a compiled expression. The frame carries the enclosing
// definition's full argument vector followed by let and case bindings.
type evalFn func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error)

// slot resolves a name to its frame index, innermost binding first.
func slot(env []string, name string) (int, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if env[i] == name {
			return i, true
		}
	}
	return 0, false
}

func (m *Module) compileExpr(env []string, e kernel.Expr) (evalFn, error) {
	switch ex := e.(type) {
	case *kernel.Local:
		idx, ok := slot(env, ex.Name)
		if !ok {
			return nil, fmt.Errorf("unbound local %q", ex.Name)
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return frame[idx], nil
		}, nil

	case *kernel.GlobalRef:
		name := ex.Name
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return m.global(ctx, name)
		}, nil

	case *kernel.IntLit:
		v := ex.Value
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.NewInt(v), nil
		}, nil

	case *kernel.FloatLit:
		v := ex.Value
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.NewFloat(v), nil
		}, nil

	case *kernel.TextLit:
		v := ex.Value
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.NewText(v), nil
		}, nil

	case *kernel.BoolLit:
		v := ex.Value
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.NewBool(v), nil
		}, nil

	case *kernel.UnitLit:
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.Unit(), nil
		}, nil

	case *kernel.MakeClosure:
		cd, ok := m.fns[ex.Code]
		if !ok {
			return nil, fmt.Errorf("closure references unknown code %q", ex.Code)
		}
		caps, err := m.compileAll(env, ex.Captures)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			bound := make([]*runtime.Handle, len(caps))
			for i, c := range caps {
				v, err := c(ctx, frame)
				if err != nil {
					return nil, err
				}
				bound[i] = v
			}
			return runtime.NewClosure(cd.name, cd.arity, cd.fn, bound), nil
		}, nil

	case *kernel.Apply:
		if inner, ok := ex.Fn.(*kernel.Apply); ok {
			if ref, ok := inner.Fn.(*kernel.GlobalRef); ok {
				if cd, ok := m.fns[ref.Name]; ok && cd.arity == 2 {
					return m.compileBinaryCall(env, ref.Name, inner.Arg, ex.Arg)
				}
			}
		}
		fn, err := m.compileExpr(env, ex.Fn)
		if err != nil {
			return nil, err
		}
		arg, err := m.compileExpr(env, ex.Arg)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			f, err := fn(ctx, frame)
			if err != nil {
				return nil, err
			}
			a, err := arg(ctx, frame)
			if err != nil {
				return nil, err
			}
			return runtime.Apply(ctx, f, a)
		}, nil

	case *kernel.Prim:
		left, err := m.compileExpr(env, ex.Left)
		if err != nil {
			return nil, err
		}
		right, err := m.compileExpr(env, ex.Right)
		if err != nil {
			return nil, err
		}
		op := ex.Op
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			l, err := left(ctx, frame)
			if err != nil {
				return nil, err
			}
			r, err := right(ctx, frame)
			if err != nil {
				return nil, err
			}
			return runtime.PrimOp(op, l, r)
		}, nil

	case *kernel.Let:
		val, err := m.compileExpr(env, ex.Value)
		if err != nil {
			return nil, err
		}
		body, err := m.compileExpr(append(env[:len(env):len(env)], ex.Name), ex.Body)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			v, err := val(ctx, frame)
			if err != nil {
				return nil, err
			}
			return body(ctx, append(frame[:len(frame):len(frame)], v))
		}, nil

	case *kernel.If:
		cond, err := m.compileExpr(env, ex.Cond)
		if err != nil {
			return nil, err
		}
		then, err := m.compileExpr(env, ex.Then)
		if err != nil {
			return nil, err
		}
		els, err := m.compileExpr(env, ex.Else)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			c, err := cond(ctx, frame)
			if err != nil {
				return nil, err
			}
			if c.Value().Tag != runtime.TagBool {
				return nil, runtime.ErrBadOperand
			}
			if c.Value().Bool {
				return then(ctx, frame)
			}
			return els(ctx, frame)
		}, nil

	case *kernel.Case:
		return m.compileCase(env, ex)

	case *kernel.MatchFail:
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return nil, runtime.ErrMatchFail
		}, nil

	case *kernel.Tuple:
		items, err := m.compileAll(env, ex.Items)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			vs, err := evalAll(ctx, frame, items)
			if err != nil {
				return nil, err
			}
			return runtime.NewTuple(vs), nil
		}, nil

	case *kernel.List:
		items, err := m.compileAll(env, ex.Items)
		if err != nil {
			return nil, err
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			vs, err := evalAll(ctx, frame, items)
			if err != nil {
				return nil, err
			}
			return runtime.NewList(vs), nil
		}, nil

	case *kernel.Record:
		names := make([]string, len(ex.Fields))
		vals := make([]evalFn, len(ex.Fields))
		for i, f := range ex.Fields {
			v, err := m.compileExpr(env, f.Value)
			if err != nil {
				return nil, err
			}
			names[i], vals[i] = f.Name, v
		}
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			fields := make([]runtime.FieldVal, len(vals))
			for i, v := range vals {
				h, err := v(ctx, frame)
				if err != nil {
					return nil, err
				}
				fields[i] = runtime.FieldVal{Name: names[i], Value: h}
			}
			return runtime.NewRecord(fields), nil
		}, nil

	case *kernel.Field:
		base, err := m.compileExpr(env, ex.Base)
		if err != nil {
			return nil, err
		}
		name := ex.Name
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			b, err := base(ctx, frame)
			if err != nil {
				return nil, err
			}
			h, ok := b.Value().Field(name)
			if !ok {
				return nil, runtime.ErrBadOperand
			}
			return h, nil
		}, nil

	case *kernel.TupleGet:
		base, err := m.compileExpr(env, ex.Base)
		if err != nil {
			return nil, err
		}
		idx := ex.Index
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			b, err := base(ctx, frame)
			if err != nil {
				return nil, err
			}
			v := b.Value()
			if v.Tag != runtime.TagTuple || idx >= len(v.Items) {
				return nil, runtime.ErrBadOperand
			}
			return v.Items[idx], nil
		}, nil

	case *kernel.Construct:
		args, err := m.compileAll(env, ex.Args)
		if err != nil {
			return nil, err
		}
		ctor, tag := ex.Ctor, ex.Tag
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			vs, err := evalAll(ctx, frame, args)
			if err != nil {
				return nil, err
			}
			return runtime.NewCtor(ctor, tag, vs), nil
		}, nil

	case *kernel.Dispatch:
		class, member := ex.Class, ex.Member
		return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
			return runtime.DispatchValue(ctx.Runtime(), class, member), nil
		}, nil

	default:
		return nil, fmt.Errorf("unsupported kernel node %T", e)
	}
}

func (m *Module) compileCase(env []string, ex *kernel.Case) (evalFn, error) {
	scrut, err := m.compileExpr(env, ex.Scrut)
	if err != nil {
		return nil, err
	}
	type branch struct {
		tag   int
		binds int
		body  evalFn
	}
	branches := make([]branch, len(ex.Branches))
	for i, b := range ex.Branches {
		benv := append(env[:len(env):len(env)], b.Binds...)
		body, err := m.compileExpr(benv, b.Body)
		if err != nil {
			return nil, err
		}
		branches[i] = branch{tag: b.Tag, binds: len(b.Binds), body: body}
	}
	var def evalFn
	if ex.Default != nil {
		def, err = m.compileExpr(env, ex.Default)
		if err != nil {
			return nil, err
		}
	}
	return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
		s, err := scrut(ctx, frame)
		if err != nil {
			return nil, err
		}
		v := s.Value()
		if v.Tag != runtime.TagCtor {
			return nil, runtime.ErrBadOperand
		}
		for _, b := range branches {
			if b.tag != v.CtorTag {
				continue
			}
			if len(v.Items) != b.binds {
				return nil, runtime.ErrBadOperand
			}
			inner := append(frame[:len(frame):len(frame)], v.Items...)
			return b.body(ctx, inner)
		}
		if def != nil {
			return def(ctx, frame)
		}
		return nil, runtime.ErrMatchFail
	}, nil
}

// compileBinaryCall handles a saturated call to a two-argument definition.
// When the definition carries a typed machine-code entry and both operands
// are already the matching scalars, the call stays unboxed; anything else
// falls back to the boxed closure. Typed entries are installed after body
// compilation, so the lookup happens per call, not per compile.
func (m *Module) compileBinaryCall(env []string, name string, a1, a2 kernel.Expr) (evalFn, error) {
	first, err := m.compileExpr(env, a1)
	if err != nil {
		return nil, err
	}
	second, err := m.compileExpr(env, a2)
	if err != nil {
		return nil, err
	}
	return func(ctx *runtime.Context, frame []*runtime.Handle) (*runtime.Handle, error) {
		x, err := first(ctx, frame)
		if err != nil {
			return nil, err
		}
		y, err := second(ctx, frame)
		if err != nil {
			return nil, err
		}
		if f, ok := m.typedInt[name]; ok {
			xv, yv := x.Value(), y.Value()
			if xv.Tag == runtime.TagInt && yv.Tag == runtime.TagInt {
				return runtime.NewInt(f(xv.Int, yv.Int)), nil
			}
		}
		if f, ok := m.typedFloat[name]; ok {
			xv, yv := x.Value(), y.Value()
			if xv.Tag == runtime.TagFloat && yv.Tag == runtime.TagFloat {
				return runtime.NewFloat(f(xv.Float, yv.Float)), nil
			}
		}
		g, err := m.global(ctx, name)
		if err != nil {
			return nil, err
		}
		return runtime.ApplyAll(ctx, g, []*runtime.Handle{x, y})
	}, nil
}

func (m *Module) compileAll(env []string, items []kernel.Expr) ([]evalFn, error) {
	out := make([]evalFn, len(items))
	for i, item := range items {
		f, err := m.compileExpr(env, item)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func evalAll(ctx *runtime.Context, frame []*runtime.Handle, fns []evalFn) ([]*runtime.Handle, error) {
	out := make([]*runtime.Handle, len(fns))
	for i, f := range fns {
		v, err := f(ctx, frame)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// global resolves a reference at call time. Zero-argument definitions
// evaluate on each reference; everything else becomes a closure value.
// Names not defined by the program fall through to runtime builtins.
func (m *Module) global(ctx *runtime.Context, name string) (*runtime.Handle, error) {
	if cd, ok := m.fns[name]; ok {
		if cd.arity == 0 {
			return cd.fn(ctx, nil)
		}
		return runtime.NewClosure(cd.name, cd.arity, cd.fn, nil), nil
	}
	return ctx.Runtime().Global(name)
}
