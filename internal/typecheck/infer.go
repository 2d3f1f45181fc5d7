package typecheck

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/types"
)

var (
	intType   = types.NewCon("Int")
	floatType = types.NewCon("Float")
	boolType  = types.NewCon("Bool")
	textType  = types.NewCon("Text")
	unitType  = types.NewCon("Unit")
)

func effectOf(t types.Type) types.Type {
	return types.NewCon("Effect", t)
}

// inferExpr computes the type of an expression under the local scope.
// Errors are reported in place and the expression keeps a fresh variable,
// so inference continues through bad subterms.
func (c *Checker) inferExpr(e ast.Expr, env *scope) types.Type {
	switch ex := e.(type) {
	case *ast.IntLit:
		return intType
	case *ast.FloatLit:
		return floatType
	case *ast.StringLit:
		return textType
	case *ast.BoolLit:
		return boolType
	case *ast.UnitLit:
		return unitType

	case *ast.Var:
		return c.inferVar(ex, env)

	case *ast.Lambda:
		arg := c.freshVar()
		body := c.inferExpr(ex.Body, env.Set(ex.Param, arg))
		return types.Func{Param: arg, Result: body}

	case *ast.Apply:
		fn := c.inferExpr(ex.Fn, env)
		arg := c.inferExpr(ex.Arg, env)
		result := c.freshVar()
		c.unify(fn, types.Func{Param: arg, Result: result}, ex.Sp)
		return result

	case *ast.Binary:
		scheme, known := opScheme(ex.Op)
		if !known {
			c.bag.Error(diagnostic.CodeUnknownType, ex.Sp, "unknown operator %q", ex.Op)
			return c.freshVar()
		}
		op := c.instantiate(scheme)
		left := c.inferExpr(ex.Left, env)
		right := c.inferExpr(ex.Right, env)
		result := c.freshVar()
		c.unify(op, types.Arrow(result, left, right), ex.Sp)
		return result

	case *ast.Let:
		value := c.inferExpr(ex.Value, env)
		return c.inferExpr(ex.Body, env.Set(ex.Name, value))

	case *ast.If:
		cond := c.inferExpr(ex.Cond, env)
		c.unify(cond, boolType, ex.Cond.Span())
		thenT := c.inferExpr(ex.Then, env)
		elseT := c.inferExpr(ex.Else, env)
		c.unify(thenT, elseT, ex.Sp)
		return thenT

	case *ast.Match:
		scrut := c.inferExpr(ex.Scrutinee, env)
		result := c.freshVar()
		for _, arm := range ex.Arms {
			armEnv := c.bindPattern(arm.Pattern, scrut, env)
			if arm.Guard != nil {
				guard := c.inferExpr(arm.Guard, armEnv)
				c.unify(guard, boolType, arm.Guard.Span())
			}
			body := c.inferExpr(arm.Body, armEnv)
			c.unify(body, result, arm.Body.Span())
		}
		return result

	case *ast.TupleLit:
		items := make([]types.Type, len(ex.Items))
		for i, item := range ex.Items {
			items[i] = c.inferExpr(item, env)
		}
		return types.Tuple{Items: items}

	case *ast.ListLit:
		elem := c.freshVar()
		for _, item := range ex.Items {
			t := c.inferExpr(item, env)
			c.unify(t, elem, item.Span())
		}
		return types.NewCon("List", elem)

	case *ast.RecordLit:
		fields := make(map[string]types.Type, len(ex.Fields))
		for _, f := range ex.Fields {
			if _, dup := fields[f.Name]; dup {
				c.bag.Error(diagnostic.CodeUnificationMismatch, ex.Sp,
					"duplicate record field %q", f.Name)
				continue
			}
			fields[f.Name] = c.inferExpr(f.Value, env)
		}
		return types.Record{Fields: fields}

	case *ast.FieldAccess:
		base := c.inferExpr(ex.Base, env)
		switch resolved := c.resolve(base).(type) {
		case types.Record:
			if ft, ok := resolved.Fields[ex.Field]; ok {
				return ft
			}
			if resolved.Open {
				ft := c.freshVar()
				resolved.Fields[ex.Field] = ft
				return ft
			}
			c.bag.Error(diagnostic.CodeUnificationMismatch, ex.Sp,
				"record has no field %q", ex.Field)
			return c.freshVar()
		case types.Var:
			// Shape unknown at this point: commit to an open record and
			// leave a deferred obligation, verified in the fixpoint once
			// the full shape is known.
			ft := c.freshVar()
			c.deferField(resolved, ex.Field, ft, ex.Sp)
			c.bindVar(resolved.ID, types.Record{
				Fields: map[string]types.Type{ex.Field: ft},
				Open:   true,
			}, ex.Sp)
			return ft
		default:
			printer := types.NewPrinter()
			c.bag.Error(diagnostic.CodeUnificationMismatch, ex.Sp,
				"%s is not a record, cannot access field %q",
				printer.Print(resolved), ex.Field)
			return c.freshVar()
		}

	case *ast.EffectBlock:
		return c.inferEffectBlock(ex, env)

	default:
		c.bag.Error(diagnostic.CodeUnsupportedConstruct, e.Span(), "unsupported expression")
		return c.freshVar()
	}
}

// inferVar resolves a name through, in order: local scope, generalized
// top-level schemes, provisional definition types (same binding group),
// data constructors, class members, builtins.
func (c *Checker) inferVar(ex *ast.Var, env *scope) types.Type {
	if t, ok := env.Get(ex.Name); ok {
		return t
	}
	if scheme, ok := c.schemes[ex.Name]; ok {
		t := c.instantiate(scheme)
		if len(scheme.Vars) > 0 {
			c.insts = append(c.insts, instRecord{name: ex.Name, t: t})
		}
		return t
	}
	if t, ok := c.defTypes[ex.Name]; ok {
		// Same binding group: monomorphic recursive reference.
		return t
	}
	if info, ok := c.ctors[ex.Name]; ok {
		return c.instantiateCtor(info)
	}
	if class, ok := c.memberClass[ex.Name]; ok {
		scheme := c.classes[class].Members[ex.Name]
		subst := make(map[types.VarID]types.Type, len(scheme.Vars))
		for _, v := range scheme.Vars {
			subst[v] = c.freshVar()
		}
		for _, con := range scheme.Constraints {
			fresh := subst[con.Var].(types.Var)
			root := c.uf.Find(fresh.ID)
			c.varClasses[root] = append(c.varClasses[root], con.Class)
		}
		// Remember the class parameter per use site so lowering can turn
		// statically resolved uses into direct instance calls.
		c.memberSites[ex] = memberSite{class: class, param: subst[scheme.Vars[0]]}
		return substituteVars(scheme.Type, subst)
	}
	if scheme, ok := c.builtins.Get(ex.Name); ok {
		return c.instantiate(scheme)
	}
	c.bag.Error(diagnostic.CodeUnknownType, ex.Sp, "unknown name %q", ex.Name)
	return c.freshVar()
}

// instantiateCtor returns the constructor's curried function type with
// fresh type parameters. A nullary constructor is just its result type.
func (c *Checker) instantiateCtor(info ctorInfo) types.Type {
	subst := make(map[types.VarID]types.Type, len(info.vars))
	for _, v := range info.vars {
		subst[v] = c.freshVar()
	}
	t := substituteVars(info.result, subst)
	for i := len(info.args) - 1; i >= 0; i-- {
		t = types.Func{Param: substituteVars(info.args[i], subst), Result: t}
	}
	return t
}

// inferEffectBlock types a sequential effect block. Every statement must be
// an effect; a bound name takes the effect's payload type; the block's type
// is the final statement's effect type.
func (c *Checker) inferEffectBlock(ex *ast.EffectBlock, env *scope) types.Type {
	if len(ex.Stmts) == 0 {
		c.bag.Error(diagnostic.CodeUnsupportedConstruct, ex.Sp, "empty effect block")
		return effectOf(c.freshVar())
	}
	var last types.Type
	for i, stmt := range ex.Stmts {
		t := c.inferExpr(stmt.Expr, env)
		payload := c.freshVar()
		c.unify(t, effectOf(payload), stmt.Span)
		if stmt.Bind != "" {
			if i == len(ex.Stmts)-1 {
				c.bag.Error(diagnostic.CodeUnsupportedConstruct, stmt.Span,
					"the final statement of an effect block cannot bind a name")
			}
			env = env.Set(stmt.Bind, payload)
		}
		last = effectOf(payload)
	}
	return last
}

// bindPattern checks a pattern against the scrutinee type and returns the
// scope extended with the pattern's bindings.
func (c *Checker) bindPattern(p ast.Pattern, t types.Type, env *scope) *scope {
	switch pat := p.(type) {
	case *ast.WildcardPattern:
		return env
	case *ast.VarPattern:
		return env.Set(pat.Name, t)
	case *ast.LiteralPattern:
		lit := c.inferExpr(pat.Value, env)
		c.unify(t, lit, pat.Sp)
		return env
	case *ast.ConstructorPattern:
		info, known := c.ctors[pat.Name]
		if !known {
			c.bag.Error(diagnostic.CodeUnknownType, pat.Sp, "unknown constructor %q", pat.Name)
			return env
		}
		if len(pat.Args) != len(info.args) {
			c.bag.Error(diagnostic.CodeUnificationMismatch, pat.Sp,
				"constructor %q takes %d argument(s), pattern has %d",
				pat.Name, len(info.args), len(pat.Args))
			return env
		}
		subst := make(map[types.VarID]types.Type, len(info.vars))
		for _, v := range info.vars {
			subst[v] = c.freshVar()
		}
		c.unify(t, substituteVars(info.result, subst), pat.Sp)
		for i, argPat := range pat.Args {
			env = c.bindPattern(argPat, substituteVars(info.args[i], subst), env)
		}
		return env
	case *ast.TuplePattern:
		items := make([]types.Type, len(pat.Items))
		for i := range items {
			items[i] = c.freshVar()
		}
		c.unify(t, types.Tuple{Items: items}, pat.Sp)
		for i, itemPat := range pat.Items {
			env = c.bindPattern(itemPat, items[i], env)
		}
		return env
	case *ast.RecordPattern:
		fields := make(map[string]types.Type, len(pat.Fields))
		for _, f := range pat.Fields {
			fields[f.Name] = c.freshVar()
		}
		c.unify(t, types.Record{Fields: fields, Open: true}, pat.Sp)
		for _, f := range pat.Fields {
			env = c.bindPattern(f.Pattern, fields[f.Name], env)
		}
		return env
	default:
		return env
	}
}
