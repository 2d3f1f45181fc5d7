package typecheck

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/position"
	"github.com/lumen-lang/lumen/internal/types"
)

// Builtin type constructors and their arities. User declarations extend this
// table; the combined table is computed for all modules before any alias
// body is resolved, so mutually referencing aliases and forward references
// to user types never degrade into fresh unconstrained variables.
var builtinKinds = map[string]types.Kind{
	"Int":     types.KindStar,
	"Float":   types.KindStar,
	"Bool":    types.KindStar,
	"Text":    types.KindStar,
	"Unit":    types.KindStar,
	"List":    types.KindOfArity(1),
	"Effect":  types.KindOfArity(1),
	"Channel": types.KindOfArity(1),
}

// aliasInfo is a resolved type alias: parameters plus a body over them.
type aliasInfo struct {
	params []types.VarID
	body   types.Type
}

// collectKinds walks every module and records one kind per type constructor
// and alias, derived from declared arity.
func (c *Checker) collectKinds(prog *ast.Program) {
	for name, kind := range builtinKinds {
		c.kinds[name] = kind
	}
	for _, mod := range prog.Modules {
		for _, decl := range mod.Types {
			if _, exists := c.kinds[decl.Name]; exists {
				c.bag.Error(diagnostic.CodeKindMismatch, decl.Span,
					"type %q is already declared", decl.Name)
				continue
			}
			c.kinds[decl.Name] = types.KindOfArity(len(decl.Params))
		}
		for _, alias := range mod.Aliases {
			if _, exists := c.kinds[alias.Name]; exists {
				c.bag.Error(diagnostic.CodeKindMismatch, alias.Span,
					"type %q is already declared", alias.Name)
				continue
			}
			c.kinds[alias.Name] = types.KindOfArity(len(alias.Params))
		}
	}
}

// resolveAliases registers alias declarations and then forces every body
// through resolveAlias. Resolution is demand-driven and memoized, so an
// alias body may reference aliases declared later (or in later modules)
// without degrading into a nominal constructor; the eager pass here only
// guarantees that diagnostics for unused aliases still surface.
func (c *Checker) resolveAliases(prog *ast.Program) {
	for _, mod := range prog.Modules {
		for _, alias := range mod.Aliases {
			if _, dup := c.aliasDecls[alias.Name]; dup {
				// Redeclaration was already diagnosed in collectKinds.
				continue
			}
			c.aliasDecls[alias.Name] = alias
		}
	}
	for _, mod := range prog.Modules {
		for _, alias := range mod.Aliases {
			c.resolveAlias(alias.Name, 0)
		}
	}
}

// resolveAlias converts one alias body on first use. Self-referential
// chains re-enter through applyNamed and are cut by the depth guard.
func (c *Checker) resolveAlias(name string, depth int) (aliasInfo, bool) {
	if info, ok := c.aliases[name]; ok {
		return info, true
	}
	decl, ok := c.aliasDecls[name]
	if !ok {
		return aliasInfo{}, false
	}
	tcx := newTypeContext()
	params := make([]types.VarID, len(decl.Params))
	for i, p := range decl.Params {
		id := c.freshVarID()
		tcx.vars[p] = id
		params[i] = id
	}
	info := aliasInfo{params: params, body: c.convertTypeExprDepth(decl.Body, tcx, depth+1)}
	c.aliases[name] = info
	return info, true
}

// collectConstructors records every data constructor's signature and the
// ADT it belongs to.
func (c *Checker) collectConstructors(prog *ast.Program) {
	for _, mod := range prog.Modules {
		for _, decl := range mod.Types {
			tcx := newTypeContext()
			params := make([]types.VarID, len(decl.Params))
			resultArgs := make([]types.Type, len(decl.Params))
			for i, p := range decl.Params {
				id := c.freshVarID()
				tcx.vars[p] = id
				params[i] = id
				resultArgs[i] = types.Var{ID: id}
			}
			result := types.Con{Name: decl.Name, Args: resultArgs}
			for _, ctor := range decl.Constructors {
				args := make([]types.Type, len(ctor.Args))
				for i, argExpr := range ctor.Args {
					args[i] = c.convertTypeExpr(argExpr, tcx)
				}
				c.ctors[ctor.Name] = ctorInfo{
					typeName: decl.Name,
					vars:     params,
					args:     args,
					result:   result,
				}
			}
			c.adtDecls[decl.Name] = decl
		}
	}
}

// typeContext maps surface type-variable names to checker variables while
// converting one TypeExpr.
type typeContext struct {
	vars map[string]types.VarID
}

func newTypeContext() *typeContext {
	return &typeContext{vars: make(map[string]types.VarID)}
}

const maxAliasDepth = 64

// convertTypeExpr turns surface type notation into a semantic type,
// expanding aliases and checking constructor kinds along the way.
func (c *Checker) convertTypeExpr(te ast.TypeExpr, tcx *typeContext) types.Type {
	return c.convertTypeExprDepth(te, tcx, 0)
}

func (c *Checker) convertTypeExprDepth(te ast.TypeExpr, tcx *typeContext, depth int) types.Type {
	if depth > maxAliasDepth {
		c.bag.Error(diagnostic.CodeKindMismatch, te.Span(), "type alias expansion is too deep (cyclic alias?)")
		return c.freshVar()
	}
	switch t := te.(type) {
	case *ast.TypeName:
		if isTypeVarName(t.Name) {
			if id, ok := tcx.vars[t.Name]; ok {
				return types.Var{ID: id}
			}
			id := c.freshVarID()
			tcx.vars[t.Name] = id
			return types.Var{ID: id}
		}
		return c.applyNamed(t.Name, nil, t.Sp, tcx, depth)
	case *ast.TypeApply:
		base, ok := t.Base.(*ast.TypeName)
		if !ok || isTypeVarName(base.Name) {
			c.bag.Error(diagnostic.CodeKindMismatch, t.Sp, "only named constructors can be applied to type arguments")
			return c.freshVar()
		}
		args := make([]types.Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = c.convertTypeExprDepth(arg, tcx, depth)
		}
		return c.applyNamed(base.Name, args, t.Sp, tcx, depth)
	case *ast.TypeFunc:
		return types.Func{
			Param:  c.convertTypeExprDepth(t.Param, tcx, depth),
			Result: c.convertTypeExprDepth(t.Result, tcx, depth),
		}
	case *ast.TypeTuple:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = c.convertTypeExprDepth(item, tcx, depth)
		}
		return types.Tuple{Items: items}
	case *ast.TypeRecord:
		fields := make(map[string]types.Type, len(t.Fields))
		for _, f := range t.Fields {
			if _, dup := fields[f.Name]; dup {
				c.bag.Error(diagnostic.CodeKindMismatch, t.Sp, "duplicate record field %q", f.Name)
				continue
			}
			fields[f.Name] = c.convertTypeExprDepth(f.Type, tcx, depth)
		}
		return types.Record{Fields: fields, Open: t.Open}
	default:
		return c.freshVar()
	}
}

// applyNamed resolves a named constructor or alias applied to args,
// enforcing kind (arity) agreement.
func (c *Checker) applyNamed(name string, args []types.Type, sp position.Span, tcx *typeContext, depth int) types.Type {
	if alias, ok := c.resolveAlias(name, depth); ok {
		if len(args) != len(alias.params) {
			c.bag.Error(diagnostic.CodeKindMismatch, sp,
				"alias %q expects %d argument(s), found %d (kind %s)",
				name, len(alias.params), len(args), types.KindOfArity(len(alias.params)))
			return c.freshVar()
		}
		subst := make(map[types.VarID]types.Type, len(args))
		for i, p := range alias.params {
			subst[p] = args[i]
		}
		return substituteVars(alias.body, subst)
	}
	kind, ok := c.kinds[name]
	if !ok {
		c.bag.Error(diagnostic.CodeUnknownType, sp, "unknown type %q", name)
		return c.freshVar()
	}
	if kind.Arity != len(args) {
		c.bag.Error(diagnostic.CodeKindMismatch, sp,
			"type %q has kind %s but is applied to %d argument(s)", name, kind, len(args))
		return c.freshVar()
	}
	return types.Con{Name: name, Args: args}
}

// substituteVars replaces type variables per subst, leaving others intact.
func substituteVars(t types.Type, subst map[types.VarID]types.Type) types.Type {
	switch ty := t.(type) {
	case types.Var:
		if repl, ok := subst[ty.ID]; ok {
			return repl
		}
		return ty
	case types.Con:
		args := make([]types.Type, len(ty.Args))
		for i, a := range ty.Args {
			args[i] = substituteVars(a, subst)
		}
		return types.Con{Name: ty.Name, Args: args}
	case types.Func:
		return types.Func{
			Param:  substituteVars(ty.Param, subst),
			Result: substituteVars(ty.Result, subst),
		}
	case types.Tuple:
		items := make([]types.Type, len(ty.Items))
		for i, it := range ty.Items {
			items[i] = substituteVars(it, subst)
		}
		return types.Tuple{Items: items}
	case types.Record:
		fields := make(map[string]types.Type, len(ty.Fields))
		for name, ft := range ty.Fields {
			fields[name] = substituteVars(ft, subst)
		}
		return types.Record{Fields: fields, Open: ty.Open}
	default:
		return t
	}
}

func isTypeVarName(name string) bool {
	return len(name) > 0 && name[0] >= 'a' && name[0] <= 'z'
}
