// Package typecheck implements constraint-based type inference for Lumen:
// Hindley-Milner unification extended with classes and instances, global
// kind precomputation, deferred constraints resolved in a fixpoint, and
// per-definition closed codegen types for the monomorphizing backends.
package typecheck

import (
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/types"
)

// ctorInfo is the registered signature of one data constructor.
type ctorInfo struct {
	typeName string
	vars     []types.VarID
	args     []types.Type
	result   types.Con
}

// ConstructorInfo describes a data constructor for the lowering stages:
// which type it belongs to, its tag index within that type's declaration,
// and its payload arity.
type ConstructorInfo struct {
	TypeName string
	Tag      int
	Arity    int
}

// instRecord remembers one instantiation of a polymorphic definition at a
// call site. Closed instantiations become typed codegen variants.
type instRecord struct {
	name string
	t    types.Type
}

// memberSite is one use of a class member, keyed by its AST node. The class
// parameter's resolution decides static versus runtime dispatch.
type memberSite struct {
	class string
	param types.Type
}

// MemberUse is the resolved dispatch decision for one class-member use
// site. Head names the instance's type head when resolution is static and
// is empty when the use defers to runtime tag dispatch.
type MemberUse struct {
	Class  string
	Member string
	Head   string
}

// Result is the checker's output consumed by the lowering stages.
type Result struct {
	// Schemes holds the generalized type of every top-level definition.
	Schemes map[string]types.Scheme

	// CgTypes maps a definition to its closed concrete type, present only
	// when the definition resolved to a ground type.
	CgTypes map[string]types.CgType

	// Instantiations lists the closed types a polymorphic definition was
	// used at, one entry per distinct specialization.
	Instantiations map[string][]types.CgType

	// Classes and MemberClass expose the class environment: declared
	// classes with their instances, and member name to class name.
	Classes     map[string]*ClassInfo
	MemberClass map[string]string

	// Clauses groups top-level definitions by name in declaration order.
	// Names with more than one clause form multi-pattern dispatch.
	// DefOrder lists the names in first-declaration order.
	Clauses  map[string][]*ast.Def
	DefOrder []string

	// Constructors maps every data constructor to its tag and arity.
	Constructors map[string]ConstructorInfo

	// MemberUses records the dispatch decision for every class-member use
	// site in the program, keyed by the referencing AST node.
	MemberUses map[*ast.Var]MemberUse
}

// Checker holds all state for checking one compilation unit. Create one per
// unit with Check; instances are not reusable.
type Checker struct {
	bag *diagnostic.Bag

	uf         *types.UnionFind
	bindings   map[types.VarID]types.Type
	varClasses map[types.VarID][]string
	nextVar    types.VarID

	kinds      map[string]types.Kind
	aliases    map[string]aliasInfo
	aliasDecls map[string]*ast.AliasDecl
	ctors      map[string]ctorInfo
	adtDecls   map[string]*ast.TypeDecl

	classes     map[string]*ClassInfo
	memberClass map[string]string

	builtins *immutable.Map[string, types.Scheme]

	defTypes map[string]types.Type
	schemes  map[string]types.Scheme
	clauses  map[string][]*ast.Def
	defOrder []string

	deferredFields []*fieldConstraint
	insts          []instRecord
	memberSites    map[*ast.Var]memberSite
}

// Check runs inference over the whole program, reporting into bag. The
// returned Result is valid even when bag carries errors; downstream stages
// must consult bag.HasErrors before trusting it.
func Check(prog *ast.Program, bag *diagnostic.Bag) *Result {
	c := &Checker{
		bag:         bag,
		uf:          types.NewUnionFind(),
		bindings:    make(map[types.VarID]types.Type),
		varClasses:  make(map[types.VarID][]string),
		kinds:       make(map[string]types.Kind),
		aliases:     make(map[string]aliasInfo),
		aliasDecls:  make(map[string]*ast.AliasDecl),
		ctors:       make(map[string]ctorInfo),
		adtDecls:    make(map[string]*ast.TypeDecl),
		classes:     make(map[string]*ClassInfo),
		memberClass: make(map[string]string),
		defTypes:    make(map[string]types.Type),
		schemes:     make(map[string]types.Scheme),
		clauses:     make(map[string][]*ast.Def),
		memberSites: make(map[*ast.Var]memberSite),
	}
	c.builtins = builtinSchemes()

	c.collectKinds(prog)
	c.resolveAliases(prog)
	c.collectConstructors(prog)
	c.collectClasses(prog)
	c.collectInstances(prog)
	c.registerDefs(prog)
	c.checkDefs()
	c.checkInstanceMembers(prog)
	c.solveDeferredFields()
	return c.finalize()
}

func (c *Checker) freshVarID() types.VarID {
	id := c.nextVar
	c.nextVar++
	return id
}

func (c *Checker) freshVar() types.Type {
	return types.Var{ID: c.freshVarID()}
}

// registerDefs groups top-level clauses by name, rejects unsignatured
// redefinition, and assigns every name a provisional monotype.
func (c *Checker) registerDefs(prog *ast.Program) {
	for _, mod := range prog.Modules {
		for _, def := range mod.Defs {
			if _, seen := c.clauses[def.Name]; !seen {
				c.defOrder = append(c.defOrder, def.Name)
			}
			c.clauses[def.Name] = append(c.clauses[def.Name], def)
		}
	}
	for _, name := range c.defOrder {
		group := c.clauses[name]
		var sig ast.TypeExpr
		for _, def := range group {
			if def.Sig != nil {
				sig = def.Sig
				break
			}
		}
		if len(group) > 1 && sig == nil {
			c.bag.Error(diagnostic.CodeMissingSignature, group[1].Span,
				"redefinition of %q requires an explicit type signature", name)
		}
		if sig != nil {
			c.defTypes[name] = c.convertTypeExpr(sig, newTypeContext())
		} else {
			c.defTypes[name] = c.freshVar()
		}
	}
}

// checkDefs infers definition bodies in dependency order so that earlier
// groups are generalized before their callers are checked. Mutually
// recursive groups stay monomorphic within the group.
func (c *Checker) checkDefs() {
	for _, group := range c.bindingGroups() {
		for _, name := range group {
			for _, def := range c.clauses[name] {
				c.checkClause(name, def)
			}
		}
		for _, name := range group {
			c.generalize(name)
		}
	}
}

// checkClause checks one clause of a definition against the definition's
// shared type: parameters peel arrow types off it, the body supplies the
// final result.
func (c *Checker) checkClause(name string, def *ast.Def) {
	t := c.defTypes[name]
	env := emptyScope()
	for _, param := range def.Params {
		arg := c.freshVar()
		res := c.freshVar()
		c.unify(t, types.Func{Param: arg, Result: res}, def.Span)
		env = c.bindPattern(param, arg, env)
		t = res
	}
	body := c.inferExpr(def.Body, env)
	c.unify(body, t, def.Body.Span())
}

// generalize closes the definition's type over its remaining free variables
// and attaches the class constraints those variables accumulated.
func (c *Checker) generalize(name string) {
	t := c.deepResolve(c.defTypes[name])
	free := freeVars(t)
	scheme := types.Scheme{Type: t}
	for _, id := range free {
		root := c.uf.Find(id)
		scheme.Vars = append(scheme.Vars, root)
		for _, class := range c.varClasses[root] {
			scheme.Constraints = append(scheme.Constraints, types.ClassConstraint{Class: class, Var: root})
		}
	}
	c.schemes[name] = scheme
}

// instantiate replaces a scheme's quantified variables with fresh ones and
// re-attaches its constraints to the fresh variables.
func (c *Checker) instantiate(s types.Scheme) types.Type {
	if len(s.Vars) == 0 {
		return s.Type
	}
	subst := make(map[types.VarID]types.Type, len(s.Vars))
	for _, v := range s.Vars {
		subst[v] = c.freshVar()
	}
	for _, con := range s.Constraints {
		fresh := subst[con.Var].(types.Var)
		root := c.uf.Find(fresh.ID)
		c.varClasses[root] = append(c.varClasses[root], con.Class)
	}
	return substituteVars(s.Type, subst)
}

// bindingGroups orders definitions so dependencies come before dependents.
// Strongly connected groups (mutual recursion) are emitted together.
func (c *Checker) bindingGroups() [][]string {
	deps := make(map[string]map[string]bool, len(c.defOrder))
	for _, name := range c.defOrder {
		set := make(map[string]bool)
		for _, def := range c.clauses[name] {
			c.collectDeps(def.Body, set)
		}
		deps[name] = set
	}

	// Tarjan's strongly connected components, iterative over def names.
	index := make(map[string]int)
	low := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var groups [][]string
	next := 0

	var strongConnect func(name string)
	strongConnect = func(name string) {
		index[name] = next
		low[name] = next
		next++
		stack = append(stack, name)
		onStack[name] = true

		targets := make([]string, 0, len(deps[name]))
		for dep := range deps[name] {
			targets = append(targets, dep)
		}
		sort.Strings(targets)
		for _, dep := range targets {
			if _, visited := index[dep]; !visited {
				strongConnect(dep)
				if low[dep] < low[name] {
					low[name] = low[dep]
				}
			} else if onStack[dep] && index[dep] < low[name] {
				low[name] = index[dep]
			}
		}

		if low[name] == index[name] {
			var group []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				group = append(group, top)
				if top == name {
					break
				}
			}
			groups = append(groups, group)
		}
	}

	for _, name := range c.defOrder {
		if _, visited := index[name]; !visited {
			strongConnect(name)
		}
	}
	return groups
}

// collectDeps gathers references to top-level definition names. Shadowing
// is ignored; an over-approximate edge only widens a binding group.
func (c *Checker) collectDeps(e ast.Expr, out map[string]bool) {
	switch ex := e.(type) {
	case *ast.Var:
		if _, ok := c.clauses[ex.Name]; ok {
			out[ex.Name] = true
		}
	case *ast.Lambda:
		c.collectDeps(ex.Body, out)
	case *ast.Apply:
		c.collectDeps(ex.Fn, out)
		c.collectDeps(ex.Arg, out)
	case *ast.Binary:
		c.collectDeps(ex.Left, out)
		c.collectDeps(ex.Right, out)
	case *ast.Let:
		c.collectDeps(ex.Value, out)
		c.collectDeps(ex.Body, out)
	case *ast.If:
		c.collectDeps(ex.Cond, out)
		c.collectDeps(ex.Then, out)
		c.collectDeps(ex.Else, out)
	case *ast.Match:
		c.collectDeps(ex.Scrutinee, out)
		for _, arm := range ex.Arms {
			if arm.Guard != nil {
				c.collectDeps(arm.Guard, out)
			}
			c.collectDeps(arm.Body, out)
		}
	case *ast.TupleLit:
		for _, item := range ex.Items {
			c.collectDeps(item, out)
		}
	case *ast.ListLit:
		for _, item := range ex.Items {
			c.collectDeps(item, out)
		}
	case *ast.RecordLit:
		for _, f := range ex.Fields {
			c.collectDeps(f.Value, out)
		}
	case *ast.FieldAccess:
		c.collectDeps(ex.Base, out)
	case *ast.EffectBlock:
		for _, stmt := range ex.Stmts {
			c.collectDeps(stmt.Expr, out)
		}
	}
}

// finalize resolves every definition's type, derives the CgType map and the
// closed instantiation list, and packages the Result.
func (c *Checker) finalize() *Result {
	res := &Result{
		Schemes:        c.schemes,
		CgTypes:        make(map[string]types.CgType),
		Instantiations: make(map[string][]types.CgType),
		Classes:        c.classes,
		MemberClass:    c.memberClass,
		Clauses:        c.clauses,
		DefOrder:       c.defOrder,
		Constructors:   make(map[string]ConstructorInfo),
		MemberUses:     make(map[*ast.Var]MemberUse),
	}

	for site, use := range c.memberSites {
		resolved := MemberUse{Class: use.class, Member: site.Name}
		if con, ok := c.deepResolve(use.param).(types.Con); ok {
			resolved.Head = con.Name
		}
		res.MemberUses[site] = resolved
	}

	for _, name := range c.defOrder {
		scheme := c.schemes[name]
		if len(scheme.Vars) > 0 {
			continue
		}
		cg := c.cgOf(scheme.Type)
		if cg.Closed() {
			res.CgTypes[name] = cg
		}
	}

	for _, rec := range c.insts {
		cg := c.cgOf(c.deepResolve(rec.t))
		if !cg.Closed() {
			continue
		}
		dup := false
		for _, have := range res.Instantiations[rec.name] {
			if have.Equal(cg) {
				dup = true
				break
			}
		}
		if !dup {
			res.Instantiations[rec.name] = append(res.Instantiations[rec.name], cg)
		}
	}

	for typeName, decl := range c.adtDecls {
		for tag, ctor := range decl.Constructors {
			res.Constructors[ctor.Name] = ConstructorInfo{
				TypeName: typeName,
				Tag:      tag,
				Arity:    len(ctor.Args),
			}
		}
	}
	return res
}
