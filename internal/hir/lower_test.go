package hir

import (
	"reflect"
	"testing"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

func vr(name string) ast.Expr { return &ast.Var{Name: name} }
func iLit(v int64) ast.Expr   { return &ast.IntLit{Value: v} }
func sLit(v string) ast.Expr  { return &ast.StringLit{Value: v} }

func app(fn ast.Expr, args ...ast.Expr) ast.Expr {
	e := fn
	for _, a := range args {
		e = &ast.Apply{Fn: e, Arg: a}
	}
	return e
}

func tname(name string) ast.TypeExpr { return &ast.TypeName{Name: name} }

func lower(t *testing.T, mod *ast.Module) *Program {
	t.Helper()
	bag := diagnostic.NewBag()
	prog := &ast.Program{Modules: []*ast.Module{mod}}
	res := typecheck.Check(prog, bag)
	if bag.HasErrors() {
		t.Fatalf("check errors: %v", bag.Items())
	}
	out := Lower(prog, res, bag)
	if bag.HasErrors() {
		t.Fatalf("lowering errors: %v", bag.Items())
	}
	return out
}

func findDef(t *testing.T, p *Program, name string) *Def {
	t.Helper()
	for _, def := range p.Defs {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("no def %q in program", name)
	return nil
}

func optionModule() *ast.Module {
	return &ast.Module{
		Name: "main",
		Types: []*ast.TypeDecl{
			{Name: "Option", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
				{Name: "None"},
				{Name: "Some", Args: []ast.TypeExpr{tname("a")}},
			}},
		},
	}
}

func TestEffectBlockDesugarsToBindChain(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "main", Body: &ast.EffectBlock{Stmts: []ast.EffectStmt{
				{Bind: "x", Expr: app(vr("pure"), iLit(1))},
				{Expr: app(vr("pure"), vr("x"))},
			}}},
		},
	}
	p := lower(t, mod)
	def := findDef(t, p, "main")

	outer, ok := def.Body.(*Apply)
	if !ok {
		t.Fatalf("body = %T, want Apply", def.Body)
	}
	bindApp, ok := outer.Fn.(*Apply)
	if !ok {
		t.Fatalf("outer.Fn = %T, want Apply", outer.Fn)
	}
	if g, ok := bindApp.Fn.(*Global); !ok || g.Name != "bind" {
		t.Fatalf("head = %#v, want Global bind", bindApp.Fn)
	}
	cont, ok := outer.Arg.(*Lambda)
	if !ok || cont.Param != "x" {
		t.Fatalf("continuation = %#v, want Lambda x", outer.Arg)
	}
	if inner, ok := cont.Body.(*Apply); !ok {
		t.Fatalf("continuation body = %T, want Apply", cont.Body)
	} else if g, ok := inner.Fn.(*Global); !ok || g.Name != "pure" {
		t.Fatalf("continuation head = %#v, want Global pure", inner.Fn)
	}
}

func TestMultiClauseMergesToMatch(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "f", Sig: &ast.TypeFunc{Param: tname("Int"), Result: tname("Text")},
				Params: []ast.Pattern{&ast.LiteralPattern{Value: iLit(0)}}, Body: sLit("zero")},
			{Name: "f", Params: []ast.Pattern{&ast.WildcardPattern{}}, Body: sLit("other")},
		},
	}
	def := findDef(t, lower(t, mod), "f")

	if len(def.Params) != 1 || def.Params[0] != "$0" {
		t.Fatalf("params = %v", def.Params)
	}
	m, ok := def.Body.(*Match)
	if !ok {
		t.Fatalf("body = %T, want Match", def.Body)
	}
	if len(m.Arms) != 2 {
		t.Fatalf("arms = %d, want 2", len(m.Arms))
	}
	if _, ok := m.Arms[0].Pattern.(*PLit); !ok {
		t.Errorf("arm 0 pattern = %T, want PLit", m.Arms[0].Pattern)
	}
	if _, ok := m.Arms[1].Pattern.(*PWildcard); !ok {
		t.Errorf("arm 1 pattern = %T, want PWildcard", m.Arms[1].Pattern)
	}
}

func TestConstructorSaturationAndEta(t *testing.T) {
	mod := optionModule()
	mod.Defs = []*ast.Def{
		{Name: "full", Body: app(vr("Some"), iLit(1))},
		{Name: "bare", Body: vr("Some")},
	}
	p := lower(t, mod)

	full := findDef(t, p, "full")
	c, ok := full.Body.(*Construct)
	if !ok || c.Ctor != "Some" || c.Tag != 1 || len(c.Args) != 1 {
		t.Fatalf("full body = %#v, want saturated Construct Some", full.Body)
	}

	bare := findDef(t, p, "bare")
	lam, ok := bare.Body.(*Lambda)
	if !ok {
		t.Fatalf("bare body = %T, want Lambda", bare.Body)
	}
	inner, ok := lam.Body.(*Construct)
	if !ok || len(inner.Args) != 1 {
		t.Fatalf("eta body = %#v, want Construct with one arg", lam.Body)
	}
	if v, ok := inner.Args[0].(*Var); !ok || v.Name != lam.Param {
		t.Errorf("eta arg = %#v, want the lambda parameter", inner.Args[0])
	}
}

func eqModule() *ast.Module {
	mod := optionModule()
	mod.Types = append(mod.Types, &ast.TypeDecl{
		Name: "Outcome", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
			{Name: "Ok", Args: []ast.TypeExpr{tname("a")}},
			{Name: "Err", Args: []ast.TypeExpr{tname("Text")}},
		}})
	mod.Classes = []*ast.ClassDecl{
		{Name: "Eq", Param: "a", Members: []*ast.ClassMember{
			{Name: "eq", Type: &ast.TypeFunc{Param: tname("a"),
				Result: &ast.TypeFunc{Param: tname("a"), Result: tname("Bool")}}},
		}},
	}
	mod.Instances = []*ast.InstanceDecl{
		{ClassName: "Eq", Head: &ast.TypeApply{Base: tname("Option"), Args: []ast.TypeExpr{tname("a")}},
			Members: []*ast.Def{{Name: "eq", Params: []ast.Pattern{&ast.VarPattern{Name: "x"}, &ast.VarPattern{Name: "y"}},
				Body: &ast.Binary{Op: "==", Left: vr("x"), Right: vr("y")}}}},
		{ClassName: "Eq", Head: &ast.TypeApply{Base: tname("Outcome"), Args: []ast.TypeExpr{tname("a")}},
			Members: []*ast.Def{{Name: "eq", Params: []ast.Pattern{&ast.VarPattern{Name: "x"}, &ast.VarPattern{Name: "y"}},
				Body: &ast.Binary{Op: "==", Left: vr("x"), Right: vr("y")}}}},
	}
	return mod
}

func TestRuntimeDispatchTable(t *testing.T) {
	mod := eqModule()
	mod.Defs = []*ast.Def{
		{Name: "same", Params: []ast.Pattern{&ast.VarPattern{Name: "x"}, &ast.VarPattern{Name: "y"}},
			Body: app(vr("eq"), vr("x"), vr("y"))},
	}
	p := lower(t, mod)

	table := p.Dispatch[DispatchKey("Eq", "eq")]
	if table == nil {
		t.Fatal("missing dispatch table for Eq.eq")
	}
	want := map[string]string{
		"None": InstanceSymbol("eq", "Option"),
		"Some": InstanceSymbol("eq", "Option"),
		"Ok":   InstanceSymbol("eq", "Outcome"),
		"Err":  InstanceSymbol("eq", "Outcome"),
	}
	if !reflect.DeepEqual(table, want) {
		t.Fatalf("table = %v, want %v", table, want)
	}

	findDef(t, p, InstanceSymbol("eq", "Option"))
	findDef(t, p, InstanceSymbol("eq", "Outcome"))

	same := findDef(t, p, "same")
	spine := same.Body
	for {
		appNode, ok := spine.(*Apply)
		if !ok {
			break
		}
		spine = appNode.Fn
	}
	d, ok := spine.(*Dispatch)
	if !ok || d.Class != "Eq" || d.Member != "eq" {
		t.Fatalf("head of same = %#v, want runtime Dispatch for Eq.eq", spine)
	}
}

func TestStaticMemberResolution(t *testing.T) {
	mod := eqModule()
	mod.Defs = []*ast.Def{
		{Name: "check", Body: app(vr("eq"), app(vr("Some"), iLit(1)), vr("None"))},
	}
	p := lower(t, mod)

	check := findDef(t, p, "check")
	spine := check.Body
	for {
		appNode, ok := spine.(*Apply)
		if !ok {
			break
		}
		spine = appNode.Fn
	}
	g, ok := spine.(*Global)
	if !ok || g.Name != InstanceSymbol("eq", "Option") {
		t.Fatalf("head of check = %#v, want direct call to %s", spine, InstanceSymbol("eq", "Option"))
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	build := func() *Program {
		mod := eqModule()
		mod.Defs = []*ast.Def{
			{Name: "same", Params: []ast.Pattern{&ast.VarPattern{Name: "x"}, &ast.VarPattern{Name: "y"}},
				Body: app(vr("eq"), vr("x"), vr("y"))},
		}
		return lower(t, mod)
	}
	if !reflect.DeepEqual(build(), build()) {
		t.Fatal("independent lowering runs produced different programs")
	}
}
