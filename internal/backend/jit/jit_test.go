package jit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/hir"
	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/runtime"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

func vr(name string) ast.Expr { return &ast.Var{Name: name} }
func iLit(v int64) ast.Expr   { return &ast.IntLit{Value: v} }

func app(fn ast.Expr, args ...ast.Expr) ast.Expr {
	e := fn
	for _, a := range args {
		e = &ast.Apply{Fn: e, Arg: a}
	}
	return e
}

func bin(op string, l, r ast.Expr) ast.Expr { return &ast.Binary{Op: op, Left: l, Right: r} }

func tname(name string) ast.TypeExpr { return &ast.TypeName{Name: name} }

func tfunc(params ...ast.TypeExpr) ast.TypeExpr {
	e := params[len(params)-1]
	for i := len(params) - 2; i >= 0; i-- {
		e = &ast.TypeFunc{Param: params[i], Result: e}
	}
	return e
}

func compileModule(t *testing.T, mod *ast.Module) *Module {
	t.Helper()
	bag := diagnostic.NewBag()
	prog := &ast.Program{Modules: []*ast.Module{mod}}
	res := typecheck.Check(prog, bag)
	if bag.HasErrors() {
		t.Fatalf("check errors: %v", bag.Items())
	}
	hp := hir.Lower(prog, res, bag)
	kp := kernel.Lower(hp, res, bag, kernel.Options{})
	if bag.HasErrors() {
		t.Fatalf("lowering errors: %v", bag.Items())
	}
	m, err := Compile(kp, res)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

func evalInt(t *testing.T, m *Module, entry string) int64 {
	t.Helper()
	ctx := m.NewContext()
	defer ctx.Close()
	out, err := m.Eval(ctx, entry)
	if err != nil {
		t.Fatalf("eval %s: %v", entry, err)
	}
	if out.Value().Tag != runtime.TagInt {
		t.Fatalf("eval %s = %s, want Int", entry, runtime.Show(out))
	}
	return out.Value().Int
}

func TestEvalArithmeticEntry(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "addi", Sig: tfunc(tname("Int"), tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
			{Name: "main", Body: app(vr("addi"), iLit(1), iLit(2))},
		},
	})
	if got := evalInt(t, m, "main"); got != 3 {
		t.Fatalf("main = %d, want 3", got)
	}
}

func TestRunWritesEffectOutput(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "main", Body: app(vr("print"), bin("+", iLit(1), iLit(2)))},
		},
	})
	var buf bytes.Buffer
	if err := m.Run("main", &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := buf.String(); got != "3\n" {
		t.Fatalf("output = %q, want 3 newline", got)
	}
}

func TestMultiClauseDispatchAtRuntime(t *testing.T) {
	describe := []*ast.Def{
		{Name: "describe", Sig: tfunc(tname("Int"), tname("Text")),
			Params: []ast.Pattern{&ast.LiteralPattern{Value: iLit(0)}},
			Body:   &ast.StringLit{Value: "zero"}},
		{Name: "describe", Sig: tfunc(tname("Int"), tname("Text")),
			Params: []ast.Pattern{&ast.WildcardPattern{}},
			Body:   &ast.StringLit{Value: "other"}},
	}
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: append(describe,
			&ast.Def{Name: "zero", Body: app(vr("describe"), iLit(0))},
			&ast.Def{Name: "five", Body: app(vr("describe"), iLit(5))},
		),
	})
	ctx := m.NewContext()
	defer ctx.Close()
	for entry, want := range map[string]string{"zero": "zero", "five": "other"} {
		out, err := m.Eval(ctx, entry)
		if err != nil {
			t.Fatalf("eval %s: %v", entry, err)
		}
		if out.Value().Text != want {
			t.Errorf("%s = %q, want %q", entry, out.Value().Text, want)
		}
	}
}

func eqModule() *ast.Module {
	eqMember := func(head ast.TypeExpr) *ast.InstanceDecl {
		return &ast.InstanceDecl{
			ClassName: "Eq",
			Head:      head,
			Members: []*ast.Def{
				{Name: "eq",
					Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
					Body:   bin("==", vr("a"), vr("b"))},
			},
		}
	}
	return &ast.Module{
		Name: "main",
		Types: []*ast.TypeDecl{
			{Name: "Option", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
				{Name: "None"},
				{Name: "Some", Args: []ast.TypeExpr{tname("a")}},
			}},
			{Name: "Outcome", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
				{Name: "Ok", Args: []ast.TypeExpr{tname("a")}},
				{Name: "Err", Args: []ast.TypeExpr{tname("a")}},
			}},
		},
		Classes: []*ast.ClassDecl{
			{Name: "Eq", Param: "a", Members: []*ast.ClassMember{
				{Name: "eq", Type: tfunc(tname("a"), tname("a"), tname("Bool"))},
			}},
		},
		Instances: []*ast.InstanceDecl{
			eqMember(&ast.TypeApply{Base: tname("Option"), Args: []ast.TypeExpr{tname("a")}}),
			eqMember(&ast.TypeApply{Base: tname("Outcome"), Args: []ast.TypeExpr{tname("a")}}),
		},
	}
}

// A definition constrained by a class must pick the right instance at
// runtime for arguments of either instance type.
func TestRuntimeClassDispatch(t *testing.T) {
	mod := eqModule()
	mod.Defs = append(mod.Defs,
		&ast.Def{Name: "same",
			Params: []ast.Pattern{&ast.VarPattern{Name: "x"}, &ast.VarPattern{Name: "y"}},
			Body:   app(vr("eq"), vr("x"), vr("y"))},
		&ast.Def{Name: "options", Body: app(vr("same"), app(vr("Some"), iLit(1)), app(vr("Some"), iLit(1)))},
		&ast.Def{Name: "outcomes", Body: app(vr("same"), app(vr("Ok"), iLit(1)), app(vr("Err"), iLit(1)))},
	)
	m := compileModule(t, mod)

	ctx := m.NewContext()
	defer ctx.Close()
	for entry, want := range map[string]bool{"options": true, "outcomes": false} {
		out, err := m.Eval(ctx, entry)
		if err != nil {
			t.Fatalf("eval %s: %v", entry, err)
		}
		if out.Value().Bool != want {
			t.Errorf("%s = %v, want %v", entry, out.Value().Bool, want)
		}
	}
}

func TestClosureCapture(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "mk", Sig: tfunc(tname("Int"), tname("Int"), tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body: &ast.Lambda{Param: "z",
					Body: bin("+", bin("+", vr("b"), vr("a")), vr("z"))}},
			{Name: "main", Body: app(vr("mk"), iLit(1), iLit(2), iLit(10))},
		},
	})
	if got := evalInt(t, m, "main"); got != 13 {
		t.Fatalf("main = %d, want 13", got)
	}
}

func TestPatternMatchDecisionTree(t *testing.T) {
	mod := eqModule()
	mod.Defs = append(mod.Defs,
		&ast.Def{Name: "orZero",
			Params: []ast.Pattern{&ast.VarPattern{Name: "o"}},
			Body: &ast.Match{Scrutinee: vr("o"), Arms: []ast.MatchArm{
				{Pattern: &ast.ConstructorPattern{Name: "Some", Args: []ast.Pattern{&ast.VarPattern{Name: "v"}}}, Body: vr("v")},
				{Pattern: &ast.ConstructorPattern{Name: "None"}, Body: iLit(0)},
			}}},
		&ast.Def{Name: "hit", Body: app(vr("orZero"), app(vr("Some"), iLit(41)))},
		&ast.Def{Name: "miss", Body: app(vr("orZero"), vr("None"))},
	)
	m := compileModule(t, mod)
	if got := evalInt(t, m, "hit"); got != 41 {
		t.Fatalf("hit = %d, want 41", got)
	}
	if got := evalInt(t, m, "miss"); got != 0 {
		t.Fatalf("miss = %d, want 0", got)
	}
}

// Cancelling mid-recursion must surface ErrCancelled promptly and leave
// the module runnable in a fresh context.
func TestCancellationDuringCompiledRecursion(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "countdown", Sig: tfunc(tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "n"}},
				Body: &ast.Match{Scrutinee: vr("n"), Arms: []ast.MatchArm{
					{Pattern: &ast.LiteralPattern{Value: iLit(0)}, Body: iLit(0)},
					{Pattern: &ast.WildcardPattern{}, Body: app(vr("countdown"), bin("-", vr("n"), iLit(1)))},
				}}},
			{Name: "main", Body: app(vr("countdown"), iLit(10000000))},
			{Name: "small", Body: app(vr("countdown"), iLit(3))},
		},
	}
	m := compileModule(t, mod)

	ctx := m.NewContext()
	ctx.Runtime().Cancel().SetFuel(1000)
	_, err := m.Eval(ctx, "main")
	if !errors.Is(err, runtime.ErrCancelled) {
		t.Fatalf("cancelled eval = %v, want ErrCancelled", err)
	}
	ctx.Close()

	ctx2 := m.NewContext()
	defer ctx2.Close()
	out, err := m.Eval(ctx2, "small")
	if err != nil {
		t.Fatalf("module unusable after cancellation: %v", err)
	}
	if out.Value().Int != 0 {
		t.Fatalf("small = %d, want 0", out.Value().Int)
	}
}

// Where the host can execute generated code, the typed path must agree
// with the boxed path.
func TestTypedFastPathMatchesBoxed(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "addi", Sig: tfunc(tname("Int"), tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
			{Name: "muls", Sig: tfunc(tname("Int"), tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("-", bin("*", vr("a"), vr("b")), iLit(1))},
			{Name: "addf", Sig: tfunc(tname("Float"), tname("Float"), tname("Float")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
		},
	})
	if fn, ok := m.TypedInt("addi"); ok {
		if got := fn(19, 23); got != 42 {
			t.Errorf("typed addi = %d, want 42", got)
		}
	}
	if fn, ok := m.TypedInt("muls"); ok {
		if got := fn(6, 7); got != 41 {
			t.Errorf("typed muls = %d, want 41", got)
		}
	}
	if fn, ok := m.TypedFloat("addf"); ok {
		if got := fn(1.25, 2.25); got != 3.5 {
			t.Errorf("typed addf = %g, want 3.5", got)
		}
	}
}

// Saturated calls to two-argument definitions must route through the
// typed entry when the operands are the matching scalars.
func TestSaturatedCallUsesTypedEntry(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "addi", Sig: tfunc(tname("Int"), tname("Int"), tname("Int")),
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
			{Name: "main", Body: app(vr("addi"), iLit(40), iLit(2))},
		},
	})

	var calls int
	m.typedInt["addi"] = func(a, b int64) int64 {
		calls++
		return a + b
	}
	if got := evalInt(t, m, "main"); got != 42 {
		t.Fatalf("main = %d, want 42", got)
	}
	if calls != 1 {
		t.Fatalf("typed entry consulted %d times, want 1", calls)
	}
}

// Operands that are not the typed entry's scalars fall back to the boxed
// closure with identical results.
func TestSaturatedCallFallsBackToBoxed(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "add",
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
			{Name: "ints", Body: app(vr("add"), iLit(1), iLit(2))},
			{Name: "floats", Body: app(vr("add"), &ast.FloatLit{Value: 1.5}, &ast.FloatLit{Value: 2})},
		},
	})
	// A typed Int entry must not capture the Float call.
	m.typedInt["add"] = func(a, b int64) int64 { return a + b }
	delete(m.typedFloat, "add")

	if got := evalInt(t, m, "ints"); got != 3 {
		t.Fatalf("ints = %d, want 3", got)
	}
	ctx := m.NewContext()
	defer ctx.Close()
	out, err := m.Eval(ctx, "floats")
	if err != nil {
		t.Fatalf("eval floats: %v", err)
	}
	if v := out.Value(); v.Tag != runtime.TagFloat || v.Float != 3.5 {
		t.Fatalf("floats = %s, want 3.5", runtime.Show(out))
	}
}

func TestEvalRejectsUnknownEntry(t *testing.T) {
	m := compileModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{{Name: "main", Body: iLit(1)}},
	})
	ctx := m.NewContext()
	defer ctx.Close()
	if _, err := m.Eval(ctx, "nope"); !errors.Is(err, runtime.ErrUnknownGlobal) {
		t.Fatalf("eval nope = %v, want ErrUnknownGlobal", err)
	}
}
