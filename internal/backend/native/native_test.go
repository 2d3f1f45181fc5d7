package native

import (
	"bytes"
	"debug/elf"
	"errors"
	"strings"
	"testing"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/hir"
	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

func vr(name string) ast.Expr  { return &ast.Var{Name: name} }
func iLit(v int64) ast.Expr    { return &ast.IntLit{Value: v} }
func fLit(v float64) ast.Expr  { return &ast.FloatLit{Value: v} }

func app(fn ast.Expr, args ...ast.Expr) ast.Expr {
	e := fn
	for _, a := range args {
		e = &ast.Apply{Fn: e, Arg: a}
	}
	return e
}

func bin(op string, l, r ast.Expr) ast.Expr { return &ast.Binary{Op: op, Left: l, Right: r} }

func tname(name string) ast.TypeExpr { return &ast.TypeName{Name: name} }

func lowerModule(t *testing.T, mod *ast.Module) *Program {
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
	return Lower(mod.Name, kp, res)
}

// add used at Int and Float produces two distinct typed specializations.
func monomorphModule() *ast.Module {
	return &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "add",
				Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
				Body:   bin("+", vr("a"), vr("b"))},
			{Name: "ints", Body: app(vr("add"), iLit(1), iLit(2))},
			{Name: "floats", Body: app(vr("add"), fLit(1.5), fLit(2))},
		},
	}
}

func TestTwoTypedVariantsForMonomorphizedAdd(t *testing.T) {
	p := lowerModule(t, monomorphModule())

	var add *Def
	for _, def := range p.Defs {
		if def.Name == "add" {
			add = def
		}
	}
	if add == nil {
		t.Fatal("add missing from target form")
	}
	if add.Cg != nil {
		t.Error("polymorphic add should carry no closed type of its own")
	}
	mangles := make([]string, len(add.Variants))
	for i, v := range add.Variants {
		mangles[i] = v.Mangle()
	}
	want := map[string]bool{"i64_i64__i64": false, "f64_f64__f64": false}
	for _, m := range mangles {
		if _, ok := want[m]; ok {
			want[m] = true
		}
	}
	for m, seen := range want {
		if !seen {
			t.Errorf("variant %s missing, got %v", m, mangles)
		}
	}

	src, err := EmitC(p, Executable)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, sym := range []string{
		"int64_t lum_typed_add_i64_i64__i64(int64_t p0, int64_t p1)",
		"double lum_typed_add_f64_f64__f64(double p0, double p1)",
	} {
		if !strings.Contains(src, sym) {
			t.Errorf("emitted source lacks %q", sym)
		}
	}
	if !strings.Contains(src, "(p0 + p1)") {
		t.Error("typed body should be direct scalar arithmetic")
	}
}

func TestExecutableAndLibraryShapes(t *testing.T) {
	p := lowerModule(t, &ast.Module{
		Name: "main",
		Defs: []*ast.Def{
			{Name: "main", Body: app(vr("print"), iLit(3))},
		},
	})

	exe, err := EmitC(p, Executable)
	if err != nil {
		t.Fatalf("emit executable: %v", err)
	}
	if !strings.Contains(exe, "int main(void)") {
		t.Error("executable variant lacks an entry point")
	}
	if !strings.Contains(exe, "lum_abi_check(lum_required_abi)") {
		t.Error("executable variant lacks the ABI handshake")
	}
	if !strings.Contains(exe, "static lum_value *lum_def_main") {
		t.Error("executable definitions should have internal linkage")
	}

	lib, err := EmitC(p, Library)
	if err != nil {
		t.Fatalf("emit library: %v", err)
	}
	if strings.Contains(lib, "int main(void)") {
		t.Error("library variant must not define an entry point")
	}
	if !strings.Contains(lib, "void lum_mod_init(lum_ctx *ctx)") {
		t.Error("library variant lacks the init hook")
	}
	if strings.Contains(lib, "static lum_value *lum_def_main") {
		t.Error("library definitions should have external linkage")
	}
}

func TestDispatchBindingsEmitted(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Types: []*ast.TypeDecl{
			{Name: "Option", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
				{Name: "None"},
				{Name: "Some", Args: []ast.TypeExpr{tname("a")}},
			}},
		},
		Classes: []*ast.ClassDecl{
			{Name: "Eq", Param: "a", Members: []*ast.ClassMember{
				{Name: "eq", Type: &ast.TypeFunc{Param: tname("a"),
					Result: &ast.TypeFunc{Param: tname("a"), Result: tname("Bool")}}},
			}},
		},
		Instances: []*ast.InstanceDecl{
			{ClassName: "Eq",
				Head: &ast.TypeApply{Base: tname("Option"), Args: []ast.TypeExpr{tname("a")}},
				Members: []*ast.Def{
					{Name: "eq",
						Params: []ast.Pattern{&ast.VarPattern{Name: "a"}, &ast.VarPattern{Name: "b"}},
						Body:   bin("==", vr("a"), vr("b"))},
				}},
		},
	}
	p := lowerModule(t, mod)
	src, err := EmitC(p, Executable)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	for _, line := range []string{
		`lum_dispatch_bind(ctx, "Eq.eq", "None", "eq$Option");`,
		`lum_dispatch_bind(ctx, "Eq.eq", "Some", "eq$Option");`,
		`lum_register(ctx, "eq$Option", lum_def_eq_sOption, 2);`,
	} {
		if !strings.Contains(src, line) {
			t.Errorf("emitted source lacks %q", line)
		}
	}
}

func TestCIdentIsInjective(t *testing.T) {
	names := []string{"f$1", "f_1", "f$_", "f_$", "eq$Option", "eq_Option", "plain"}
	seen := map[string]string{}
	for _, name := range names {
		id := cident(name)
		if prev, dup := seen[id]; dup {
			t.Errorf("cident collision: %q and %q both map to %q", prev, name, id)
		}
		seen[id] = name
		for _, r := range id {
			ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !ok {
				t.Errorf("cident(%q) = %q contains %q", name, id, r)
			}
		}
	}
}

func TestCStringEscapes(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain`, `"plain"`},
		{"quote\" and \\", `"quote\" and \\"`},
		{"line\nbreak\tok", `"line\nbreak\tok"`},
		// A hex digit after a control byte must not merge into the escape.
		{"\x01a", `"\001a"`},
		{"\x1bfoo", `"\033foo"`},
		// Non-ASCII text escapes each UTF-8 byte.
		{"é", `"\303\251"`},
	}
	for _, tc := range cases {
		if got := cString(tc.in); got != tc.want {
			t.Errorf("cString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestEmissionIsDeterministic(t *testing.T) {
	build := func() string {
		p := lowerModule(t, monomorphModule())
		src, err := EmitC(p, Executable)
		if err != nil {
			t.Fatalf("emit: %v", err)
		}
		return src
	}
	if build() != build() {
		t.Fatal("independent emissions differ")
	}
}

func TestUnsupportedTypedConstructIsNamedError(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Types: []*ast.TypeDecl{
			{Name: "Option", Params: []string{"a"}, Constructors: []*ast.ConstructorDecl{
				{Name: "None"},
				{Name: "Some", Args: []ast.TypeExpr{tname("a")}},
			}},
		},
		Defs: []*ast.Def{
			{Name: "unwrap", Sig: &ast.TypeFunc{Param: tname("Int"), Result: tname("Int")},
				Params: []ast.Pattern{&ast.VarPattern{Name: "x"}},
				Body: &ast.Match{Scrutinee: app(vr("Some"), vr("x")), Arms: []ast.MatchArm{
					{Pattern: &ast.ConstructorPattern{Name: "Some", Args: []ast.Pattern{&ast.VarPattern{Name: "v"}}}, Body: vr("v")},
					{Pattern: &ast.WildcardPattern{}, Body: iLit(0)},
				}}},
		},
	}
	p := lowerModule(t, mod)
	_, err := EmitC(p, Executable)
	if !errors.Is(err, ErrUnsupportedTyped) {
		t.Fatalf("emit = %v, want ErrUnsupportedTyped", err)
	}
}

func TestDumpJSONListsVariants(t *testing.T) {
	p := lowerModule(t, monomorphModule())
	out, err := p.DumpJSON()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, needle := range []string{
		`"lum_typed_add_i64_i64__i64"`,
		`"lum_typed_add_f64_f64__f64"`,
		`"module": "main"`,
	} {
		if !bytes.Contains(out, []byte(needle)) {
			t.Errorf("dump lacks %s", needle)
		}
	}
}

func TestBuildObjectIsValidELF(t *testing.T) {
	p := lowerModule(t, monomorphModule())
	obj, err := BuildObject(p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f, err := elf.NewFile(bytes.NewReader(obj))
	if err != nil {
		t.Fatalf("not a readable ELF: %v", err)
	}
	defer f.Close()
	if f.Type != elf.ET_REL {
		t.Errorf("type = %v, want ET_REL", f.Type)
	}
	if f.Machine != elf.EM_X86_64 {
		t.Errorf("machine = %v, want EM_X86_64", f.Machine)
	}

	text := f.Section(".text")
	if text == nil || text.Size == 0 {
		t.Fatal("empty .text section")
	}

	symbols, err := f.Symbols()
	if err != nil {
		t.Fatalf("symbols: %v", err)
	}
	byName := map[string]elf.Symbol{}
	for _, s := range symbols {
		byName[s.Name] = s
	}
	for _, name := range []string{"lum_typed_add_i64_i64__i64", "lum_typed_add_f64_f64__f64"} {
		s, ok := byName[name]
		if !ok {
			t.Errorf("symbol %s missing", name)
			continue
		}
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Section == elf.SHN_UNDEF {
			t.Errorf("symbol %s should be a defined function", name)
		}
	}
	if s, ok := byName["lum_required_abi"]; !ok || elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
		t.Error("lum_required_abi data symbol missing")
	}
	for _, name := range importedHelpers {
		s, ok := byName[name]
		if !ok {
			t.Errorf("import %s missing", name)
			continue
		}
		if s.Section != elf.SHN_UNDEF {
			t.Errorf("import %s should be unresolved", name)
		}
	}
}

func TestKernelProgramSharedAcrossBackRuns(t *testing.T) {
	bag := diagnostic.NewBag()
	prog := &ast.Program{Modules: []*ast.Module{monomorphModule()}}
	res := typecheck.Check(prog, bag)
	hp := hir.Lower(prog, res, bag)
	kp := kernel.Lower(hp, res, bag, kernel.Options{})
	if bag.HasErrors() {
		t.Fatalf("pipeline errors: %v", bag.Items())
	}
	before, err := kernel.DumpJSON(kp)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}

	p := Lower("main", kp, res)
	if _, err := EmitC(p, Executable); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := BuildObject(p); err != nil {
		t.Fatalf("object: %v", err)
	}

	after, err := kernel.DumpJSON(kp)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("backends mutated the shared kernel program")
	}
}
