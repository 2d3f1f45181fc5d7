package native

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/runtime"
	"github.com/lumen-lang/lumen/internal/types"
)

// SourceKind selects the shape of the emitted C translation unit.
type SourceKind int

const (
	// Executable emits a standalone entry point evaluating "main".
	Executable SourceKind = iota
	// Library exposes every definition plus an init hook for linking.
	Library
)

// runtime helper symbols referenced by generated code. They stay
// unresolved until link time against the runtime support library.
var helperDecls = []string{
	"lum_ctx *lum_ctx_new(void);",
	"void lum_ctx_free(lum_ctx *);",
	"int lum_abi_check(const char *);",
	"int lum_poll(lum_ctx *);",
	"void lum_register(lum_ctx *, const char *, lum_fn, int);",
	"void lum_dispatch_bind(lum_ctx *, const char *, const char *, const char *);",
	"lum_value *lum_global(lum_ctx *, const char *);",
	"lum_value *lum_run_effect(lum_ctx *, lum_value *);",
	"lum_value *lum_box_int(int64_t);",
	"lum_value *lum_box_float(double);",
	"lum_value *lum_box_bool(int);",
	"lum_value *lum_box_text(const char *);",
	"lum_value *lum_unit(void);",
	"lum_value *lum_prim(lum_ctx *, const char *, lum_value *, lum_value *);",
	"lum_value *lum_apply(lum_ctx *, lum_value *, lum_value *);",
	"lum_value *lum_closure(lum_ctx *, const char *, lum_value **, int);",
	"lum_value *lum_construct(lum_ctx *, const char *, int, lum_value **, int);",
	"lum_value *lum_tuple(lum_ctx *, lum_value **, int);",
	"lum_value *lum_list(lum_ctx *, lum_value **, int);",
	"lum_value *lum_record(lum_ctx *, const char *const *, lum_value **, int);",
	"lum_value *lum_field(lum_ctx *, lum_value *, const char *);",
	"lum_value *lum_tuple_get(lum_ctx *, lum_value *, int);",
	"int lum_ctor_tag(lum_value *);",
	"lum_value *lum_ctor_arg(lum_value *, int);",
	"int lum_bool_of(lum_value *);",
	"lum_value *lum_match_fail(lum_ctx *);",
	"lum_value *lum_dispatch(lum_ctx *, const char *, const char *);",
}

// EmitC renders the whole program as one C translation unit. Any
// unsupported construct aborts with a named error and no output.
func EmitC(p *Program, kind SourceKind) (string, error) {
	e := &emitter{prog: p}
	var out strings.Builder

	out.WriteString("/* generated by the lumen native backend; do not edit */\n")
	out.WriteString("#include <stdint.h>\n\n")
	out.WriteString("typedef struct lum_ctx lum_ctx;\n")
	out.WriteString("typedef struct lum_value lum_value;\n")
	out.WriteString("typedef lum_value *(*lum_fn)(lum_ctx *, lum_value **);\n\n")
	for _, decl := range helperDecls {
		out.WriteString("extern " + decl + "\n")
	}
	fmt.Fprintf(&out, "\nstatic const char *const lum_required_abi = %s;\n\n", cString(runtime.ABIVersion))

	linkage := "static "
	if kind == Library {
		linkage = ""
	}

	// Forward declarations: definitions reference each other freely.
	for _, def := range p.Defs {
		fmt.Fprintf(&out, "%slum_value *%s(lum_ctx *ctx, lum_value **args);\n", linkage, boxedSymbol(def.Name))
	}
	out.WriteString("\n")

	for _, def := range p.Defs {
		fn, err := e.emitBoxedDef(def, linkage)
		if err != nil {
			return "", fmt.Errorf("%s: %w", def.Name, err)
		}
		out.WriteString(fn)
		out.WriteString("\n")

		for _, variant := range def.Variants {
			if !scalarVariant(variant) {
				continue
			}
			tv, err := e.emitTypedDef(def, variant, linkage)
			if err != nil {
				return "", fmt.Errorf("%s (typed %s): %w", def.Name, variant.Mangle(), err)
			}
			out.WriteString(tv)
			out.WriteString("\n")
		}
	}

	out.WriteString(e.emitInit(kind))
	if kind == Executable {
		out.WriteString(emitMain())
	}
	return out.String(), nil
}

type emitter struct {
	prog *Program
	tmp  int
}

func (e *emitter) fresh() string {
	e.tmp++
	return fmt.Sprintf("t%d", e.tmp)
}

// emitBoxedDef renders the boxed entry of one definition: context first,
// then the full argument vector.
func (e *emitter) emitBoxedDef(def *Def, linkage string) (string, error) {
	e.tmp = 0
	var b strings.Builder
	fmt.Fprintf(&b, "%slum_value *%s(lum_ctx *ctx, lum_value **args) {\n", linkage, boxedSymbol(def.Name))
	b.WriteString("  if (lum_poll(ctx)) return 0;\n")
	env := map[string]string{}
	for i, p := range def.Params {
		env[p] = fmt.Sprintf("args[%d]", i)
	}
	res, err := e.emitExpr(&b, "  ", env, def.Body)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "  return %s;\n}\n", res)
	return b.String(), nil
}

// emitExpr appends the statements computing one expression and returns
// the C expression naming its value. Helper failures propagate as null.
func (e *emitter) emitExpr(b *strings.Builder, ind string, env map[string]string, x kernel.Expr) (string, error) {
	check := func(t string) {
		fmt.Fprintf(b, "%sif (!%s) return 0;\n", ind, t)
	}
	bind := func(expr string) string {
		t := e.fresh()
		fmt.Fprintf(b, "%slum_value *%s = %s;\n", ind, t, expr)
		check(t)
		return t
	}

	switch ex := x.(type) {
	case *kernel.Local:
		c, ok := env[ex.Name]
		if !ok {
			return "", fmt.Errorf("%w: unbound local %q", ErrUnsupportedPattern, ex.Name)
		}
		return c, nil
	case *kernel.GlobalRef:
		return bind(fmt.Sprintf("lum_global(ctx, %s)", cString(ex.Name))), nil
	case *kernel.IntLit:
		return bind(fmt.Sprintf("lum_box_int(INT64_C(%d))", ex.Value)), nil
	case *kernel.FloatLit:
		return bind(fmt.Sprintf("lum_box_float(%s)", cFloat(ex.Value))), nil
	case *kernel.TextLit:
		return bind(fmt.Sprintf("lum_box_text(%s)", cString(ex.Value))), nil
	case *kernel.BoolLit:
		v := 0
		if ex.Value {
			v = 1
		}
		return bind(fmt.Sprintf("lum_box_bool(%d)", v)), nil
	case *kernel.UnitLit:
		return bind("lum_unit()"), nil

	case *kernel.MakeClosure:
		items, err := e.emitAll(b, ind, env, ex.Captures)
		if err != nil {
			return "", err
		}
		arr := e.emitArray(b, ind, items)
		return bind(fmt.Sprintf("lum_closure(ctx, %s, %s, %d)",
			cString(ex.Code), arr, len(items))), nil

	case *kernel.Apply:
		fn, err := e.emitExpr(b, ind, env, ex.Fn)
		if err != nil {
			return "", err
		}
		arg, err := e.emitExpr(b, ind, env, ex.Arg)
		if err != nil {
			return "", err
		}
		return bind(fmt.Sprintf("lum_apply(ctx, %s, %s)", fn, arg)), nil

	case *kernel.Prim:
		l, err := e.emitExpr(b, ind, env, ex.Left)
		if err != nil {
			return "", err
		}
		r, err := e.emitExpr(b, ind, env, ex.Right)
		if err != nil {
			return "", err
		}
		return bind(fmt.Sprintf("lum_prim(ctx, %s, %s, %s)", cString(ex.Op), l, r)), nil

	case *kernel.Let:
		v, err := e.emitExpr(b, ind, env, ex.Value)
		if err != nil {
			return "", err
		}
		inner := extend(env, ex.Name, v)
		return e.emitExpr(b, ind, inner, ex.Body)

	case *kernel.If:
		c, err := e.emitExpr(b, ind, env, ex.Cond)
		if err != nil {
			return "", err
		}
		t := e.fresh()
		fmt.Fprintf(b, "%slum_value *%s = 0;\n", ind, t)
		fmt.Fprintf(b, "%sif (lum_bool_of(%s)) {\n", ind, c)
		tv, err := e.emitExpr(b, ind+"  ", env, ex.Then)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(b, "%s  %s = %s;\n%s} else {\n", ind, t, tv, ind)
		ev, err := e.emitExpr(b, ind+"  ", env, ex.Else)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(b, "%s  %s = %s;\n%s}\n", ind, t, ev, ind)
		check(t)
		return t, nil

	case *kernel.Case:
		s, err := e.emitExpr(b, ind, env, ex.Scrut)
		if err != nil {
			return "", err
		}
		t := e.fresh()
		fmt.Fprintf(b, "%slum_value *%s = 0;\n", ind, t)
		fmt.Fprintf(b, "%sswitch (lum_ctor_tag(%s)) {\n", ind, s)
		for _, br := range ex.Branches {
			fmt.Fprintf(b, "%scase %d: {\n", ind, br.Tag)
			inner := env
			for i, name := range br.Binds {
				bv := e.fresh()
				fmt.Fprintf(b, "%s  lum_value *%s = lum_ctor_arg(%s, %d);\n", ind, bv, s, i)
				inner = extend(inner, name, bv)
			}
			bv, err := e.emitExpr(b, ind+"  ", inner, br.Body)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(b, "%s  %s = %s;\n%s  break;\n%s}\n", ind, t, bv, ind, ind)
		}
		fmt.Fprintf(b, "%sdefault: {\n", ind)
		if ex.Default != nil {
			dv, err := e.emitExpr(b, ind+"  ", env, ex.Default)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(b, "%s  %s = %s;\n", ind, t, dv)
		} else {
			fmt.Fprintf(b, "%s  %s = lum_match_fail(ctx);\n", ind, t)
		}
		fmt.Fprintf(b, "%s}\n%s}\n", ind, ind)
		check(t)
		return t, nil

	case *kernel.MatchFail:
		return bind("lum_match_fail(ctx)"), nil

	case *kernel.Tuple:
		items, err := e.emitAll(b, ind, env, ex.Items)
		if err != nil {
			return "", err
		}
		arr := e.emitArray(b, ind, items)
		return bind(fmt.Sprintf("lum_tuple(ctx, %s, %d)", arr, len(items))), nil

	case *kernel.List:
		items, err := e.emitAll(b, ind, env, ex.Items)
		if err != nil {
			return "", err
		}
		arr := e.emitArray(b, ind, items)
		return bind(fmt.Sprintf("lum_list(ctx, %s, %d)", arr, len(items))), nil

	case *kernel.Record:
		names := make([]string, len(ex.Fields))
		items := make([]string, len(ex.Fields))
		for i, f := range ex.Fields {
			v, err := e.emitExpr(b, ind, env, f.Value)
			if err != nil {
				return "", err
			}
			names[i] = cString(f.Name)
			items[i] = v
		}
		nt := e.fresh()
		fmt.Fprintf(b, "%sconst char *const %s[] = {%s};\n", ind, nt, strings.Join(names, ", "))
		arr := e.emitArray(b, ind, items)
		return bind(fmt.Sprintf("lum_record(ctx, %s, %s, %d)", nt, arr, len(items))), nil

	case *kernel.Field:
		base, err := e.emitExpr(b, ind, env, ex.Base)
		if err != nil {
			return "", err
		}
		return bind(fmt.Sprintf("lum_field(ctx, %s, %s)", base, cString(ex.Name))), nil

	case *kernel.TupleGet:
		base, err := e.emitExpr(b, ind, env, ex.Base)
		if err != nil {
			return "", err
		}
		return bind(fmt.Sprintf("lum_tuple_get(ctx, %s, %d)", base, ex.Index)), nil

	case *kernel.Construct:
		items, err := e.emitAll(b, ind, env, ex.Args)
		if err != nil {
			return "", err
		}
		arr := e.emitArray(b, ind, items)
		return bind(fmt.Sprintf("lum_construct(ctx, %s, %d, %s, %d)",
			cString(ex.Ctor), ex.Tag, arr, len(items))), nil

	case *kernel.Dispatch:
		return bind(fmt.Sprintf("lum_dispatch(ctx, %s, %s)",
			cString(ex.Class), cString(ex.Member))), nil

	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedPattern, x)
	}
}

func (e *emitter) emitAll(b *strings.Builder, ind string, env map[string]string, items []kernel.Expr) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		v, err := e.emitExpr(b, ind, env, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// emitArray materializes a lum_value* array for vararg-style helpers.
func (e *emitter) emitArray(b *strings.Builder, ind string, items []string) string {
	t := e.fresh()
	if len(items) == 0 {
		fmt.Fprintf(b, "%slum_value **%s = 0;\n", ind, t)
		return t
	}
	fmt.Fprintf(b, "%slum_value *%s[] = {%s};\n", ind, t, strings.Join(items, ", "))
	return t
}

// emitInit renders the registration hook binding every definition and
// dispatch entry into a runtime context.
func (e *emitter) emitInit(kind SourceKind) string {
	var b strings.Builder
	linkage := "static "
	if kind == Library {
		linkage = ""
	}
	fmt.Fprintf(&b, "%svoid lum_mod_init(lum_ctx *ctx) {\n", linkage)
	for _, def := range e.prog.Defs {
		fmt.Fprintf(&b, "  lum_register(ctx, %s, %s, %d);\n",
			cString(def.Name), boxedSymbol(def.Name), len(def.Params))
	}
	keys := make([]string, 0, len(e.prog.Dispatch))
	for k := range e.prog.Dispatch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		table := e.prog.Dispatch[key]
		ctors := make([]string, 0, len(table))
		for c := range table {
			ctors = append(ctors, c)
		}
		sort.Strings(ctors)
		for _, ctor := range ctors {
			fmt.Fprintf(&b, "  lum_dispatch_bind(ctx, %s, %s, %s);\n",
				cString(key), cString(ctor), cString(table[ctor]))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// emitMain renders the executable entry: ABI handshake, context setup,
// evaluation of "main" with its effect run to completion.
func emitMain() string {
	return `
int main(void) {
  if (lum_abi_check(lum_required_abi)) return 2;
  lum_ctx *ctx = lum_ctx_new();
  lum_mod_init(ctx);
  lum_value *entry = lum_global(ctx, "main");
  if (!entry) { lum_ctx_free(ctx); return 1; }
  lum_value *result = lum_run_effect(ctx, entry);
  int code = result ? 0 : 1;
  lum_ctx_free(ctx);
  return code;
}
`
}

func extend(env map[string]string, name, val string) map[string]string {
	inner := make(map[string]string, len(env)+1)
	for k, v := range env {
		inner[k] = v
	}
	inner[name] = val
	return inner
}

// cString renders a C string literal.
func cString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r > 0x7e {
				// Three-digit octal: unlike \x, an octal escape cannot
				// absorb a following literal digit.
				var buf [4]byte
				n := utf8.EncodeRune(buf[:], r)
				for _, by := range buf[:n] {
					fmt.Fprintf(&b, `\%03o`, by)
				}
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// cFloat renders a float literal that round-trips.
func cFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// scalarCType maps a scalar CgType to its unboxed C carrier.
func scalarCType(cg types.CgType) string {
	switch cg.Kind {
	case types.CgInt:
		return "int64_t"
	case types.CgFloat:
		return "double"
	default:
		return "int"
	}
}
