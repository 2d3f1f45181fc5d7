package kernel

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/hir"
	"github.com/lumen-lang/lumen/internal/position"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

// Options configures kernel lowering.
type Options struct {
	// StrictMatch upgrades the non-exhaustive match warning to an error.
	StrictMatch bool
}

type lowerer struct {
	bag  *diagnostic.Bag
	opts Options

	// tagCount maps a data type to its number of constructors, for the
	// exhaustiveness check.
	tagCount map[string]int
	ctorType map[string]string

	defs    []*Def
	current string
	gensym  int
}

// Lower compiles HIR into kernel form: decision trees for matches, lifted
// code plus capture records for closures. The result shares no mutable
// state with its inputs; subtrees inside the result may be shared and must
// be treated as read-only.
func Lower(hp *hir.Program, res *typecheck.Result, bag *diagnostic.Bag, opts Options) *Program {
	l := &lowerer{
		bag:      bag,
		opts:     opts,
		tagCount: make(map[string]int),
		ctorType: make(map[string]string),
	}
	for name, info := range res.Constructors {
		l.tagCount[info.TypeName]++
		l.ctorType[name] = info.TypeName
	}

	for _, def := range hp.Defs {
		l.current = def.Name
		l.gensym = 0
		body := l.lowerExpr(def.Body)
		l.defs = append(l.defs, &Def{Name: def.Name, Params: def.Params, Body: body})
	}

	dispatch := make(map[string]map[string]string, len(hp.Dispatch))
	for key, table := range hp.Dispatch {
		copied := make(map[string]string, len(table))
		for tag, symbol := range table {
			copied[tag] = symbol
		}
		dispatch[key] = copied
	}
	return &Program{Defs: l.defs, Dispatch: dispatch}
}

func (l *lowerer) fresh(prefix string) string {
	l.gensym++
	return fmt.Sprintf("$%s%d", prefix, l.gensym)
}

func (l *lowerer) lowerExpr(e hir.Expr) Expr {
	switch ex := e.(type) {
	case *hir.Var:
		return &Local{Name: ex.Name}
	case *hir.Global:
		return &GlobalRef{Name: ex.Name}
	case *hir.IntLit:
		return &IntLit{Value: ex.Value}
	case *hir.FloatLit:
		return &FloatLit{Value: ex.Value}
	case *hir.TextLit:
		return &TextLit{Value: ex.Value}
	case *hir.BoolLit:
		return &BoolLit{Value: ex.Value}
	case *hir.UnitLit:
		return &UnitLit{}

	case *hir.Lambda:
		return l.convertClosure(ex)

	case *hir.Apply:
		return &Apply{Fn: l.lowerExpr(ex.Fn), Arg: l.lowerExpr(ex.Arg)}

	case *hir.Prim:
		return &Prim{Op: ex.Op, Left: l.lowerExpr(ex.Left), Right: l.lowerExpr(ex.Right)}

	case *hir.Let:
		return &Let{Name: ex.Name, Value: l.lowerExpr(ex.Value), Body: l.lowerExpr(ex.Body)}

	case *hir.If:
		return &If{Cond: l.lowerExpr(ex.Cond), Then: l.lowerExpr(ex.Then), Else: l.lowerExpr(ex.Else)}

	case *hir.Match:
		return l.compileMatch(ex)

	case *hir.Tuple:
		items := make([]Expr, len(ex.Items))
		for i, item := range ex.Items {
			items[i] = l.lowerExpr(item)
		}
		return &Tuple{Items: items}

	case *hir.List:
		items := make([]Expr, len(ex.Items))
		for i, item := range ex.Items {
			items[i] = l.lowerExpr(item)
		}
		return &List{Items: items}

	case *hir.Record:
		fields := make([]RecordField, len(ex.Fields))
		for i, f := range ex.Fields {
			fields[i] = RecordField{Name: f.Name, Value: l.lowerExpr(f.Value)}
		}
		return &Record{Fields: fields}

	case *hir.Field:
		return &Field{Base: l.lowerExpr(ex.Base), Name: ex.Name}

	case *hir.Construct:
		args := make([]Expr, len(ex.Args))
		for i, arg := range ex.Args {
			args[i] = l.lowerExpr(arg)
		}
		return &Construct{Ctor: ex.Ctor, Tag: ex.Tag, Args: args}

	case *hir.Dispatch:
		return &Dispatch{Class: ex.Class, Member: ex.Member}

	default:
		l.bag.Error(diagnostic.CodeUnsupportedConstruct, position.Span{},
			"unsupported construct in %q", l.current)
		return &UnitLit{}
	}
}

// convertClosure lifts a lambda into a top-level def taking its captures as
// leading parameters and emits the closure allocation. Captures are listed
// in first-use lexical order; both backends rely on that layout.
func (l *lowerer) convertClosure(lam *hir.Lambda) Expr {
	captures := freeVars(lam.Body, map[string]bool{lam.Param: true})
	l.gensym++
	code := fmt.Sprintf("%s$clo%d", l.current, l.gensym)

	saved := l.current
	l.current = code
	body := l.lowerExpr(lam.Body)
	l.current = saved

	params := make([]string, 0, len(captures)+1)
	params = append(params, captures...)
	params = append(params, lam.Param)
	l.defs = append(l.defs, &Def{Name: code, Params: params, Body: body})

	capExprs := make([]Expr, len(captures))
	for i, name := range captures {
		capExprs[i] = &Local{Name: name}
	}
	return &MakeClosure{Code: code, Captures: capExprs}
}

// freeVars returns the variables of an HIR expression that are not bound
// within it, in first-use lexical order.
func freeVars(e hir.Expr, bound map[string]bool) []string {
	var out []string
	seen := map[string]bool{}
	use := func(name string) {
		if !bound[name] && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	var walk func(e hir.Expr, bound map[string]bool)
	walkPat := func(p hir.Pattern, bound map[string]bool) {
		var patVars func(hir.Pattern)
		patVars = func(p hir.Pattern) {
			switch pat := p.(type) {
			case *hir.PVar:
				bound[pat.Name] = true
			case *hir.PCtor:
				for _, arg := range pat.Args {
					patVars(arg)
				}
			case *hir.PTuple:
				for _, item := range pat.Items {
					patVars(item)
				}
			case *hir.PRecord:
				for _, f := range pat.Fields {
					patVars(f.Pattern)
				}
			}
		}
		patVars(p)
	}
	copyBound := func(bound map[string]bool) map[string]bool {
		next := make(map[string]bool, len(bound)+4)
		for name := range bound {
			next[name] = true
		}
		return next
	}

	walk = func(e hir.Expr, bound map[string]bool) {
		switch ex := e.(type) {
		case *hir.Var:
			use(ex.Name)
		case *hir.Lambda:
			inner := copyBound(bound)
			inner[ex.Param] = true
			walk(ex.Body, inner)
		case *hir.Apply:
			walk(ex.Fn, bound)
			walk(ex.Arg, bound)
		case *hir.Prim:
			walk(ex.Left, bound)
			walk(ex.Right, bound)
		case *hir.Let:
			walk(ex.Value, bound)
			inner := copyBound(bound)
			inner[ex.Name] = true
			walk(ex.Body, inner)
		case *hir.If:
			walk(ex.Cond, bound)
			walk(ex.Then, bound)
			walk(ex.Else, bound)
		case *hir.Match:
			walk(ex.Scrutinee, bound)
			for _, arm := range ex.Arms {
				inner := copyBound(bound)
				walkPat(arm.Pattern, inner)
				if arm.Guard != nil {
					walk(arm.Guard, inner)
				}
				walk(arm.Body, inner)
			}
		case *hir.Tuple:
			for _, item := range ex.Items {
				walk(item, bound)
			}
		case *hir.List:
			for _, item := range ex.Items {
				walk(item, bound)
			}
		case *hir.Record:
			for _, f := range ex.Fields {
				walk(f.Value, bound)
			}
		case *hir.Field:
			walk(ex.Base, bound)
		case *hir.Construct:
			for _, arg := range ex.Args {
				walk(arg, bound)
			}
		}
	}
	walk(e, bound)
	return out
}

// compileMatch lowers a match to a decision tree. The scrutinee is bound
// once; guard-free constructor arms group into a single Case per run, and
// everything else compiles to sequential tests with the remaining arms as
// the fallback. Fallback subtrees may be shared; the tree is read-only.
func (l *lowerer) compileMatch(m *hir.Match) Expr {
	scrut := l.fresh("s")
	tree := l.compileArms(&Local{Name: scrut}, m.Arms)
	l.checkExhaustive(m.Arms)
	return &Let{Name: scrut, Value: l.lowerExpr(m.Scrutinee), Body: tree}
}

func (l *lowerer) compileArms(scrut Expr, arms []hir.Arm) Expr {
	if len(arms) == 0 {
		return &MatchFail{}
	}

	// A run of guard-free constructor arms becomes one Case grouped by tag.
	if _, ok := arms[0].Pattern.(*hir.PCtor); ok && arms[0].Guard == nil {
		run := 1
		for run < len(arms) {
			if _, isCtor := arms[run].Pattern.(*hir.PCtor); !isCtor || arms[run].Guard != nil {
				break
			}
			run++
		}
		rest := l.compileArms(scrut, arms[run:])
		return l.compileCtorRun(scrut, arms[:run], rest)
	}

	arm := arms[0]
	rest := l.compileArms(scrut, arms[1:])
	body := l.lowerExpr(arm.Body)
	if arm.Guard != nil {
		body = &If{Cond: l.lowerExpr(arm.Guard), Then: body, Else: rest}
	}
	return l.compilePattern(scrut, arm.Pattern, body, rest)
}

// compileCtorRun groups constructor arms by tag into one Case. Arms sharing
// a tag chain within the branch; a failing nested pattern falls through to
// the arms after the run.
func (l *lowerer) compileCtorRun(scrut Expr, arms []hir.Arm, rest Expr) Expr {
	type tagGroup struct {
		ctor string
		tag  int
		arms []hir.Arm
	}
	var order []int
	groups := make(map[int]*tagGroup)
	for _, arm := range arms {
		pat := arm.Pattern.(*hir.PCtor)
		g, ok := groups[pat.Tag]
		if !ok {
			g = &tagGroup{ctor: pat.Ctor, tag: pat.Tag}
			groups[pat.Tag] = g
			order = append(order, pat.Tag)
		}
		g.arms = append(g.arms, arm)
	}

	c := &Case{Scrut: scrut, Default: rest}
	for _, tag := range order {
		g := groups[tag]
		arity := len(g.arms[0].Pattern.(*hir.PCtor).Args)
		binds := make([]string, arity)
		bindRefs := make([]Expr, arity)
		for i := range binds {
			binds[i] = l.fresh("b")
			bindRefs[i] = &Local{Name: binds[i]}
		}
		body := rest
		for i := len(g.arms) - 1; i >= 0; i-- {
			arm := g.arms[i]
			pat := arm.Pattern.(*hir.PCtor)
			armBody := l.lowerExpr(arm.Body)
			body = l.compileSeq(bindRefs, pat.Args, armBody, body)
		}
		c.Branches = append(c.Branches, CaseBranch{Ctor: g.ctor, Tag: tag, Binds: binds, Body: body})
	}
	return c
}

// compilePattern tests one pattern against an already-bound scrutinee.
func (l *lowerer) compilePattern(scrut Expr, p hir.Pattern, success, fail Expr) Expr {
	switch pat := p.(type) {
	case *hir.PWildcard:
		return success
	case *hir.PVar:
		return &Let{Name: pat.Name, Value: scrut, Body: success}
	case *hir.PLit:
		return &If{
			Cond: &Prim{Op: "==", Left: scrut, Right: l.lowerExpr(pat.Lit)},
			Then: success,
			Else: fail,
		}
	case *hir.PCtor:
		binds := make([]string, len(pat.Args))
		bindRefs := make([]Expr, len(pat.Args))
		for i := range binds {
			binds[i] = l.fresh("b")
			bindRefs[i] = &Local{Name: binds[i]}
		}
		return &Case{
			Scrut: scrut,
			Branches: []CaseBranch{{
				Ctor: pat.Ctor, Tag: pat.Tag, Binds: binds,
				Body: l.compileSeq(bindRefs, pat.Args, success, fail),
			}},
			Default: fail,
		}
	case *hir.PTuple:
		name := l.fresh("t")
		scruts := make([]Expr, len(pat.Items))
		for i := range scruts {
			scruts[i] = &TupleGet{Base: &Local{Name: name}, Index: i}
		}
		return &Let{Name: name, Value: scrut,
			Body: l.compileSeq(scruts, pat.Items, success, fail)}
	case *hir.PRecord:
		name := l.fresh("r")
		scruts := make([]Expr, len(pat.Fields))
		pats := make([]hir.Pattern, len(pat.Fields))
		for i, f := range pat.Fields {
			scruts[i] = &Field{Base: &Local{Name: name}, Name: f.Name}
			pats[i] = f.Pattern
		}
		return &Let{Name: name, Value: scrut,
			Body: l.compileSeq(scruts, pats, success, fail)}
	default:
		return fail
	}
}

// compileSeq matches a list of patterns against a list of scrutinees,
// left to right.
func (l *lowerer) compileSeq(scruts []Expr, pats []hir.Pattern, success, fail Expr) Expr {
	out := success
	for i := len(pats) - 1; i >= 0; i-- {
		out = l.compilePattern(scruts[i], pats[i], out, fail)
	}
	return out
}

// checkExhaustive reports a match that can fall through every arm. The
// check is conservative: an irrefutable guard-free arm, or guard-free
// constructor coverage of the whole data type, counts as exhaustive.
func (l *lowerer) checkExhaustive(arms []hir.Arm) {
	covered := map[int]bool{}
	var typeName string
	for _, arm := range arms {
		if arm.Guard != nil {
			continue
		}
		if irrefutable(arm.Pattern) {
			return
		}
		if pat, ok := arm.Pattern.(*hir.PCtor); ok && allIrrefutable(pat.Args) {
			covered[pat.Tag] = true
			typeName = l.ctorType[pat.Ctor]
		}
	}
	if typeName != "" && len(covered) == l.tagCount[typeName] {
		return
	}
	if l.opts.StrictMatch {
		l.bag.Error(diagnostic.CodeNonExhaustiveMatch, position.Span{},
			"match in %q is not exhaustive", l.current)
		return
	}
	l.bag.Warning(diagnostic.CodeNonExhaustiveMatch, position.Span{},
		"match in %q may not be exhaustive", l.current)
}

func irrefutable(p hir.Pattern) bool {
	switch pat := p.(type) {
	case *hir.PWildcard, *hir.PVar:
		return true
	case *hir.PTuple:
		return allIrrefutable(pat.Items)
	case *hir.PRecord:
		for _, f := range pat.Fields {
			if !irrefutable(f.Pattern) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func allIrrefutable(pats []hir.Pattern) bool {
	for _, p := range pats {
		if !irrefutable(p) {
			return false
		}
	}
	return true
}
