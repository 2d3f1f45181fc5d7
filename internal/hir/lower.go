package hir

import (
	"fmt"
	"sort"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

// InstanceSymbol is the global name of one instance's member implementation.
func InstanceSymbol(member, head string) string {
	return member + "$" + head
}

// DispatchKey indexes the Program's dispatch tables.
func DispatchKey(class, member string) string {
	return class + "." + member
}

type lowerer struct {
	res    *typecheck.Result
	bag    *diagnostic.Bag
	gensym int
}

// Lower desugars the checked program into HIR. It assumes the checker ran
// first; unresolved names were already reported and lower to globals that
// the backends will fail on explicitly.
func Lower(prog *ast.Program, res *typecheck.Result, bag *diagnostic.Bag) *Program {
	l := &lowerer{res: res, bag: bag}
	out := &Program{Dispatch: make(map[string]map[string]string)}

	for _, name := range res.DefOrder {
		if def := l.lowerDefGroup(name, res.Clauses[name]); def != nil {
			out.Defs = append(out.Defs, def)
		}
	}

	classNames := make([]string, 0, len(res.Classes))
	for name := range res.Classes {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)
	for _, className := range classNames {
		info := res.Classes[className]
		for _, inst := range info.Instances {
			members := make([]string, 0, len(inst.Members))
			for member := range inst.Members {
				members = append(members, member)
			}
			sort.Strings(members)
			for _, member := range members {
				symbol := InstanceSymbol(member, inst.HeadName)
				if def := l.lowerDefGroup(symbol, []*ast.Def{inst.Members[member]}); def != nil {
					out.Defs = append(out.Defs, def)
				}
				key := DispatchKey(className, member)
				if out.Dispatch[key] == nil {
					out.Dispatch[key] = make(map[string]string)
				}
				for _, tag := range inst.Tags {
					out.Dispatch[key][tag] = symbol
				}
			}
		}
	}
	return out
}

func (l *lowerer) fresh(prefix string) string {
	l.gensym++
	return fmt.Sprintf("$%s%d", prefix, l.gensym)
}

// lowerDefGroup merges a definition's clauses into one HIR def. A single
// clause over plain variable parameters lowers directly; anything else
// becomes a match over the parameter tuple.
func (l *lowerer) lowerDefGroup(name string, clauses []*ast.Def) *Def {
	if len(clauses) == 0 {
		return nil
	}
	arity := len(clauses[0].Params)
	usable := clauses[:0:0]
	for _, clause := range clauses {
		if len(clause.Params) != arity {
			l.bag.Error(diagnostic.CodeClauseArity, clause.Span,
				"clause of %q has %d parameter(s), expected %d", name, len(clause.Params), arity)
			continue
		}
		usable = append(usable, clause)
	}
	if len(usable) == 0 {
		return nil
	}

	if len(usable) == 1 && plainParams(usable[0].Params) {
		clause := usable[0]
		params := make([]string, arity)
		env := map[string]bool{}
		for i, p := range clause.Params {
			switch pat := p.(type) {
			case *ast.VarPattern:
				params[i] = pat.Name
			case *ast.WildcardPattern:
				params[i] = fmt.Sprintf("$_%d", i)
			}
			env[params[i]] = true
		}
		return &Def{Name: name, Params: params, Body: l.lowerExpr(clause.Body, env)}
	}

	params := make([]string, arity)
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i)
	}
	var scrutinee Expr
	if arity == 1 {
		scrutinee = &Var{Name: params[0]}
	} else {
		items := make([]Expr, arity)
		for i, p := range params {
			items[i] = &Var{Name: p}
		}
		scrutinee = &Tuple{Items: items}
	}

	var arms []Arm
	for _, clause := range usable {
		var pat Pattern
		if arity == 1 {
			pat = l.lowerPattern(clause.Params[0])
		} else {
			items := make([]Pattern, arity)
			for i, p := range clause.Params {
				items[i] = l.lowerPattern(p)
			}
			pat = &PTuple{Items: items}
		}
		env := map[string]bool{}
		for _, p := range params {
			env[p] = true
		}
		collectPatternVars(pat, env)
		arms = append(arms, Arm{Pattern: pat, Body: l.lowerExpr(clause.Body, env)})
	}
	if arity == 0 {
		// Zero-parameter clauses cannot be merged; only the first applies.
		return &Def{Name: name, Params: nil, Body: arms[0].Body}
	}
	return &Def{Name: name, Params: params, Body: &Match{Scrutinee: scrutinee, Arms: arms}}
}

func plainParams(params []ast.Pattern) bool {
	for _, p := range params {
		switch p.(type) {
		case *ast.VarPattern, *ast.WildcardPattern:
		default:
			return false
		}
	}
	return true
}

func (l *lowerer) lowerExpr(e ast.Expr, env map[string]bool) Expr {
	switch ex := e.(type) {
	case *ast.IntLit:
		return &IntLit{Value: ex.Value}
	case *ast.FloatLit:
		return &FloatLit{Value: ex.Value}
	case *ast.StringLit:
		return &TextLit{Value: ex.Value}
	case *ast.BoolLit:
		return &BoolLit{Value: ex.Value}
	case *ast.UnitLit:
		return &UnitLit{}

	case *ast.Var:
		return l.lowerVar(ex, env)

	case *ast.Lambda:
		inner := extend(env, ex.Param)
		return &Lambda{Param: ex.Param, Body: l.lowerExpr(ex.Body, inner)}

	case *ast.Apply:
		return l.lowerApply(ex, env)

	case *ast.Binary:
		return &Prim{Op: ex.Op, Left: l.lowerExpr(ex.Left, env), Right: l.lowerExpr(ex.Right, env)}

	case *ast.Let:
		return &Let{
			Name:  ex.Name,
			Value: l.lowerExpr(ex.Value, env),
			Body:  l.lowerExpr(ex.Body, extend(env, ex.Name)),
		}

	case *ast.If:
		return &If{
			Cond: l.lowerExpr(ex.Cond, env),
			Then: l.lowerExpr(ex.Then, env),
			Else: l.lowerExpr(ex.Else, env),
		}

	case *ast.Match:
		m := &Match{Scrutinee: l.lowerExpr(ex.Scrutinee, env)}
		for _, arm := range ex.Arms {
			pat := l.lowerPattern(arm.Pattern)
			armEnv := copyEnv(env)
			collectPatternVars(pat, armEnv)
			lowered := Arm{Pattern: pat, Body: l.lowerExpr(arm.Body, armEnv)}
			if arm.Guard != nil {
				lowered.Guard = l.lowerExpr(arm.Guard, armEnv)
			}
			m.Arms = append(m.Arms, lowered)
		}
		return m

	case *ast.TupleLit:
		items := make([]Expr, len(ex.Items))
		for i, item := range ex.Items {
			items[i] = l.lowerExpr(item, env)
		}
		return &Tuple{Items: items}

	case *ast.ListLit:
		items := make([]Expr, len(ex.Items))
		for i, item := range ex.Items {
			items[i] = l.lowerExpr(item, env)
		}
		return &List{Items: items}

	case *ast.RecordLit:
		fields := make([]RecordField, len(ex.Fields))
		for i, f := range ex.Fields {
			fields[i] = RecordField{Name: f.Name, Value: l.lowerExpr(f.Value, env)}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		return &Record{Fields: fields}

	case *ast.FieldAccess:
		return &Field{Base: l.lowerExpr(ex.Base, env), Name: ex.Field}

	case *ast.EffectBlock:
		return l.lowerEffectBlock(ex.Stmts, env)

	default:
		l.bag.Error(diagnostic.CodeUnsupportedConstruct, e.Span(), "unsupported expression in lowering")
		return &UnitLit{}
	}
}

// lowerVar resolves a bare name: local, class member (static instance call
// or runtime dispatch), data constructor (eta-expanded), or global.
func (l *lowerer) lowerVar(ex *ast.Var, env map[string]bool) Expr {
	if env[ex.Name] {
		return &Var{Name: ex.Name}
	}
	if use, ok := l.res.MemberUses[ex]; ok {
		if use.Head != "" {
			return &Global{Name: InstanceSymbol(use.Member, use.Head)}
		}
		return &Dispatch{Class: use.Class, Member: use.Member}
	}
	if info, ok := l.res.Constructors[ex.Name]; ok {
		return l.etaConstruct(ex.Name, info, nil)
	}
	return &Global{Name: ex.Name}
}

// lowerApply flattens an application spine so saturated constructor
// applications become direct Construct nodes.
func (l *lowerer) lowerApply(ex *ast.Apply, env map[string]bool) Expr {
	var spine []ast.Expr
	head := ast.Expr(ex)
	for {
		app, ok := head.(*ast.Apply)
		if !ok {
			break
		}
		spine = append([]ast.Expr{app.Arg}, spine...)
		head = app.Fn
	}
	if v, ok := head.(*ast.Var); ok && !env[v.Name] {
		if info, known := l.res.Constructors[v.Name]; known {
			args := make([]Expr, len(spine))
			for i, arg := range spine {
				args[i] = l.lowerExpr(arg, env)
			}
			if len(args) <= info.Arity {
				return l.etaConstruct(v.Name, info, args)
			}
		}
	}
	fn := l.lowerExpr(ex.Fn, env)
	return &Apply{Fn: fn, Arg: l.lowerExpr(ex.Arg, env)}
}

// etaConstruct builds a constructor value, wrapping missing arguments in
// lambdas so constructors remain first-class values.
func (l *lowerer) etaConstruct(name string, info typecheck.ConstructorInfo, given []Expr) Expr {
	missing := info.Arity - len(given)
	params := make([]string, missing)
	args := make([]Expr, 0, info.Arity)
	args = append(args, given...)
	for i := 0; i < missing; i++ {
		params[i] = l.fresh("c")
		args = append(args, &Var{Name: params[i]})
	}
	var out Expr = &Construct{Ctor: name, Tag: info.Tag, Args: args}
	for i := missing - 1; i >= 0; i-- {
		out = &Lambda{Param: params[i], Body: out}
	}
	return out
}

// lowerEffectBlock rewrites sequential effect notation into a bind chain:
// each statement feeds the rest of the block through a continuation lambda,
// so evaluation is left-to-right and failure short-circuits inside bind.
func (l *lowerer) lowerEffectBlock(stmts []ast.EffectStmt, env map[string]bool) Expr {
	if len(stmts) == 0 {
		return &UnitLit{}
	}
	if len(stmts) == 1 {
		return l.lowerExpr(stmts[0].Expr, env)
	}
	head := l.lowerExpr(stmts[0].Expr, env)
	param := stmts[0].Bind
	inner := env
	if param == "" {
		param = l.fresh("e")
	} else {
		inner = extend(env, param)
	}
	rest := l.lowerEffectBlock(stmts[1:], inner)
	return &Apply{
		Fn:  &Apply{Fn: &Global{Name: "bind"}, Arg: head},
		Arg: &Lambda{Param: param, Body: rest},
	}
}

func (l *lowerer) lowerPattern(p ast.Pattern) Pattern {
	switch pat := p.(type) {
	case *ast.WildcardPattern:
		return &PWildcard{}
	case *ast.VarPattern:
		return &PVar{Name: pat.Name}
	case *ast.LiteralPattern:
		return &PLit{Lit: l.lowerExpr(pat.Value, nil)}
	case *ast.ConstructorPattern:
		info, known := l.res.Constructors[pat.Name]
		if !known {
			// Already reported by the checker; keep lowering total.
			return &PWildcard{}
		}
		args := make([]Pattern, len(pat.Args))
		for i, argPat := range pat.Args {
			args[i] = l.lowerPattern(argPat)
		}
		return &PCtor{Ctor: pat.Name, Tag: info.Tag, Args: args}
	case *ast.TuplePattern:
		items := make([]Pattern, len(pat.Items))
		for i, itemPat := range pat.Items {
			items[i] = l.lowerPattern(itemPat)
		}
		return &PTuple{Items: items}
	case *ast.RecordPattern:
		fields := make([]PRecordField, len(pat.Fields))
		for i, f := range pat.Fields {
			fields[i] = PRecordField{Name: f.Name, Pattern: l.lowerPattern(f.Pattern)}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		return &PRecord{Fields: fields}
	default:
		return &PWildcard{}
	}
}

func collectPatternVars(p Pattern, env map[string]bool) {
	switch pat := p.(type) {
	case *PVar:
		env[pat.Name] = true
	case *PCtor:
		for _, arg := range pat.Args {
			collectPatternVars(arg, env)
		}
	case *PTuple:
		for _, item := range pat.Items {
			collectPatternVars(item, env)
		}
	case *PRecord:
		for _, f := range pat.Fields {
			collectPatternVars(f.Pattern, env)
		}
	}
}

func copyEnv(env map[string]bool) map[string]bool {
	out := make(map[string]bool, len(env)+4)
	for name := range env {
		out[name] = true
	}
	return out
}

func extend(env map[string]bool, name string) map[string]bool {
	out := copyEnv(env)
	out[name] = true
	return out
}
