package typecheck

import (
	"sort"

	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/position"
	"github.com/lumen-lang/lumen/internal/types"
)

// fieldConstraint is a deferred obligation: base must turn out to be a
// record carrying the named field at ftype. Created when a field access
// runs ahead of the information fixing the record's shape.
type fieldConstraint struct {
	base  types.Type
	name  string
	ftype types.Type
	sp    position.Span
}

// resolve chases variable bindings one level: the result is either a
// non-variable type or an unbound variable's representative.
func (c *Checker) resolve(t types.Type) types.Type {
	for {
		v, isVar := t.(types.Var)
		if !isVar {
			return t
		}
		root := c.uf.Find(v.ID)
		bound, ok := c.bindings[root]
		if !ok {
			return types.Var{ID: root}
		}
		t = bound
	}
}

// deepResolve substitutes every bound variable throughout the type.
func (c *Checker) deepResolve(t types.Type) types.Type {
	switch ty := c.resolve(t).(type) {
	case types.Var:
		return ty
	case types.Con:
		args := make([]types.Type, len(ty.Args))
		for i, a := range ty.Args {
			args[i] = c.deepResolve(a)
		}
		return types.Con{Name: ty.Name, Args: args}
	case types.Func:
		return types.Func{Param: c.deepResolve(ty.Param), Result: c.deepResolve(ty.Result)}
	case types.Tuple:
		items := make([]types.Type, len(ty.Items))
		for i, it := range ty.Items {
			items[i] = c.deepResolve(it)
		}
		return types.Tuple{Items: items}
	case types.Record:
		fields := make(map[string]types.Type, len(ty.Fields))
		for name, ft := range ty.Fields {
			fields[name] = c.deepResolve(ft)
		}
		return types.Record{Fields: fields, Open: ty.Open}
	default:
		return ty
	}
}

// freeVars returns the variables of a resolved type in first-occurrence
// order. The order is stable so scheme quantifier lists are deterministic.
func freeVars(t types.Type) []types.VarID {
	var out []types.VarID
	seen := map[types.VarID]bool{}
	var walk func(types.Type)
	walk = func(t types.Type) {
		switch ty := t.(type) {
		case types.Var:
			if !seen[ty.ID] {
				seen[ty.ID] = true
				out = append(out, ty.ID)
			}
		case types.Con:
			for _, a := range ty.Args {
				walk(a)
			}
		case types.Func:
			walk(ty.Param)
			walk(ty.Result)
		case types.Tuple:
			for _, it := range ty.Items {
				walk(it)
			}
		case types.Record:
			names := ty.SortedFieldNames()
			for _, name := range names {
				walk(ty.Fields[name])
			}
		}
	}
	walk(t)
	return out
}

// occurs reports whether the variable root appears in t.
func (c *Checker) occurs(root types.VarID, t types.Type) bool {
	switch ty := c.resolve(t).(type) {
	case types.Var:
		return c.uf.Find(ty.ID) == root
	case types.Con:
		for _, a := range ty.Args {
			if c.occurs(root, a) {
				return true
			}
		}
	case types.Func:
		return c.occurs(root, ty.Param) || c.occurs(root, ty.Result)
	case types.Tuple:
		for _, it := range ty.Items {
			if c.occurs(root, it) {
				return true
			}
		}
	case types.Record:
		for _, ft := range ty.Fields {
			if c.occurs(root, ft) {
				return true
			}
		}
	}
	return false
}

// unify makes a and b equal, reporting a mismatch diagnostic at sp on
// failure. Failure does not abort checking; the caller's type simply stays
// partially unresolved.
func (c *Checker) unify(a, b types.Type, sp position.Span) bool {
	a = c.resolve(a)
	b = c.resolve(b)

	if av, ok := a.(types.Var); ok {
		if bv, ok := b.(types.Var); ok {
			return c.unionVars(av.ID, bv.ID)
		}
		return c.bindVar(av.ID, b, sp)
	}
	if bv, ok := b.(types.Var); ok {
		return c.bindVar(bv.ID, a, sp)
	}

	switch at := a.(type) {
	case types.Con:
		bt, ok := b.(types.Con)
		if !ok || at.Name != bt.Name || len(at.Args) != len(bt.Args) {
			return c.mismatch(a, b, sp)
		}
		ok = true
		for i := range at.Args {
			if !c.unify(at.Args[i], bt.Args[i], sp) {
				ok = false
			}
		}
		return ok
	case types.Func:
		bt, ok := b.(types.Func)
		if !ok {
			return c.mismatch(a, b, sp)
		}
		okParam := c.unify(at.Param, bt.Param, sp)
		okResult := c.unify(at.Result, bt.Result, sp)
		return okParam && okResult
	case types.Tuple:
		bt, ok := b.(types.Tuple)
		if !ok || len(at.Items) != len(bt.Items) {
			return c.mismatch(a, b, sp)
		}
		ok = true
		for i := range at.Items {
			if !c.unify(at.Items[i], bt.Items[i], sp) {
				ok = false
			}
		}
		return ok
	case types.Record:
		bt, ok := b.(types.Record)
		if !ok {
			return c.mismatch(a, b, sp)
		}
		return c.unifyRecords(at, bt, sp)
	default:
		return c.mismatch(a, b, sp)
	}
}

// unifyRecords handles the open-record cases: an open record's fields must
// be a subset of a closed record's, and two open records agree on their
// intersection.
func (c *Checker) unifyRecords(a, b types.Record, sp position.Span) bool {
	checkSubset := func(sub, super types.Record) bool {
		ok := true
		for _, name := range sub.SortedFieldNames() {
			st, present := super.Fields[name]
			if !present {
				c.bag.Error(diagnostic.CodeUnificationMismatch, sp,
					"record has no field %q", name)
				ok = false
				continue
			}
			if !c.unify(sub.Fields[name], st, sp) {
				ok = false
			}
		}
		return ok
	}

	switch {
	case !a.Open && !b.Open:
		if len(a.Fields) != len(b.Fields) {
			return c.mismatch(a, b, sp)
		}
		return checkSubset(a, b)
	case a.Open && !b.Open:
		return checkSubset(a, b)
	case !a.Open && b.Open:
		return checkSubset(b, a)
	default:
		// Both open: unify the shared fields only.
		ok := true
		for _, name := range a.SortedFieldNames() {
			if bt, shared := b.Fields[name]; shared {
				if !c.unify(a.Fields[name], bt, sp) {
					ok = false
				}
			}
		}
		return ok
	}
}

// unionVars merges two variable classes, carrying class constraints onto
// the surviving representative.
func (c *Checker) unionVars(a, b types.VarID) bool {
	ra := c.uf.Find(a)
	rb := c.uf.Find(b)
	if ra == rb {
		return true
	}
	classesA := c.varClasses[ra]
	classesB := c.varClasses[rb]
	root := c.uf.Union(ra, rb)
	delete(c.varClasses, ra)
	delete(c.varClasses, rb)
	merged := mergeClassLists(classesA, classesB)
	if len(merged) > 0 {
		c.varClasses[root] = merged
	}
	return true
}

func mergeClassLists(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, class := range list {
			if !seen[class] {
				seen[class] = true
				out = append(out, class)
			}
		}
	}
	sort.Strings(out)
	return out
}

// bindVar binds an unbound variable to t, discharging any class constraints
// the variable carried against t's head.
func (c *Checker) bindVar(id types.VarID, t types.Type, sp position.Span) bool {
	root := c.uf.Find(id)
	if c.occurs(root, t) {
		printer := types.NewPrinter()
		c.bag.Error(diagnostic.CodeUnificationMismatch, sp,
			"cannot construct the infinite type %s = %s",
			printer.Print(types.Var{ID: root}), printer.Print(t))
		return false
	}
	c.bindings[root] = t
	for _, class := range c.varClasses[root] {
		c.requireInstance(class, c.resolve(t), sp)
	}
	delete(c.varClasses, root)
	return true
}

func (c *Checker) mismatch(a, b types.Type, sp position.Span) bool {
	printer := types.NewPrinter()
	c.bag.Error(diagnostic.CodeUnificationMismatch, sp,
		"type mismatch: %s vs %s",
		printer.Print(c.deepResolve(a)), printer.Print(c.deepResolve(b)))
	return false
}

// deferField records a field obligation against a type whose shape is not
// yet known.
func (c *Checker) deferField(base types.Type, name string, ftype types.Type, sp position.Span) {
	c.deferredFields = append(c.deferredFields, &fieldConstraint{
		base:  base,
		name:  name,
		ftype: ftype,
		sp:    sp,
	})
}

// solveDeferredFields retries pending field constraints until a pass makes
// no progress. Constraints still pending afterward are residual errors;
// constraints against non-record types are mismatches.
func (c *Checker) solveDeferredFields() {
	pending := c.deferredFields
	for {
		var next []*fieldConstraint
		progress := false
		for _, fc := range pending {
			switch base := c.resolve(fc.base).(type) {
			case types.Var:
				next = append(next, fc)
			case types.Record:
				ft, ok := base.Fields[fc.name]
				if !ok {
					if base.Open {
						// An open record can still grow the field. The
						// field map is shared through the binding, so
						// adding here is visible everywhere.
						base.Fields[fc.name] = fc.ftype
						progress = true
						continue
					}
					c.bag.Error(diagnostic.CodeUnificationMismatch, fc.sp,
						"record has no field %q", fc.name)
					progress = true
					continue
				}
				c.unify(fc.ftype, ft, fc.sp)
				progress = true
			default:
				printer := types.NewPrinter()
				c.bag.Error(diagnostic.CodeUnificationMismatch, fc.sp,
					"%s is not a record, cannot access field %q",
					printer.Print(base), fc.name)
				progress = true
			}
		}
		pending = next
		if !progress || len(pending) == 0 {
			break
		}
	}
	for _, fc := range pending {
		c.bag.Error(diagnostic.CodeResidualConstraint, fc.sp,
			"could not determine the record shape for field %q", fc.name)
	}
	c.deferredFields = nil
}
