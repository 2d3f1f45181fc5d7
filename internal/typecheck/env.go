package typecheck

import (
	"github.com/benbjohnson/immutable"
	"github.com/lumen-lang/lumen/internal/types"
)

// scope is the local binding environment during inference. Persistent maps
// make scope extension a cheap snapshot, so arms and branches never see
// each other's bindings.
type scope = immutable.Map[string, types.Type]

func emptyScope() *scope {
	return immutable.NewMap[string, types.Type](nil)
}

// Builtin value environment. Variable IDs inside these schemes are local to
// the scheme; instantiation replaces them before they meet the union-find.
func builtinSchemes() *immutable.Map[string, types.Scheme] {
	a := types.VarID(0)
	b := types.VarID(1)
	va := types.Var{ID: a}
	vb := types.Var{ID: b}
	intT := types.NewCon("Int")
	floatT := types.NewCon("Float")
	textT := types.NewCon("Text")
	unitT := types.NewCon("Unit")
	effect := func(t types.Type) types.Type { return types.NewCon("Effect", t) }
	channel := func(t types.Type) types.Type { return types.NewCon("Channel", t) }
	list := func(t types.Type) types.Type { return types.NewCon("List", t) }

	one := func(t types.Type) types.Scheme {
		return types.Scheme{Vars: []types.VarID{a}, Type: t}
	}
	two := func(t types.Type) types.Scheme {
		return types.Scheme{Vars: []types.VarID{a, b}, Type: t}
	}

	m := immutable.NewMap[string, types.Scheme](nil)
	set := func(name string, s types.Scheme) {
		m = m.Set(name, s)
	}

	set("print", one(types.Arrow(effect(unitT), va)))
	set("show", one(types.Arrow(textT, va)))
	set("pure", one(types.Arrow(effect(va), va)))
	set("fail", one(types.Arrow(effect(va), textT)))
	set("bind", two(types.Arrow(effect(vb), effect(va), types.Arrow(effect(vb), va))))
	set("channel", one(types.Arrow(effect(channel(va)), unitT)))
	set("send", one(types.Arrow(effect(unitT), channel(va), va)))
	set("recv", one(types.Arrow(effect(va), channel(va))))
	set("par", two(types.Arrow(effect(types.Tuple{Items: []types.Type{va, vb}}), effect(va), effect(vb))))
	set("race", one(types.Arrow(effect(va), effect(va), effect(va))))
	set("cons", one(types.Arrow(list(va), va, list(va))))
	set("toFloat", types.Mono(types.Arrow(floatT, intT)))
	set("netServe", types.Mono(types.Arrow(effect(unitT), intT, types.Arrow(textT, textT))))
	set("netGet", types.Mono(types.Arrow(effect(textT), textT)))
	return m
}

// Infix operator signatures. Arithmetic is class-constrained so that use
// sites drive monomorphization; equality is structural over any type.
func opScheme(op string) (types.Scheme, bool) {
	a := types.VarID(0)
	va := types.Var{ID: a}
	boolT := types.NewCon("Bool")
	textT := types.NewCon("Text")
	list := types.NewCon("List", va)

	switch op {
	case "+", "-", "*", "/":
		return types.Scheme{
			Vars:        []types.VarID{a},
			Constraints: []types.ClassConstraint{{Class: "Num", Var: a}},
			Type:        types.Arrow(va, va, va),
		}, true
	case "==", "!=":
		return types.Scheme{
			Vars: []types.VarID{a},
			Type: types.Arrow(boolT, va, va),
		}, true
	case "<", "<=", ">", ">=":
		return types.Scheme{
			Vars:        []types.VarID{a},
			Constraints: []types.ClassConstraint{{Class: "Ord", Var: a}},
			Type:        types.Arrow(boolT, va, va),
		}, true
	case "&&", "||":
		return types.Mono(types.Arrow(boolT, boolT, boolT)), true
	case "++":
		return types.Scheme{
			Vars: []types.VarID{a},
			Type: types.Arrow(list, list, list),
		}, true
	case "<>":
		return types.Mono(types.Arrow(textT, textT, textT)), true
	default:
		return types.Scheme{}, false
	}
}
