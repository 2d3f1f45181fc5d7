package typecheck

import (
	"github.com/lumen-lang/lumen/internal/types"
)

// cgOf lowers a resolved semantic type to its codegen description. Anything
// still variable, effectful, or channel-typed stays Dynamic and therefore
// boxed; only ground data shapes become unboxed candidates.
func (c *Checker) cgOf(t types.Type) types.CgType {
	return c.cgOfGuarded(t, map[string]bool{})
}

// inProgress guards recursive data types: a back-reference collapses to a
// name-only node instead of expanding forever.
func (c *Checker) cgOfGuarded(t types.Type, inProgress map[string]bool) types.CgType {
	switch ty := c.resolve(t).(type) {
	case types.Var:
		return types.CgOf(types.CgDynamic)
	case types.Con:
		switch ty.Name {
		case "Int":
			return types.CgOf(types.CgInt)
		case "Float":
			return types.CgOf(types.CgFloat)
		case "Bool":
			return types.CgOf(types.CgBool)
		case "Text":
			return types.CgOf(types.CgText)
		case "Unit":
			return types.CgOf(types.CgUnit)
		case "List":
			return types.CgType{Kind: types.CgList, Args: []types.CgType{c.cgOfGuarded(ty.Args[0], inProgress)}}
		case "Effect", "Channel":
			// Effects and channels only exist boxed.
			return types.CgOf(types.CgDynamic)
		}
		return c.cgOfADT(ty, inProgress)
	case types.Func:
		return types.CgType{Kind: types.CgFunc, Args: []types.CgType{
			c.cgOfGuarded(ty.Param, inProgress),
			c.cgOfGuarded(ty.Result, inProgress),
		}}
	case types.Tuple:
		args := make([]types.CgType, len(ty.Items))
		for i, it := range ty.Items {
			args[i] = c.cgOfGuarded(it, inProgress)
		}
		return types.CgType{Kind: types.CgTuple, Args: args}
	case types.Record:
		if ty.Open {
			return types.CgOf(types.CgDynamic)
		}
		fields := make(map[string]types.CgType, len(ty.Fields))
		for name, ft := range ty.Fields {
			fields[name] = c.cgOfGuarded(ft, inProgress)
		}
		return types.CgRecordOf(fields)
	default:
		return types.CgOf(types.CgDynamic)
	}
}

// cgOfADT expands a user data type's constructors at the given type
// arguments.
func (c *Checker) cgOfADT(ty types.Con, inProgress map[string]bool) types.CgType {
	decl, known := c.adtDecls[ty.Name]
	if !known {
		return types.CgOf(types.CgDynamic)
	}
	if inProgress[ty.Name] {
		return types.CgType{Kind: types.CgAdt, Name: ty.Name}
	}
	inProgress[ty.Name] = true
	defer delete(inProgress, ty.Name)

	out := types.CgType{Kind: types.CgAdt, Name: ty.Name}
	for _, ctorDecl := range decl.Constructors {
		info := c.ctors[ctorDecl.Name]
		subst := make(map[types.VarID]types.Type, len(info.vars))
		for i, v := range info.vars {
			if i < len(ty.Args) {
				subst[v] = ty.Args[i]
			}
		}
		ctor := types.CgConstructor{Name: ctorDecl.Name}
		for _, argT := range info.args {
			ctor.Args = append(ctor.Args, c.cgOfGuarded(substituteVars(argT, subst), inProgress))
		}
		out.Constructors = append(out.Constructors, ctor)
	}
	return out
}
