package jit

import (
	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/typecheck"
	"github.com/lumen-lang/lumen/internal/types"
)

// installFastPaths emits machine code for every definition whose checked
// type is a closed two-argument scalar function. Encoding or mapping
// failures are not errors; the boxed path always remains.
func (m *Module) installFastPaths(kp *kernel.Program, res *typecheck.Result) {
	if res == nil {
		return
	}
	for _, def := range kp.Defs {
		cg, ok := res.CgTypes[def.Name]
		if !ok || len(def.Params) != 2 {
			continue
		}
		switch scalarKind(cg) {
		case types.CgInt:
			code, err := encodeIntDef(def.Params, def.Body)
			if err != nil {
				continue
			}
			if fn, err := execInt(code); err == nil {
				m.typedInt[def.Name] = fn
			}
		case types.CgFloat:
			code, err := encodeFloatDef(def.Params, def.Body)
			if err != nil {
				continue
			}
			if fn, err := execFloat(code); err == nil {
				m.typedFloat[def.Name] = fn
			}
		}
	}
}

// scalarKind reports the element kind of a two-argument scalar function
// type, or CgDynamic when the shape does not qualify.
func scalarKind(cg types.CgType) types.CgKind {
	args, result := cg.Uncurry()
	if len(args) != 2 {
		return types.CgDynamic
	}
	want := result.Kind
	if want != types.CgInt && want != types.CgFloat {
		return types.CgDynamic
	}
	for _, a := range args {
		if a.Kind != want {
			return types.CgDynamic
		}
	}
	return want
}
