// Package native lowers Kernel programs into a target intermediate form
// and emits ahead-of-time artifacts: C source in executable or library
// shape, typed unboxed variants for monomorphized definitions, and a
// relocatable object with runtime helpers as unresolved imports.
package native

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/typecheck"
	"github.com/lumen-lang/lumen/internal/types"
)

// Program is the target intermediate form: a flat definition list with
// dispatch tables and the monomorphization data carried per definition.
type Program struct {
	Name string
	Defs []*Def

	Dispatch map[string]map[string]string
}

// Def is one lowered definition. Cg is present only when the checker
// closed the definition's type; Variants lists the closed types of every
// specialization requested by use sites, the definition's own closed type
// included.
type Def struct {
	Name     string
	Params   []string
	Body     kernel.Expr
	Cg       *types.CgType
	Variants []types.CgType
}

// Lower builds the target form from a Kernel program and the checker
// result. The Kernel program is read, never mutated.
func Lower(name string, kp *kernel.Program, res *typecheck.Result) *Program {
	p := &Program{Name: name, Dispatch: kp.Dispatch}
	for _, kd := range kp.Defs {
		def := &Def{Name: kd.Name, Params: kd.Params, Body: kd.Body}
		if res != nil {
			if cg, ok := res.CgTypes[kd.Name]; ok {
				c := cg
				def.Cg = &c
				def.Variants = append(def.Variants, cg)
			}
			for _, inst := range res.Instantiations[kd.Name] {
				dup := false
				for _, have := range def.Variants {
					if have.Equal(inst) {
						dup = true
						break
					}
				}
				if !dup {
					def.Variants = append(def.Variants, inst)
				}
			}
		}
		p.Defs = append(p.Defs, def)
	}
	return p
}

// DumpJSON renders the target form for tooling: definition names, arity,
// closed types and the typed variants each definition will get.
func (p *Program) DumpJSON() ([]byte, error) {
	defs := make([]any, len(p.Defs))
	for i, def := range p.Defs {
		entry := map[string]any{
			"name":  def.Name,
			"arity": len(def.Params),
		}
		if def.Cg != nil {
			entry["type"] = def.Cg.Mangle()
		}
		if len(def.Variants) > 0 {
			variants := make([]string, len(def.Variants))
			for j, v := range def.Variants {
				variants[j] = typedSymbol(def.Name, v)
			}
			entry["variants"] = variants
		}
		defs[i] = entry
	}
	return json.MarshalIndent(map[string]any{
		"module":   p.Name,
		"defs":     defs,
		"dispatch": p.Dispatch,
	}, "", "  ")
}

// cident maps a definition name to a C identifier. Lowering gensyms use
// "$", which C cannot carry. The mapping is injective: every escape
// starts with "_" and plain characters never produce one, so distinct
// names like "f$1" and "f_1" keep distinct symbols.
func cident(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '$':
			b.WriteString("_s")
		case r == '_':
			b.WriteString("__")
		default:
			fmt.Fprintf(&b, "_x%04x", r)
		}
	}
	return b.String()
}

// boxedSymbol names the boxed entry for a definition.
func boxedSymbol(name string) string {
	return "lum_def_" + cident(name)
}

// typedSymbol names the unboxed specialization of a definition at one
// closed type.
func typedSymbol(name string, cg types.CgType) string {
	return "lum_typed_" + cident(name) + "_" + cg.Mangle()
}

// scalarVariant reports whether every argument and the result of a closed
// function type pass in native registers.
func scalarVariant(cg types.CgType) bool {
	args, result := cg.Uncurry()
	if len(args) == 0 || !cg.Closed() {
		return false
	}
	for _, a := range args {
		if !a.Scalar() {
			return false
		}
	}
	return result.Scalar()
}
