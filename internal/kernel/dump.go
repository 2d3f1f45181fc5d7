package kernel

import (
	"encoding/json"
)

// DumpJSON renders the program as stable JSON for tooling. Object keys are
// emitted sorted, so two structurally identical programs serialize
// identically.
func DumpJSON(p *Program) ([]byte, error) {
	defs := make([]any, len(p.Defs))
	for i, def := range p.Defs {
		defs[i] = map[string]any{
			"name":   def.Name,
			"params": def.Params,
			"body":   encodeExpr(def.Body),
		}
	}
	return json.MarshalIndent(map[string]any{
		"defs":     defs,
		"dispatch": p.Dispatch,
	}, "", "  ")
}

func encodeExpr(e Expr) any {
	switch ex := e.(type) {
	case *Local:
		return map[string]any{"kind": "local", "name": ex.Name}
	case *GlobalRef:
		return map[string]any{"kind": "global", "name": ex.Name}
	case *IntLit:
		return map[string]any{"kind": "int", "value": ex.Value}
	case *FloatLit:
		return map[string]any{"kind": "float", "value": ex.Value}
	case *TextLit:
		return map[string]any{"kind": "text", "value": ex.Value}
	case *BoolLit:
		return map[string]any{"kind": "bool", "value": ex.Value}
	case *UnitLit:
		return map[string]any{"kind": "unit"}
	case *MakeClosure:
		return map[string]any{"kind": "closure", "code": ex.Code, "captures": encodeExprs(ex.Captures)}
	case *Apply:
		return map[string]any{"kind": "apply", "fn": encodeExpr(ex.Fn), "arg": encodeExpr(ex.Arg)}
	case *Prim:
		return map[string]any{"kind": "prim", "op": ex.Op, "left": encodeExpr(ex.Left), "right": encodeExpr(ex.Right)}
	case *Let:
		return map[string]any{"kind": "let", "name": ex.Name, "value": encodeExpr(ex.Value), "body": encodeExpr(ex.Body)}
	case *If:
		return map[string]any{"kind": "if", "cond": encodeExpr(ex.Cond), "then": encodeExpr(ex.Then), "else": encodeExpr(ex.Else)}
	case *Case:
		branches := make([]any, len(ex.Branches))
		for i, b := range ex.Branches {
			branches[i] = map[string]any{
				"ctor":  b.Ctor,
				"tag":   b.Tag,
				"binds": b.Binds,
				"body":  encodeExpr(b.Body),
			}
		}
		out := map[string]any{"kind": "case", "scrut": encodeExpr(ex.Scrut), "branches": branches}
		if ex.Default != nil {
			out["default"] = encodeExpr(ex.Default)
		}
		return out
	case *MatchFail:
		return map[string]any{"kind": "matchfail"}
	case *Tuple:
		return map[string]any{"kind": "tuple", "items": encodeExprs(ex.Items)}
	case *List:
		return map[string]any{"kind": "list", "items": encodeExprs(ex.Items)}
	case *Record:
		fields := make([]any, len(ex.Fields))
		for i, f := range ex.Fields {
			fields[i] = map[string]any{"name": f.Name, "value": encodeExpr(f.Value)}
		}
		return map[string]any{"kind": "record", "fields": fields}
	case *Field:
		return map[string]any{"kind": "field", "base": encodeExpr(ex.Base), "name": ex.Name}
	case *TupleGet:
		return map[string]any{"kind": "tupleget", "base": encodeExpr(ex.Base), "index": ex.Index}
	case *Construct:
		return map[string]any{"kind": "construct", "ctor": ex.Ctor, "tag": ex.Tag, "args": encodeExprs(ex.Args)}
	case *Dispatch:
		return map[string]any{"kind": "dispatch", "class": ex.Class, "member": ex.Member}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func encodeExprs(items []Expr) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = encodeExpr(item)
	}
	return out
}
