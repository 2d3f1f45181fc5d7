// Package driver orchestrates the compilation pipeline: surface tree in,
// diagnostics and backend artifacts out, plus the file-watching rebuild
// loop behind `lumen run --watch`.
package driver

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/position"
)

// The external parser hands the toolchain its surface tree as JSON, one
// document per compilation unit. Every node is an object with a "kind"
// discriminator; spans are optional and default to zero.

type rawProgram struct {
	Modules []rawModule `json:"modules"`
}

type rawModule struct {
	Name      string        `json:"name"`
	Types     []rawTypeDecl `json:"types"`
	Aliases   []rawAlias    `json:"aliases"`
	Classes   []rawClass    `json:"classes"`
	Instances []rawInstance `json:"instances"`
	Defs      []rawDef      `json:"defs"`
}

type rawTypeDecl struct {
	Name         string    `json:"name"`
	Params       []string  `json:"params"`
	Constructors []rawCtor `json:"constructors"`
}

type rawCtor struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

type rawAlias struct {
	Name   string          `json:"name"`
	Params []string        `json:"params"`
	Body   json.RawMessage `json:"body"`
}

type rawClass struct {
	Name    string      `json:"name"`
	Param   string      `json:"param"`
	Supers  []string    `json:"supers"`
	Members []rawMember `json:"members"`
}

type rawMember struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type rawInstance struct {
	Class   string          `json:"class"`
	Head    json.RawMessage `json:"head"`
	Members []rawDef        `json:"members"`
}

type rawDef struct {
	Name   string            `json:"name"`
	Sig    json.RawMessage   `json:"sig"`
	Params []json.RawMessage `json:"params"`
	Body   json.RawMessage   `json:"body"`
}

type rawNode struct {
	Kind string `json:"kind"`

	Name      string            `json:"name"`
	Op        string            `json:"op"`
	Param     string            `json:"param"`
	Bind      string            `json:"bind"`
	Field     string            `json:"field"`
	Int       int64             `json:"int"`
	Float     float64           `json:"float"`
	Text      string            `json:"text"`
	Bool      bool              `json:"bool"`
	Open      bool              `json:"open"`
	Base      json.RawMessage   `json:"base"`
	Fn        json.RawMessage   `json:"fn"`
	Arg       json.RawMessage   `json:"arg"`
	Left      json.RawMessage   `json:"left"`
	Right     json.RawMessage   `json:"right"`
	Value     json.RawMessage   `json:"value"`
	Body      json.RawMessage   `json:"body"`
	Cond      json.RawMessage   `json:"cond"`
	Then      json.RawMessage   `json:"then"`
	Else      json.RawMessage   `json:"else"`
	Result    json.RawMessage   `json:"result"`
	Scrutinee json.RawMessage   `json:"scrutinee"`
	Pattern   json.RawMessage   `json:"pattern"`
	Guard     json.RawMessage   `json:"guard"`
	Expr      json.RawMessage   `json:"expr"`
	Args      []json.RawMessage `json:"args"`
	Items     []json.RawMessage `json:"items"`
	Arms      []json.RawMessage `json:"arms"`
	Stmts     []json.RawMessage `json:"stmts"`
	Fields    []rawField        `json:"fields"`
	Span      *rawSpan          `json:"span"`
}

type rawField struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
	Type  json.RawMessage `json:"type"`
}

type rawSpan struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// LoadProgram reads and decodes a parser-emitted surface tree.
func LoadProgram(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeProgram(data)
}

// DecodeProgram decodes a JSON surface tree into the checker's input form.
func DecodeProgram(data []byte) (*ast.Program, error) {
	var raw rawProgram
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("driver: malformed surface tree: %w", err)
	}
	prog := &ast.Program{}
	for _, rm := range raw.Modules {
		mod := &ast.Module{Name: rm.Name}
		for _, rt := range rm.Types {
			decl := &ast.TypeDecl{Name: rt.Name, Params: rt.Params}
			for _, rc := range rt.Constructors {
				ctor := &ast.ConstructorDecl{Name: rc.Name}
				for _, a := range rc.Args {
					t, err := decodeType(a)
					if err != nil {
						return nil, err
					}
					ctor.Args = append(ctor.Args, t)
				}
				decl.Constructors = append(decl.Constructors, ctor)
			}
			mod.Types = append(mod.Types, decl)
		}
		for _, ra := range rm.Aliases {
			body, err := decodeType(ra.Body)
			if err != nil {
				return nil, err
			}
			mod.Aliases = append(mod.Aliases, &ast.AliasDecl{Name: ra.Name, Params: ra.Params, Body: body})
		}
		for _, rc := range rm.Classes {
			cls := &ast.ClassDecl{Name: rc.Name, Param: rc.Param, Supers: rc.Supers}
			for _, m := range rc.Members {
				t, err := decodeType(m.Type)
				if err != nil {
					return nil, err
				}
				cls.Members = append(cls.Members, &ast.ClassMember{Name: m.Name, Type: t})
			}
			mod.Classes = append(mod.Classes, cls)
		}
		for _, ri := range rm.Instances {
			head, err := decodeType(ri.Head)
			if err != nil {
				return nil, err
			}
			inst := &ast.InstanceDecl{ClassName: ri.Class, Head: head}
			for _, rd := range ri.Members {
				def, err := decodeDef(rd)
				if err != nil {
					return nil, err
				}
				inst.Members = append(inst.Members, def)
			}
			mod.Instances = append(mod.Instances, inst)
		}
		for _, rd := range rm.Defs {
			def, err := decodeDef(rd)
			if err != nil {
				return nil, err
			}
			mod.Defs = append(mod.Defs, def)
		}
		prog.Modules = append(prog.Modules, mod)
	}
	return prog, nil
}

func decodeDef(rd rawDef) (*ast.Def, error) {
	def := &ast.Def{Name: rd.Name}
	if len(rd.Sig) > 0 && string(rd.Sig) != "null" {
		sig, err := decodeType(rd.Sig)
		if err != nil {
			return nil, err
		}
		def.Sig = sig
	}
	for _, rp := range rd.Params {
		p, err := decodePattern(rp)
		if err != nil {
			return nil, err
		}
		def.Params = append(def.Params, p)
	}
	body, err := decodeExpr(rd.Body)
	if err != nil {
		return nil, err
	}
	def.Body = body
	return def, nil
}

func decodeNode(data json.RawMessage) (*rawNode, error) {
	var n rawNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("driver: malformed node: %w", err)
	}
	return &n, nil
}

func (n *rawNode) span() position.Span {
	if n.Span == nil {
		return position.Span{}
	}
	p := position.Position{Filename: n.Span.File, Line: n.Span.Line, Column: n.Span.Col}
	return position.Span{Start: p, End: p}
}

func decodeType(data json.RawMessage) (ast.TypeExpr, error) {
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "name":
		return &ast.TypeName{Name: n.Name, Sp: n.span()}, nil
	case "apply":
		base, err := decodeType(n.Base)
		if err != nil {
			return nil, err
		}
		args := make([]ast.TypeExpr, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = decodeType(a); err != nil {
				return nil, err
			}
		}
		return &ast.TypeApply{Base: base, Args: args, Sp: n.span()}, nil
	case "func":
		param, err := decodeType(n.Base)
		if err != nil {
			return nil, err
		}
		result, err := decodeType(n.Result)
		if err != nil {
			return nil, err
		}
		return &ast.TypeFunc{Param: param, Result: result, Sp: n.span()}, nil
	case "tuple":
		items := make([]ast.TypeExpr, len(n.Items))
		for i, it := range n.Items {
			t, err := decodeType(it)
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		return &ast.TypeTuple{Items: items, Sp: n.span()}, nil
	case "record":
		fields := make([]ast.TypeRecordField, len(n.Fields))
		for i, f := range n.Fields {
			t, err := decodeType(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = ast.TypeRecordField{Name: f.Name, Type: t}
		}
		return &ast.TypeRecord{Fields: fields, Open: n.Open, Sp: n.span()}, nil
	default:
		return nil, fmt.Errorf("driver: unknown type node %q", n.Kind)
	}
}

func decodeExpr(data json.RawMessage) (ast.Expr, error) {
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "var":
		return &ast.Var{Name: n.Name, Sp: n.span()}, nil
	case "int":
		return &ast.IntLit{Value: n.Int, Sp: n.span()}, nil
	case "float":
		return &ast.FloatLit{Value: n.Float, Sp: n.span()}, nil
	case "text":
		return &ast.StringLit{Value: n.Text, Sp: n.span()}, nil
	case "bool":
		return &ast.BoolLit{Value: n.Bool, Sp: n.span()}, nil
	case "unit":
		return &ast.UnitLit{Sp: n.span()}, nil
	case "lambda":
		body, err := decodeExpr(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{Param: n.Param, Body: body, Sp: n.span()}, nil
	case "apply":
		fn, err := decodeExpr(n.Fn)
		if err != nil {
			return nil, err
		}
		arg, err := decodeExpr(n.Arg)
		if err != nil {
			return nil, err
		}
		return &ast.Apply{Fn: fn, Arg: arg, Sp: n.span()}, nil
	case "binary":
		left, err := decodeExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: n.Op, Left: left, Right: right, Sp: n.span()}, nil
	case "let":
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		body, err := decodeExpr(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Name: n.Name, Value: value, Body: body, Sp: n.span()}, nil
	case "if":
		cond, err := decodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeExpr(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then, Else: els, Sp: n.span()}, nil
	case "match":
		scrut, err := decodeExpr(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		arms := make([]ast.MatchArm, len(n.Arms))
		for i, ra := range n.Arms {
			an, err := decodeNode(ra)
			if err != nil {
				return nil, err
			}
			pat, err := decodePattern(an.Pattern)
			if err != nil {
				return nil, err
			}
			var guard ast.Expr
			if len(an.Guard) > 0 && string(an.Guard) != "null" {
				if guard, err = decodeExpr(an.Guard); err != nil {
					return nil, err
				}
			}
			body, err := decodeExpr(an.Body)
			if err != nil {
				return nil, err
			}
			arms[i] = ast.MatchArm{Pattern: pat, Guard: guard, Body: body}
		}
		return &ast.Match{Scrutinee: scrut, Arms: arms, Sp: n.span()}, nil
	case "tuple":
		items, err := decodeExprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &ast.TupleLit{Items: items, Sp: n.span()}, nil
	case "list":
		items, err := decodeExprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &ast.ListLit{Items: items, Sp: n.span()}, nil
	case "record":
		fields := make([]ast.RecordLitField, len(n.Fields))
		for i, f := range n.Fields {
			v, err := decodeExpr(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = ast.RecordLitField{Name: f.Name, Value: v}
		}
		return &ast.RecordLit{Fields: fields, Sp: n.span()}, nil
	case "field":
		base, err := decodeExpr(n.Base)
		if err != nil {
			return nil, err
		}
		return &ast.FieldAccess{Base: base, Field: n.Field, Sp: n.span()}, nil
	case "effect":
		stmts := make([]ast.EffectStmt, len(n.Stmts))
		for i, rs := range n.Stmts {
			sn, err := decodeNode(rs)
			if err != nil {
				return nil, err
			}
			expr, err := decodeExpr(sn.Expr)
			if err != nil {
				return nil, err
			}
			stmts[i] = ast.EffectStmt{Bind: sn.Bind, Expr: expr, Span: sn.span()}
		}
		return &ast.EffectBlock{Stmts: stmts, Sp: n.span()}, nil
	default:
		return nil, fmt.Errorf("driver: unknown expression node %q", n.Kind)
	}
}

func decodeExprs(items []json.RawMessage) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(items))
	for i, item := range items {
		e, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func decodePattern(data json.RawMessage) (ast.Pattern, error) {
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "wildcard":
		return &ast.WildcardPattern{Sp: n.span()}, nil
	case "var":
		return &ast.VarPattern{Name: n.Name, Sp: n.span()}, nil
	case "literal":
		lit, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.LiteralPattern{Value: lit, Sp: n.span()}, nil
	case "ctor":
		args := make([]ast.Pattern, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = decodePattern(a); err != nil {
				return nil, err
			}
		}
		return &ast.ConstructorPattern{Name: n.Name, Args: args, Sp: n.span()}, nil
	case "tuple":
		items := make([]ast.Pattern, len(n.Items))
		for i, it := range n.Items {
			if items[i], err = decodePattern(it); err != nil {
				return nil, err
			}
		}
		return &ast.TuplePattern{Items: items, Sp: n.span()}, nil
	case "record":
		fields := make([]ast.RecordPatternField, len(n.Fields))
		for i, f := range n.Fields {
			p, err := decodePattern(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = ast.RecordPatternField{Name: f.Name, Pattern: p}
		}
		return &ast.RecordPattern{Fields: fields, Sp: n.span()}, nil
	default:
		return nil, fmt.Errorf("driver: unknown pattern node %q", n.Kind)
	}
}
