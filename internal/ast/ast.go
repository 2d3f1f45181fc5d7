// Package ast defines the surface syntax tree of the Lumen language.
// Trees in this shape are produced by an external parser; the toolchain
// treats them as input. Nodes carry spans for diagnostics.
package ast

import (
	"github.com/lumen-lang/lumen/internal/position"
)

// Program is a set of modules forming one compilation unit.
type Program struct {
	Modules []*Module
}

// Module is a single source module.
type Module struct {
	Name  string
	Types []*TypeDecl
	Aliases []*AliasDecl
	Classes []*ClassDecl
	Instances []*InstanceDecl
	Defs  []*Def
}

// TypeDecl declares an algebraic data type with its constructors.
type TypeDecl struct {
	Name         string
	Params       []string // lowercase type parameters, in declaration order
	Constructors []*ConstructorDecl
	Span         position.Span
}

// ConstructorDecl is one constructor of a TypeDecl with positional argument types.
type ConstructorDecl struct {
	Name string
	Args []TypeExpr
	Span position.Span
}

// AliasDecl declares a type alias. Alias bodies may reference other aliases
// and user types declared in any module; kinds are computed globally before
// alias bodies are resolved.
type AliasDecl struct {
	Name   string
	Params []string
	Body   TypeExpr
	Span   position.Span
}

// ClassDecl declares a class: a capability signature set over one type parameter.
type ClassDecl struct {
	Name    string
	Param   string
	Supers  []string
	Members []*ClassMember
	Span    position.Span
}

// ClassMember is one capability signature declared by a class.
type ClassMember struct {
	Name string
	Type TypeExpr
	Span position.Span
}

// InstanceDecl supplies concrete implementations of a class for a type head.
type InstanceDecl struct {
	ClassName string
	Head      TypeExpr
	Members   []*Def
	Span      position.Span
}

// Def is a top-level or instance-member definition. A module may repeat a
// name to form multi-clause dispatch, but only under an explicit signature.
type Def struct {
	Name   string
	Sig    TypeExpr // nil when no explicit top-level signature was written
	Params []Pattern
	Body   Expr
	Span   position.Span
}

// TypeExpr is the surface notation for types.
type TypeExpr interface {
	typeExpr()
	Span() position.Span
}

type (
	// TypeName references a type constructor (uppercase) or variable (lowercase).
	TypeName struct {
		Name string
		Sp   position.Span
	}

	// TypeApply applies a constructor to arguments: List a, Map k v.
	TypeApply struct {
		Base TypeExpr
		Args []TypeExpr
		Sp   position.Span
	}

	// TypeFunc is the arrow a -> b.
	TypeFunc struct {
		Param  TypeExpr
		Result TypeExpr
		Sp     position.Span
	}

	// TypeTuple is (a, b, ...).
	TypeTuple struct {
		Items []TypeExpr
		Sp    position.Span
	}

	// TypeRecord is { field: ty, ... }. Open records end with "..".
	TypeRecord struct {
		Fields []TypeRecordField
		Open   bool
		Sp     position.Span
	}
)

// TypeRecordField is one field of a record type.
type TypeRecordField struct {
	Name string
	Type TypeExpr
}

func (*TypeName) typeExpr()   {}
func (*TypeApply) typeExpr()  {}
func (*TypeFunc) typeExpr()   {}
func (*TypeTuple) typeExpr()  {}
func (*TypeRecord) typeExpr() {}

func (t *TypeName) Span() position.Span   { return t.Sp }
func (t *TypeApply) Span() position.Span  { return t.Sp }
func (t *TypeFunc) Span() position.Span   { return t.Sp }
func (t *TypeTuple) Span() position.Span  { return t.Sp }
func (t *TypeRecord) Span() position.Span { return t.Sp }

// Expr is a surface expression.
type Expr interface {
	expr()
	Span() position.Span
}

type (
	// Var references a binding by name.
	Var struct {
		Name string
		Sp   position.Span
	}

	// IntLit is an integer literal.
	IntLit struct {
		Value int64
		Sp    position.Span
	}

	// FloatLit is a floating-point literal.
	FloatLit struct {
		Value float64
		Sp    position.Span
	}

	// StringLit is a text literal.
	StringLit struct {
		Value string
		Sp    position.Span
	}

	// BoolLit is true or false.
	BoolLit struct {
		Value bool
		Sp    position.Span
	}

	// UnitLit is the unit value ().
	UnitLit struct {
		Sp position.Span
	}

	// Lambda is a single-parameter function literal; multi-parameter
	// lambdas arrive curried from the parser.
	Lambda struct {
		Param string
		Body  Expr
		Sp    position.Span
	}

	// Apply applies a function to one argument.
	Apply struct {
		Fn  Expr
		Arg Expr
		Sp  position.Span
	}

	// Binary is an infix operator application.
	Binary struct {
		Op    string
		Left  Expr
		Right Expr
		Sp    position.Span
	}

	// Let binds a name in a body expression.
	Let struct {
		Name  string
		Value Expr
		Body  Expr
		Sp    position.Span
	}

	// If is a two-armed conditional.
	If struct {
		Cond Expr
		Then Expr
		Else Expr
		Sp   position.Span
	}

	// Match scrutinizes a value against pattern arms.
	Match struct {
		Scrutinee Expr
		Arms      []MatchArm
		Sp        position.Span
	}

	// TupleLit constructs a tuple.
	TupleLit struct {
		Items []Expr
		Sp    position.Span
	}

	// ListLit constructs a list.
	ListLit struct {
		Items []Expr
		Sp    position.Span
	}

	// RecordLit constructs a record.
	RecordLit struct {
		Fields []RecordLitField
		Sp     position.Span
	}

	// FieldAccess projects a record field.
	FieldAccess struct {
		Base  Expr
		Field string
		Sp    position.Span
	}

	// EffectBlock is sequential effectful notation. It desugars during HIR
	// lowering into an explicit pure/bind/fail combinator chain.
	EffectBlock struct {
		Stmts []EffectStmt
		Sp    position.Span
	}
)

// RecordLitField is one field of a record literal.
type RecordLitField struct {
	Name  string
	Value Expr
}

// MatchArm is one arm of a match expression.
type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil when absent
	Body    Expr
}

// EffectStmt is one statement of an effect block.
type EffectStmt struct {
	// Bind is the bound name; empty for a bare effect expression and for
	// the final yield.
	Bind string
	Expr Expr
	Span position.Span
}

func (*Var) expr()         {}
func (*IntLit) expr()      {}
func (*FloatLit) expr()    {}
func (*StringLit) expr()   {}
func (*BoolLit) expr()     {}
func (*UnitLit) expr()     {}
func (*Lambda) expr()      {}
func (*Apply) expr()       {}
func (*Binary) expr()      {}
func (*Let) expr()         {}
func (*If) expr()          {}
func (*Match) expr()       {}
func (*TupleLit) expr()    {}
func (*ListLit) expr()     {}
func (*RecordLit) expr()   {}
func (*FieldAccess) expr() {}
func (*EffectBlock) expr() {}

func (e *Var) Span() position.Span         { return e.Sp }
func (e *IntLit) Span() position.Span      { return e.Sp }
func (e *FloatLit) Span() position.Span    { return e.Sp }
func (e *StringLit) Span() position.Span   { return e.Sp }
func (e *BoolLit) Span() position.Span     { return e.Sp }
func (e *UnitLit) Span() position.Span     { return e.Sp }
func (e *Lambda) Span() position.Span      { return e.Sp }
func (e *Apply) Span() position.Span       { return e.Sp }
func (e *Binary) Span() position.Span      { return e.Sp }
func (e *Let) Span() position.Span         { return e.Sp }
func (e *If) Span() position.Span          { return e.Sp }
func (e *Match) Span() position.Span       { return e.Sp }
func (e *TupleLit) Span() position.Span    { return e.Sp }
func (e *ListLit) Span() position.Span     { return e.Sp }
func (e *RecordLit) Span() position.Span   { return e.Sp }
func (e *FieldAccess) Span() position.Span { return e.Sp }
func (e *EffectBlock) Span() position.Span { return e.Sp }

// Pattern is a surface pattern.
type Pattern interface {
	pattern()
	Span() position.Span
}

type (
	// WildcardPattern matches anything, binding nothing.
	WildcardPattern struct {
		Sp position.Span
	}

	// VarPattern matches anything, binding the value.
	VarPattern struct {
		Name string
		Sp   position.Span
	}

	// LiteralPattern matches a literal value.
	LiteralPattern struct {
		Value Expr // IntLit, FloatLit, StringLit or BoolLit
		Sp    position.Span
	}

	// ConstructorPattern matches a constructor and its arguments.
	ConstructorPattern struct {
		Name string
		Args []Pattern
		Sp   position.Span
	}

	// TuplePattern decomposes a tuple.
	TuplePattern struct {
		Items []Pattern
		Sp    position.Span
	}

	// RecordPattern decomposes record fields by name.
	RecordPattern struct {
		Fields []RecordPatternField
		Sp     position.Span
	}
)

// RecordPatternField is one field of a record pattern.
type RecordPatternField struct {
	Name    string
	Pattern Pattern
}

func (*WildcardPattern) pattern()    {}
func (*VarPattern) pattern()         {}
func (*LiteralPattern) pattern()     {}
func (*ConstructorPattern) pattern() {}
func (*TuplePattern) pattern()       {}
func (*RecordPattern) pattern()      {}

func (p *WildcardPattern) Span() position.Span    { return p.Sp }
func (p *VarPattern) Span() position.Span         { return p.Sp }
func (p *LiteralPattern) Span() position.Span     { return p.Sp }
func (p *ConstructorPattern) Span() position.Span { return p.Sp }
func (p *TuplePattern) Span() position.Span       { return p.Sp }
func (p *RecordPattern) Span() position.Span      { return p.Sp }
