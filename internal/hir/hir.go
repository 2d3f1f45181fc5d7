// Package hir defines the high-level intermediate representation: the
// surface program after desugaring. Effect blocks are gone (replaced by
// explicit combinator chains), multi-clause definitions are merged into a
// single match, and class-member uses are either resolved to a concrete
// instance or marked for runtime tag dispatch.
//
// A Program is immutable once built; the kernel lowering takes a read-only
// view.
package hir

// Program is one lowered compilation unit.
type Program struct {
	// Defs holds every definition in deterministic order: source order for
	// top-level definitions, then instance members grouped by class.
	Defs []*Def

	// Dispatch maps "Class.member" to a constructor-tag dispatch table.
	// Each tag names the global implementing the member for the instance
	// whose type declares that constructor.
	Dispatch map[string]map[string]string
}

// Def is one definition with named parameters. Multi-clause surface
// definitions arrive here as a single def matching on its parameters.
type Def struct {
	Name   string
	Params []string
	Body   Expr
}

// Expr is an HIR expression.
type Expr interface {
	hirExpr()
}

type (
	// Var references a local binding.
	Var struct {
		Name string
	}

	// Global references a top-level definition, builtin, or instance
	// member by symbol name.
	Global struct {
		Name string
	}

	IntLit struct {
		Value int64
	}

	FloatLit struct {
		Value float64
	}

	TextLit struct {
		Value string
	}

	BoolLit struct {
		Value bool
	}

	UnitLit struct{}

	// Lambda is a single-parameter function.
	Lambda struct {
		Param string
		Body  Expr
	}

	// Apply applies a function to one argument.
	Apply struct {
		Fn  Expr
		Arg Expr
	}

	// Prim is a primitive binary operation on scalars or boxed values.
	Prim struct {
		Op    string
		Left  Expr
		Right Expr
	}

	Let struct {
		Name  string
		Value Expr
		Body  Expr
	}

	If struct {
		Cond Expr
		Then Expr
		Else Expr
	}

	// Match scrutinizes a value against pattern arms. The kernel lowering
	// compiles it to a decision tree.
	Match struct {
		Scrutinee Expr
		Arms      []Arm
	}

	Tuple struct {
		Items []Expr
	}

	List struct {
		Items []Expr
	}

	// Record fields are sorted by name during lowering.
	Record struct {
		Fields []RecordField
	}

	// Field projects a record field.
	Field struct {
		Base Expr
		Name string
	}

	// Construct builds a data-constructor value. Args are saturated; a
	// partially applied constructor is eta-expanded during lowering.
	Construct struct {
		Ctor string
		Tag  int
		Args []Expr
	}

	// Dispatch resolves a class member at runtime from the argument's
	// constructor tag, via the Program's dispatch table.
	Dispatch struct {
		Class  string
		Member string
	}
)

// RecordField is one field of a record construction.
type RecordField struct {
	Name  string
	Value Expr
}

// Arm is one arm of a match.
type Arm struct {
	Pattern Pattern
	Guard   Expr // nil when absent
	Body    Expr
}

func (*Var) hirExpr()       {}
func (*Global) hirExpr()    {}
func (*IntLit) hirExpr()    {}
func (*FloatLit) hirExpr()  {}
func (*TextLit) hirExpr()   {}
func (*BoolLit) hirExpr()   {}
func (*UnitLit) hirExpr()   {}
func (*Lambda) hirExpr()    {}
func (*Apply) hirExpr()     {}
func (*Prim) hirExpr()      {}
func (*Let) hirExpr()       {}
func (*If) hirExpr()        {}
func (*Match) hirExpr()     {}
func (*Tuple) hirExpr()     {}
func (*List) hirExpr()      {}
func (*Record) hirExpr()    {}
func (*Field) hirExpr()     {}
func (*Construct) hirExpr() {}
func (*Dispatch) hirExpr()  {}

// Pattern is an HIR pattern. Constructor patterns carry their resolved tag.
type Pattern interface {
	hirPattern()
}

type (
	PWildcard struct{}

	PVar struct {
		Name string
	}

	// PLit matches one of the literal expression nodes.
	PLit struct {
		Lit Expr
	}

	PCtor struct {
		Ctor string
		Tag  int
		Args []Pattern
	}

	PTuple struct {
		Items []Pattern
	}

	PRecord struct {
		Fields []PRecordField
	}
)

// PRecordField is one field of a record pattern.
type PRecordField struct {
	Name    string
	Pattern Pattern
}

func (*PWildcard) hirPattern() {}
func (*PVar) hirPattern()      {}
func (*PLit) hirPattern()      {}
func (*PCtor) hirPattern()     {}
func (*PTuple) hirPattern()    {}
func (*PRecord) hirPattern()   {}
