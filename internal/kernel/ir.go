// Package kernel defines the backend-facing intermediate representation.
// Pattern matches are compiled to decision trees, closures are converted to
// explicit capture records over lifted code, and every construct maps
// directly onto a runtime operation. Both backends consume the same
// Program; it is immutable once built.
package kernel

// Program is one compilation unit in kernel form.
type Program struct {
	Defs []*Def

	// Dispatch maps "Class.member" to constructor-tag dispatch tables,
	// carried through from HIR for runtime instance resolution.
	Dispatch map[string]map[string]string
}

// Def is a lifted, first-order function. Lifted closure bodies take their
// captures as leading parameters, in first-use lexical order.
type Def struct {
	Name   string
	Params []string
	Body   Expr
}

// Expr is a kernel expression.
type Expr interface {
	kernelExpr()
}

type (
	// Local references a parameter or let binding.
	Local struct {
		Name string
	}

	// GlobalRef references a top-level definition or runtime builtin.
	GlobalRef struct {
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

	// MakeClosure allocates a closure over the lifted def named by Code.
	// Captures are evaluated left to right and stored in order; the
	// closure's code receives them as its leading parameters.
	MakeClosure struct {
		Code     string
		Captures []Expr
	}

	// Apply applies a function value to one argument.
	Apply struct {
		Fn  Expr
		Arg Expr
	}

	// Prim is a primitive binary operation.
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

	// Case is a decision-tree node: branch on the scrutinee's constructor
	// tag, binding the constructor's payload. Default, when present, is
	// the fallback leaf.
	Case struct {
		Scrut    Expr
		Branches []CaseBranch
		Default  Expr // nil when the branches are exhaustive
	}

	// MatchFail is the leaf reached when no arm matched. The runtime
	// raises an inexhaustive-match error.
	MatchFail struct{}

	Tuple struct {
		Items []Expr
	}

	List struct {
		Items []Expr
	}

	Record struct {
		Fields []RecordField
	}

	// Field projects a record field.
	Field struct {
		Base Expr
		Name string
	}

	// TupleGet projects a tuple component.
	TupleGet struct {
		Base  Expr
		Index int
	}

	// Construct builds a data-constructor value with saturated arguments.
	Construct struct {
		Ctor string
		Tag  int
		Args []Expr
	}

	// Dispatch resolves a class member from the runtime constructor tag
	// of its first argument, via the Program's dispatch table.
	Dispatch struct {
		Class  string
		Member string
	}
)

// RecordField is one field of a record construction, sorted by name.
type RecordField struct {
	Name  string
	Value Expr
}

// CaseBranch is one tag branch of a Case. Binds receives the constructor's
// payload values positionally.
type CaseBranch struct {
	Ctor  string
	Tag   int
	Binds []string
	Body  Expr
}

func (*Local) kernelExpr()       {}
func (*GlobalRef) kernelExpr()   {}
func (*IntLit) kernelExpr()      {}
func (*FloatLit) kernelExpr()    {}
func (*TextLit) kernelExpr()     {}
func (*BoolLit) kernelExpr()     {}
func (*UnitLit) kernelExpr()     {}
func (*MakeClosure) kernelExpr() {}
func (*Apply) kernelExpr()       {}
func (*Prim) kernelExpr()        {}
func (*Let) kernelExpr()         {}
func (*If) kernelExpr()          {}
func (*Case) kernelExpr()        {}
func (*MatchFail) kernelExpr()   {}
func (*Tuple) kernelExpr()       {}
func (*List) kernelExpr()        {}
func (*Record) kernelExpr()      {}
func (*Field) kernelExpr()       {}
func (*TupleGet) kernelExpr()    {}
func (*Construct) kernelExpr()   {}
func (*Dispatch) kernelExpr()    {}
