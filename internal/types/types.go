// Package types defines the semantic type representation shared by the
// checker and the code generators: types, kinds, schemes, the checker-local
// union-find over type variables, and the closed codegen types (CgType)
// that drive monomorphized emission.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// VarID identifies a type variable within one checker instance.
type VarID uint32

// Type is the semantic type representation.
//
// Record field maps have unique keys. Recursive types must go through a
// named constructor; the representation never forms unbounded structural
// recursion.
type Type interface {
	isType()
}

type (
	// Var is an unresolved type variable.
	Var struct {
		ID VarID
	}

	// Con is an applied named constructor: Int, List a, Map k v.
	Con struct {
		Name string
		Args []Type
	}

	// Func is the arrow type a -> b.
	Func struct {
		Param  Type
		Result Type
	}

	// Tuple is a positional product type.
	Tuple struct {
		Items []Type
	}

	// Record is a labeled product. Open records admit additional fields;
	// they arise from field accesses whose full shape is not yet known.
	Record struct {
		Fields map[string]Type
		Open   bool
	}
)

func (Var) isType()    {}
func (Con) isType()    {}
func (Func) isType()   {}
func (Tuple) isType()  {}
func (Record) isType() {}

// NewCon builds a nullary constructor type.
func NewCon(name string, args ...Type) Con {
	return Con{Name: name, Args: args}
}

// Arrow builds a curried function type over params ending in result.
func Arrow(result Type, params ...Type) Type {
	t := result
	for i := len(params) - 1; i >= 0; i-- {
		t = Func{Param: params[i], Result: t}
	}
	return t
}

// SortedFieldNames returns the record's field names in lexical order.
func (r Record) SortedFieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scheme is a type together with its quantified variables and the class
// constraints it carries. Every builtin and user definition is recorded
// as a scheme.
type Scheme struct {
	Vars        []VarID
	Constraints []ClassConstraint
	Type        Type
}

// ClassConstraint requires that the variable's instantiation belong to a class.
type ClassConstraint struct {
	Class string
	Var   VarID
}

// Mono wraps a type as an unquantified scheme.
func Mono(t Type) Scheme {
	return Scheme{Type: t}
}

// Kind is Star or Arrow(Star, Kind). Every type constructor has exactly one
// kind derived from its declared arity.
type Kind struct {
	// Arity is the number of Star arguments before the result Star.
	Arity int
}

// KindStar is the kind of ground types.
var KindStar = Kind{Arity: 0}

// KindOfArity returns the kind of a constructor with n parameters.
func KindOfArity(n int) Kind {
	return Kind{Arity: n}
}

func (k Kind) String() string {
	if k.Arity == 0 {
		return "*"
	}
	var b strings.Builder
	for i := 0; i < k.Arity; i++ {
		b.WriteString("* -> ")
	}
	b.WriteString("*")
	return b.String()
}

// UnionFind is a disjoint-set structure over type variables, scoped to one
// checker instance. Find is idempotent and path-compressing; Union is by
// rank. Once unioned, two variables are permanently equivalent for the life
// of the checker instance.
type UnionFind struct {
	parent map[VarID]VarID
	rank   map[VarID]uint8
}

// NewUnionFind creates an empty union-find store.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[VarID]VarID),
		rank:   make(map[VarID]uint8),
	}
}

func (u *UnionFind) ensure(id VarID) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
		u.rank[id] = 0
	}
}

// Find returns the representative of id's equivalence class, compressing
// the path as it walks.
func (u *UnionFind) Find(id VarID) VarID {
	u.ensure(id)
	parent := u.parent[id]
	if parent == id {
		return id
	}
	root := u.Find(parent)
	u.parent[id] = root
	return root
}

// Union merges the classes of a and b by rank and returns the representative.
func (u *UnionFind) Union(a, b VarID) VarID {
	ra := u.Find(a)
	rb := u.Find(b)
	if ra == rb {
		return ra
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
		return rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
		return ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
		return ra
	}
}

// Printer renders types for diagnostics with stable 'a, 'b... variable names.
type Printer struct {
	names map[VarID]string
	next  int
}

// NewPrinter creates a printer. One printer should be reused across the
// types of a single diagnostic so shared variables print identically.
func NewPrinter() *Printer {
	return &Printer{names: make(map[VarID]string)}
}

// Print renders t.
func (p *Printer) Print(t Type) string {
	switch ty := t.(type) {
	case Var:
		return p.nameFor(ty.ID)
	case Con:
		if len(ty.Args) == 0 {
			return ty.Name
		}
		parts := make([]string, 0, len(ty.Args)+1)
		parts = append(parts, ty.Name)
		for _, arg := range ty.Args {
			parts = append(parts, p.printAtom(arg))
		}
		return strings.Join(parts, " ")
	case Func:
		left := p.Print(ty.Param)
		if _, ok := ty.Param.(Func); ok {
			left = "(" + left + ")"
		}
		return left + " -> " + p.Print(ty.Result)
	case Tuple:
		parts := make([]string, len(ty.Items))
		for i, item := range ty.Items {
			parts[i] = p.Print(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case Record:
		parts := make([]string, 0, len(ty.Fields)+1)
		for _, name := range ty.SortedFieldNames() {
			parts = append(parts, fmt.Sprintf("%s: %s", name, p.Print(ty.Fields[name])))
		}
		if ty.Open {
			parts = append(parts, "..")
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return "?"
	}
}

func (p *Printer) printAtom(t Type) string {
	switch ty := t.(type) {
	case Con:
		if len(ty.Args) > 0 {
			return "(" + p.Print(t) + ")"
		}
	case Func:
		return "(" + p.Print(t) + ")"
	}
	return p.Print(t)
}

func (p *Printer) nameFor(id VarID) string {
	if name, ok := p.names[id]; ok {
		return name
	}
	letter := rune('a' + p.next%26)
	suffix := p.next / 26
	p.next++
	name := "'" + string(letter)
	if suffix > 0 {
		name = fmt.Sprintf("%s%d", name, suffix)
	}
	p.names[id] = name
	return name
}
