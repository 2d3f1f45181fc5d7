package types

import (
	"sort"
	"strings"
)

// CgType is a codegen-friendly description of a definition's runtime layout.
// The native backend uses it to decide whether a definition can be emitted
// with unboxed types (the typed path) or must fall back to boxed values.
//
// A CgType is closed when it contains no Dynamic leaves: its layout is fully
// known at compile time. A definition gets a CgType entry only when the
// checker resolved it to a free-variable-free concrete type.
type CgType struct {
	Kind CgKind

	// For CgFunc: Args[0] -> Result. For CgList: Args[0] is the element.
	// For CgTuple: positional items.
	Args []CgType

	// For CgRecord: field names sorted lexically, parallel to Args.
	Fields []string

	// For CgAdt: the type name and its constructors.
	Name         string
	Constructors []CgConstructor
}

// CgConstructor is one constructor of a CgAdt with positional payload types.
type CgConstructor struct {
	Name string
	Args []CgType
}

// CgKind discriminates CgType variants.
type CgKind int

const (
	// CgDynamic marks a type that could not be resolved to a concrete
	// ground type; codegen boxes it.
	CgDynamic CgKind = iota
	CgInt
	CgFloat
	CgBool
	CgText
	CgUnit
	CgFunc
	CgList
	CgTuple
	CgRecord
	CgAdt
)

// Closed reports whether the type is fully resolved, with no Dynamic
// anywhere in the tree.
func (t CgType) Closed() bool {
	switch t.Kind {
	case CgDynamic:
		return false
	case CgInt, CgFloat, CgBool, CgText, CgUnit:
		return true
	case CgAdt:
		for _, ctor := range t.Constructors {
			for _, arg := range ctor.Args {
				if !arg.Closed() {
					return false
				}
			}
		}
		return true
	default:
		for _, arg := range t.Args {
			if !arg.Closed() {
				return false
			}
		}
		return true
	}
}

// Scalar reports whether the type passes in a native register under the
// typed calling convention.
func (t CgType) Scalar() bool {
	switch t.Kind {
	case CgInt, CgFloat, CgBool:
		return true
	}
	return false
}

// Mangle renders a stable suffix for specialized symbol names, e.g.
// "i64_i64__i64" for Int -> Int -> Int.
func (t CgType) Mangle() string {
	switch t.Kind {
	case CgInt:
		return "i64"
	case CgFloat:
		return "f64"
	case CgBool:
		return "b1"
	case CgText:
		return "txt"
	case CgUnit:
		return "unit"
	case CgFunc:
		// Flatten the curried spine: args joined by _, result after __.
		args, result := t.Uncurry()
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Mangle()
		}
		return strings.Join(parts, "_") + "__" + result.Mangle()
	case CgList:
		return "list_" + t.Args[0].Mangle()
	case CgTuple:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.Mangle()
		}
		return "tup_" + strings.Join(parts, "_")
	case CgRecord:
		return "rec" // field layout is in the definition, not the symbol
	case CgAdt:
		return "adt_" + t.Name
	default:
		return "dyn"
	}
}

// Uncurry flattens a curried function CgType into its argument list and
// final result. Non-function types uncurry to (nil, t).
func (t CgType) Uncurry() ([]CgType, CgType) {
	var args []CgType
	cur := t
	for cur.Kind == CgFunc {
		args = append(args, cur.Args[0])
		cur = cur.Args[1]
	}
	return args, cur
}

// Equal reports structural equality.
func (t CgType) Equal(o CgType) bool {
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	if len(t.Args) != len(o.Args) || len(t.Fields) != len(o.Fields) || len(t.Constructors) != len(o.Constructors) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	for i := range t.Fields {
		if t.Fields[i] != o.Fields[i] {
			return false
		}
	}
	for i := range t.Constructors {
		if t.Constructors[i].Name != o.Constructors[i].Name {
			return false
		}
		if len(t.Constructors[i].Args) != len(o.Constructors[i].Args) {
			return false
		}
		for j := range t.Constructors[i].Args {
			if !t.Constructors[i].Args[j].Equal(o.Constructors[i].Args[j]) {
				return false
			}
		}
	}
	return true
}

// Convenience constructors.

// CgOf returns a leaf CgType of the given kind.
func CgOf(kind CgKind) CgType { return CgType{Kind: kind} }

// CgArrow builds a curried function CgType over args ending in result.
func CgArrow(result CgType, args ...CgType) CgType {
	t := result
	for i := len(args) - 1; i >= 0; i-- {
		t = CgType{Kind: CgFunc, Args: []CgType{args[i], t}}
	}
	return t
}

// CgRecordOf builds a record CgType from a field map, sorting field names.
func CgRecordOf(fields map[string]CgType) CgType {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]CgType, len(names))
	for i, name := range names {
		args[i] = fields[name]
	}
	return CgType{Kind: CgRecord, Fields: names, Args: args}
}
