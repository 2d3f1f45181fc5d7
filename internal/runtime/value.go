// Package runtime implements the Lumen execution runtime shared by the JIT
// backend and ahead-of-time binaries: reference-counted boxed values behind
// opaque handles, the runtime context, cooperative cancellation, the effect
// trampoline, channels, and the ABI handshake.
package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Tag discriminates the boxed value union.
type Tag uint8

const (
	TagUnit Tag = iota
	TagBool
	TagInt
	TagFloat
	TagText
	TagList
	TagTuple
	TagRecord
	TagCtor
	TagClosure
	TagEffect
	TagChannel
)

func (t Tag) String() string {
	switch t {
	case TagUnit:
		return "Unit"
	case TagBool:
		return "Bool"
	case TagInt:
		return "Int"
	case TagFloat:
		return "Float"
	case TagText:
		return "Text"
	case TagList:
		return "List"
	case TagTuple:
		return "Tuple"
	case TagRecord:
		return "Record"
	case TagCtor:
		return "Constructor"
	case TagClosure:
		return "Closure"
	case TagEffect:
		return "Effect"
	case TagChannel:
		return "Channel"
	default:
		return "Unknown"
	}
}

// Value is the tagged union crossing the runtime boundary. Exactly the
// fields for the active Tag are meaningful.
type Value struct {
	Tag     Tag
	Bool    bool
	Int     int64
	Float   float64
	Text    string
	Items   []*Handle // list elements, tuple items, constructor payload
	Fields  []FieldVal
	Ctor    string
	CtorTag int
	Closure *Closure
	Effect  *Effect
	Channel *Channel
}

// FieldVal is one record field. Fields are kept sorted by name.
type FieldVal struct {
	Name  string
	Value *Handle
}

// Handle is the opaque reference-counted box around a Value. A handle is
// created by exactly one Box call; every Clone must be paired with exactly
// one Release. The representation behind the handle is never exposed
// across the ABI.
type Handle struct {
	refs atomic.Int32
	v    Value
}

// Box allocates a handle owning v with a reference count of one.
func Box(v Value) *Handle {
	h := &Handle{v: v}
	h.refs.Store(1)
	return h
}

// Clone takes an additional reference. It never deep-copies.
func (h *Handle) Clone() *Handle {
	h.refs.Add(1)
	return h
}

// Release drops one reference. Dropping the last reference releases the
// value's children. Releasing past zero is detected and reported without
// going negative.
func (h *Handle) Release() error {
	n := h.refs.Add(-1)
	if n < 0 {
		h.refs.Add(1)
		return ErrRefUnderflow
	}
	if n > 0 {
		return nil
	}
	var first error
	for _, item := range h.v.Items {
		if err := item.Release(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range h.v.Fields {
		if err := f.Value.Release(); err != nil && first == nil {
			first = err
		}
	}
	h.v.Items = nil
	h.v.Fields = nil
	return first
}

// Refs reports the current reference count.
func (h *Handle) Refs() int32 { return h.refs.Load() }

// Value exposes the boxed value. The caller must hold a reference.
func (h *Handle) Value() *Value { return &h.v }

// Boxing helpers.

var unitHandle = func() *Handle {
	h := Box(Value{Tag: TagUnit})
	// The shared unit is immortal; balance any number of releases.
	h.refs.Store(1 << 30)
	return h
}()

// Unit returns the shared unit value.
func Unit() *Handle { return unitHandle }

func NewBool(b bool) *Handle   { return Box(Value{Tag: TagBool, Bool: b}) }
func NewInt(i int64) *Handle   { return Box(Value{Tag: TagInt, Int: i}) }
func NewFloat(f float64) *Handle { return Box(Value{Tag: TagFloat, Float: f}) }
func NewText(s string) *Handle { return Box(Value{Tag: TagText, Text: s}) }

// NewList boxes a list taking ownership of the item handles.
func NewList(items []*Handle) *Handle {
	return Box(Value{Tag: TagList, Items: items})
}

// NewTuple boxes a tuple taking ownership of the item handles.
func NewTuple(items []*Handle) *Handle {
	return Box(Value{Tag: TagTuple, Items: items})
}

// NewRecord boxes a record, sorting fields by name.
func NewRecord(fields []FieldVal) *Handle {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return Box(Value{Tag: TagRecord, Fields: fields})
}

// NewCtor boxes a data-constructor value with its payload.
func NewCtor(name string, tag int, args []*Handle) *Handle {
	return Box(Value{Tag: TagCtor, Ctor: name, CtorTag: tag, Items: args})
}

// Field returns the named record field without transferring ownership.
func (v *Value) Field(name string) (*Handle, bool) {
	i := sort.Search(len(v.Fields), func(i int) bool { return v.Fields[i].Name >= name })
	if i < len(v.Fields) && v.Fields[i].Name == name {
		return v.Fields[i].Value, true
	}
	return nil, false
}

// Equal is deep structural equality over data values. Closures, effects
// and channels compare by identity.
func Equal(a, b *Handle) bool {
	if a == b {
		return true
	}
	av, bv := a.Value(), b.Value()
	if av.Tag != bv.Tag {
		return false
	}
	switch av.Tag {
	case TagUnit:
		return true
	case TagBool:
		return av.Bool == bv.Bool
	case TagInt:
		return av.Int == bv.Int
	case TagFloat:
		return av.Float == bv.Float
	case TagText:
		return av.Text == bv.Text
	case TagList, TagTuple:
		if len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case TagRecord:
		if len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if av.Fields[i].Name != bv.Fields[i].Name || !Equal(av.Fields[i].Value, bv.Fields[i].Value) {
				return false
			}
		}
		return true
	case TagCtor:
		if av.CtorTag != bv.CtorTag || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Show renders a value for printing.
func Show(h *Handle) string {
	v := h.Value()
	switch v.Tag {
	case TagUnit:
		return "()"
	case TagBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case TagInt:
		return strconv.FormatInt(v.Int, 10)
	case TagFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TagText:
		return v.Text
	case TagList:
		return "[" + showJoined(v.Items, ", ") + "]"
	case TagTuple:
		return "(" + showJoined(v.Items, ", ") + ")"
	case TagRecord:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.Name + ": " + Show(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TagCtor:
		if len(v.Items) == 0 {
			return v.Ctor
		}
		return v.Ctor + " " + showJoined(v.Items, " ")
	case TagClosure:
		return fmt.Sprintf("<closure %s>", v.Closure.Name)
	case TagEffect:
		return "<effect>"
	case TagChannel:
		return "<channel>"
	default:
		return "<unknown>"
	}
}

func showJoined(items []*Handle, sep string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = Show(item)
	}
	return strings.Join(parts, sep)
}
