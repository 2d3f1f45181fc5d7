package runtime

// Fn is the calling convention for all compiled and builtin code: the
// runtime context first, then the full argument vector (captures before
// declared parameters).
type Fn func(ctx *Context, args []*Handle) (*Handle, error)

// Closure pairs code with the arguments bound so far. Arity counts
// captures plus declared parameters; captures are bound at construction,
// so a freshly converted closure is a partial application of its lifted
// code over its captures.
type Closure struct {
	Name  string
	Arity int
	Fn    Fn
	Bound []*Handle
}

// NewClosure boxes a closure with the given pre-bound arguments.
func NewClosure(name string, arity int, fn Fn, bound []*Handle) *Handle {
	return Box(Value{Tag: TagClosure, Closure: &Closure{
		Name:  name,
		Arity: arity,
		Fn:    fn,
		Bound: bound,
	}})
}

// Apply applies fn to one argument. Saturating the closure calls its code;
// otherwise a new partial closure is returned. fn must be a closure handle.
func Apply(ctx *Context, fn, arg *Handle) (*Handle, error) {
	v := fn.Value()
	if v.Tag != TagClosure {
		return nil, ErrNotCallable
	}
	c := v.Closure
	bound := make([]*Handle, len(c.Bound), len(c.Bound)+1)
	copy(bound, c.Bound)
	bound = append(bound, arg)
	if len(bound) < c.Arity {
		return NewClosure(c.Name, c.Arity, c.Fn, bound), nil
	}
	return c.Fn(ctx, bound)
}

// ApplyAll applies fn to each argument in turn.
func ApplyAll(ctx *Context, fn *Handle, args []*Handle) (*Handle, error) {
	cur := fn
	for _, a := range args {
		next, err := Apply(ctx, cur, a)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
