package runtime

// CallbackTable is the fixed set of builtin symbols compiled code calls
// back into. It is built once per runtime construction; generated code
// reaches entries by name lookup, never by re-resolving per call site.
type CallbackTable struct {
	entries map[string]*Handle
}

// Lookup resolves a builtin by name.
func (t *CallbackTable) Lookup(name string) (*Handle, bool) {
	h, ok := t.entries[name]
	return h, ok
}

// NewCallbackTable registers every builtin.
func NewCallbackTable() *CallbackTable {
	t := &CallbackTable{entries: make(map[string]*Handle)}
	reg := func(name string, arity int, fn Fn) {
		t.entries[name] = NewClosure(name, arity, fn, nil)
	}

	reg("pure", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		return NewPure(args[0]), nil
	})
	reg("fail", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		return NewFail(args[0]), nil
	})
	reg("bind", 2, func(ctx *Context, args []*Handle) (*Handle, error) {
		return NewBind(args[0], args[1]), nil
	})
	reg("show", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		return NewText(Show(args[0])), nil
	})
	reg("print", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		v := args[0]
		return NewOp(func(ctx *Context) (*Handle, error) {
			ctx.rt.print(Show(v) + "\n")
			return Unit(), nil
		}), nil
	})
	reg("toFloat", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		v := args[0].Value()
		if v.Tag != TagInt {
			return nil, ErrBadOperand
		}
		return NewFloat(float64(v.Int)), nil
	})
	reg("cons", 2, func(ctx *Context, args []*Handle) (*Handle, error) {
		tail := args[1].Value()
		if tail.Tag != TagList {
			return nil, ErrBadOperand
		}
		items := make([]*Handle, 0, len(tail.Items)+1)
		items = append(items, args[0])
		for _, it := range tail.Items {
			items = append(items, it.Clone())
		}
		return NewList(items), nil
	})

	reg("channel", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		return NewOp(func(ctx *Context) (*Handle, error) {
			return NewChannel(0), nil
		}), nil
	})
	reg("send", 2, func(ctx *Context, args []*Handle) (*Handle, error) {
		chh, v := args[0], args[1]
		return NewOp(func(ctx *Context) (*Handle, error) {
			cv := chh.Value()
			if cv.Tag != TagChannel {
				return nil, ErrBadOperand
			}
			if err := cv.Channel.Send(ctx.rt.cancel, v); err != nil {
				return nil, err
			}
			return Unit(), nil
		}), nil
	})
	reg("recv", 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		chh := args[0]
		return NewOp(func(ctx *Context) (*Handle, error) {
			cv := chh.Value()
			if cv.Tag != TagChannel {
				return nil, ErrBadOperand
			}
			return cv.Channel.Recv(ctx.rt.cancel)
		}), nil
	})

	reg("par", 2, func(ctx *Context, args []*Handle) (*Handle, error) {
		left, right := args[0], args[1]
		return NewOp(func(ctx *Context) (*Handle, error) {
			type outcome struct {
				v   *Handle
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				v, err := RunEffect(ctx, right)
				done <- outcome{v, err}
			}()
			lv, lerr := RunEffect(ctx, left)
			r := <-done
			if lerr != nil {
				return nil, lerr
			}
			if r.err != nil {
				return nil, r.err
			}
			return NewTuple([]*Handle{lv, r.v}), nil
		}), nil
	})
	reg("race", 2, func(ctx *Context, args []*Handle) (*Handle, error) {
		left, right := args[0], args[1]
		return NewOp(func(ctx *Context) (*Handle, error) {
			type outcome struct {
				v   *Handle
				err error
			}
			done := make(chan outcome, 2)
			run := func(eff *Handle) {
				v, err := RunEffect(ctx, eff)
				done <- outcome{v, err}
			}
			go run(left)
			go run(right)
			first := <-done
			if first.err != nil {
				// The loser may still succeed; prefer a winning branch.
				second := <-done
				if second.err != nil {
					return nil, first.err
				}
				return second.v, nil
			}
			return first.v, nil
		}), nil
	})

	reg("netServe", 2, netServeBuiltin)
	reg("netGet", 1, netGetBuiltin)
	return t
}
