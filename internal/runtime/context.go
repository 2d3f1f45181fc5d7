package runtime

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Runtime holds the state shared by every call made through a context:
// compiled globals, instance dispatch tables, the builtin callback table,
// the cancellation token, and the output stream.
//
// A Runtime carries no internal locking beyond output serialization. It is
// exclusively owned by whichever execution path holds it; concurrent use
// from multiple goroutines is the embedder's contract to enforce. The
// concurrency builtins spawn goroutines internally but only touch the
// shared state through values already boxed before the spawn.
type Runtime struct {
	globals  map[string]*Handle
	dispatch map[string]map[string]string
	builtins *CallbackTable
	cancel   *CancelToken

	stdout io.Writer
	outMu  sync.Mutex
}

// NewRuntime builds a runtime with builtins registered and the given
// instance dispatch tables (class.member -> constructor -> symbol).
func NewRuntime(dispatch map[string]map[string]string) *Runtime {
	rt := &Runtime{
		globals:  make(map[string]*Handle),
		dispatch: dispatch,
		cancel:   NewCancelToken(),
		stdout:   os.Stdout,
	}
	rt.builtins = NewCallbackTable()
	return rt
}

// NewBaseRuntime builds a runtime with builtins only. Entry points that
// self-register their definitions start from this.
func NewBaseRuntime() *Runtime {
	return NewRuntime(map[string]map[string]string{})
}

// SetOutput redirects program output, for tests and embedding.
func (rt *Runtime) SetOutput(w io.Writer) { rt.stdout = w }

// Cancel returns the runtime's cancellation token.
func (rt *Runtime) Cancel() *CancelToken { return rt.cancel }

// Register installs a global definition. Later registrations of the same
// name replace earlier ones.
func (rt *Runtime) Register(name string, h *Handle) {
	rt.globals[name] = h
}

// Global resolves a registered definition or builtin by name.
func (rt *Runtime) Global(name string) (*Handle, error) {
	if h, ok := rt.globals[name]; ok {
		return h, nil
	}
	if b, ok := rt.builtins.Lookup(name); ok {
		return b, nil
	}
	return nil, ErrUnknownGlobal
}

func (rt *Runtime) print(s string) {
	rt.outMu.Lock()
	defer rt.outMu.Unlock()
	io.WriteString(rt.stdout, s)
}

// Context is the handle threading a runtime through compiled code. A
// borrowed context wraps a caller-owned runtime; an owned context
// allocated its runtime itself and tears it down on Close.
type Context struct {
	rt     *Runtime
	owned  bool
	closed atomic.Bool
}

// Borrow wraps a caller-owned runtime. Closing the context does not
// touch the runtime.
func Borrow(rt *Runtime) *Context {
	return &Context{rt: rt}
}

// NewOwned allocates a runtime living for the context's lifetime, with
// the given dispatch tables.
func NewOwned(dispatch map[string]map[string]string) *Context {
	return &Context{rt: NewRuntime(dispatch), owned: true}
}

// NewBase allocates an owned context over a builtins-only runtime.
func NewBase() *Context {
	return &Context{rt: NewBaseRuntime(), owned: true}
}

// Runtime exposes the underlying runtime.
func (ctx *Context) Runtime() *Runtime { return ctx.rt }

// Poll is the safe-point cancellation check threaded into compiled code.
func (ctx *Context) Poll() error { return ctx.rt.cancel.Poll() }

// Close tears the context down. Exactly one Close per context; a second
// Close returns ErrContextClosed.
func (ctx *Context) Close() error {
	if !ctx.closed.CompareAndSwap(false, true) {
		return ErrContextClosed
	}
	if ctx.owned {
		ctx.rt.cancel.Cancel()
	}
	return nil
}

// DispatchValue resolves a class member against the runtime dispatch
// table by the first argument's constructor. The returned closure
// inspects its argument's tag at call time; an argument whose constructor
// is not covered by any instance is a hard error.
func DispatchValue(rt *Runtime, class, member string) *Handle {
	key := class + "." + member
	return NewClosure(key, 1, func(ctx *Context, args []*Handle) (*Handle, error) {
		table, ok := ctx.rt.dispatch[key]
		if !ok {
			return nil, ErrNoInstance
		}
		v := args[0].Value()
		if v.Tag != TagCtor {
			return nil, ErrNoInstance
		}
		sym, ok := table[v.Ctor]
		if !ok {
			return nil, ErrNoInstance
		}
		impl, err := ctx.rt.Global(sym)
		if err != nil {
			return nil, err
		}
		return Apply(ctx, impl, args[0])
	}, nil)
}
