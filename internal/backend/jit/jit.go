// Package jit compiles Kernel programs into Go closures executed against
// the runtime, with a context-first calling convention. Definitions whose
// concrete type is statically known get an additional typed fast path:
// machine code in executable pages on supported hosts.
package jit

import (
	"fmt"
	"io"

	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/runtime"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

// compiledDef is one Kernel definition after compilation. Arity counts
// the full parameter vector, captures included.
type compiledDef struct {
	name  string
	arity int
	fn    runtime.Fn
}

// Module is a compiled program ready to execute. It holds no runtime
// state; the same module may be installed into any number of runtimes.
type Module struct {
	fns      map[string]*compiledDef
	dispatch map[string]map[string]string

	typedInt   map[string]func(int64, int64) int64
	typedFloat map[string]func(float64, float64) float64
}

// Compile translates every definition of the Kernel program. The result
// map from the checker drives the typed fast path: a two-argument
// definition with a closed scalar type additionally gets machine code
// when the host supports it.
func Compile(kp *kernel.Program, res *typecheck.Result) (*Module, error) {
	m := &Module{
		fns:        make(map[string]*compiledDef, len(kp.Defs)),
		dispatch:   kp.Dispatch,
		typedInt:   make(map[string]func(int64, int64) int64),
		typedFloat: make(map[string]func(float64, float64) float64),
	}
	// Definitions may reference each other in any order, so entries are
	// allocated before any body is compiled.
	for _, def := range kp.Defs {
		if _, dup := m.fns[def.Name]; dup {
			return nil, fmt.Errorf("jit: duplicate definition %q", def.Name)
		}
		m.fns[def.Name] = &compiledDef{name: def.Name, arity: len(def.Params)}
	}
	for _, def := range kp.Defs {
		body, err := m.compileExpr(def.Params, def.Body)
		if err != nil {
			return nil, fmt.Errorf("jit: %s: %w", def.Name, err)
		}
		cd := m.fns[def.Name]
		arity := cd.arity
		cd.fn = func(ctx *runtime.Context, args []*runtime.Handle) (*runtime.Handle, error) {
			if err := ctx.Poll(); err != nil {
				return nil, err
			}
			if len(args) != arity {
				return nil, runtime.ErrNotCallable
			}
			return body(ctx, args)
		}
	}
	m.installFastPaths(kp, res)
	return m, nil
}

// Install registers every compiled definition in the runtime so that
// dispatch tables and self-referencing globals resolve.
func (m *Module) Install(rt *runtime.Runtime) {
	for name, cd := range m.fns {
		if cd.arity > 0 {
			rt.Register(name, runtime.NewClosure(name, cd.arity, cd.fn, nil))
		}
	}
}

// NewContext builds an owned context carrying the module's dispatch
// tables with all definitions installed.
func (m *Module) NewContext() *runtime.Context {
	ctx := runtime.NewOwned(m.dispatch)
	m.Install(ctx.Runtime())
	return ctx
}

// Run evaluates a zero-argument entry definition, running the resulting
// effect if it yields one, and writes program output to out.
func (m *Module) Run(entry string, out io.Writer) error {
	ctx := m.NewContext()
	defer ctx.Close()
	ctx.Runtime().SetOutput(out)
	_, err := m.Eval(ctx, entry)
	return err
}

// Eval evaluates an entry definition in an existing context and returns
// its final value. Entries of Effect type are run to completion.
func (m *Module) Eval(ctx *runtime.Context, entry string) (*runtime.Handle, error) {
	cd, ok := m.fns[entry]
	if !ok {
		return nil, runtime.ErrUnknownGlobal
	}
	if cd.arity != 0 {
		return nil, fmt.Errorf("jit: entry %q takes %d arguments", entry, cd.arity)
	}
	v, err := cd.fn(ctx, nil)
	if err != nil {
		return nil, err
	}
	if v.Value().Tag == runtime.TagEffect {
		return runtime.RunEffect(ctx, v)
	}
	return v, nil
}

// TypedInt returns the unboxed machine-code path for a closed
// Int -> Int -> Int definition, when one was emitted.
func (m *Module) TypedInt(name string) (func(int64, int64) int64, bool) {
	f, ok := m.typedInt[name]
	return f, ok
}

// TypedFloat returns the unboxed machine-code path for a closed
// Float -> Float -> Float definition, when one was emitted.
func (m *Module) TypedFloat(name string) (func(float64, float64) float64, bool) {
	f, ok := m.typedFloat[name]
	return f, ok
}
