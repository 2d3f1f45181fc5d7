package driver

import (
	"errors"
	"io"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/backend/jit"
	"github.com/lumen-lang/lumen/internal/backend/native"
	"github.com/lumen-lang/lumen/internal/diagnostic"
	"github.com/lumen-lang/lumen/internal/hir"
	"github.com/lumen-lang/lumen/internal/kernel"
	"github.com/lumen-lang/lumen/internal/typecheck"
)

// ErrBuildFailed reports that the pipeline stopped on diagnostics. The
// diagnostics themselves live in the build's bag.
var ErrBuildFailed = errors.New("driver: build failed")

// Options configure one compilation.
type Options struct {
	// ModuleName labels backend artifacts; defaults to the first module's
	// declared name.
	ModuleName string
	// StrictMatch makes non-exhaustive matches build errors.
	StrictMatch bool
}

// Build is the outcome of a full front-end run. Backend artifacts are
// derived from it on demand; the Kernel program is never mutated by a
// backend, so one Build serves any number of emissions.
type Build struct {
	Bag    *diagnostic.Bag
	Res    *typecheck.Result
	HIR    *hir.Program
	Kernel *kernel.Program
	Target *native.Program
}

// Compile runs check, HIR lowering, Kernel lowering, and target lowering
// over a surface tree. The returned build carries the bag even on
// failure so callers can print diagnostics.
func Compile(prog *ast.Program, opts Options) (*Build, error) {
	b := &Build{Bag: diagnostic.NewBag()}

	name := opts.ModuleName
	if name == "" && len(prog.Modules) > 0 {
		name = prog.Modules[0].Name
	}

	b.Res = typecheck.Check(prog, b.Bag)
	if b.Bag.HasErrors() {
		return b, ErrBuildFailed
	}
	b.HIR = hir.Lower(prog, b.Res, b.Bag)
	b.Kernel = kernel.Lower(b.HIR, b.Res, b.Bag, kernel.Options{StrictMatch: opts.StrictMatch})
	if b.Bag.HasErrors() {
		return b, ErrBuildFailed
	}
	b.Target = native.Lower(name, b.Kernel, b.Res)
	return b, nil
}

// KernelJSON dumps the desugared core program.
func (b *Build) KernelJSON() ([]byte, error) {
	return kernel.DumpJSON(b.Kernel)
}

// NativeJSON dumps the target form, typed specializations included.
func (b *Build) NativeJSON() ([]byte, error) {
	return b.Target.DumpJSON()
}

// EmitC renders the ahead-of-time C source for the build.
func (b *Build) EmitC(kind native.SourceKind) (string, error) {
	return native.EmitC(b.Target, kind)
}

// Object renders the relocatable machine-code artifact.
func (b *Build) Object() ([]byte, error) {
	return native.BuildObject(b.Target)
}

// Run compiles the build in-process and executes its "main" entry,
// writing program output to out.
func (b *Build) Run(out io.Writer) error {
	mod, err := jit.Compile(b.Kernel, b.Res)
	if err != nil {
		return err
	}
	return mod.Run("main", out)
}
