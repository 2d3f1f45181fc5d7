package runtime

import "fmt"

// EffectKind discriminates deferred-effect frames.
type EffectKind uint8

const (
	// EffectPure wraps an already-computed value.
	EffectPure EffectKind = iota
	// EffectFail carries a domain failure payload.
	EffectFail
	// EffectBind sequences a source effect into a continuation closure.
	EffectBind
	// EffectOp defers a host operation (IO, channels, network) until run.
	EffectOp
)

// Effect is one frame of a deferred computation. Effects are inert values
// until fed to RunEffect; constructing one performs no work.
type Effect struct {
	Kind  EffectKind
	Value *Handle // Pure value or Fail payload
	Src   *Handle // Bind source effect
	Cont  *Handle // Bind continuation closure
	Op    func(ctx *Context) (*Handle, error)
}

// FailError is the domain failure surfaced by a failing effect. It is
// recoverable inside the effect system and distinct from host or
// transport errors, which are wrapped into it before reaching user code.
type FailError struct {
	Payload *Handle
}

func (e *FailError) Error() string {
	return fmt.Sprintf("effect failed: %s", Show(e.Payload))
}

// NewPure boxes an effect yielding v.
func NewPure(v *Handle) *Handle {
	return Box(Value{Tag: TagEffect, Effect: &Effect{Kind: EffectPure, Value: v}})
}

// NewFail boxes a failing effect with the given payload.
func NewFail(payload *Handle) *Handle {
	return Box(Value{Tag: TagEffect, Effect: &Effect{Kind: EffectFail, Value: payload}})
}

// NewBind boxes an effect running src and feeding its result to cont.
func NewBind(src, cont *Handle) *Handle {
	return Box(Value{Tag: TagEffect, Effect: &Effect{Kind: EffectBind, Src: src, Cont: cont}})
}

// NewOp boxes a host operation deferred until the effect runs.
func NewOp(op func(ctx *Context) (*Handle, error)) *Handle {
	return Box(Value{Tag: TagEffect, Effect: &Effect{Kind: EffectOp, Op: op}})
}

// RunEffect interprets an effect tree iteratively. Bind continuations are
// kept on an explicit stack, so arbitrarily deep chains run in constant Go
// stack space. Cancellation is polled per step; failure short-circuits
// past pending continuations as a *FailError.
func RunEffect(ctx *Context, eff *Handle) (*Handle, error) {
	var conts []*Handle
	cur := eff
	for {
		if err := ctx.Poll(); err != nil {
			return nil, err
		}
		v := cur.Value()
		if v.Tag != TagEffect {
			return nil, ErrNotEffect
		}
		e := v.Effect
		switch e.Kind {
		case EffectPure:
			if len(conts) == 0 {
				return e.Value, nil
			}
			k := conts[len(conts)-1]
			conts = conts[:len(conts)-1]
			next, err := Apply(ctx, k, e.Value)
			if err != nil {
				return nil, err
			}
			cur = next
		case EffectFail:
			return nil, &FailError{Payload: e.Value}
		case EffectBind:
			conts = append(conts, e.Cont)
			cur = e.Src
		case EffectOp:
			res, err := e.Op(ctx)
			if err != nil {
				return nil, err
			}
			cur = NewPure(res)
		default:
			return nil, ErrNotEffect
		}
	}
}
