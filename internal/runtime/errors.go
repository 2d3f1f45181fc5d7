package runtime

import "errors"

var (
	// ErrCancelled is returned when execution observes a tripped
	// cancellation token at a safe point.
	ErrCancelled = errors.New("runtime: cancelled")

	// ErrRefUnderflow marks a release of a handle whose reference count
	// already reached zero. The handle is left at zero, never negative.
	ErrRefUnderflow = errors.New("runtime: reference count underflow")

	// ErrNotCallable is returned when a non-closure value is applied.
	ErrNotCallable = errors.New("runtime: value is not callable")

	// ErrNotEffect is returned when the trampoline is fed a non-effect.
	ErrNotEffect = errors.New("runtime: value is not an effect")

	// ErrNoInstance is the hard error for an unmatched runtime instance
	// dispatch: no registered instance covers the argument's constructor.
	ErrNoInstance = errors.New("runtime: no matching instance")

	// ErrContextClosed is returned when a context is closed twice or used
	// after closing.
	ErrContextClosed = errors.New("runtime: context already closed")

	// ErrChannelClosed is returned when operating on a closed channel.
	ErrChannelClosed = errors.New("runtime: channel closed")

	// ErrBadOperand is returned when a primitive operation receives
	// operands of the wrong runtime tag.
	ErrBadOperand = errors.New("runtime: bad operand")

	// ErrMatchFail is the runtime error for an inexhaustive match falling
	// through every arm.
	ErrMatchFail = errors.New("runtime: inexhaustive match")

	// ErrUnknownGlobal is returned when generated code references a
	// definition that was never registered.
	ErrUnknownGlobal = errors.New("runtime: unknown global")
)
