package native

import "errors"

var (
	// ErrUnsupportedPattern marks a Kernel construct the emitter cannot
	// express in the target form. Emission produces no partial output.
	ErrUnsupportedPattern = errors.New("native: unsupported kernel construct")

	// ErrUnsupportedTyped marks a definition whose typed variant cannot be
	// expressed with unboxed scalars.
	ErrUnsupportedTyped = errors.New("native: definition not expressible in the typed convention")

	// ErrUnknownDefinition is returned when a requested symbol does not
	// exist in the lowered module.
	ErrUnknownDefinition = errors.New("native: unknown definition")

	// ErrObjectEmit wraps failures while writing the object artifact.
	ErrObjectEmit = errors.New("native: object emission failed")
)
