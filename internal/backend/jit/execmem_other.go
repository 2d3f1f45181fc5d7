//go:build !linux || !amd64

package jit

import "errors"

// errNoExecMem reports that this host cannot execute generated code; the
// boxed path serves every call instead.
var errNoExecMem = errors.New("jit: executable memory unsupported on this host")

func execInt(code []byte) (func(int64, int64) int64, error) {
	return nil, errNoExecMem
}

func execFloat(code []byte) (func(float64, float64) float64, error) {
	return nil, errNoExecMem
}
