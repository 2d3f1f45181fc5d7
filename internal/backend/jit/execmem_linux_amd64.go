//go:build linux && amd64

package jit

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapExecutable copies code into a fresh anonymous mapping and flips it to
// read-execute. Pages are write-xor-execute: never writable and executable
// at the same time.
func mapExecutable(code []byte) (uintptr, error) {
	mem, err := unix.Mmap(-1, 0, pageCeil(len(code)),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, err
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return 0, err
	}
	return uintptr(unsafe.Pointer(&mem[0])), nil
}

func pageCeil(n int) int {
	const page = 4096
	return (n + page - 1) &^ (page - 1)
}

// execInt wraps executable code as a two-argument integer function. A Go
// func value is a pointer to a code pointer, so an indirect call through
// the constructed value lands in the mapped page.
func execInt(code []byte) (func(int64, int64) int64, error) {
	addr, err := mapExecutable(code)
	if err != nil {
		return nil, err
	}
	entry := new(uintptr)
	*entry = addr
	return *(*func(int64, int64) int64)(unsafe.Pointer(&entry)), nil
}

// execFloat wraps executable code as a two-argument float function.
func execFloat(code []byte) (func(float64, float64) float64, error) {
	addr, err := mapExecutable(code)
	if err != nil {
		return nil, err
	}
	entry := new(uintptr)
	*entry = addr
	return *(*func(float64, float64) float64)(unsafe.Pointer(&entry)), nil
}
