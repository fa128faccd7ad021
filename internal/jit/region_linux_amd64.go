//go:build linux && amd64

package jit

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func mapRegion(size int, executable bool) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if executable {
		prot |= unix.PROT_EXEC
	}
	return unix.Mmap(-1, 0, size, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func unmapRegion(mem []byte) error {
	return unix.Munmap(mem)
}

// call runs the code at addr as a Go func() int64. A func value is a pointer
// to a word holding the code address, so a pointer to addr is one. The
// generated code leaves R14, R15 and X15 untouched and does not use the
// stack, which keeps it within the register ABI.
func call(addr uintptr) int64 {
	entry := &addr
	fn := *(*func() int64)(unsafe.Pointer(&entry))
	return fn()
}
