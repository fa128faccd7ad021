package jit

import (
	"fmt"
	"unsafe"
)

// filler is the x86 RET opcode.
const filler = 0xC3

// region is one page-aligned anonymous mapping.
type region struct {
	mem []byte
}

func newRegion(size, pageSize int, executable bool) (*region, error) {
	n := roundToPages(size, pageSize)
	mem, err := mapRegion(n, executable)
	if err != nil {
		return nil, fmt.Errorf("map %d bytes: %w", n, err)
	}
	for i := range mem {
		mem[i] = filler
	}
	return &region{mem: mem}, nil
}

// roundToPages returns the smallest positive multiple of pageSize that holds
// size bytes.
func roundToPages(size, pageSize int) int {
	if size < 1 {
		size = 1
	}
	return (size + pageSize - 1) / pageSize * pageSize
}

func (r *region) base() uintptr {
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

// write copies b to offset. Panics if the write would leave the region.
func (r *region) write(offset int, b []byte) {
	if offset < 0 || offset+len(b) > len(r.mem) {
		panic(fmt.Sprintf("jit: write of %d bytes at %d outside %d-byte region", len(b), offset, len(r.mem)))
	}
	copy(r.mem[offset:], b)
}

// release unmaps the region. Later calls are no-ops.
func (r *region) release() error {
	if r == nil || r.mem == nil {
		return nil
	}
	err := unmapRegion(r.mem)
	r.mem = nil
	return err
}
