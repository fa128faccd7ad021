// Package jit is the native execution backend: it turns a specialized
// program into x86-64 machine code and runs it in place.
//
// A Program owns two anonymous memory mappings. The code region is mapped
// read, write and execute and is pre-filled with RET (0xC3), so a jump into
// bytes that were never written returns instead of running garbage. The
// data region is mapped read and write only and holds one slot per
// variable. Both are rounded up to whole pages and are released by Close.
//
// Generated code addresses the data region through R11, which the prologue
// loads with the region's base address. It returns 0 in RAX when every
// assert held, or the 1-based ordinal of the first failing assert.
//
// Execution happens on the calling goroutine, cannot be interrupted and is
// not synchronized: callers must not touch a Program from several
// goroutines at once. A fault in generated code takes the process down.
//
// Only linux/amd64 can map and run code; elsewhere New and Ingest return
// ErrUnsupportedPlatform. Assembly itself is portable.
package jit
