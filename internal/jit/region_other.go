//go:build !(linux && amd64)

package jit

func mapRegion(int, bool) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func unmapRegion([]byte) error {
	return nil
}

func call(uintptr) int64 {
	panic(ErrUnsupportedPlatform)
}
