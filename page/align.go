package page

import "unsafe"

// uintptrOf returns the address of buf's first byte, used only to check or
// produce page-size alignment for direct I/O.
func uintptrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
