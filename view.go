package main

import "unsafe"

// viewBytes returns a fresh copy of the n bytes of this process's own
// address space starting at addr, as an explicit byte-slice view
// parameterized by a base address and length. The caller is always
// expected to have already confirmed the range is mapped via
// Memory.Query before calling this.
func viewBytes(addr Address, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	view := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(n))
	out := make([]byte, n)
	copy(out, view)
	return out
}
