package main

import "fmt"

// Address is an untyped process-virtual byte address. Arithmetic is in
// bytes; the zero value is the null sentinel. Grounded on address_types.go's
// strongly-typed address wrappers, collapsed to a single untyped kind
// (virtual/file-offset distinctions stay internal to
// metadata_pe.go/metadata_elf.go; callers only ever see one Address kind).
type Address uintptr

// Null is the sentinel address.
const Null Address = 0

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}

// IsNull reports whether a is the null sentinel.
func (a Address) IsNull() bool {
	return a == Null
}

// Add returns a+n, n may be negative.
func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

// Sub returns the byte distance a-b.
func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

// Protection is a bitmask over {R,W,X}.
type Protection uint8

const (
	ProtNone  Protection = 0
	ProtRead  Protection = 1 << 0
	ProtWrite Protection = 1 << 1
	ProtExec  Protection = 1 << 2
)

func (p Protection) String() string {
	s := [3]byte{'-', '-', '-'}
	if p&ProtRead != 0 {
		s[0] = 'r'
	}
	if p&ProtWrite != 0 {
		s[1] = 'w'
	}
	if p&ProtExec != 0 {
		s[2] = 'x'
	}
	return string(s[:])
}

// Has reports whether all bits in want are set in p.
func (p Protection) Has(want Protection) bool {
	return p&want == want
}

// Region describes a contiguous range of process-virtual memory observed
// to have uniform protection.
type Region struct {
	Base Address
	End  Address
	Mask Protection
	Path string // empty for anonymous mappings
}

// Size returns the byte length of the region.
func (r Region) Size() uintptr {
	return uintptr(r.End.Sub(r.Base))
}

// Contains reports whether addr falls within [Base, End).
func (r Region) Contains(addr Address) bool {
	return addr >= r.Base && addr < r.End
}
