package main

import "unsafe"

// fakeMemory implements Memory over a single Go byte slice, treating its
// backing array as the "process memory" under test. Reads go through
// viewBytes the same way the real Linux/Windows implementations do, since
// the slice's address is a genuine address in this process.
type fakeMemory struct {
	buf  []byte
	base Address
	mask Protection
}

func newFakeMemory(buf []byte, mask Protection) *fakeMemory {
	if len(buf) == 0 {
		return &fakeMemory{mask: mask}
	}
	return &fakeMemory{
		buf:  buf,
		base: Address(uintptr(unsafe.Pointer(&buf[0]))),
		mask: mask,
	}
}

func (f *fakeMemory) Query(addr Address) (Region, error) {
	return Region{Base: f.base, End: f.base.Add(int64(len(f.buf))), Mask: f.mask}, nil
}

func (f *fakeMemory) Allocate(size uintptr, mask Protection, hint Address) (Address, error) {
	b := make([]byte, size)
	f.buf = b
	f.base = Address(uintptr(unsafe.Pointer(&b[0])))
	f.mask = mask
	return f.base, nil
}

func (f *fakeMemory) Free(addr Address) error { return nil }

func (f *fakeMemory) Mask(addr Address, size uintptr, mask Protection) error {
	f.mask = mask
	return nil
}

func (f *fakeMemory) Flush(addr Address, size uintptr) error { return nil }

// Copy applies the same copyWidened discipline as the real implementations.
func (f *fakeMemory) Copy(dst Address, src []byte) error {
	return copyWidened(f, dst, uintptr(len(src)), func() error {
		off := int(dst.Sub(f.base))
		copy(f.buf[off:off+len(src)], src)
		return nil
	})
}

func (f *fakeMemory) Fill(dst Address, size uintptr, value byte) error {
	off := int(dst.Sub(f.base))
	for i := 0; i < int(size); i++ {
		f.buf[off+i] = value
	}
	return nil
}

// fakeMapping answers RegionOf with a single region spanning the whole
// fake memory buffer, sufficient for the installer's address-validation
// check and nothing else.
type fakeMapping struct {
	region Region
}

func newFakeMapping(region Region) *fakeMapping {
	return &fakeMapping{region: region}
}

func (m *fakeMapping) RegionOf(addr Address) (Region, error) {
	if !m.region.Contains(addr) {
		return Region{}, wrapErr(ItemNotFound, "no mapped region contains %s", addr)
	}
	return m.region, nil
}

func (m *fakeMapping) RegionOfPath(path string) (Region, error) {
	return m.region, nil
}

func (m *fakeMapping) BaseOf(h ModuleHandle) (Address, error) {
	return m.region.Base, nil
}

func (m *fakeMapping) PathOf(h ModuleHandle) (string, error) {
	return m.region.Path, nil
}
