package main

// memPageSize is the host's memory page granularity, used to floor/round
// addresses and sizes for protection changes.
const memPageSize = 4096

func pageFloor(addr Address) Address {
	return Address(uintptr(addr) &^ (memPageSize - 1))
}

func roundUpPage(size uintptr) uintptr {
	return (size + memPageSize - 1) &^ (memPageSize - 1)
}

// Memory is the OS-specific protection-aware patching primitive.
// Implementations live in memory_linux.go and memory_windows.go behind
// build tags, the same unix/windows split used elsewhere in the corpus
// for platform-specific file-watching and hot-reload code.
type Memory interface {
	Query(addr Address) (Region, error)
	Allocate(size uintptr, mask Protection, hint Address) (Address, error)
	Free(addr Address) error
	Mask(addr Address, size uintptr, mask Protection) error
	Flush(addr Address, size uintptr) error
	Copy(dst Address, src []byte) error
	Fill(dst Address, size uintptr, value byte) error
}

// copyWidened implements the widen-then-restore discipline shared by both
// platforms: query original mask, fail InvalidAccess if fully
// inaccessible, temporarily add W if absent, perform write, flush,
// restore original mask if it had been widened. write performs the actual
// byte transfer (a copy or a fill) once the page is known-writable.
func copyWidened(m Memory, dst Address, size uintptr, write func() error) error {
	region, err := m.Query(dst)
	if err != nil {
		return err
	}
	if region.Mask == ProtNone {
		return wrapErr(InvalidAccess, "copyWidened: %s is inaccessible", dst)
	}

	widened := !region.Mask.Has(ProtWrite)
	if widened {
		if err := m.Mask(dst, size, region.Mask|ProtWrite); err != nil {
			return err
		}
	}

	writeErr := write()

	if flushErr := m.Flush(dst, size); flushErr != nil && writeErr == nil {
		writeErr = flushErr
	}

	if widened {
		if err := m.Mask(dst, size, region.Mask); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	return writeErr
}
