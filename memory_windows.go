//go:build windows
// +build windows

package main

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsMemory implements Memory via VirtualQuery/VirtualProtect/
// VirtualAlloc/VirtualFree/FlushInstructionCache, grounded on
// tklauser-wireguard-go/tun/wintun/memmod/memmod_windows.go
// (windows.VirtualAlloc/VirtualFree usage) and mirroring the existing
// golang.org/x/sys dependency, here exercising its windows subpackage.
type windowsMemory struct {
	mu    sync.Mutex
	sizes map[Address]uintptr
}

func newWindowsMemory() *windowsMemory {
	return &windowsMemory{sizes: make(map[Address]uintptr)}
}

// NewMemory constructs the platform Memory primitive.
func NewMemory() Memory {
	return newWindowsMemory()
}

// winProtectFlags is the direct table translation between
// {N,R,RW,X,XR,XRW} and Windows page protection flags. GUARD/NOCACHE/
// WRITECOMBINE are masked out before comparison by winProtToMask.
func winProtectFlags(mask Protection) uint32 {
	switch mask & (ProtRead | ProtWrite | ProtExec) {
	case ProtNone:
		return windows.PAGE_NOACCESS
	case ProtRead:
		return windows.PAGE_READONLY
	case ProtRead | ProtWrite:
		return windows.PAGE_READWRITE
	case ProtExec:
		return windows.PAGE_EXECUTE
	case ProtExec | ProtRead:
		return windows.PAGE_EXECUTE_READ
	case ProtExec | ProtRead | ProtWrite:
		return windows.PAGE_EXECUTE_READWRITE
	case ProtWrite:
		return windows.PAGE_READWRITE
	case ProtExec | ProtWrite:
		return windows.PAGE_EXECUTE_READWRITE
	default:
		return windows.PAGE_NOACCESS
	}
}

const winProtMask = 0xff // mask out GUARD/NOCACHE/WRITECOMBINE decorator bits

func winProtToMask(flags uint32) Protection {
	switch flags & winProtMask {
	case windows.PAGE_NOACCESS:
		return ProtNone
	case windows.PAGE_READONLY:
		return ProtRead
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return ProtRead | ProtWrite
	case windows.PAGE_EXECUTE:
		return ProtExec
	case windows.PAGE_EXECUTE_READ:
		return ProtExec | ProtRead
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return ProtExec | ProtRead | ProtWrite
	default:
		return ProtNone
	}
}

// Query resolves the region containing addr via VirtualQuery.
func (m *windowsMemory) Query(addr Address) (Region, error) {
	var mbi windows.MemoryBasicInformation
	err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		return Region{}, wrapErr(ItemNotFound, "VirtualQuery(%s) failed: %v", addr, err)
	}
	if mbi.State != windows.MEM_COMMIT {
		return Region{}, wrapErr(ItemNotFound, "%s is not committed", addr)
	}

	region := Region{
		Base: Address(mbi.BaseAddress),
		End:  Address(mbi.BaseAddress + mbi.RegionSize),
		Mask: winProtToMask(mbi.Protect),
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Query(%s) -> %s\n", addr, region.Mask)
	}
	return region, nil
}

// Allocate reserves and commits an anonymous region with VirtualAlloc.
func (m *windowsMemory) Allocate(size uintptr, mask Protection, hint Address) (Address, error) {
	length := roundUpPage(size)
	addr, err := windows.VirtualAlloc(uintptr(hint), length,
		windows.MEM_COMMIT|windows.MEM_RESERVE, winProtectFlags(mask))
	if err != nil {
		return Null, wrapErr(NoMemory, "VirtualAlloc(size=%d) failed: %v", size, err)
	}

	m.mu.Lock()
	m.sizes[Address(addr)] = length
	m.mu.Unlock()

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Allocate(size=%d, mask=%s) -> %s\n", size, mask, Address(addr))
	}
	return Address(addr), nil
}

// Free releases an allocation with VirtualFree.
func (m *windowsMemory) Free(addr Address) error {
	m.mu.Lock()
	delete(m.sizes, addr)
	m.mu.Unlock()

	if err := windows.VirtualFree(uintptr(addr), 0, windows.MEM_RELEASE); err != nil {
		return wrapErr(InvalidArgument, "VirtualFree(%s) failed: %v", addr, err)
	}
	return nil
}

// Mask changes protection over the page-floored, page-rounded range with
// VirtualProtect.
func (m *windowsMemory) Mask(addr Address, size uintptr, mask Protection) error {
	base := pageFloor(addr)
	length := roundUpPage(uintptr(addr.Sub(base)) + size)

	var old uint32
	if err := windows.VirtualProtect(uintptr(base), length, winProtectFlags(mask), &old); err != nil {
		return wrapErr(InvalidAccess, "VirtualProtect(%s, %d, %s) failed: %v", base, length, mask, err)
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Mask(%s, %d) -> %s\n", addr, size, mask)
	}
	return nil
}

// Flush synchronizes the instruction cache with FlushInstructionCache.
func (m *windowsMemory) Flush(addr Address, size uintptr) error {
	h, err := windows.GetCurrentProcess()
	if err != nil {
		return wrapErr(InvalidAccess, "GetCurrentProcess failed: %v", err)
	}
	if err := windows.FlushInstructionCache(h, uintptr(addr), size); err != nil {
		return wrapErr(InvalidAccess, "FlushInstructionCache(%s, %d) failed: %v", addr, size, err)
	}
	return nil
}

// Copy writes src at dst under the widen-then-restore discipline.
func (m *windowsMemory) Copy(dst Address, src []byte) error {
	return copyWidened(m, dst, uintptr(len(src)), func() error {
		out := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), len(src))
		copy(out, src)
		return nil
	})
}

// Fill writes size copies of value starting at dst under widen-then-restore.
func (m *windowsMemory) Fill(dst Address, size uintptr, value byte) error {
	return copyWidened(m, dst, size, func() error {
		out := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), size)
		for i := range out {
			out[i] = value
		}
		return nil
	})
}
