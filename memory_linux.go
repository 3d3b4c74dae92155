//go:build linux
// +build linux

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxMemory implements Memory by parsing /proc/self/maps and issuing
// mmap/mprotect/munmap, upgrading the raw syscall.Syscall6(SYS_MMAP, ...)
// style used in hotreload_unix.go's AllocateExecutablePage to the typed
// golang.org/x/sys/unix wrappers already imported in filewatcher_unix.go.
type linuxMemory struct {
	mu    sync.Mutex
	sizes map[Address]uintptr // allocations made via Allocate, for Free
}

func newLinuxMemory() *linuxMemory {
	return &linuxMemory{sizes: make(map[Address]uintptr)}
}

// NewMemory constructs the platform Memory primitive.
func NewMemory() Memory {
	return newLinuxMemory()
}

func unixProt(mask Protection) int {
	var p int
	if mask&ProtRead != 0 {
		p |= unix.PROT_READ
	}
	if mask&ProtWrite != 0 {
		p |= unix.PROT_WRITE
	}
	if mask&ProtExec != 0 {
		p |= unix.PROT_EXEC
	}
	return p
}

// Query resolves the region containing addr by scanning /proc/self/maps,
// a per-line field decomposition into {base, end, flags(rwxsp), offset, dev,
// inode, path?}.
func (m *linuxMemory) Query(addr Address) (Region, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return Region{}, wrapErr(ItemNotFound, "open /proc/self/maps: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		region, ok := parseMapsLine(sc.Text())
		if !ok {
			continue
		}
		if region.Contains(addr) {
			if VerboseMode {
				fmt.Fprintf(os.Stderr, "Query(%s) -> %s %s\n", addr, region.Mask, region.Path)
			}
			return region, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Region{}, wrapErr(ItemNotFound, "scan /proc/self/maps: %v", err)
	}
	return Region{}, wrapErr(ItemNotFound, "%s is not mapped", addr)
}

// parseMapsLine decodes one /proc/self/maps record:
//
//	base-end rwxp offset dev inode path
func parseMapsLine(line string) (Region, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Region{}, false
	}
	rng := strings.SplitN(fields[0], "-", 2)
	if len(rng) != 2 {
		return Region{}, false
	}
	base, err1 := strconv.ParseUint(rng[0], 16, 64)
	end, err2 := strconv.ParseUint(rng[1], 16, 64)
	if err1 != nil || err2 != nil {
		return Region{}, false
	}

	perms := fields[1]
	var mask Protection
	if strings.ContainsRune(perms, 'r') {
		mask |= ProtRead
	}
	if strings.ContainsRune(perms, 'w') {
		mask |= ProtWrite
	}
	if strings.ContainsRune(perms, 'x') {
		mask |= ProtExec
	}

	path := ""
	if len(fields) >= 6 {
		path = fields[5]
	}

	return Region{Base: Address(base), End: Address(end), Mask: mask, Path: path}, true
}

// Allocate performs an anonymous private mapping with the requested
// protection.
func (m *linuxMemory) Allocate(size uintptr, mask Protection, hint Address) (Address, error) {
	data, err := unix.Mmap(-1, 0, int(roundUpPage(size)), unixProt(mask),
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Null, wrapErr(NoMemory, "mmap(size=%d) failed: %v", size, err)
	}
	addr := Address(uintptr(unsafe.Pointer(&data[0])))

	m.mu.Lock()
	m.sizes[addr] = uintptr(len(data))
	m.mu.Unlock()

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Allocate(size=%d, mask=%s) -> %s\n", size, mask, addr)
	}
	return addr, nil
}

// Free releases an allocation made via Allocate; size is taken from the
// bookkeeping map populated there.
func (m *linuxMemory) Free(addr Address) error {
	m.mu.Lock()
	size, ok := m.sizes[addr]
	if ok {
		delete(m.sizes, addr)
	}
	m.mu.Unlock()

	if !ok {
		region, err := m.Query(addr)
		if err != nil {
			return err
		}
		size = region.Size()
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
	if err := unix.Munmap(data); err != nil {
		return wrapErr(InvalidArgument, "munmap(%s) failed: %v", addr, err)
	}
	return nil
}

// Mask changes protection over the page-floored, page-rounded range
// covering [addr, addr+size).
func (m *linuxMemory) Mask(addr Address, size uintptr, mask Protection) error {
	base := pageFloor(addr)
	length := roundUpPage(uintptr(addr.Sub(base)) + size)
	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), length)
	if err := unix.Mprotect(data, unixProt(mask)); err != nil {
		return wrapErr(InvalidAccess, "mprotect(%s, %d, %s) failed: %v", base, length, mask, err)
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Mask(%s, %d) -> %s\n", addr, size, mask)
	}
	return nil
}

// Flush synchronizes the instruction cache over the affected pages.
func (m *linuxMemory) Flush(addr Address, size uintptr) error {
	return flushInstructionCache(addr, size)
}

// Copy writes src at dst under the widen-then-restore discipline.
func (m *linuxMemory) Copy(dst Address, src []byte) error {
	return copyWidened(m, dst, uintptr(len(src)), func() error {
		out := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), len(src))
		copy(out, src)
		return nil
	})
}

// Fill writes size copies of value starting at dst under widen-then-restore.
func (m *linuxMemory) Fill(dst Address, size uintptr, value byte) error {
	return copyWidened(m, dst, size, func() error {
		out := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dst))), size)
		for i := range out {
			out[i] = value
		}
		return nil
	})
}
