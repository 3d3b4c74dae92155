//go:build windows
// +build windows

package main

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// windowsMapping resolves module/region questions with VirtualQuery (via
// Memory.Query), GetModuleHandle and GetModuleFileName, grounded on the
// PE section-header walking style of pe_reader.go. It does not enumerate
// loaded modules.
type windowsMapping struct {
	mem Memory
}

// NewMapping constructs the platform Mapping oracle.
func NewMapping(mem Memory) Mapping {
	return &windowsMapping{mem: mem}
}

func (wm *windowsMapping) RegionOf(addr Address) (Region, error) {
	return wm.mem.Query(addr)
}

func (wm *windowsMapping) RegionOfPath(path string) (Region, error) {
	h, err := windows.GetModuleHandle(path)
	if err != nil {
		return Region{}, wrapErr(ItemNotFound, "GetModuleHandle(%s) failed: %v", path, err)
	}
	return wm.RegionOf(Address(h))
}

func (wm *windowsMapping) BaseOf(h ModuleHandle) (Address, error) {
	return Address(h), nil
}

func (wm *windowsMapping) PathOf(h ModuleHandle) (string, error) {
	buf := make([]uint16, windows.MAX_PATH)
	n, err := windows.GetModuleFileName(windows.Handle(h), &buf[0], uint32(len(buf)))
	if err != nil || n == 0 {
		return "", wrapErr(ItemNotFound, "GetModuleFileName(%v) failed: %v", h, err)
	}
	path := syscall.UTF16ToString(buf[:n])
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "PathOf(%v) -> %s\n", h, path)
	}
	return path, nil
}

// selfExePath returns the running executable's own path, mirroring the
// Linux /proc/self/exe lookup in mapping_linux.go.
func selfExePath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", wrapErr(ItemNotFound, "os.Executable failed: %v", err)
	}
	return path, nil
}
