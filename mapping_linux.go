//go:build linux
// +build linux

package main

import (
	"bufio"
	"fmt"
	"os"
)

// linuxMapping reuses /proc/self/maps (same source as linuxMemory.Query)
// to answer module/region questions, and /proc/self/exe for the main
// module's own path.
type linuxMapping struct {
	mem Memory
}

// NewMapping constructs the platform Mapping oracle.
func NewMapping(mem Memory) Mapping {
	return &linuxMapping{mem: mem}
}

func (lm *linuxMapping) RegionOf(addr Address) (Region, error) {
	return lm.mem.Query(addr)
}

// RegionOfPath returns the first mapped region backed by the module at
// path.
func (lm *linuxMapping) RegionOfPath(path string) (Region, error) {
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
		if region.Path == path {
			return region, nil
		}
	}
	return Region{}, wrapErr(ItemNotFound, "no mapping for %s", path)
}

// BaseOf resolves a module handle's base address. On Linux, android_linker.go
// supplies the Bionic-specific decode; on a plain glibc/musl Linux host the
// handle is already the base address of the module's lowest mapped segment.
func (lm *linuxMapping) BaseOf(h ModuleHandle) (Address, error) {
	if base, path, ok := androidDecodeHandle(h); ok {
		_ = path
		return base, nil
	}
	return Address(h), nil
}

func (lm *linuxMapping) PathOf(h ModuleHandle) (string, error) {
	if _, path, ok := androidDecodeHandle(h); ok {
		return path, nil
	}
	if uintptr(h) == 0 {
		return selfExePath()
	}
	region, err := lm.RegionOf(Address(h))
	if err != nil {
		return "", err
	}
	return region.Path, nil
}

// selfExePath reads the main process module's path from the OS's self-exe
// link ("/proc/self/exe").
func selfExePath() (string, error) {
	path, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return "", wrapErr(ItemNotFound, "readlink /proc/self/exe: %v", err)
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "selfExePath() -> %s\n", path)
	}
	return path, nil
}
