//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// androidAPILevel caches the device's API level, resolved once per process
// and memoized behind androidAPILevel() so callers never see the laziness.
var (
	androidOnce  sync.Once
	androidLevel int
)

// androidAPILevel reads ro.build.version.sdk from /system/build.prop to
// learn the Bionic API level without linking against libandroid; it
// reports 0 when the property cannot be read.
func androidAPILevel() int {
	androidOnce.Do(func() {
		out, err := readPropSDK()
		if err != nil {
			androidLevel = 0
			return
		}
		androidLevel = out
	})
	return androidLevel
}

func readPropSDK() (int, error) {
	data, err := os.ReadFile("/system/build.prop")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ro.build.version.sdk=") {
			v := strings.TrimPrefix(line, "ro.build.version.sdk=")
			return strconv.Atoi(strings.TrimSpace(v))
		}
	}
	return 0, wrapErr(ItemNotFound, "ro.build.version.sdk not found")
}

// soinfoPreAPI24 mirrors the pre-24 Bionic soinfo layout's leading fields:
// a fixed-offset name buffer followed by the base address. Field widths
// match the 128-byte name buffer used by that era of Bionic.
type soinfoPreAPI24 struct {
	name [128]byte
	base uintptr
}

// soinfoAPI24Offset is the offset of the soname field in API-level-24
// Bionic's soinfo when get_soname is absent. Kept as a version-gated
// magic offset rather than normalized, since it encodes
// observed-but-undocumented Bionic behavior.
const soinfoAPI24Offset = 0x178

// handleTagBit marks handles returned by API >= 24 dlopen as tagged
// (opaque, not a direct soinfo*).
const handleTagBit = uintptr(1)

// androidDecodeHandle attempts to decode h as a Bionic linker handle,
// version-gated by the device's API level. ok is false on non-Android
// hosts or when h does not look like a linker handle, in which case
// callers fall back to treating h as an ordinary module base address.
func androidDecodeHandle(h ModuleHandle) (base Address, path string, ok bool) {
	if runtime.GOOS != "android" {
		return Null, "", false
	}

	level := androidAPILevel()
	hv := uintptr(h)

	switch {
	case level >= 24 && hv&handleTagBit != 0:
		return androidDecodeTaggedHandle(hv &^ handleTagBit)
	case level == 24:
		return androidDecodeAPI24(hv)
	case level > 0 && level <= 23:
		return androidDecodeLegacy(hv)
	default:
		// Tag bit absent on API >= 25, or API level unknown: falls back
		// to the pre-24 decode path.
		return androidDecodeLegacy(hv)
	}
}

// androidDecodeTaggedHandle calls the linker's get_soname, resolved once
// through dlsym (androidLinkerSymbols), for API >= 24 tagged handles; when
// get_soname is unresolved or fails it falls back to androidDecodeAPI24.
func androidDecodeTaggedHandle(soinfoPtr uintptr) (Address, string, bool) {
	syms := androidLinkerSymbols()
	if syms == nil || syms.getSoname == 0 {
		return androidDecodeAPI24(soinfoPtr)
	}
	// The linker's get_soname(soinfo*) -> const char* is invoked through
	// the resolved symbol address; see androidCallGetSoname in
	// android_linker_cgo.go for the cgo trampoline that makes this call.
	name, base, err := androidCallGetSoname(syms.getSoname, soinfoPtr)
	if err != nil {
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "androidDecodeTaggedHandle: %v\n", err)
		}
		return androidDecodeAPI24(soinfoPtr)
	}
	return Address(base), name, true
}

// androidDecodeAPI24 reads the soname from the fixed offset within soinfo
// when get_soname is absent (API level exactly 24).
func androidDecodeAPI24(soinfoPtr uintptr) (Address, string, bool) {
	if soinfoPtr == 0 {
		return Null, "", false
	}
	soname := (*[256]byte)(unsafe.Pointer(soinfoPtr + soinfoAPI24Offset))
	name := cStringFrom(soname[:])
	if name == "" {
		return Null, "", false
	}
	return Address(soinfoPtr), name, true
}

// androidDecodeLegacy reads base/name directly from the pre-24 soinfo
// struct layout: API <= 23 handles point to a C struct whose base and
// name fields are read directly.
func androidDecodeLegacy(soinfoPtr uintptr) (Address, string, bool) {
	if soinfoPtr == 0 {
		return Null, "", false
	}
	si := (*soinfoPreAPI24)(unsafe.Pointer(soinfoPtr))
	name := cStringFrom(si.name[:])
	if name == "" {
		return Null, "", false
	}
	return Address(si.base), name, true
}

func cStringFrom(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// androidLinkerSymbolTable holds the function-pointer results of a one-time
// dlsym lookup in the linker for get_soname and the __loader_android_*
// LD_LIBRARY_PATH accessors, the latter available starting at API 28.
type androidLinkerSymbolTable struct {
	getSoname         uintptr
	getLDLibraryPath  uintptr
	updateLDLibraryPath uintptr
}

var (
	androidSymOnce sync.Once
	androidSyms    *androidLinkerSymbolTable
)

// androidLinkerSymbols resolves the linker's private symbols once,
// modeled as an explicit lazily-built singleton rather than an eager
// global.
func androidLinkerSymbols() *androidLinkerSymbolTable {
	androidSymOnce.Do(func() {
		path := androidLinkerPath()
		if path == "" {
			androidSyms = &androidLinkerSymbolTable{}
			return
		}
		androidSyms = androidResolveLinkerSymbols(path)
	})
	return androidSyms
}

// androidLinkerPath returns the linker binary path for the running
// process's bitness.
func androidLinkerPath() string {
	candidates := []string{
		"/apex/com.android.runtime/bin/linker64",
		"/system/bin/linker64",
		"/apex/com.android.runtime/bin/linker",
		"/system/bin/linker",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// AddLinkerPath and RemoveLinkerPath back MLAddLinkerPath/
// MLRemoveLinkerPath. On API 28+ these call through the resolved
// __loader_android_{update,get}_LD_LIBRARY_PATH symbols; earlier API
// levels have no such accessor and the call errors cleanly.
func AddLinkerPath(path string) error {
	syms := androidLinkerSymbols()
	if syms == nil || syms.updateLDLibraryPath == 0 {
		return wrapErr(ItemNotFound, "__loader_android_update_LD_LIBRARY_PATH unavailable")
	}
	current := LinkerPath()
	return androidUpdateLDLibraryPath(syms.updateLDLibraryPath, current+":"+path)
}

func RemoveLinkerPath(path string) error {
	syms := androidLinkerSymbols()
	if syms == nil || syms.updateLDLibraryPath == 0 {
		return wrapErr(ItemNotFound, "__loader_android_update_LD_LIBRARY_PATH unavailable")
	}
	current := LinkerPath()
	trimmed := strings.ReplaceAll(current, path+":", "")
	trimmed = strings.ReplaceAll(trimmed, ":"+path, "")
	return androidUpdateLDLibraryPath(syms.updateLDLibraryPath, trimmed)
}

// LinkerPath reads the current LD_LIBRARY_PATH via the resolved accessor,
// falling back to the process environment variable on earlier API levels.
func LinkerPath() string {
	syms := androidLinkerSymbols()
	if syms != nil && syms.getLDLibraryPath != 0 {
		if path, err := androidGetLDLibraryPath(syms.getLDLibraryPath); err == nil {
			return path
		}
	}
	return os.Getenv("LD_LIBRARY_PATH")
}
