//go:build android && cgo
// +build android,cgo

package main

/*
#include <dlfcn.h>
#include <stdlib.h>

// get_soname has the Bionic-internal signature const char* (*)(void*).
static const char* ml_call_get_soname(void *fn, void *soinfo) {
	typedef const char* (*get_soname_fn)(void*);
	return ((get_soname_fn)fn)(soinfo);
}

// __loader_android_update_LD_LIBRARY_PATH has signature void (*)(const char*).
static void ml_call_update_ld_path(void *fn, const char *path) {
	typedef void (*update_fn)(const char*);
	((update_fn)fn)(path);
}

// __loader_android_get_LD_LIBRARY_PATH has signature void (*)(char*, size_t).
static void ml_call_get_ld_path(void *fn, char *buf, size_t buflen) {
	typedef void (*get_fn)(char*, size_t);
	((get_fn)fn)(buf, buflen);
}
*/
import "C"
import "unsafe"

// androidResolveLinkerSymbols dlopen(RTLD_NOLOAD)s the running linker image
// and dlsym's its private symbols. The linker binary is not read from
// disk, so a symbol that dlsym cannot see resolves to 0.
func androidResolveLinkerSymbols(path string) *androidLinkerSymbolTable {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_NOLOAD)
	if handle == nil {
		return &androidLinkerSymbolTable{}
	}
	defer C.dlclose(handle)

	return &androidLinkerSymbolTable{
		getSoname:           androidDlsym(handle, "__dl__ZN6soinfo10get_sonameEv"),
		getLDLibraryPath:    androidDlsym(handle, "__loader_android_get_LD_LIBRARY_PATH"),
		updateLDLibraryPath: androidDlsym(handle, "__loader_android_update_LD_LIBRARY_PATH"),
	}
}

func androidDlsym(handle unsafe.Pointer, name string) uintptr {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.dlsym(handle, cname)
	return uintptr(sym)
}

// androidCallGetSoname invokes the resolved get_soname(soinfo*) function
// pointer, returning the NUL-terminated name it points at and the soinfo's
// own pointer value as its "base", which androidDecodeTaggedHandle reports
// unchanged as the module base; the load address is not resolved
// separately.
func androidCallGetSoname(fn uintptr, soinfoPtr uintptr) (string, uintptr, error) {
	if fn == 0 {
		return "", 0, wrapErr(ItemNotFound, "get_soname not resolved")
	}
	cname := C.ml_call_get_soname(unsafe.Pointer(fn), unsafe.Pointer(soinfoPtr))
	if cname == nil {
		return "", 0, wrapErr(ItemNotFound, "get_soname returned NULL")
	}
	return C.GoString(cname), soinfoPtr, nil
}

// androidUpdateLDLibraryPath calls __loader_android_update_LD_LIBRARY_PATH,
// the API 28+ accessor; earlier API levels resolve no symbol for fn and
// androidLinkerSymbols never calls this.
func androidUpdateLDLibraryPath(fn uintptr, path string) error {
	if fn == 0 {
		return wrapErr(ItemNotFound, "update_LD_LIBRARY_PATH not resolved")
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	C.ml_call_update_ld_path(unsafe.Pointer(fn), cpath)
	return nil
}

// androidGetLDLibraryPath calls __loader_android_get_LD_LIBRARY_PATH.
func androidGetLDLibraryPath(fn uintptr) (string, error) {
	if fn == 0 {
		return "", wrapErr(ItemNotFound, "get_LD_LIBRARY_PATH not resolved")
	}
	buf := make([]byte, 4096)
	C.ml_call_get_ld_path(unsafe.Pointer(fn), (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(len(buf)))
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0]))), nil
}
