//go:build windows
// +build windows

package main

import (
	"sync"
	"syscall"
	"unsafe"
)

var (
	kernel32                       = syscall.NewLazyDLL("kernel32.dll")
	procAddVectoredExceptionHandler = kernel32.NewProc("AddVectoredExceptionHandler")
	procRemoveVectoredExceptionHandler = kernel32.NewProc("RemoveVectoredExceptionHandler")
)

const exceptionIllegalInstruction = 0xC000001D

// SignalGuard owns a vectored exception handler slot for the trap hooking
// strategy's illegal-instruction faults, the Windows analogue of
// signalguard_linux.go's SIGILL ownership. AddVectoredExceptionHandler/
// RemoveVectoredExceptionHandler have no golang.org/x/sys/windows
// binding, so this file resolves them itself via syscall.NewLazyDLL
// against kernel32.dll, the standard idiom for an unwrapped Win32 API --
// a narrow typed adapter, not a wholesale departure from the
// x/sys/windows-based style memory_windows.go uses.
type SignalGuard struct {
	mu      sync.Mutex
	handle  uintptr
	onTrap  func(code uint32, addr uintptr)
}

var activeGuard *SignalGuard

// NewSignalGuard registers a first-chance vectored exception handler that
// calls onTrap for EXCEPTION_ILLEGAL_INSTRUCTION and lets every other
// exception continue the search.
func NewSignalGuard(onTrap func(code uint32, addr uintptr)) *SignalGuard {
	g := &SignalGuard{onTrap: onTrap}
	activeGuard = g
	handle, _, _ := procAddVectoredExceptionHandler.Call(1, syscall.NewCallback(vehDispatch))
	g.handle = handle
	return g
}

func vehDispatch(exceptionInfo uintptr) uintptr {
	g := activeGuard
	if g == nil || exceptionInfo == 0 {
		return 0 // EXCEPTION_CONTINUE_SEARCH
	}
	record := (*uint32)(unsafe.Pointer(exceptionInfo))
	code := *record
	if code != exceptionIllegalInstruction {
		return 0
	}
	g.onTrap(code, exceptionInfo)
	return 0
}

// Release removes this guard's handler, the VEH analogue of Linux's
// signal.Stop-based restoration.
func (g *SignalGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle == 0 {
		return
	}
	procRemoveVectoredExceptionHandler.Call(g.handle)
	g.handle = 0
	if activeGuard == g {
		activeGuard = nil
	}
}
