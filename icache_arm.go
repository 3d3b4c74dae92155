//go:build linux && arm
// +build linux,arm

package main

import "golang.org/x/sys/unix"

// flushInstructionCache invokes the Linux/ARM cacheflush(2) syscall
// (__ARM_NR_cacheflush, historically 0xf0002), the kernel-provided path
// for user-space icache synchronization on 32-bit ARM, required because
// the data and instruction caches are not kept coherent by hardware
// there.
func flushInstructionCache(addr Address, size uintptr) error {
	const armNRCacheflush = 0xf0002
	begin := uintptr(addr)
	end := begin + size
	_, _, errno := unix.Syscall6(armNRCacheflush, begin, end, 0, 0, 0, 0)
	if errno != 0 {
		return wrapErr(InvalidAccess, "cacheflush(0x%x, 0x%x) failed: %v", begin, end, errno)
	}
	return nil
}
