//go:build arm64
// +build arm64

package main

// flushCacheARM64 cleans the data cache and invalidates the instruction
// cache over [begin, end) using the DC CVAU/IC IVAU instruction sequence,
// implemented in icache_arm64_asm.s since this has no Go-callable syscall
// equivalent on arm64 (unlike the ARM32 cacheflush syscall in
// icache_arm.go). Narrow typed adapter over the one piece of raw machine
// code this engine needs.
func flushCacheARM64(begin, end uintptr)

// flushInstructionCache synchronizes the instruction cache over
// [addr, addr+size) after a code write, required on AArch64 because the
// data and instruction caches are not kept coherent by hardware there.
func flushInstructionCache(addr Address, size uintptr) error {
	flushCacheARM64(uintptr(addr), uintptr(addr)+size)
	return nil
}
