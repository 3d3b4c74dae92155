//go:build mlhook_spinlock
// +build mlhook_spinlock

package main

import (
	"runtime"
	"sync/atomic"
)

// spinMutex busy-waits instead of blocking, for the `spinlock` build
// toggle: spinlock implies thread-safe, so this file supersedes
// mutex_std.go's build constraint when the tag is set, rather than
// composing with it.
type spinMutex struct {
	held atomic.Bool
}

func NewMutex() Mutex {
	return &spinMutex{}
}

func (m *spinMutex) Lock() {
	for !m.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (m *spinMutex) Unlock() {
	m.held.Store(false)
}
