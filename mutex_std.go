//go:build !mlhook_singlethread && !mlhook_spinlock
// +build !mlhook_singlethread,!mlhook_spinlock

package main

import "sync"

// stdMutex is the default thread-safe variant: a plain blocking mutex.
type stdMutex struct {
	mu sync.Mutex
}

// NewMutex returns the build's active Mutex variant.
func NewMutex() Mutex {
	return &stdMutex{}
}

func (m *stdMutex) Lock()   { m.mu.Lock() }
func (m *stdMutex) Unlock() { m.mu.Unlock() }
