package main

// Mutex is the build-time-selected lock abstraction guarding the
// trampoline arena and the extension map. Exactly one variant
// (mutex_std.go, mutex_spin.go, mutex_single.go) is compiled in, selected
// by the mlhook_spinlock/mlhook_singlethread build tags -- the same
// per-concern build-tag split used for filewatcher_unix.go/
// filewatcher_windows.go, generalized here from an OS axis to a
// concurrency-strategy axis.
type Mutex interface {
	Lock()
	Unlock()
}
