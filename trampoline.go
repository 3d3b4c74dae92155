package main

// TrampolineArena is the single process-wide executable/readable/writable
// allocation of fixed capacity: a monotonic bump allocator with no free,
// guarded by a single Mutex covering base and size together. Grounded on
// arena.go's bump-allocation-with-scope model
// (generalized from the compiler's stack-frame arenas to a single global
// executable-code arena) and on hotreload_unix.go's mmap(PROT_READ|WRITE|
// EXEC) allocation pattern.
type TrampolineArena struct {
	mu       Mutex
	mem      Memory
	base     Address
	capacity uintptr
	used     uintptr
}

// NewTrampolineArena reserves capacity bytes of RWX memory up front.
func NewTrampolineArena(mem Memory, capacity int) (*TrampolineArena, error) {
	base, err := mem.Allocate(uintptr(capacity), ProtRead|ProtWrite|ProtExec, Null)
	if err != nil {
		return nil, err
	}
	return &TrampolineArena{
		mu:       NewMutex(),
		mem:      mem,
		base:     base,
		capacity: uintptr(capacity),
	}, nil
}

// Place relocates the displaced original prolog via codec, anchoring it at
// a fresh trampoline slot, appends a jump back to resumeAt (the address
// just past the displaced bytes), and hands out the slot's address. Once handed out an
// address is stable for the process lifetime, since the arena never
// frees or moves slots.
func (a *TrampolineArena) Place(codec ArchCodec, original []byte, resumeAt Address) (Address, error) {
	jump := codec.GetJumpData(resumeAt)

	a.mu.Lock()
	defer a.mu.Unlock()

	slot := a.base.Add(int64(a.used))
	need := uintptr(len(original) + len(jump))
	if a.used+need > a.capacity {
		return Null, wrapErr(NoMemory, "trampoline arena exhausted: %d bytes requested, %d available", need, a.capacity-a.used)
	}

	relocated, err := codec.Relocate(original, slot)
	if err != nil {
		return Null, err
	}

	payload := make([]byte, 0, len(relocated)+len(jump))
	payload = append(payload, relocated...)
	payload = append(payload, jump...)

	if err := a.mem.Copy(slot, payload); err != nil {
		return Null, err
	}

	a.used += need
	return slot, nil
}

// Used reports bytes consumed so far, for diagnostics and tests.
func (a *TrampolineArena) Used() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}
