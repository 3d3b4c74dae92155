package main

// Flag bits decoded from a SecHook record's flags field.
const (
	FlagDispatcher uint64 = 0x01
	FlagDynamic    uint64 = 0x02
	FlagLocking    uint64 = 0x04
	FlagPreload    uint64 = 0x08
	FlagOptional   uint64 = 0x10
	FlagPriority   uint64 = 0x20
)

// DynamicEntry describes one symbol record from a module's .mldyn section.
// Address is already rebased to the runtime load address (imageLoadOffset
// minus the image base plus the raw field), or the raw field kept verbatim
// when the image was parsed with a zero load offset.
type DynamicEntry struct {
	Address Address
	Sym     string
	Record  string
}

// HookEntry describes one hook descriptor from a module's .mlhook section.
// At most one of Dispatcher or Locking is ever true; when Dispatcher is
// true the loader forces Preload/Optional/Priority false and Locking
// false.
type HookEntry struct {
	Target   Address
	Callback Address
	Dispatcher bool
	Dynamic    bool
	Locking    bool
	Preload    bool
	Optional   bool
	Priority   bool
}

// DynamicTable is the ordered result of parsing a .mldyn section.
type DynamicTable []DynamicEntry

// HookTable buckets a .mlhook section's entries by flag at ingest time,
// preserving each bucket's insertion order.
type HookTable struct {
	Dispatchers  []HookEntry
	LockingHooks []HookEntry
	Hooks        []HookEntry
}

// addEntry buckets one decoded hook record, applying the precedence rule:
// DISPATCHER wins over LOCKING, which wins over the plain hooks bucket.
func (t *HookTable) addEntry(flags uint64, target, callback Address) {
	entry := HookEntry{
		Target:   target,
		Callback: callback,
		Dynamic:  flags&FlagDynamic != 0,
		Preload:  flags&FlagPreload != 0,
		Optional: flags&FlagOptional != 0,
		Priority: flags&FlagPriority != 0,
	}

	switch {
	case flags&FlagDispatcher != 0:
		entry.Dispatcher = true
		entry.Preload, entry.Optional, entry.Priority = false, false, false
		entry.Locking = false
		t.Dispatchers = append(t.Dispatchers, entry)
	case flags&FlagLocking != 0:
		entry.Locking = true
		t.LockingHooks = append(t.LockingHooks, entry)
	default:
		t.Hooks = append(t.Hooks, entry)
	}
}
