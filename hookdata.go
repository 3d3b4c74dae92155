package main

// HookKind is the patching strategy place_internal chose for one
// installed hook.
type HookKind int

const (
	HookInline HookKind = iota
	HookBackjump
	HookTrap
)

func (k HookKind) String() string {
	switch k {
	case HookInline:
		return "inline"
	case HookBackjump:
		return "backjump"
	case HookTrap:
		return "trap"
	default:
		return "unknown"
	}
}

// HookData is the installer-private record created by place_internal and
// consumed by removal: immutable between the two.
type HookData struct {
	Kind           HookKind
	PreambleOffset uintptr
	OriginalBytes  []byte
	Trampoline     Address
}

// RemoveEntry detaches the entry targeting addr from whichever bucket
// holds it, by swap-remove against that bucket alone rather than
// rebuilding the whole table. Used to keep a module's chain table in
// sync with hooks removed dynamically at runtime. Reports whether an
// entry was found.
func (t *HookTable) RemoveEntry(addr Address) bool {
	if removeHookEntry(&t.Dispatchers, addr) {
		return true
	}
	if removeHookEntry(&t.LockingHooks, addr) {
		return true
	}
	return removeHookEntry(&t.Hooks, addr)
}

func removeHookEntry(bucket *[]HookEntry, addr Address) bool {
	for i, h := range *bucket {
		if h.Target != addr {
			continue
		}
		last := len(*bucket) - 1
		(*bucket)[i] = (*bucket)[last]
		*bucket = (*bucket)[:last]
		return true
	}
	return false
}

// orderChain lays out this target's entries in install order: dispatchers
// first, then ordinary hooks (priority ones first, stable otherwise),
// then locking hooks. This is a pure ordering helper; actually
// enabling/disabling a live chain at runtime
// (MLEnableHook/MLDisableHook/MLEnumerateHooks/MLInitRecord/
// MLCleanupRecord/MLGetFirstChainHook/MLGetNextChainHook) is declared as
// part of the C-ABI surface but its semantics are explicitly out of core
// scope, so those names are not given bodies here.
func orderChain(table HookTable) []HookEntry {
	ordered := make([]HookEntry, 0, len(table.Dispatchers)+len(table.Hooks)+len(table.LockingHooks))
	ordered = append(ordered, table.Dispatchers...)

	priority := make([]HookEntry, 0, len(table.Hooks))
	rest := make([]HookEntry, 0, len(table.Hooks))
	for _, h := range table.Hooks {
		if h.Priority {
			priority = append(priority, h)
		} else {
			rest = append(rest, h)
		}
	}
	ordered = append(ordered, priority...)
	ordered = append(ordered, rest...)
	ordered = append(ordered, table.LockingHooks...)
	return ordered
}
