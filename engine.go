package main

import "os"

// Engine wires the codec, memory, mapping, installer and trampoline
// arena into the single top-level object host programs drive: it owns
// one ArchCodec, one Memory, one Mapping, one Installer, one
// TrampolineArena and one ExtMap, and exposes the C-ABI-named operations
// as plain Go methods over them. Grounded in shape (one struct holding
// references to each subsystem, methods delegating to them in sequence)
// on compilation_pipeline.go's top-level pipeline-stage orchestration,
// adapted from "drive a compiler through fixed phases" to "drive hook
// installation on module load".
type Engine struct {
	arch        ArchCodec
	mem         Memory
	mapping     Mapping
	installer   *Installer
	ext         *ExtMap
	installed   map[Address]HookData
	installedMu Mutex
	tables      map[string]*HookTable
	tablesMu    Mutex
}

// NewEngine constructs an Engine for the current process with the codec
// for the caller-supplied arch: the engine always hooks into
// its own process, attaching callbacks to executable addresses inside
// modules loaded by that process.
func NewEngine(arch Arch, cfg Config) (*Engine, error) {
	codec, err := NewArchCodec(arch)
	if err != nil {
		return nil, err
	}
	mem := NewMemory()
	mapping := NewMapping(mem)
	trampoline, err := NewTrampolineArena(mem, cfg.TrampolineArenaSize)
	if err != nil {
		return nil, err
	}
	installer := NewInstaller(codec, mem, mapping, trampoline)

	return &Engine{
		arch:        codec,
		mem:         mem,
		mapping:     mapping,
		installer:   installer,
		ext:         NewExtMap(),
		installed:   make(map[Address]HookData),
		installedMu: NewMutex(),
		tables:      make(map[string]*HookTable),
		tablesMu:    NewMutex(),
	}, nil
}

// LoadModule reads path, parses its .mldyn/.mlhook sections with the
// metadata loader, and installs every resulting hook in chain order:
// dispatchers, then hooks, then locking hooks.
func (e *Engine) LoadModule(path string, imageLoadOffset Address, image []byte) (DynamicTable, error) {
	dyn, hooks, err := ParseMetadata(imageLoadOffset, image)
	if err != nil {
		return nil, err
	}

	for _, entry := range orderChain(hooks) {
		if _, err := e.PlaceHook(entry.Target, entry.Callback); err != nil {
			if entry.Optional {
				continue
			}
			return dyn, err
		}
	}

	e.tablesMu.Lock()
	e.tables[path] = &hooks
	e.tablesMu.Unlock()

	return dyn, nil
}

// PlaceHook is MLPlaceHook(from, to) -> Error: installs a hook with
// trampoline synthesis and records it for later MLDisableHook/removal.
func (e *Engine) PlaceHook(from, to Address) (Address, error) {
	data, err := e.installer.InstallWithTrampoline(from, to)
	if err != nil {
		return Null, err
	}

	e.installedMu.Lock()
	e.installed[from] = data
	e.installedMu.Unlock()

	return data.Trampoline, nil
}

// HookSize is MLHookSize(to) -> usize.
func (e *Engine) HookSize(to Address) uintptr {
	return uintptr(e.installer.HookSize(to))
}

// RemoveHook undoes a previously placed hook, the symmetric counterpart
// to PlaceHook. If from also appears in a loaded module's chain table
// (placed there by LoadModule), it is detached from that table by
// swap-remove against the owning bucket, keeping the chain table in
// sync with live installed state without rebuilding it.
func (e *Engine) RemoveHook(from Address) error {
	e.installedMu.Lock()
	data, ok := e.installed[from]
	if ok {
		delete(e.installed, from)
	}
	e.installedMu.Unlock()

	if !ok {
		return wrapErr(ItemNotFound, "no hook installed at %s", from)
	}

	e.tablesMu.Lock()
	for _, t := range e.tables {
		if t.RemoveEntry(from) {
			break
		}
	}
	e.tablesMu.Unlock()

	return e.installer.Remove(from, data)
}

// ModuleHookTable returns the chain table recorded the last time path was
// loaded through LoadModule, reflecting any dynamic hooks since removed
// via RemoveHook.
func (e *Engine) ModuleHookTable(path string) (HookTable, bool) {
	e.tablesMu.Lock()
	defer e.tablesMu.Unlock()
	t, ok := e.tables[path]
	if !ok {
		return HookTable{}, false
	}
	return *t, true
}

// InsertExt is MLInsertExt(addr, fnv_id) -> Bool.
func (e *Engine) InsertExt(fnvID uint64, addr Address) bool {
	return e.ext.Insert(fnvID, addr)
}

// RemoveExt is MLRemoveExt(fnv_id) -> Bool.
func (e *Engine) RemoveExt(fnvID uint64) bool {
	return e.ext.Remove(fnvID)
}

// ExtFromBase is MLExtFromBase(fnv_id) -> Address.
func (e *Engine) ExtFromBase(fnvID uint64) Address {
	return e.ext.Lookup(fnvID)
}

// GetModulePath is MLGetModulePath(handle) -> path.
func (e *Engine) GetModulePath(h ModuleHandle) (string, error) {
	return e.mapping.PathOf(h)
}

// GetModuleBase is MLGetModuleBase(handle) -> addr.
func (e *Engine) GetModuleBase(h ModuleHandle) (Address, error) {
	return e.mapping.BaseOf(h)
}

// GetModuleFromAddress backs MLGetModuleFromAddress(addr): it returns the
// mapped region containing addr, resolved via the mapping oracle's region
// lookup.
func (e *Engine) GetModuleFromAddress(addr Address) (Region, error) {
	return e.mapping.RegionOf(addr)
}

// ProcId is MLProcId() -> pid.
func (e *Engine) ProcId() int {
	return os.Getpid()
}

// Handle is MLHandle() -> handle: the running executable's own module
// handle, resolved through the mapping oracle's self-exe lookup.
func (e *Engine) Handle() (ModuleHandle, error) {
	path, err := selfExePath()
	if err != nil {
		return 0, err
	}
	region, err := e.mapping.RegionOfPath(path)
	if err != nil {
		return 0, err
	}
	return ModuleHandle(region.Base), nil
}

// GetModuleSymbolAddress is MLGetModuleSymbolAddress(handle, sym) ->
// addr: resolves sym against the DynamicTable produced when that module
// was last loaded through LoadModule, via a caller-supplied table. The
// engine does not itself cache per-module DynamicTables beyond a single
// LoadModule call; ownership of a module's symbol table belongs to
// whatever higher-level record layer the host builds on top.
func (e *Engine) GetModuleSymbolAddress(dyn DynamicTable, sym string) (Address, error) {
	for _, entry := range dyn {
		if entry.Sym == sym {
			return entry.Address, nil
		}
	}
	return Null, wrapErr(ItemNotFound, "symbol %q not found", sym)
}
