package main

import "testing"

// newTestEngine wires an Engine the same way NewEngine does, but over
// fakeMemory/fakeMapping so PlaceHook/RemoveHook can be driven against a
// real decodable prolog without touching the live process's own memory.
func newTestEngine(t *testing.T, codeBuf []byte) (*Engine, *fakeMemory) {
	t.Helper()
	mem := newFakeMemory(codeBuf, ProtRead|ProtWrite|ProtExec)
	mapping := newFakeMapping(Region{Base: mem.base, End: mem.base.Add(int64(len(codeBuf))), Mask: mem.mask})
	trampoline, err := NewTrampolineArena(newFakeMemory(nil, ProtRead|ProtWrite|ProtExec), 4096)
	if err != nil {
		t.Fatalf("NewTrampolineArena failed: %v", err)
	}
	codec := &x86Codec{is64: true}
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
	}, mem
}

// TestEnginePlaceHookRemoveHookRoundTrip exercises PlaceHook end to end:
// the installer must pick a strategy, synthesize a trampoline, record the
// hook, and RemoveHook must restore the original bytes.
func TestEnginePlaceHookRemoveHookRoundTrip(t *testing.T) {
	buf := buf64(64, 0x90)
	// push rbp; mov rbp, rsp; sub rsp, 0x20; mov eax, imm32; nop -- 14 bytes.
	original := []byte{
		0x55, 0x48, 0x89, 0xE5, 0x48, 0x83, 0xEC, 0x20,
		0xB8, 0x78, 0x56, 0x34, 0x12, 0x90,
	}
	copy(buf, original)
	e, mem := newTestEngine(t, buf)

	from := mem.base
	trampoline, err := e.PlaceHook(from, Address(0x4141414141414141))
	if err != nil {
		t.Fatalf("PlaceHook failed: %v", err)
	}
	if trampoline.IsNull() {
		t.Fatal("expected a non-null trampoline address")
	}
	if _, ok := e.installed[from]; !ok {
		t.Fatal("expected the hook to be recorded in e.installed")
	}

	if err := e.RemoveHook(from); err != nil {
		t.Fatalf("RemoveHook failed: %v", err)
	}
	for i, want := range original {
		if mem.buf[i] != want {
			t.Fatalf("byte %d after RemoveHook = %#x, want original %#x", i, mem.buf[i], want)
		}
	}
	if _, ok := e.installed[from]; ok {
		t.Fatal("expected the hook entry to be gone after RemoveHook")
	}
}

func TestEngineRemoveHookUnknownAddressErrors(t *testing.T) {
	e, mem := newTestEngine(t, buf64(32, 0x90))
	if err := e.RemoveHook(mem.base.Add(8)); err == nil {
		t.Fatal("expected an error removing a hook that was never installed")
	}
}

func TestEngineHookSizeMatchesJumpEncoding(t *testing.T) {
	e, _ := newTestEngine(t, buf64(32, 0x90))
	to := Address(0x4141414141414141)
	want := len(e.arch.GetJumpData(to))
	if got := e.HookSize(to); got != uintptr(want) {
		t.Fatalf("HookSize = %d, want %d", got, want)
	}
}

func TestEngineExtMapInsertLookupRemove(t *testing.T) {
	e, mem := newTestEngine(t, buf64(16, 0))
	id := FNVHash("my_function")

	if !e.InsertExt(id, mem.base) {
		t.Fatal("expected InsertExt to succeed on a fresh id")
	}
	if got := e.ExtFromBase(id); got != mem.base {
		t.Fatalf("ExtFromBase = %s, want %s", got, mem.base)
	}
	if !e.RemoveExt(id) {
		t.Fatal("expected RemoveExt to report true for a present id")
	}
	if got := e.ExtFromBase(id); !got.IsNull() {
		t.Fatalf("ExtFromBase after RemoveExt = %s, want Null", got)
	}
}

func TestEngineGetModuleSymbolAddressFindsAndMisses(t *testing.T) {
	e, _ := newTestEngine(t, buf64(16, 0))
	dyn := DynamicTable{
		{Address: Address(0x1000), Sym: "foo", Record: ""},
		{Address: Address(0x2000), Sym: "bar", Record: ""},
	}

	addr, err := e.GetModuleSymbolAddress(dyn, "bar")
	if err != nil {
		t.Fatalf("GetModuleSymbolAddress(bar) failed: %v", err)
	}
	if addr != Address(0x2000) {
		t.Fatalf("GetModuleSymbolAddress(bar) = %s, want 0x2000", addr)
	}

	if _, err := e.GetModuleSymbolAddress(dyn, "missing"); err == nil {
		t.Fatal("expected an error looking up a symbol absent from the table")
	}
}

func TestEngineGetModuleFromAddressUsesMapping(t *testing.T) {
	e, mem := newTestEngine(t, buf64(16, 0))
	region, err := e.GetModuleFromAddress(mem.base)
	if err != nil {
		t.Fatalf("GetModuleFromAddress failed: %v", err)
	}
	if region.Base != mem.base {
		t.Fatalf("GetModuleFromAddress region.Base = %s, want %s", region.Base, mem.base)
	}
}

func TestEngineRemoveHookDetachesFromModuleTable(t *testing.T) {
	e, mem := newTestEngine(t, buf64(16, 0))
	from := mem.base
	to := Address(0x4141414141414141)

	table := &HookTable{Hooks: []HookEntry{{Target: from, Callback: to}}}
	e.tables["lib.so"] = table
	e.installed[from] = HookData{Kind: HookInline, OriginalBytes: []byte{0, 0}}

	if err := e.RemoveHook(from); err != nil {
		t.Fatalf("RemoveHook failed: %v", err)
	}
	if got, ok := e.ModuleHookTable("lib.so"); !ok || len(got.Hooks) != 0 {
		t.Fatalf("expected the entry detached from lib.so's chain table, got %+v", got)
	}
}

func TestEngineProcIdMatchesOSGetpid(t *testing.T) {
	e, _ := newTestEngine(t, buf64(16, 0))
	if e.ProcId() <= 0 {
		t.Fatalf("ProcId() = %d, want a positive pid", e.ProcId())
	}
}
