package main

import (
	"fmt"
	"os"
)

// Installer given (target, callback), chooses a patching strategy,
// applies it through Memory using ArchCodec, records the displaced bytes
// for later undo, and hands back a trampoline address that resumes the
// original function. There is no directly analogous file elsewhere in
// the corpus for "choose among three patching tiers", so this file's
// shape follows the tiered procedure directly rather than an existing
// source file.
type Installer struct {
	codec      ArchCodec
	mem        Memory
	mapping    Mapping
	trampoline *TrampolineArena
	patchMu    Mutex
}

// NewInstaller wires the arch codec, memory, mapping oracle and the
// trampoline arena into one installer, serializing all patching through a
// single patching mutex.
func NewInstaller(codec ArchCodec, mem Memory, mapping Mapping, trampoline *TrampolineArena) *Installer {
	return &Installer{
		codec:      codec,
		mem:        mem,
		mapping:    mapping,
		trampoline: trampoline,
		patchMu:    NewMutex(),
	}
}

// PlaceInternal implements place_internal(from, to) -> HookData: the
// tiered inline/back-jump/trap strategy, steps 1-4.
func (in *Installer) PlaceInternal(from, to Address) (HookData, error) {
	if _, err := in.mapping.RegionOf(from); err != nil {
		return HookData{}, err
	}

	in.patchMu.Lock()
	defer in.patchMu.Unlock()

	jump := in.codec.GetJumpData(to)

	readWindow := len(jump) + in.codec.MaxInsnSize()
	prolog, err := in.read(from, uintptr(readWindow))
	if err != nil {
		return HookData{}, err
	}
	prologMax := in.codec.GetOverwriteSize(prolog)

	// 1. Inline.
	if len(jump) <= prologMax {
		original, err := in.read(from, uintptr(len(jump)))
		if err != nil {
			return HookData{}, err
		}
		if err := in.mem.Copy(from, jump); err != nil {
			return HookData{}, err
		}
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "PlaceInternal(%s, %s) -> inline, %d bytes\n", from, to, len(jump))
		}
		return HookData{Kind: HookInline, PreambleOffset: 0, OriginalBytes: original}, nil
	}

	// 2. Back-jump.
	backjump := in.codec.GetBackjumpData(uint8(len(jump)))
	if len(backjump) <= prologMax {
		precedingReversed, err := in.readReversedPreceding(from, uintptr(len(jump)))
		if err == nil {
			paddingMax := in.codec.GetPaddingSize(precedingReversed)
			if len(jump) <= paddingMax {
				writeAt := from.Add(-int64(len(jump)))
				original, err := in.read(writeAt, uintptr(len(jump)+len(backjump)))
				if err != nil {
					return HookData{}, err
				}
				payload := make([]byte, 0, len(jump)+len(backjump))
				payload = append(payload, jump...)
				payload = append(payload, backjump...)
				if err := in.mem.Copy(writeAt, payload); err != nil {
					return HookData{}, err
				}
				if VerboseMode {
					fmt.Fprintf(os.Stderr, "PlaceInternal(%s, %s) -> backjump, %d+%d bytes\n", from, to, len(jump), len(backjump))
				}
				return HookData{Kind: HookBackjump, PreambleOffset: uintptr(len(jump)), OriginalBytes: original}, nil
			}
		}
	}

	// 3. Trap. GetOverwriteSize never returns more than len(prolog), so
	// len(trap) <= prologMax already guarantees the trap fits within what
	// was read; no separate truncation against len(prolog) is needed.
	trap := in.codec.GetTrapData()
	if len(trap) <= prologMax {
		original, err := in.read(from, uintptr(len(trap)))
		if err != nil {
			return HookData{}, err
		}
		if err := in.mem.Copy(from, trap); err != nil {
			return HookData{}, err
		}
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "PlaceInternal(%s, %s) -> trap, %d bytes\n", from, to, len(trap))
		}
		return HookData{Kind: HookTrap, PreambleOffset: 0, OriginalBytes: original}, nil
	}

	return HookData{}, wrapErr(NoMemory, "no patching strategy fits at %s (overwrite budget %d bytes)", from, prologMax)
}

// PlacePublic implements place_public(from, to) -> bytes_written: the
// unconditional jump write, succeeding iff the page is (or can be made)
// writable.
func (in *Installer) PlacePublic(from, to Address) (int, error) {
	in.patchMu.Lock()
	defer in.patchMu.Unlock()

	jump := in.codec.GetJumpData(to)
	if err := in.mem.Copy(from, jump); err != nil {
		return 0, err
	}
	return len(jump), nil
}

// Remove writes data.OriginalBytes back to from - data.PreambleOffset and
// flushes: the symmetric undo of PlaceInternal.
func (in *Installer) Remove(from Address, data HookData) error {
	in.patchMu.Lock()
	defer in.patchMu.Unlock()

	writeAt := from.Add(-int64(data.PreambleOffset))
	if err := in.mem.Copy(writeAt, data.OriginalBytes); err != nil {
		return err
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "Remove(%s) -> restored %d bytes at %s\n", from, len(data.OriginalBytes), writeAt)
	}
	return nil
}

// InstallWithTrampoline installs a hook at from with PlaceInternal
// (inline, back-jump or trap) and additionally synthesizes a trampoline that resumes original execution:
// the displaced bytes are relocated into the arena and a jump back to
// the address immediately following the original prolog is appended.
func (in *Installer) InstallWithTrampoline(from, to Address) (HookData, error) {
	data, err := in.PlaceInternal(from, to)
	if err != nil {
		return HookData{}, err
	}

	resumeAt := from.Add(int64(len(data.OriginalBytes)) - int64(data.PreambleOffset))
	trampAddr, err := in.trampoline.Place(in.codec, data.OriginalBytes, resumeAt)
	if err != nil {
		return data, err
	}
	data.Trampoline = trampAddr
	return data, nil
}

// HookSize reports MLHookSize(to)'s answer: the byte length the jump
// encoding for to would occupy, without installing anything.
func (in *Installer) HookSize(to Address) int {
	return len(in.codec.GetJumpData(to))
}

func (in *Installer) read(addr Address, size uintptr) ([]byte, error) {
	region, err := in.mem.Query(addr)
	if err != nil {
		return nil, err
	}
	if !region.Contains(addr) {
		return nil, wrapErr(ItemNotFound, "read: %s is outside the queried region", addr)
	}
	return viewBytes(addr, size), nil
}

// readReversedPreceding reads the n bytes immediately before from and
// returns them reversed: index 0 is the byte at from-1, matching
// GetPaddingSize's documented prologReverse convention.
func (in *Installer) readReversedPreceding(from Address, n uintptr) ([]byte, error) {
	start := from.Add(-int64(n))
	forward, err := in.read(start, n)
	if err != nil {
		return nil, err
	}
	reversed := make([]byte, len(forward))
	for i, b := range forward {
		reversed[len(forward)-1-i] = b
	}
	return reversed, nil
}
