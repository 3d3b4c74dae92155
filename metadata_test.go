package main

import (
	"encoding/binary"
	"testing"
)

// buildPE64Image constructs a minimal synthetic PE32+ image with one
// .rdata section holding a C string and one .mldyn section holding a
// single SecDynamic64 record followed by a zero-terminator, for a
// metadata parse (PE64) round trip.
func buildPE64Image(t *testing.T, imageBase uint64, sym uint64, symVA uint64) []byte {
	t.Helper()

	const (
		peOffset      = 0x80
		coffSize      = 20
		optSize       = 32
		sectionHdrLen = 40
	)

	img := make([]byte, 0x200)
	img[0], img[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(img[0x3C:0x40], peOffset)
	copy(img[peOffset:peOffset+4], []byte("PE\x00\x00"))

	coff := img[peOffset+4 : peOffset+4+coffSize]
	binary.LittleEndian.PutUint16(coff[2:4], 2) // NumberOfSections
	binary.LittleEndian.PutUint16(coff[16:18], optSize)

	optStart := peOffset + 4 + coffSize
	opt := img[optStart : optStart+optSize]
	binary.LittleEndian.PutUint16(opt[0:2], 0x20B) // PE32+
	binary.LittleEndian.PutUint64(opt[24:32], imageBase)

	sectionStart := optStart + optSize
	rdataHdr := img[sectionStart : sectionStart+sectionHdrLen]
	copy(rdataHdr[0:8], []byte(".rdata\x00\x00"))
	binary.LittleEndian.PutUint32(rdataHdr[12:16], 0x2000) // VirtualAddress
	binary.LittleEndian.PutUint32(rdataHdr[16:20], 16)      // SizeOfRawData
	binary.LittleEndian.PutUint32(rdataHdr[20:24], 0x124)   // PointerToRawData

	mldynHdr := img[sectionStart+sectionHdrLen : sectionStart+2*sectionHdrLen]
	copy(mldynHdr[0:8], []byte(".mldyn\x00\x00"))
	binary.LittleEndian.PutUint32(mldynHdr[12:16], 0x3000) // VirtualAddress
	binary.LittleEndian.PutUint32(mldynHdr[16:20], 48)      // SizeOfRawData
	binary.LittleEndian.PutUint32(mldynHdr[20:24], 0x134)   // PointerToRawData

	copy(img[0x124+4:0x124+8], []byte("foo\x00"))

	rec := img[0x134 : 0x134+24]
	binary.LittleEndian.PutUint64(rec[0:8], 0x1000) // addr
	binary.LittleEndian.PutUint64(rec[8:16], symVA) // sym VA
	// record VA left zero (absent record -> empty string)
	// next 24 bytes are the all-zero terminator, already zero-filled

	return img
}

func TestParseMetadataPE64Scenario(t *testing.T) {
	const imageBase = 0x140000000
	const symVA = imageBase + 0x2004
	img := buildPE64Image(t, imageBase, 0, symVA)

	loadOffset := Address(0x7F0000000000)
	dyn, hooks, err := ParseMetadata(loadOffset, img)
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if len(hooks.Dispatchers)+len(hooks.Hooks)+len(hooks.LockingHooks) != 0 {
		t.Fatalf("expected no hooks without a .mlhook section")
	}
	if len(dyn) != 1 {
		t.Fatalf("expected exactly one dynamic entry, got %d", len(dyn))
	}

	want := Address(uint64(loadOffset) - imageBase + 0x1000)
	got := dyn[0]
	if got.Address != want {
		t.Fatalf("rebased address = %s, want %s", got.Address, want)
	}
	if got.Sym != "foo" {
		t.Fatalf("sym = %q, want %q", got.Sym, "foo")
	}
	if got.Record != "" {
		t.Fatalf("record = %q, want empty", got.Record)
	}
}

func TestParseMetadataUnloadedKeepsFieldsVerbatim(t *testing.T) {
	const imageBase = 0x140000000
	const symVA = imageBase + 0x2004
	img := buildPE64Image(t, imageBase, 0, symVA)

	dyn, _, err := ParseMetadata(Null, img)
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if len(dyn) != 1 || dyn[0].Address != Address(0x1000) {
		t.Fatalf("expected verbatim address 0x1000 for a zero load offset, got %+v", dyn)
	}
}

func TestParseMetadataRejectsUnknownMagic(t *testing.T) {
	_, _, err := ParseMetadata(Null, []byte{0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected an error for an unrecognized image magic")
	}
}

func TestHookBucketingDispatcherForcesFlagsOff(t *testing.T) {
	var table HookTable
	table.addEntry(FlagDispatcher|FlagPreload|FlagOptional, Address(0x1000), Address(0x2000))

	if len(table.Dispatchers) != 1 {
		t.Fatalf("expected one dispatcher entry, got %d", len(table.Dispatchers))
	}
	d := table.Dispatchers[0]
	if d.Preload || d.Optional || d.Priority || d.Locking {
		t.Fatalf("dispatcher entry should force preload/optional/priority/locking false, got %+v", d)
	}
}

func TestHookBucketingIdempotent(t *testing.T) {
	var a, b HookTable
	a.addEntry(FlagPriority, Address(1), Address(2))
	a.addEntry(FlagLocking, Address(3), Address(4))

	b.addEntry(FlagLocking, Address(3), Address(4))
	b.addEntry(FlagPriority, Address(1), Address(2))

	if len(a.Hooks) != len(b.Hooks) || len(a.LockingHooks) != len(b.LockingHooks) {
		t.Fatalf("bucketing should be order-independent: a=%+v b=%+v", a, b)
	}
}

func TestDecodeSecDynamicTerminator(t *testing.T) {
	buf := make([]byte, secDynamicSize64)
	_, _, terminator, ok := decodeSecDynamic(buf, true)
	if !ok || !terminator {
		t.Fatal("an all-zero record must be recognized as the terminator")
	}
}
