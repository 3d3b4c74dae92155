package main

import (
	"encoding/binary"
	"testing"
)

func alignUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

// buildELF64Image constructs a minimal, well-formed ELF64 executable with
// one PT_LOAD segment, a .rodata section holding a symbol name string, and
// a .mldyn section holding one SecDynamic64 record plus its terminator --
// the ELF counterpart to metadata_test.go's buildPE64Image, confirming ELF
// vaToOffset/base semantics against a real debug/elf parse.
func buildELF64Image(t *testing.T, imageBase, dynAddr, symVA, recVA uint64) []byte {
	t.Helper()

	const (
		ehdrSize = 64
		phdrSize = 56
		shdrSize = 64
	)

	rodata := []byte("\x00\x00\x00\x00foo\x00")

	rec := make([]byte, secDynamicSize64)
	binary.LittleEndian.PutUint64(rec[0:8], dynAddr)
	binary.LittleEndian.PutUint64(rec[8:16], symVA)
	binary.LittleEndian.PutUint64(rec[16:24], recVA)
	terminator := make([]byte, secDynamicSize64)
	mldyn := append(append([]byte{}, rec...), terminator...)

	shstrtab := []byte{0}
	rodataNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".rodata\x00")...)
	mldynNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".mldyn\x00")...)
	shstrtabNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".shstrtab\x00")...)

	phdrOff := ehdrSize
	rodataOff := alignUp(phdrOff+phdrSize, 16)
	mldynOff := alignUp(rodataOff+len(rodata), 16)
	shstrtabOff := alignUp(mldynOff+len(mldyn), 16)
	shOff := alignUp(shstrtabOff+len(shstrtab), 16)
	totalSize := shOff + 4*shdrSize

	img := make([]byte, totalSize)

	copy(img[0:4], []byte{0x7F, 'E', 'L', 'F'})
	img[4] = 2 // ELFCLASS64
	img[5] = 1 // ELFDATA2LSB
	img[6] = 1 // EI_VERSION = EV_CURRENT
	binary.LittleEndian.PutUint16(img[16:18], 2)  // e_type: ET_EXEC
	binary.LittleEndian.PutUint16(img[18:20], 62) // e_machine: EM_X86_64
	binary.LittleEndian.PutUint32(img[20:24], 1)  // e_version
	binary.LittleEndian.PutUint64(img[32:40], uint64(phdrOff))
	binary.LittleEndian.PutUint64(img[40:48], uint64(shOff))
	binary.LittleEndian.PutUint16(img[52:54], ehdrSize)
	binary.LittleEndian.PutUint16(img[54:56], phdrSize)
	binary.LittleEndian.PutUint16(img[56:58], 1) // e_phnum
	binary.LittleEndian.PutUint16(img[58:60], shdrSize)
	binary.LittleEndian.PutUint16(img[60:62], 4) // e_shnum
	binary.LittleEndian.PutUint16(img[62:64], 3) // e_shstrndx

	phdr := img[phdrOff : phdrOff+phdrSize]
	binary.LittleEndian.PutUint32(phdr[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(phdr[4:8], 5) // PF_R|PF_X
	binary.LittleEndian.PutUint64(phdr[16:24], imageBase)
	binary.LittleEndian.PutUint64(phdr[24:32], imageBase)
	binary.LittleEndian.PutUint64(phdr[32:40], uint64(totalSize))
	binary.LittleEndian.PutUint64(phdr[40:48], uint64(totalSize))
	binary.LittleEndian.PutUint64(phdr[48:56], 0x1000)

	copy(img[rodataOff:], rodata)
	copy(img[mldynOff:], mldyn)
	copy(img[shstrtabOff:], shstrtab)

	writeShdr := func(idx int, nameOff uint32, shType uint32, addr, offset, size uint64) {
		s := img[shOff+idx*shdrSize : shOff+(idx+1)*shdrSize]
		binary.LittleEndian.PutUint32(s[0:4], nameOff)
		binary.LittleEndian.PutUint32(s[4:8], shType)
		binary.LittleEndian.PutUint64(s[16:24], addr)
		binary.LittleEndian.PutUint64(s[24:32], offset)
		binary.LittleEndian.PutUint64(s[32:40], size)
	}
	writeShdr(0, 0, 0, 0, 0, 0)
	writeShdr(1, uint32(rodataNameOff), 1, imageBase+0x2000, uint64(rodataOff), uint64(len(rodata)))
	writeShdr(2, uint32(mldynNameOff), 1, imageBase+0x3000, uint64(mldynOff), uint64(len(mldyn)))
	writeShdr(3, uint32(shstrtabNameOff), 3, 0, uint64(shstrtabOff), uint64(len(shstrtab)))

	return img
}

func TestParseMetadataELF64RoundTrip(t *testing.T) {
	const imageBase = 0x400000
	const dynAddr = 0x401050
	symVA := uint64(imageBase + 0x2004)

	img := buildELF64Image(t, imageBase, dynAddr, symVA, 0)
	loadOffset := Address(0x7F0000000000)

	dyn, hooks, err := ParseMetadata(loadOffset, img)
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if len(hooks.Dispatchers)+len(hooks.Hooks)+len(hooks.LockingHooks) != 0 {
		t.Fatal("expected no hooks without a .mlhook section")
	}
	if len(dyn) != 1 {
		t.Fatalf("expected exactly one dynamic entry, got %d", len(dyn))
	}

	want := Address(uint64(loadOffset) - imageBase + dynAddr)
	if dyn[0].Address != want {
		t.Fatalf("rebased address = %s, want %s", dyn[0].Address, want)
	}
	if dyn[0].Sym != "foo" {
		t.Fatalf("sym = %q, want %q", dyn[0].Sym, "foo")
	}
}

func TestParseMetadataELF64BaseIsLowestLoadSegment(t *testing.T) {
	const imageBase = 0x400000
	symVA := uint64(imageBase + 0x2000)
	img := buildELF64Image(t, imageBase, 0x401050, symVA, 0)

	src, err := openSectionSource(img)
	if err != nil {
		t.Fatalf("openSectionSource failed: %v", err)
	}
	if src.imageBase() != imageBase {
		t.Fatalf("imageBase() = %#x, want %#x", src.imageBase(), uint64(imageBase))
	}
	if !src.is64() {
		t.Fatal("expected is64() true for an ELFCLASS64 image")
	}
}
