package main

import (
	"bytes"
	"debug/elf"
)

// elfSectionSource resolves the analogous section-lookup-by-name behavior
// for ELF images that PE section discovery implements directly. Grounded
// on hotreload_unix.go's debug/elf usage (elf.Open + Symbols lookup),
// adapted from a path-based elf.Open to elf.NewFile against an in-memory
// image buffer, since the metadata loader's contract takes an already-read
// image rather than a file path.
type elfSectionSource struct {
	image     []byte
	bitness64 bool
	base      uint64
	file      *elf.File
}

func newELFSectionSource(image []byte) (*elfSectionSource, error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, wrapErr(InvalidData, "elf.NewFile: %v", err)
	}

	// The load bias is the lowest PT_LOAD segment's virtual address;
	// position-independent objects link at 0, non-PIE executables at
	// their fixed base.
	base := uint64(0)
	haveLoad := false
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if !haveLoad || p.Vaddr < base {
			base = p.Vaddr
			haveLoad = true
		}
	}

	return &elfSectionSource{
		image:     image,
		bitness64: f.Class == elf.ELFCLASS64,
		base:      base,
		file:      f,
	}, nil
}

func (e *elfSectionSource) is64() bool        { return e.bitness64 }
func (e *elfSectionSource) imageBase() uint64 { return e.base }
func (e *elfSectionSource) imageBytes() []byte { return e.image }

// section matches the same "match section name" discovery rule used for
// PE, applied to ELF section headers via the string table debug/elf
// already resolves.
func (e *elfSectionSource) section(name string) ([]byte, bool) {
	s := e.file.Section(name)
	if s == nil {
		return nil, false
	}
	start := s.Offset
	end := start + s.Size
	if end > uint64(len(e.image)) {
		return nil, false
	}
	return e.image[start:end], true
}

// vaToOffset applies the same strict-inequality containing-section rule
// used for PE, against ELF's sh_addr/sh_offset pair.
func (e *elfSectionSource) vaToOffset(va uint64) (int, bool) {
	for _, s := range e.file.Sections {
		if s.Addr == 0 || s.Size == 0 {
			continue
		}
		if va > s.Addr && va < s.Addr+s.Size {
			return int(va - s.Addr + s.Offset), true
		}
	}
	return 0, false
}
