package main

import (
	"encoding/binary"
	"strings"
)

// peSection mirrors pe_reader.go's SectionHeader, decoded directly from an
// in-memory image buffer rather than a file, since the metadata loader's
// contract operates on an already-read image.
type peSection struct {
	name          string
	virtualAddr   uint32
	virtualSize   uint32
	rawSize       uint32
	pointerToData uint32
}

type peSectionSource struct {
	image     []byte
	bitness64 bool
	base      uint64
	sections  []peSection
}

const (
	peCOFFHeaderSize = 20
	peSectionHdrSize = 40
)

// newPESectionSource parses the DOS/COFF/Optional headers and section
// table from a raw PE image buffer, following the same header-walking
// order as pe_reader.go's readDOSHeader/readPEHeaders/readSections, field
// for field, just against a byte slice instead of an os.File.
func newPESectionSource(image []byte) (*peSectionSource, error) {
	if len(image) < 0x40 {
		return nil, wrapErr(InvalidData, "PE image too small for DOS header")
	}
	peOffset := binary.LittleEndian.Uint32(image[0x3C:0x40])
	if uint64(peOffset)+4+peCOFFHeaderSize > uint64(len(image)) {
		return nil, wrapErr(InvalidData, "PE offset %#x out of range", peOffset)
	}
	if string(image[peOffset:peOffset+4]) != "PE\x00\x00" {
		return nil, wrapErr(InvalidData, "bad PE signature at %#x", peOffset)
	}

	coff := image[peOffset+4 : peOffset+4+peCOFFHeaderSize]
	numSections := binary.LittleEndian.Uint16(coff[2:4])
	sizeOfOptional := binary.LittleEndian.Uint16(coff[16:18])

	optStart := peOffset + 4 + peCOFFHeaderSize
	if uint64(optStart)+uint64(sizeOfOptional) > uint64(len(image)) {
		return nil, wrapErr(InvalidData, "optional header out of range")
	}
	opt := image[optStart : optStart+uint32(sizeOfOptional)]
	if len(opt) < 2 {
		return nil, wrapErr(InvalidData, "optional header missing magic")
	}
	magic := binary.LittleEndian.Uint16(opt[0:2])

	var is64 bool
	var imageBase uint64
	switch magic {
	case 0x20B: // PE32+
		is64 = true
		if len(opt) < 32 {
			return nil, wrapErr(InvalidData, "PE32+ optional header truncated")
		}
		imageBase = binary.LittleEndian.Uint64(opt[24:32])
	case 0x10B: // PE32
		is64 = false
		if len(opt) < 32 {
			return nil, wrapErr(InvalidData, "PE32 optional header truncated")
		}
		imageBase = uint64(binary.LittleEndian.Uint32(opt[28:32]))
	default:
		return nil, wrapErr(InvalidData, "unknown optional header magic %#x", magic)
	}

	sectionStart := optStart + uint32(sizeOfOptional)
	sections := make([]peSection, 0, numSections)
	for i := uint16(0); i < numSections; i++ {
		off := sectionStart + uint32(i)*peSectionHdrSize
		if uint64(off)+peSectionHdrSize > uint64(len(image)) {
			break
		}
		hdr := image[off : off+peSectionHdrSize]
		name := strings.TrimRight(string(hdr[0:8]), "\x00")
		sections = append(sections, peSection{
			name:          name,
			virtualSize:   binary.LittleEndian.Uint32(hdr[8:12]),
			virtualAddr:   binary.LittleEndian.Uint32(hdr[12:16]),
			rawSize:       binary.LittleEndian.Uint32(hdr[16:20]),
			pointerToData: binary.LittleEndian.Uint32(hdr[20:24]),
		})
	}

	return &peSectionSource{image: image, bitness64: is64, base: imageBase, sections: sections}, nil
}

func (p *peSectionSource) is64() bool       { return p.bitness64 }
func (p *peSectionSource) imageBase() uint64 { return p.base }
func (p *peSectionSource) imageBytes() []byte { return p.image }

// section implements PE section discovery: match by section name, read
// contents at pointer_to_raw_data for size_of_raw_data.
func (p *peSectionSource) section(name string) ([]byte, bool) {
	for _, s := range p.sections {
		if s.name != name {
			continue
		}
		start := uint64(s.pointerToData)
		end := start + uint64(s.rawSize)
		if end > uint64(len(p.image)) {
			return nil, false
		}
		return p.image[start:end], true
	}
	return nil, false
}

// vaToOffset implements PE va→file-offset translation: the containing
// section is picked by strict inequality against its absolute
// virtual-address range, and boundary addresses are rejected.
func (p *peSectionSource) vaToOffset(va uint64) (int, bool) {
	for _, s := range p.sections {
		sectionVA := p.base + uint64(s.virtualAddr)
		if va > sectionVA && va < sectionVA+uint64(s.rawSize) {
			offset := va - sectionVA + uint64(s.pointerToData)
			return int(offset), true
		}
	}
	return 0, false
}
