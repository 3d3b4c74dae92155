package main

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// sectionSource locates the .mldyn/.mlhook sections within a parsed image
// and translates virtual addresses to file offsets, uniformly across PE
// and ELF.
type sectionSource interface {
	is64() bool
	imageBase() uint64
	section(name string) ([]byte, bool)
	vaToOffset(va uint64) (int, bool)
}

// openSectionSource sniffs image's container format from its magic bytes
// and returns the matching sectionSource: "MZ" for PE, the 0x7F'ELF'
// quartet for ELF.
func openSectionSource(image []byte) (sectionSource, error) {
	switch {
	case len(image) >= 2 && image[0] == 'M' && image[1] == 'Z':
		return newPESectionSource(image)
	case len(image) >= 4 && image[0] == 0x7F && image[1] == 'E' && image[2] == 'L' && image[3] == 'F':
		return newELFSectionSource(image)
	default:
		return nil, wrapErr(InvalidData, "unrecognized image magic")
	}
}

// ParseMetadata is the metadata loader's parse(image_load_offset, base_ptr,
// image) contract, collapsed to a pure function over image bytes: base_ptr
// is implicit since this implementation reads directly from the in-memory
// image buffer rather than a separately-mapped pointer.
func ParseMetadata(imageLoadOffset Address, image []byte) (DynamicTable, HookTable, error) {
	src, err := openSectionSource(image)
	if err != nil {
		return nil, HookTable{}, err
	}

	var dyn DynamicTable
	if data, ok := src.section(".mldyn"); ok {
		dyn = decodeDynamicSection(data, src, imageLoadOffset)
	}

	var hooks HookTable
	if data, ok := src.section(".mlhook"); ok {
		decodeHookSection(data, src, imageLoadOffset, &hooks)
	}

	return dyn, hooks, nil
}

// rebase applies the address-rebasing rule: when the image was loaded at
// a runtime address, every emitted field becomes
// imageLoadOffset - imageBase + field; an unloaded (load_offset == 0)
// parse keeps fields verbatim.
func rebase(imageLoadOffset Address, imageBase uint64, field uint64) Address {
	if imageLoadOffset.IsNull() {
		return Address(field)
	}
	return Address(uint64(imageLoadOffset) - imageBase + field)
}

// decodeDynamicSection walks data as a packed array of SecDynamic records,
// stopping at the terminator or a width that no longer fits, resolving
// each record's sym/record virtual addresses to strings and rejecting
// (skipping) any record whose required sym field is absent or whose
// decoded bytes are not valid UTF-8.
func decodeDynamicSection(data []byte, src sectionSource, imageLoadOffset Address) DynamicTable {
	var table DynamicTable
	offset := 0
	for offset < len(data) {
		rec, width, terminator, ok := decodeSecDynamic(data[offset:], src.is64())
		if !ok || terminator {
			break
		}
		offset += width

		sym, symOK := readCStringAtVA(src, rec.symVA)
		if !symOK {
			if VerboseMode {
				fmt.Fprintf(os.Stderr, "metadata: dropping .mldyn record at %#x: absent or malformed sym\n", rec.addr)
			}
			continue
		}
		record := ""
		if rec.recVA != 0 {
			if r, recOK := readCStringAtVA(src, rec.recVA); recOK {
				record = r
			}
		}

		table = append(table, DynamicEntry{
			Address: rebase(imageLoadOffset, src.imageBase(), rec.addr),
			Sym:     sym,
			Record:  record,
		})
	}
	return table
}

// decodeHookSection walks data as a packed array of SecHook records,
// bucketing each into table per its flags.
func decodeHookSection(data []byte, src sectionSource, imageLoadOffset Address, table *HookTable) {
	offset := 0
	for offset < len(data) {
		rec, width, terminator, ok := decodeSecHook(data[offset:], src.is64())
		if !ok || terminator {
			break
		}
		offset += width

		target := rebase(imageLoadOffset, src.imageBase(), rec.target)
		callback := rebase(imageLoadOffset, src.imageBase(), rec.callback)
		table.addEntry(rec.flags, target, callback)
	}
}

// readCStringAtVA translates va to a file offset via src, then reads a
// NUL-terminated byte run and validates it as UTF-8.
func readCStringAtVA(src sectionSource, va uint64) (string, bool) {
	if va == 0 {
		return "", false
	}
	off, ok := src.vaToOffset(va)
	if !ok {
		return "", false
	}
	return readCString(src, off)
}

// readCString reads bytes from the image backing src starting at off up
// to the next NUL, validating the result as UTF-8; a run that reaches the
// image end without a NUL is rejected. Concrete
// sectionSource implementations expose their backing buffer via
// imageBytes so this helper stays format-agnostic.
func readCString(src sectionSource, off int) (string, bool) {
	raw, ok := src.(interface{ imageBytes() []byte })
	if !ok {
		return "", false
	}
	image := raw.imageBytes()
	if off < 0 || off >= len(image) {
		return "", false
	}
	end := off
	for end < len(image) && image[end] != 0 {
		end++
	}
	if end >= len(image) {
		return "", false
	}
	s := image[off:end]
	if !utf8.Valid(s) {
		return "", false
	}
	return string(s), true
}
