package main

import "encoding/binary"

// armCodec implements ArchCodec for ARM32 (A32) and AArch64, grounded on
// arm64_instructions.go's fixed-width 32-bit instruction encoding
// (encoding/binary.LittleEndian.PutUint32). ARM targets use an
// absolute-address branch sequence rather than x86's push-return trick,
// since ARM has no variable-length push.
type armCodec struct {
	is64 bool
}

const armInsnSize = 4

func (a *armCodec) MaxInsnSize() int { return armInsnSize }

// GetTrapData returns BRK #0 on AArch64 (D4200000) or UDF #0 on ARM32
// (E7F000F0, the permanently-undefined encoding reserved by the ARM ARM).
func (a *armCodec) GetTrapData() []byte {
	buf := make([]byte, armInsnSize)
	if a.is64 {
		binary.LittleEndian.PutUint32(buf, 0xD4200000)
	} else {
		binary.LittleEndian.PutUint32(buf, 0xE7F000F0)
	}
	return buf
}

// GetJumpData builds an absolute branch: LDR xN, [PC, #0]; BR xN; <8-byte
// target literal> on AArch64 (using X17, IP1, a scratch register the AAPCS64
// reserves for linker veneers so no caller register is clobbered), or
// LDR pc, [pc, #-4]; <4-byte target literal> on ARM32.
func (a *armCodec) GetJumpData(target Address) []byte {
	if a.is64 {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint32(buf[0:4], 0x58000051) // LDR x17, #8
		binary.LittleEndian.PutUint32(buf[4:8], 0xD61F0220) // BR x17
		binary.LittleEndian.PutUint64(buf[8:16], uint64(target))
		return buf
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], 0xE51FF004) // LDR pc, [pc, #-4]
	binary.LittleEndian.PutUint32(buf[4:8], uint32(target))
	return buf
}

func (a *armCodec) MaxJumpSize() int {
	return len(a.GetJumpData(Null))
}

// GetBackjumpData encodes a B (branch) instruction landing offset bytes
// before this instruction's own address, in 4-byte-aligned units as
// AArch64/ARM32 both require for the immediate branch encoding. On ARM32
// the branch base is this instruction's address plus 8.
func (a *armCodec) GetBackjumpData(offset uint8) []byte {
	buf := make([]byte, armInsnSize)
	if !a.is64 {
		imm24 := (-(int32(offset) + 8) / armInsnSize) & 0x00FFFFFF
		binary.LittleEndian.PutUint32(buf, 0xEA000000|uint32(imm24)) // B <label> (cond AL)
		return buf
	}
	imm26 := (-(int32(offset)) / armInsnSize) & 0x03FFFFFF
	insn := uint32(0x14000000) | uint32(imm26) // B <label>
	binary.LittleEndian.PutUint32(buf, insn)
	return buf
}

// GetOverwriteSize walks whole 4-byte instructions, since ARM/AArch64 have
// no variable-length encoding: every instruction overwritten by the jump
// block rounds up to a whole number of words, stopping after the first
// branch instruction is included unless only NOP padding follows.
func (a *armCodec) GetOverwriteSize(prolog []byte) int {
	size := 0
	flowRedirected := false
	for size+armInsnSize <= len(prolog) {
		word := binary.LittleEndian.Uint32(prolog[size : size+armInsnSize])
		isFlow := a.isBranch(word)
		isPadding := a.isNop(word)
		if flowRedirected && !isPadding {
			break
		}
		size += armInsnSize
		if isFlow {
			flowRedirected = true
		}
	}
	return size
}

// GetPaddingSize counts whole NOP words (AArch64: D503201F, ARM32: E320F000)
// scanning backward through prologReverse (word 0 = the word immediately
// preceding the hook target).
func (a *armCodec) GetPaddingSize(prologReverse []byte) int {
	size := 0
	for size+armInsnSize <= len(prologReverse) {
		word := binary.LittleEndian.Uint32(prologReverse[size : size+armInsnSize])
		if !a.isNop(word) {
			break
		}
		size += armInsnSize
	}
	return size
}

func (a *armCodec) isNop(word uint32) bool {
	if a.is64 {
		return word == 0xD503201F
	}
	return word == 0xE320F000
}

// isBranch recognizes unconditional/conditional branch and return
// instructions: AArch64's B/BL (top 6 bits 000101/100101), BR/BLR/RET
// (top 11 bits 11010110000/11010110001/11010110010), or ARM32's B/BL
// (condition nibble then 101) and BX Rn.
func (a *armCodec) isBranch(word uint32) bool {
	if a.is64 {
		top6 := word >> 26
		if top6 == 0b000101 || top6 == 0b100101 { // B, BL
			return true
		}
		top11 := word >> 21
		return top11 >= 0b11010110000 && top11 <= 0b11010110010 // BR/BLR/RET family
	}
	top3 := (word >> 25) & 0x7
	if top3 == 0b101 { // B/BL
		return true
	}
	return (word & 0x0FFFFFF0) == 0x012FFF10 // BX Rn
}

// Relocate checks that the displaced prolog is a whole number of
// instruction words, then returns it unchanged: fixed-width ARM instructions never change size
// across re-anchoring the way relocate might for a variable-length ISA,
// and GetOverwriteSize guarantees at most one trailing branch is ever
// displaced, whose PC-relative immediate this codec does not attempt to
// rebase. A displaced branch landing outside the relocated block is the
// caller's responsibility to avoid by choosing overwrite boundaries that
// don't split basic blocks, the same assumption the x86 codec's Relocate
// makes.
func (a *armCodec) Relocate(code []byte, newIP Address) ([]byte, error) {
	if len(code)%armInsnSize != 0 {
		return nil, wrapErr(InvalidData, "relocate: %d is not a multiple of the instruction width", len(code))
	}
	out := make([]byte, len(code))
	copy(out, code)
	return out, nil
}
