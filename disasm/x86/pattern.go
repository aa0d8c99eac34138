package x86

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// unsupportedForSignature is emitted as-is, with no wildcards (spec §4.1
// rule 5) — SSE move/xor forms whose operand encoding the wildcarding
// rules below don't model cleanly.
var unsupportedForSignature = map[x86asm.Op]bool{
	x86asm.MOVUPS: true, x86asm.MOVAPS: true, x86asm.XORPS: true,
}

// stackRegs is the {RSP, RBP, ESP, EBP} set from rule 3.
var stackRegs = map[x86asm.Reg]bool{
	x86asm.RSP: true, x86asm.RBP: true, x86asm.ESP: true, x86asm.EBP: true,
}

var immWildcardOps = map[x86asm.Op]bool{
	x86asm.MOV: true, x86asm.ADD: true, x86asm.SUB: true, x86asm.INC: true, x86asm.DEC: true,
}

// Pattern produces the wildcarded hex pattern for inst, whose raw encoded
// bytes are raw (len(raw) == inst.Len), per spec §4.1.
func Pattern(inst x86asm.Inst, raw []byte) (string, error) {
	size := len(raw)
	hexNibbles := []byte(toHexNibbles(raw))

	// Rule 6: NOP and trap instructions are fully wildcarded.
	if inst.Op == x86asm.NOP || traps[inst.Op] {
		return strings.Repeat("?", size*2), nil
	}

	// Rule 5: unsupported-for-signature instructions are emitted as-is.
	if unsupportedForSignature[inst.Op] {
		return string(hexNibbles), nil
	}

	hasMemIndex := false
	hasImm := false
	hasRel := false
	hasStackOperand := false
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		switch v := a.(type) {
		case x86asm.Mem:
			if v.Index != 0 {
				hasMemIndex = true
			}
			if stackRegs[v.Base] {
				hasStackOperand = true
			}
		case x86asm.Imm:
			hasImm = true
		case x86asm.Rel:
			hasRel = true
		case x86asm.Reg:
			if stackRegs[v] {
				hasStackOperand = true
			}
		}
	}

	isCallOrJump := inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL ||
		inst.Op == x86asm.JMP || conditionalJumps[inst.Op]

	wildcardTrailing := 0

	// Rule 2: immediate or PC-relative displacement on a call/jump — near
	// branch targets decode as x86asm.Rel rather than x86asm.Imm.
	if (hasImm || hasRel) && isCallOrJump {
		if n := trailingImmediateSize(inst); n > wildcardTrailing {
			wildcardTrailing = n
		}
	}
	// Rule 3: immediate alongside a stack/base-pointer operand on
	// MOV/ADD/SUB/INC/DEC.
	if hasImm && immWildcardOps[inst.Op] && hasStackOperand {
		if n := trailingImmediateSize(inst); n > wildcardTrailing {
			wildcardTrailing = n
		}
	}
	// Rule 1: memory operand with a non-zero index register — wildcard
	// the displacement bytes, which (absent index scaling into the
	// trailing bytes already claimed above) sit immediately before any
	// trailing immediate.
	dispWildcard := 0
	if hasMemIndex {
		dispWildcard = dispSize(inst)
	}

	// Rule 4: trailing zero bytes of an instruction whose immediate
	// rule fired are also wildcarded (zero-extended displacement tails).
	if wildcardTrailing > 0 {
		for wildcardTrailing < size && raw[size-wildcardTrailing-1] == 0 {
			wildcardTrailing++
		}
	}

	if wildcardTrailing > size {
		wildcardTrailing = size
	}
	for i := 0; i < wildcardTrailing; i++ {
		byteIdx := size - 1 - i
		hexNibbles[byteIdx*2] = '?'
		hexNibbles[byteIdx*2+1] = '?'
	}

	if dispWildcard > 0 {
		start := size - wildcardTrailing - dispWildcard
		if start < 0 {
			start = 0
		}
		end := size - wildcardTrailing
		for byteIdx := start; byteIdx < end; byteIdx++ {
			hexNibbles[byteIdx*2] = '?'
			hexNibbles[byteIdx*2+1] = '?'
		}
	}

	return string(hexNibbles), nil
}

// trailingImmediateSize estimates the byte width of inst's trailing
// immediate/relative encoding from its decoded metadata. x86asm does not
// expose a raw immediate-field offset, so this follows the universal x86
// encoding rule that the immediate is the instruction's final field.
func trailingImmediateSize(inst x86asm.Inst) int {
	if inst.PCRel > 0 {
		return inst.PCRel
	}
	switch inst.DataSize {
	case 8:
		return 1
	case 16:
		return 2
	case 64:
		return 4 // imm32 sign-extended to 64 bits for most REX.W forms
	default:
		return 4
	}
}

// dispSize estimates the byte width of a memory operand's displacement.
func dispSize(inst x86asm.Inst) int {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if mem, ok := a.(x86asm.Mem); ok {
			switch {
			case mem.Disp == 0:
				return 0
			case mem.Disp >= -128 && mem.Disp <= 127:
				return 1
			default:
				return 4
			}
		}
	}
	return 0
}

const hexDigits = "0123456789abcdef"

func toHexNibbles(raw []byte) string {
	out := make([]byte, len(raw)*2)
	for i, b := range raw {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
