package x86

import (
	"regexp"

	"golang.org/x/arch/x86/x86asm"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
)

// canonicalPrologues holds, per architecture, the byte-regex alternatives
// for a recognizable frame-setup sequence (spec §4.1's "canonical
// patterns"). The alternative set and byte ranges are preserved as
// specified.
var canonicalPrologues = map[arch.Architecture][]*regexp.Regexp{
	arch.AMD64: {
		// mov reg, rsp; sub rsp, imm
		regexp.MustCompile(`(?s)^[\x40-\x4F]\x8B[\x00-\xFF][\x40-\x4F]\x83\xEC[\x00-\xFF]`),
		// mov reg, rsp; mov qword [reg+local], param
		regexp.MustCompile(`(?s)^[\x40-\x4F]\x8B[\x00-\xFF][\x40-\x4F]\x89[\x00-\xFF][\x00-\xFF]`),
		// sub rsp, imm
		regexp.MustCompile(`(?s)^[\x40-\x4F]\x83\xEC[\x00-\xFF]`),
		// mov rbp, rsp (via 0x8b/0xec form); sub rsp, imm32
		regexp.MustCompile(`(?s)^[\x40-\x4F]\x8B\xEC[\x40-\x4F]\x81\xEC[\x00-\xFF][\x00-\xFF][\x00-\xFF][\x00-\xFF]`),
		// push rbp; mov rbp, rsp
		regexp.MustCompile(`(?s)^\x55[\x40-\x4F]\x89\xE5`),
	},
	arch.I386: {
		// push ebp; mov ebp, esp
		regexp.MustCompile(`(?s)^\x55\x89\xE5`),
		// mov [esp+local], reg; push{2}; sub esp, imm
		regexp.MustCompile(`(?s)^\x89\x44\x24[\x00-\xFF](\x50|\x51|\x52|\x53|\x55|\x56|\x57){2}\x83\xEC[\x00-\xFF]`),
	},
}

// IsCanonicalPrologue reports whether the leading bytes at a decode to one
// of the architecture's canonical frame-setup sequences.
func IsCanonicalPrologue(architecture arch.Architecture, leading []byte) bool {
	// regexp matches code points, and a raw byte >= 0x80 is not valid UTF-8,
	// so each byte is widened to the rune of the same value before matching.
	widened := make([]rune, len(leading))
	for i, b := range leading {
		widened[i] = rune(b)
	}
	text := string(widened)
	for _, re := range canonicalPrologues[architecture] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// IsPrologue implements spec §4.1's full prologue heuristic for address a:
// either a canonical frame-setup match, or — scanning forward from a, up
// to 12 instructions, stopping at the first call/jump/trap/privileged
// instruction — a PUSH followed later by a SUB {E|R}SP, imm, with any
// preceding ADD {E|R}SP, imm disqualifying the match.
func (d *Decoder) IsPrologue(a addr.Addr) bool {
	off, ok := d.offset(a)
	if !ok {
		return false
	}
	end := off + 32
	if end > len(d.Image) {
		end = len(d.Image)
	}
	if IsCanonicalPrologue(d.Architecture, d.Image[off:end]) {
		return true
	}

	pushSeen := false
	pc := a
	for i := 0; i < 12; i++ {
		inst, err := d.Decode(pc)
		if err != nil {
			return false
		}
		raw, args := decodeArgs(inst.Bytes, d.Architecture.Mode())
		op := raw.Op

		if op == x86asm.CALL || op == x86asm.LCALL || inst.IsJump || inst.IsTrap || IsPrivileged(op) {
			break
		}
		if isPush(op) {
			pushSeen = true
		}
		if op == x86asm.ADD && touchesStackReg(args) {
			return false
		}
		if pushSeen && op == x86asm.SUB && touchesStackReg(args) {
			return true
		}

		next, ok := inst.Next()
		if !ok {
			break
		}
		pc = next
	}
	return false
}

func decodeArgs(raw []byte, mode int) (x86asm.Inst, x86asm.Args) {
	inst, err := x86asm.Decode(raw, mode)
	if err != nil {
		return x86asm.Inst{}, x86asm.Args{}
	}
	return inst, inst.Args
}

func touchesStackReg(args x86asm.Args) bool {
	for _, a := range args {
		if a == nil {
			break
		}
		if reg, ok := a.(x86asm.Reg); ok && stackRegs[reg] {
			return true
		}
	}
	return false
}

func isPush(op x86asm.Op) bool {
	switch op {
	case x86asm.PUSH, x86asm.PUSHA, x86asm.PUSHAD, x86asm.PUSHF, x86asm.PUSHFD, x86asm.PUSHFQ:
		return true
	}
	return false
}
