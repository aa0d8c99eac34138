// Package x86 implements the instruction decoder and classifier for the
// x86/AMD64 architectures (spec §4.1), built on golang.org/x/arch's x86asm.
package x86

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/lexerr"
)

var (
	dbg  = log.New(os.Stderr, term.MagentaBold("x86:")+" ", 0)
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

var conditionalJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JCXZ: true, x86asm.JE: true, x86asm.JECXZ: true, x86asm.JG: true,
	x86asm.JGE: true, x86asm.JL: true, x86asm.JLE: true, x86asm.JNE: true,
	x86asm.JNO: true, x86asm.JNP: true, x86asm.JNS: true, x86asm.JO: true,
	x86asm.JP: true, x86asm.JRCXZ: true, x86asm.JS: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

var privileged = map[x86asm.Op]bool{
	x86asm.HLT: true, x86asm.IN: true, x86asm.OUT: true,
	x86asm.RDMSR: true, x86asm.WRMSR: true, x86asm.RDPMC: true, x86asm.RDTSC: true,
	x86asm.LGDT: true, x86asm.LLDT: true, x86asm.LTR: true, x86asm.LMSW: true,
	x86asm.CLTS: true, x86asm.INVD: true, x86asm.INVLPG: true, x86asm.WBINVD: true,
}

// traps covers the INT family — x86asm decodes both the one-byte INT3
// (0xCC) and two-byte INT imm8 forms as Op INT — plus ICEBP (INT1), INTO,
// and UD2 (spec §4.1's {INT3, INT1, INTO, UD2}).
var traps = map[x86asm.Op]bool{
	x86asm.INT: true, x86asm.ICEBP: true, x86asm.INTO: true, x86asm.UD2: true,
}

// IsPrivileged reports whether op is reserved for the sweep heuristic's
// privileged-instruction check (spec §4.1); it never flags the Instruction
// itself.
func IsPrivileged(op x86asm.Op) bool { return privileged[op] }

// Decoder decodes and classifies x86/AMD64 instructions against an image.
type Decoder struct {
	Architecture arch.Architecture
	Image        []byte
	ImageBase    addr.Addr
	Executable   func(addr.Addr) bool
}

// NewDecoder returns a Decoder over image, laid out so that file offset =
// virtual address - imageBase. executable reports whether an address lies
// within an executable virtual-address range.
func NewDecoder(architecture arch.Architecture, image []byte, imageBase addr.Addr, executable func(addr.Addr) bool) *Decoder {
	return &Decoder{Architecture: architecture, Image: image, ImageBase: imageBase, Executable: executable}
}

// offset returns d.Image's byte offset for pc, or false if out of range.
func (d *Decoder) offset(pc addr.Addr) (int, bool) {
	if pc < d.ImageBase {
		return 0, false
	}
	off := int64(pc - d.ImageBase)
	if off < 0 || off >= int64(len(d.Image)) {
		return 0, false
	}
	return int(off), true
}

// Decode decodes exactly one instruction at pc and returns its full
// classification, per spec §4.1.
func (d *Decoder) Decode(pc addr.Addr) (*controlflow.Instruction, error) {
	off, ok := d.offset(pc)
	if !ok {
		return nil, &lexerr.NonExecutable{Address: pc}
	}
	end := off + 16
	if end > len(d.Image) {
		end = len(d.Image)
	}
	src := d.Image[off:end]
	if len(src) == 0 {
		return nil, &lexerr.NonExecutable{Address: pc}
	}

	inst, err := x86asm.Decode(src, d.Architecture.Mode())
	if err != nil {
		return nil, &lexerr.DecodeFailed{Address: pc, Cause: errors.WithStack(err)}
	}

	raw := append([]byte(nil), src[:inst.Len]...)

	classified := &controlflow.Instruction{
		Address:       pc,
		Bytes:         raw,
		IsReturn:      inst.Op == x86asm.RET,
		IsTrap:        traps[inst.Op],
		IsCall:        inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL,
		IsJump:        inst.Op == x86asm.JMP || conditionalJumps[inst.Op],
		IsConditional: conditionalJumps[inst.Op],
	}

	to, funcs, edges := successors(pc, inst, d.Executable)
	classified.To = to
	classified.Functions = funcs
	classified.Edges = edges

	pattern, perr := Pattern(inst, raw)
	if perr != nil {
		return nil, &lexerr.InvalidPattern{Address: pc}
	}
	classified.Pattern = pattern

	return classified, nil
}

// IsPrivilegedAt reports whether the instruction at pc is a privileged
// instruction (HLT, IN/OUT, RDMSR/WRMSR, ...) per spec §4.1, used only by
// the sweep heuristic — it never flags the classified Instruction itself.
func (d *Decoder) IsPrivilegedAt(pc addr.Addr) bool {
	off, ok := d.offset(pc)
	if !ok {
		return false
	}
	end := off + 16
	if end > len(d.Image) {
		end = len(d.Image)
	}
	inst, err := x86asm.Decode(d.Image[off:end], d.Architecture.Mode())
	if err != nil {
		return false
	}
	return IsPrivileged(inst.Op)
}

// successors computes the outgoing edges for inst per spec §4.1's
// "Successor computation" table.
func successors(pc addr.Addr, inst x86asm.Inst, executable func(addr.Addr) bool) (to addr.Addrs, funcs addr.Addrs, edges int) {
	next := pc + addr.Addr(inst.Len)

	switch {
	case inst.Op == x86asm.JMP:
		if target, ok := immTarget(pc, inst); ok {
			to = addr.Addrs{target}
		}
		return to, nil, 1

	case conditionalJumps[inst.Op]:
		if target, ok := immTarget(pc, inst); ok {
			to = addr.Addrs{target}
		}
		_ = next
		return to, nil, 2

	case inst.Op == x86asm.RET:
		return nil, nil, 1

	case traps[inst.Op]:
		return nil, nil, 0

	case inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL:
		if target, ok := immTarget(pc, inst); ok && executable(target) {
			funcs = addr.Addrs{target}
		}
		return nil, funcs, 0

	case inst.Op == x86asm.LEA:
		if target, ok := leaRIPTarget(pc, inst); ok && executable(target) {
			funcs = addr.Addrs{target}
		}
		return nil, funcs, 0
	}

	return nil, nil, 0
}

// immTarget resolves a jump/call's branch target, whether encoded as a
// Rel (PC-relative) or an absolute Imm.
func immTarget(pc addr.Addr, inst x86asm.Inst) (addr.Addr, bool) {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		switch v := a.(type) {
		case x86asm.Rel:
			return pc + addr.Addr(inst.Len) + addr.Addr(int64(v)), true
		case x86asm.Imm:
			return addr.Addr(int64(v)), true
		}
	}
	return 0, false
}

// leaRIPTarget resolves a LEA's computed address when the memory operand
// is RIP-relative with a zero index register.
func leaRIPTarget(pc addr.Addr, inst x86asm.Inst) (addr.Addr, bool) {
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		mem, ok := a.(x86asm.Mem)
		if !ok {
			continue
		}
		if mem.Base != x86asm.RIP && mem.Base != x86asm.EIP {
			continue
		}
		if mem.Index != 0 {
			continue
		}
		return pc + addr.Addr(inst.Len) + addr.Addr(mem.Disp), true
	}
	return 0, false
}
