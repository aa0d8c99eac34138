package controlflow

import "github.com/kilobyte-re/lexer/internal/addr"

// Instruction is an immutable record, once finalized, describing one
// decoded machine instruction. See spec §3.
type Instruction struct {
	Address addr.Addr
	Bytes   []byte
	// Pattern is a string of hex nibbles with '?' substituted for operand
	// positions that must be wildcarded (spec §4.1).
	Pattern string

	IsPrologue      bool
	IsBlockStart    bool
	IsFunctionStart bool
	IsCall          bool
	IsReturn        bool
	IsJump          bool
	IsConditional   bool
	IsTrap          bool

	// To is the set of explicit branch target addresses.
	To addr.Addrs
	// Functions is the set of addresses this instruction references as
	// callees (direct calls, and RIP-relative loads into what looks like
	// a function prologue).
	Functions addr.Addrs
	// Edges is the count of outgoing control-flow edges from this
	// instruction: 0 straight-line, 1 unconditional jump/return, 2
	// conditional.
	Edges int
}

// Size returns the instruction's length in bytes.
func (i *Instruction) Size() int { return len(i.Bytes) }

// Next returns the fall-through successor address, or false if the
// instruction has none (returns and traps never fall through).
func (i *Instruction) Next() (addr.Addr, bool) {
	if i.IsReturn || i.IsTrap {
		return 0, false
	}
	return i.Address + addr.Addr(i.Size()), true
}

// Successors returns the union of To and Next — the set of block
// addresses this instruction may transfer control to.
func (i *Instruction) Successors() addr.Addrs {
	out := make(addr.Addrs, 0, len(i.To)+1)
	out = append(out, i.To...)
	if n, ok := i.Next(); ok {
		out = append(out, n)
	}
	return out
}

// IsTerminator reports whether this instruction ends a basic block: a
// jump, a return, or a trap.
func (i *Instruction) IsTerminator() bool {
	return i.IsJump || i.IsReturn || i.IsTrap
}
