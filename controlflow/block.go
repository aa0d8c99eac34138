package controlflow

import (
	"fmt"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/lexerr"
)

// Block is a derived, read-only view of a valid block: the contiguous
// instruction range [address, terminator.Address] (spec §3).
type Block struct {
	Address     addr.Addr
	Graph       *Graph
	Terminator  *Instruction
}

// NewBlock constructs the Block view rooted at address. address must
// already be in g.Blocks.valid.
func NewBlock(address addr.Addr, g *Graph) (*Block, error) {
	if !g.Blocks.IsValid(address) {
		return nil, fmt.Errorf("block %v: is not valid", address)
	}

	var terminator *Instruction
	var prevAddr *addr.Addr
	g.Range(address, ^addr.Addr(0), func(i *Instruction) bool {
		if prevAddr != nil && i.Address != *prevAddr {
			return false
		}
		if i.IsJump || i.IsTrap || i.IsReturn || (address != i.Address && i.IsBlockStart) {
			terminator = i
			return false
		}
		next, ok := i.Next()
		if !ok {
			return false
		}
		prevAddr = &next
		return true
	})

	if terminator == nil {
		return nil, &lexerr.NoTerminator{Address: address}
	}

	return &Block{Address: address, Graph: g, Terminator: terminator}, nil
}

// IsPrologue reports whether the block's first instruction was classified
// as a function prologue.
func (b *Block) IsPrologue() bool {
	inst, ok := b.Graph.GetInstruction(b.Address)
	return ok && inst.IsPrologue
}

// Edges returns the terminator's outgoing edge count.
func (b *Block) Edges() int { return b.Terminator.Edges }

// Next returns the fall-through successor address, present only when the
// terminator is a conditional jump (an unconditional jump/return/trap has
// no fall-through block successor).
func (b *Block) Next() (addr.Addr, bool) {
	if !b.Terminator.IsConditional {
		return 0, false
	}
	return b.Terminator.Next()
}

// To returns the terminator's explicit branch targets.
func (b *Block) To() addr.Addrs { return b.Terminator.To }

// Successors returns the union of To() and Next().
func (b *Block) Successors() addr.Addrs {
	out := append(addr.Addrs{}, b.To()...)
	if n, ok := b.Next(); ok {
		out = append(out, n)
	}
	return out
}

// Bytes concatenates the raw bytes of every instruction in the block.
func (b *Block) Bytes() []byte {
	var out []byte
	b.Graph.Range(b.Address, b.Terminator.Address, func(i *Instruction) bool {
		out = append(out, i.Bytes...)
		return true
	})
	return out
}

// Size returns the block's byte length.
func (b *Block) Size() int { return len(b.Bytes()) }

// InstructionCount returns the number of instructions in the block.
func (b *Block) InstructionCount() int {
	count := 0
	b.Graph.Range(b.Address, b.Terminator.Address, func(*Instruction) bool {
		count++
		return true
	})
	return count
}

// Functions returns the map of instruction address -> referenced function
// address for every instruction in the block.
func (b *Block) Functions() map[addr.Addr]addr.Addr {
	out := make(map[addr.Addr]addr.Addr)
	b.Graph.Range(b.Address, b.Terminator.Address, func(i *Instruction) bool {
		for _, f := range i.Functions {
			out[i.Address] = f
		}
		return true
	})
	return out
}

// Signature returns the Signature over the block's instruction range.
func (b *Block) Signature() *Signature {
	return NewSignature(b.Address, b.Terminator.Address, b.Graph)
}

// BlockJSON is the JSON shape of a "block" record (spec §4.4).
type BlockJSON struct {
	Type         string              `json:"type"`
	Address      addr.Addr           `json:"address"`
	Architecture string              `json:"architecture"`
	Next         *addr.Addr          `json:"next"`
	To           addr.Addrs          `json:"to"`
	Edges        int                 `json:"edges"`
	Prologue     bool                `json:"prologue"`
	Conditional  bool                `json:"conditional"`
	Signature    SignatureJSON       `json:"signature"`
	Size         int                 `json:"size"`
	Bytes        string              `json:"bytes"`
	Functions    map[addr.Addr]addr.Addr `json:"functions"`
	Instructions int                 `json:"instructions"`
	Contiguous   bool                `json:"contiguous"`
	File         *FileJSON           `json:"file"`
	Tags         []string            `json:"tags"`
}

// Process builds the full BlockJSON record for b.
func (b *Block) Process() BlockJSON {
	var next *addr.Addr
	if n, ok := b.Next(); ok {
		next = &n
	}
	to := b.To()
	if to == nil {
		to = addr.Addrs{}
	}
	return BlockJSON{
		Type:         "block",
		Address:      b.Address,
		Architecture: b.Graph.Architecture.String(),
		Next:         next,
		To:           to,
		Edges:        b.Edges(),
		Prologue:     b.IsPrologue(),
		Conditional:  b.Terminator.IsConditional,
		Signature:    b.Signature().Process(),
		Size:         b.Size(),
		Bytes:        toHex(b.Bytes()),
		Functions:    b.Functions(),
		Instructions: b.InstructionCount(),
		Contiguous:   true,
		File:         b.Graph.File.JSON(),
		Tags:         []string{},
	}
}
