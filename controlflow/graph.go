package controlflow

import (
	"sync"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/config"
)

// Graph holds the architecture, the configuration, the concurrent
// instruction store, and the block/function worklists. See spec §3.
type Graph struct {
	Architecture arch.Architecture
	Config       *config.Config
	// File carries the optional file-level hashes/size supplied by the
	// format collaborator, threaded onto every emitted record.
	File *FileInfo

	instructions sync.Map // addr.Addr -> *Instruction

	Blocks    *GraphQueue
	Functions *GraphQueue
}

// New returns an empty Graph for the given architecture and configuration.
func New(architecture arch.Architecture, cfg *config.Config) *Graph {
	return &Graph{
		Architecture: architecture,
		Config:       cfg,
		Blocks:       NewGraphQueue(),
		Functions:    NewGraphQueue(),
	}
}

// InsertInstruction inserts instruction iff its address is not already
// present — once classified, an Instruction is immutable; first writer
// wins, which is safe because the decoder is pure and the image is
// immutable (spec §4.3/§9).
func (g *Graph) InsertInstruction(inst *Instruction) {
	g.instructions.LoadOrStore(inst.Address, inst)
}

// GetInstruction returns the instruction at address, if any.
func (g *Graph) GetInstruction(address addr.Addr) (*Instruction, bool) {
	v, ok := g.instructions.Load(address)
	if !ok {
		return nil, false
	}
	return v.(*Instruction), true
}

// HasInstruction reports whether an instruction is stored at address.
func (g *Graph) HasInstruction(address addr.Addr) bool {
	_, ok := g.instructions.Load(address)
	return ok
}

// SortedAddresses returns every instruction address currently stored, in
// ascending order. sync.Map has no ordered iteration, so every consumer
// that needs address order takes its own sorted snapshot.
func (g *Graph) SortedAddresses() addr.Addrs {
	var out addr.Addrs
	g.instructions.Range(func(k, _ any) bool {
		out = append(out, k.(addr.Addr))
		return true
	})
	return out.Sorted()
}

// Range walks instructions with addresses in [start, end], in ascending
// address order, calling fn for each. Range stops early if fn returns
// false.
func (g *Graph) Range(start, end addr.Addr, fn func(*Instruction) bool) {
	for _, a := range g.SortedAddresses() {
		if a < start {
			continue
		}
		if a > end {
			return
		}
		inst, ok := g.GetInstruction(a)
		if !ok {
			continue
		}
		if !fn(inst) {
			return
		}
	}
}

// Absorb merges a per-function subgraph produced by a worker into the
// master graph (spec §4.3). Absorb is associative and commutative up to
// equality of final set contents: two workers producing the same
// instruction independently both try to store it, but InsertInstruction's
// LoadOrStore makes the first writer win, and the bytes are content
// identical either way.
func (g *Graph) Absorb(other *Graph) {
	other.instructions.Range(func(k, v any) bool {
		g.instructions.LoadOrStore(k, v)
		return true
	})
	g.Blocks.absorb(other.Blocks)
	g.Functions.absorb(other.Functions)
}
