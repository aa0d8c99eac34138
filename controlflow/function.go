package controlflow

import (
	"fmt"

	"github.com/kilobyte-re/lexer/internal/addr"
)

// Function is a derived, read-only view of a valid function: the set of
// valid blocks reachable from address by following block successors. A
// reached block is included even when it is itself another function's
// start (spec §3/§4.3).
type Function struct {
	Address addr.Addr
	Graph   *Graph
	blocks  addr.Addrs
}

// NewFunction constructs the Function view rooted at address by a local
// worklist traversal over the already-built block graph. address must
// already be in g.Functions.valid.
func NewFunction(address addr.Addr, g *Graph) (*Function, error) {
	if !g.Functions.IsValid(address) {
		return nil, fmt.Errorf("function %v: is not valid", address)
	}

	visited := make(map[addr.Addr]bool)
	pending := addr.Addrs{address}
	var blocks addr.Addrs

	for len(pending) > 0 {
		a := pending[0]
		pending = pending[1:]
		if visited[a] {
			continue
		}
		if !g.Blocks.IsValid(a) {
			continue
		}
		visited[a] = true

		block, err := NewBlock(a, g)
		if err != nil {
			continue
		}
		blocks = append(blocks, a)
		for _, succ := range block.Successors() {
			if !visited[succ] {
				pending = append(pending, succ)
			}
		}
	}

	return &Function{Address: address, Graph: g, blocks: blocks.Sorted()}, nil
}

// Blocks returns the sorted addresses of every block belonging to f.
func (f *Function) Blocks() addr.Addrs { return f.blocks }

// IsContiguous reports whether f's blocks, laid end-to-end in address
// order, leave no gaps — i.e. each block's terminator address immediately
// precedes the next block's start. Size/Bytes/Signature are only
// meaningful for a contiguous function (spec §4.3 edge case).
func (f *Function) IsContiguous() bool {
	blocks := f.blockViews()
	if len(blocks) == 0 {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		prev := blocks[i-1].Terminator
		if prev.Address+addr.Addr(prev.Size()) != blocks[i].Address {
			return false
		}
	}
	return true
}

func (f *Function) blockViews() []*Block {
	out := make([]*Block, 0, len(f.blocks))
	for _, a := range f.blocks {
		b, err := NewBlock(a, f.Graph)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Edges returns the sum of outgoing edges across every block in f.
func (f *Function) Edges() int {
	total := 0
	for _, b := range f.blockViews() {
		total += b.Edges()
	}
	return total
}

// Functions returns the union of every block's referenced-function map.
func (f *Function) Functions() map[addr.Addr]addr.Addr {
	out := make(map[addr.Addr]addr.Addr)
	for _, b := range f.blockViews() {
		for k, v := range b.Functions() {
			out[k] = v
		}
	}
	return out
}

// Bytes concatenates every contiguous block's bytes in address order. Only
// meaningful when IsContiguous() is true.
func (f *Function) Bytes() []byte {
	var out []byte
	for _, b := range f.blockViews() {
		out = append(out, b.Bytes()...)
	}
	return out
}

// Size returns len(Bytes()).
func (f *Function) Size() int { return len(f.Bytes()) }

// InstructionCount returns the total instruction count across f's blocks.
func (f *Function) InstructionCount() int {
	total := 0
	for _, b := range f.blockViews() {
		total += b.InstructionCount()
	}
	return total
}

// Signature returns the Signature spanning f's full contiguous byte range.
// Only meaningful when IsContiguous() is true.
func (f *Function) Signature() *Signature {
	if len(f.blocks) == 0 {
		return NewSignature(f.Address, f.Address, f.Graph)
	}
	last, err := NewBlock(f.blocks[len(f.blocks)-1], f.Graph)
	if err != nil {
		return NewSignature(f.Address, f.Address, f.Graph)
	}
	return NewSignature(f.Address, last.Terminator.Address, f.Graph)
}

// FunctionJSON is the JSON shape of a "function" record (spec §4.4).
type FunctionJSON struct {
	Type         string                  `json:"type"`
	Address      addr.Addr               `json:"address"`
	Architecture string                  `json:"architecture"`
	Blocks       addr.Addrs              `json:"blocks"`
	Edges        int                     `json:"edges"`
	Contiguous   bool                    `json:"contiguous"`
	Signature    *SignatureJSON          `json:"signature"`
	Size         *int                    `json:"size"`
	Bytes        *string                 `json:"bytes"`
	Functions    map[addr.Addr]addr.Addr `json:"functions"`
	Instructions int                     `json:"instructions"`
	Names        []string                `json:"names"`
	File         *FileJSON               `json:"file"`
	Tags         []string                `json:"tags"`
}

// Process builds the full FunctionJSON record for f.
func (f *Function) Process() FunctionJSON {
	contiguous := f.IsContiguous()

	var sig *SignatureJSON
	var size *int
	var bytesHex *string
	if contiguous {
		s := f.Signature().Process()
		sig = &s
		n := f.Size()
		size = &n
		h := toHex(f.Bytes())
		bytesHex = &h
	}

	var names []string
	if sym, ok := f.Graph.Functions.GetSymbol(f.Address); ok {
		names = sym.Names
	}

	return FunctionJSON{
		Type:         "function",
		Address:      f.Address,
		Architecture: f.Graph.Architecture.String(),
		Blocks:       f.blocks,
		Edges:        f.Edges(),
		Contiguous:   contiguous,
		Signature:    sig,
		Size:         size,
		Bytes:        bytesHex,
		Functions:    f.Functions(),
		Instructions: f.InstructionCount(),
		Names:        names,
		File:         f.Graph.File.JSON(),
		Tags:         []string{},
	}
}
