package controlflow

import (
	"testing"

	"github.com/kilobyte-re/lexer/internal/lexerr"
)

func TestNewBlockRequiresValidAddress(t *testing.T) {
	g := newTestGraph(t)
	g.InsertInstruction(&Instruction{Address: 0x1000, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true})
	if _, err := NewBlock(0x1000, g); err == nil {
		t.Fatalf("NewBlock on unmarked address: want error, got nil")
	}
}

func TestNewBlockNoTerminatorError(t *testing.T) {
	g := newTestGraph(t)
	// straight-line instruction with no terminator anywhere in the graph.
	g.InsertInstruction(&Instruction{Address: 0x2000, Bytes: []byte{0x90}, Pattern: "90"})
	g.Blocks.SetProcessed(0x2000)
	g.Blocks.SetValid(0x2000)

	_, err := NewBlock(0x2000, g)
	if err == nil {
		t.Fatalf("NewBlock with no terminator: want error, got nil")
	}
	if _, ok := err.(*lexerr.NoTerminator); !ok {
		t.Errorf("error = %T, want *lexerr.NoTerminator", err)
	}
}

func TestBlockEdgesAndPrologue(t *testing.T) {
	g := newTestGraph(t)
	g.InsertInstruction(&Instruction{Address: 0x3000, Bytes: []byte{0x55}, Pattern: "55", IsPrologue: true, IsBlockStart: true})
	g.InsertInstruction(&Instruction{Address: 0x3001, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true, Edges: 1})
	g.Blocks.SetProcessed(0x3000)
	g.Blocks.SetValid(0x3000)

	block, err := NewBlock(0x3000, g)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	if !block.IsPrologue() {
		t.Errorf("IsPrologue() = false, want true")
	}
	if block.Edges() != 1 {
		t.Errorf("Edges() = %d, want 1", block.Edges())
	}
	if block.Size() != 2 {
		t.Errorf("Size() = %d, want 2", block.Size())
	}
}
