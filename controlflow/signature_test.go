package controlflow

import (
	"testing"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/config"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	return New(arch.I386, config.Default())
}

func TestSignaturePatternAndBytesConcatenate(t *testing.T) {
	g := newTestGraph(t)
	g.InsertInstruction(&Instruction{Address: 0x1000, Bytes: []byte{0x90}, Pattern: "90"})
	g.InsertInstruction(&Instruction{Address: 0x1001, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true})

	sig := NewSignature(0x1000, 0x1001, g)
	if got := sig.Pattern(); got != "90c3" {
		t.Errorf("Pattern() = %q, want %q", got, "90c3")
	}
	if got := sig.Bytes(); string(got) != "\x90\xc3" {
		t.Errorf("Bytes() = %x, want 90c3", got)
	}
}

func TestSignatureNormalizeStripsWildcardedNibbles(t *testing.T) {
	g := newTestGraph(t)
	// fully-wildcarded NOP contributes nothing to the normalized stream.
	g.InsertInstruction(&Instruction{Address: 0x2000, Bytes: []byte{0x90}, Pattern: "??"})
	g.InsertInstruction(&Instruction{Address: 0x2001, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true})

	sig := NewSignature(0x2000, 0x2001, g)
	normalized := sig.Normalize()
	if len(normalized) != 1 || normalized[0] != 0xC3 {
		t.Errorf("Normalize() = %x, want [c3]", normalized)
	}
}

func TestSignatureFeatureIsNibbleExpansion(t *testing.T) {
	g := newTestGraph(t)
	g.InsertInstruction(&Instruction{Address: 0x3000, Bytes: []byte{0xAB}, Pattern: "ab", IsReturn: true})

	sig := NewSignature(0x3000, 0x3000, g)
	feature := sig.Feature()
	want := []int{0xA, 0xB}
	if len(feature) != len(want) {
		t.Fatalf("Feature() len = %d, want %d", len(feature), len(want))
	}
	for i := range want {
		if feature[i] != want[i] {
			t.Errorf("Feature()[%d] = %d, want %d", i, feature[i], want[i])
		}
	}
}

func TestSignatureHashesDisabledReturnNil(t *testing.T) {
	g := New(arch.I386, config.Default())
	g.Config.DisableHashingAndHeuristics()
	g.InsertInstruction(&Instruction{Address: 0x4000, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true})

	sig := NewSignature(0x4000, 0x4000, g)
	if sig.SHA256() != nil {
		t.Errorf("SHA256() = %v, want nil when hashing disabled", *sig.SHA256())
	}
	if sig.Entropy() != nil {
		t.Errorf("Entropy() = %v, want nil when heuristics disabled", *sig.Entropy())
	}
	if sig.Feature() != nil {
		t.Errorf("Feature() = %v, want nil when heuristics disabled", sig.Feature())
	}
}

func TestGraphAbsorbIsIdempotent(t *testing.T) {
	g := newTestGraph(t)
	other := New(arch.I386, g.Config)
	other.InsertInstruction(&Instruction{Address: 0x5000, Bytes: []byte{0xC3}, Pattern: "c3", IsReturn: true})
	other.Blocks.SetProcessed(0x5000)
	other.Blocks.SetValid(0x5000)

	g.Absorb(other)
	g.Absorb(other)

	if !g.HasInstruction(0x5000) {
		t.Fatalf("instruction missing after absorb")
	}
	if !g.Blocks.IsValid(0x5000) {
		t.Errorf("block not valid after absorb")
	}
	valid := g.Blocks.ValidAddrs()
	count := 0
	for _, a := range valid {
		if a == addr.Addr(0x5000) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("ValidAddrs() contains %d copies of 0x5000 after double absorb, want 1 (set semantics)", count)
	}
}
