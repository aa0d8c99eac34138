package x86

import (
	"testing"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
)

func TestDecodeClassifiesReturn(t *testing.T) {
	base := addr.Addr(0x1000)
	d := NewDecoder(arch.AMD64, []byte{0xC3}, base, func(addr.Addr) bool { return true })

	inst, err := d.Decode(base)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !inst.IsReturn {
		t.Errorf("IsReturn = false, want true")
	}
	if inst.Edges != 1 {
		t.Errorf("Edges = %d, want 1", inst.Edges)
	}
	if inst.Pattern != "c3" {
		t.Errorf("Pattern = %q, want %q", inst.Pattern, "c3")
	}
}

func TestDecodeClassifiesUnconditionalJump(t *testing.T) {
	base := addr.Addr(0x1000)
	// JMP rel8 +0 -> targets the byte immediately after itself.
	d := NewDecoder(arch.AMD64, []byte{0xEB, 0x00}, base, func(addr.Addr) bool { return true })

	inst, err := d.Decode(base)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !inst.IsJump || inst.IsConditional {
		t.Errorf("IsJump=%v IsConditional=%v, want jump, unconditional", inst.IsJump, inst.IsConditional)
	}
	if len(inst.To) != 1 || inst.To[0] != base+2 {
		t.Errorf("To = %v, want [%v]", inst.To, base+2)
	}
	if inst.Edges != 1 {
		t.Errorf("Edges = %d, want 1", inst.Edges)
	}
}

func TestDecodeOutOfRangeIsNonExecutable(t *testing.T) {
	base := addr.Addr(0x1000)
	d := NewDecoder(arch.AMD64, []byte{0xC3}, base, func(addr.Addr) bool { return true })
	if _, err := d.Decode(base + 10); err == nil {
		t.Errorf("Decode out of range: want error, got nil")
	}
}

func TestDecodeTrapHasNoSuccessors(t *testing.T) {
	base := addr.Addr(0x1000)
	d := NewDecoder(arch.AMD64, []byte{0xCC}, base, func(addr.Addr) bool { return true })

	inst, err := d.Decode(base)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !inst.IsTrap {
		t.Errorf("IsTrap = false, want true")
	}
	if inst.Edges != 0 {
		t.Errorf("Edges = %d, want 0", inst.Edges)
	}
	if _, ok := inst.Next(); ok {
		t.Errorf("Next() ok=true for a trap, want false")
	}
}

func TestDecodeCallSkipsNonExecutableTarget(t *testing.T) {
	base := addr.Addr(0x1000)
	// CALL rel32 = 0x1000 (targets an address far outside the image).
	image := []byte{0xE8, 0x00, 0x10, 0x00, 0x00}
	d := NewDecoder(arch.AMD64, image, base, func(a addr.Addr) bool { return a == base })

	inst, err := d.Decode(base)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(inst.Functions) != 0 {
		t.Errorf("Functions = %v, want empty (target not executable)", inst.Functions)
	}
}

func TestIsPrivilegedAt(t *testing.T) {
	base := addr.Addr(0x1000)
	d := NewDecoder(arch.AMD64, []byte{0xF4}, base, func(addr.Addr) bool { return true }) // HLT
	if !d.IsPrivilegedAt(base) {
		t.Errorf("IsPrivilegedAt(HLT) = false, want true")
	}
}
