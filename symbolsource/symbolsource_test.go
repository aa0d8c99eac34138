package symbolsource

import (
	"strings"
	"testing"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/config"
)

func newTestGraph(t *testing.T) *controlflow.Graph {
	t.Helper()
	return controlflow.New(arch.AMD64, config.Default())
}

func TestIngestVirtualAddressRecord(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(`{"type":"function","virtual_address":4096,"name":"main"}` + "\n")
	n, err := Ingest(src, 0, g)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("Ingest count = %d, want 1", n)
	}
	sym, ok := g.Functions.GetSymbol(addr.Addr(4096))
	if !ok {
		t.Fatalf("symbol not found at 0x1000")
	}
	if len(sym.Names) != 1 || sym.Names[0] != "main" {
		t.Errorf("Names = %v, want [main]", sym.Names)
	}
}

func TestIngestRelativeVirtualAddressAddsImageBase(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(`{"type":"symbol","relative_virtual_address":16,"name":"helper"}` + "\n")
	n, err := Ingest(src, addr.Addr(0x400000), g)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("Ingest count = %d, want 1", n)
	}
	if _, ok := g.Functions.GetSymbol(addr.Addr(0x400010)); !ok {
		t.Errorf("symbol not found at imageBase+rva")
	}
}

func TestIngestSkipsUnresolvableAndUnknownTypeRecords(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(
		`{"type":"function","name":"noaddr"}` + "\n" +
			`{"type":"comment","virtual_address":1,"name":"skipme"}` + "\n" +
			`{"type":"symbol","virtual_address":2,"name":"kept"}` + "\n",
	)
	n, err := Ingest(src, 0, g)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("Ingest count = %d, want 1", n)
	}
	if _, ok := g.Functions.GetSymbol(addr.Addr(1)); ok {
		t.Errorf("unknown-type record should not have been ingested")
	}
	if _, ok := g.Functions.GetSymbol(addr.Addr(2)); !ok {
		t.Errorf("symbol record at 2 should have been ingested")
	}
}

func TestIngestNamesListTakesPrecedenceOverName(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(`{"type":"function","virtual_address":8,"name":"ignored","names":["a","b"]}` + "\n")
	if _, err := Ingest(src, 0, g); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	sym, ok := g.Functions.GetSymbol(addr.Addr(8))
	if !ok {
		t.Fatalf("symbol not found at 8")
	}
	if len(sym.Names) != 2 || sym.Names[0] != "a" || sym.Names[1] != "b" {
		t.Errorf("Names = %v, want [a b]", sym.Names)
	}
}

func TestIngestAccumulatesNamesAcrossRecords(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(
		`{"type":"function","virtual_address":32,"name":"first"}` + "\n" +
			`{"type":"symbol","virtual_address":32,"name":"second"}` + "\n",
	)
	n, err := Ingest(src, 0, g)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("Ingest count = %d, want 2", n)
	}
	sym, ok := g.Functions.GetSymbol(addr.Addr(32))
	if !ok {
		t.Fatalf("symbol not found at 32")
	}
	if len(sym.Names) != 2 || sym.Names[0] != "first" || sym.Names[1] != "second" {
		t.Errorf("Names = %v, want [first second]", sym.Names)
	}
}

func TestIngestMalformedJSONErrors(t *testing.T) {
	g := newTestGraph(t)
	src := strings.NewReader(`{"type": "function"` + "\n")
	if _, err := Ingest(src, 0, g); err == nil {
		t.Errorf("Ingest with malformed JSON: want error, got nil")
	}
}
