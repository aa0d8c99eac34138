package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/internal/addr"
)

func TestWriteBlockPlainNdjson(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false)

	rec := controlflow.BlockJSON{
		Type:    "block",
		Address: addr.Addr(0x1000),
		To:      addr.Addrs{},
		Functions: map[addr.Addr]addr.Addr{},
	}
	if err := w.WriteBlock(rec); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	var got controlflow.BlockJSON
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "block" || got.Address != addr.Addr(0x1000) {
		t.Errorf("got = %+v, want type=block address=0x1000", got)
	}
}

func TestWriteFunctionLZ4WrapsOutput(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true)

	rec := controlflow.FunctionJSON{
		Type:    "function",
		Address: addr.Addr(0x2000),
		Blocks:  addr.Addrs{addr.Addr(0x2000)},
	}
	if err := w.WriteFunction(rec); err != nil {
		t.Fatalf("WriteFunction: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	zr := lz4.NewReader(&buf)
	scanner := bufio.NewScanner(zr)
	if !scanner.Scan() {
		t.Fatalf("no decompressed line read: %v", scanner.Err())
	}
	var got controlflow.FunctionJSON
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != "function" || got.Address != addr.Addr(0x2000) {
		t.Errorf("got = %+v, want type=function address=0x2000", got)
	}
}

func TestWriteMultipleLinesPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false)

	for i := 0; i < 3; i++ {
		rec := controlflow.BlockJSON{Type: "block", Address: addr.Addr(i), To: addr.Addrs{}, Functions: map[addr.Addr]addr.Addr{}}
		if err := w.WriteBlock(rec); err != nil {
			t.Fatalf("WriteBlock[%d]: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	for i, line := range lines {
		var got controlflow.BlockJSON
		if err := json.Unmarshal([]byte(line), &got); err != nil {
			t.Fatalf("Unmarshal[%d]: %v", i, err)
		}
		if got.Address != addr.Addr(i) {
			t.Errorf("line %d address = %v, want %v", i, got.Address, i)
		}
	}
}
