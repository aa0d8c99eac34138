// Package symbolsource implements auxiliary-tool symbol ingestion (spec
// §6.4): newline-delimited JSON records on stdin, each describing a symbol
// or function name keyed by one of {file_offset, relative_virtual_address,
// virtual_address}, folded into the Graph's function-queue symbol table.
// This generalizes the teacher's cmd/x/helper.go decodeJSON single-file
// decode into a streaming json.Decoder loop over stdin.
package symbolsource

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/kilobyte-re/lexer/controlflow"
	"github.com/kilobyte-re/lexer/internal/addr"
)

// Record is one line of the symbol-ingestion ndjson stream.
type Record struct {
	Type                   string    `json:"type"`
	FileOffset             *addr.Addr `json:"file_offset"`
	RelativeVirtualAddress *addr.Addr `json:"relative_virtual_address"`
	VirtualAddress         *addr.Addr `json:"virtual_address"`
	Name                   string    `json:"name"`
	Names                  []string  `json:"names"`
}

// resolve picks the record's address, preferring an absolute virtual
// address, falling back to a base-relative RVA, then a raw file offset
// (spec §6.4 lists the three address carriers without ranking them;
// virtual address is the most directly usable and so is tried first).
func (r Record) resolve(imageBase addr.Addr) (addr.Addr, bool) {
	if r.VirtualAddress != nil {
		return *r.VirtualAddress, true
	}
	if r.RelativeVirtualAddress != nil {
		return imageBase + *r.RelativeVirtualAddress, true
	}
	if r.FileOffset != nil {
		return imageBase + *r.FileOffset, true
	}
	return 0, false
}

func (r Record) names() []string {
	if len(r.Names) > 0 {
		return r.Names
	}
	if r.Name != "" {
		return []string{r.Name}
	}
	return nil
}

// Ingest streams ndjson symbol/function records from src into g's function
// symbol table, skipping lines whose type is neither "symbol" nor
// "function" or that carry no resolvable address.
func Ingest(src io.Reader, imageBase addr.Addr, g *controlflow.Graph) (int, error) {
	dec := json.NewDecoder(src)
	count := 0
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return count, errors.WithStack(err)
		}
		if rec.Type != "symbol" && rec.Type != "function" {
			continue
		}
		address, ok := rec.resolve(imageBase)
		if !ok {
			continue
		}
		names := rec.names()
		if len(names) == 0 {
			continue
		}
		g.Functions.InsertSymbol(controlflow.NewSymbolWithNames(address, names))
		count++
	}
	return count, nil
}
