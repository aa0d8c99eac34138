package controlflow

import "github.com/kilobyte-re/lexer/internal/addr"

// Symbol is a named address. Names accumulate across ingestion sources: a
// symbol's Names set is insertion-ordered, and inserting a symbol whose
// address is already present unions the name sets rather than replacing
// them (spec §9, "Symbol merging").
type Symbol struct {
	Address addr.Addr
	Names   []string
}

// NewSymbol returns a Symbol with a single name.
func NewSymbol(address addr.Addr, name string) *Symbol {
	return &Symbol{Address: address, Names: []string{name}}
}

// NewSymbolWithNames returns a Symbol carrying every name in names.
func NewSymbolWithNames(address addr.Addr, names []string) *Symbol {
	return &Symbol{Address: address, Names: append([]string(nil), names...)}
}

// withNames returns a copy of s with extra names appended, skipping
// duplicates already present, preserving insertion order.
func (s *Symbol) withNames(extra []string) *Symbol {
	seen := make(map[string]bool, len(s.Names))
	names := make([]string, len(s.Names))
	copy(names, s.Names)
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range extra {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	return &Symbol{Address: s.Address, Names: names}
}
