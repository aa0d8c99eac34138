package controlflow

import (
	"strings"

	"github.com/kilobyte-re/lexer/hash/minhash"
	"github.com/kilobyte-re/lexer/hash/sha256"
	"github.com/kilobyte-re/lexer/hash/tlsh"
	"github.com/kilobyte-re/lexer/internal/addr"
)

// Signature computes the byte-accurate, wildcarded, and content-hashed
// feature set for one instruction range [start, end] of a graph, per
// spec §4.4's "Signature pipeline".
type Signature struct {
	Start addr.Addr
	End   addr.Addr
	Graph *Graph
}

// NewSignature returns a Signature over [start, end] of g.
func NewSignature(start, end addr.Addr, g *Graph) *Signature {
	return &Signature{Start: start, End: end, Graph: g}
}

// SignatureJSON is the JSON shape of §4.4's signature block.
type SignatureJSON struct {
	Pattern    string   `json:"pattern"`
	Normalized *string  `json:"normalized"`
	// Feature is a JSON array of nibble values (0-15), not a []byte, so it
	// serializes as a numeric array rather than base64 — encoding/json
	// special-cases []byte for base64 and this is meant for direct
	// ingestion by a downstream ML scaler.
	Feature []int    `json:"feature"`
	Entropy *float64 `json:"entropy"`
	SHA256     *string `json:"sha256"`
	MinHash    *string `json:"minhash"`
	TLSH       *string `json:"tlsh"`
}

// Bytes concatenates the raw bytes of every instruction in [start, end].
func (s *Signature) Bytes() []byte {
	var out []byte
	s.Graph.Range(s.Start, s.End, func(i *Instruction) bool {
		out = append(out, i.Bytes...)
		return true
	})
	return out
}

// Pattern concatenates the wildcarded pattern of every instruction in
// [start, end].
func (s *Signature) Pattern() string {
	var sb strings.Builder
	s.Graph.Range(s.Start, s.End, func(i *Instruction) bool {
		sb.WriteString(i.Pattern)
		return true
	})
	return sb.String()
}

// Normalize strips every wildcarded nibble from the concatenated
// bytes+pattern stream, folding surviving nibbles two at a time into dense
// bytes (spec §4.4 step 2).
func (s *Signature) Normalize() []byte {
	pattern := s.Pattern()
	raw := s.Bytes()
	var out []byte
	var accumulator byte
	nibbles := 0
	for i, b := range raw {
		for j, nibble := range [2]byte{b >> 4, b & 0x0f} {
			if pos := i*2 + j; pos < len(pattern) && pattern[pos] == '?' {
				continue
			}
			accumulator = (accumulator << 4) | nibble
			nibbles++
			if nibbles == 2 {
				out = append(out, accumulator)
				nibbles = 0
			}
		}
	}
	return out
}

// Feature returns a per-nibble expansion of Normalize(), suitable for
// direct ingestion by a downstream ML scaler: length 2*len(normalized),
// each element one nibble (high then low), iff the feature heuristic is
// enabled.
func (s *Signature) Feature() []int {
	if !s.Graph.Config.Heuristics.Features.Enabled {
		return nil
	}
	normalized := s.Normalize()
	out := make([]int, 0, len(normalized)*2)
	for _, b := range normalized {
		out = append(out, int((b&0xf0)>>4), int(b&0x0f))
	}
	return out
}

// Normalized returns the normalized bytes as lowercase hex, iff the
// normalization heuristic is enabled.
func (s *Signature) Normalized() *string {
	if !s.Graph.Config.Heuristics.Normalization.Enabled {
		return nil
	}
	v := toHex(s.Normalize())
	return &v
}

// SHA256 returns the SHA-256 digest of the normalized bytes, iff enabled.
func (s *Signature) SHA256() *string {
	if !s.Graph.Config.Hashing.SHA256.Enabled {
		return nil
	}
	v := sha256.Hexdigest(s.Normalize())
	return &v
}

// TLSH returns the TLSH digest of the normalized bytes, iff enabled and
// the normalized bytes meet the configured minimum size.
func (s *Signature) TLSH() *string {
	cfg := s.Graph.Config.Hashing.TLSH
	if !cfg.Enabled {
		return nil
	}
	v := tlsh.Hexdigest(s.Normalize(), cfg.MinimumByteSize)
	if v == "" {
		return nil
	}
	return &v
}

// MinHash returns the MinHash digest of the normalized bytes, iff enabled
// and the normalized bytes are within the configured maximum size.
func (s *Signature) MinHash() *string {
	cfg := s.Graph.Config.Hashing.MinHash
	if !cfg.Enabled {
		return nil
	}
	normalized := s.Normalize()
	if len(normalized) > cfg.MaximumByteSize {
		return nil
	}
	v := minhash.New(normalized, cfg.NumberOfHashes, cfg.ShingleSize, cfg.Seed).Hexdigest()
	if v == "" {
		return nil
	}
	return &v
}

// Entropy returns the Shannon entropy, in bits, of the normalized bytes,
// iff enabled.
func (s *Signature) Entropy() *float64 {
	if !s.Graph.Config.Heuristics.Entropy.Enabled {
		return nil
	}
	v := shannonEntropy(s.Normalize())
	return &v
}

// Process builds the full SignatureJSON record.
func (s *Signature) Process() SignatureJSON {
	return SignatureJSON{
		Pattern:    s.Pattern(),
		Normalized: s.Normalized(),
		Feature:    s.Feature(),
		SHA256:     s.SHA256(),
		TLSH:       s.TLSH(),
		MinHash:    s.MinHash(),
		Entropy:    s.Entropy(),
	}
}
