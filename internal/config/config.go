// Package config implements the flat TOML configuration schema of the
// binary pattern lexer, grounded field-for-field on the upstream project's
// Config/ConfigGeneral/ConfigHeuristics/ConfigHashing/ConfigMmap/
// ConfigDisassembler structures, translated into Go's idiom: exported
// fields with `toml:"..."` tags instead of serde derives, and
// BurntSushi/toml for decoding instead of Rust's `toml` crate.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// General holds thread pool sizing and global run-mode flags.
type General struct {
	Threads int  `toml:"threads"`
	Minimal bool `toml:"minimal"`
	Debug   bool `toml:"debug"`
	// LZ4 wraps emitted ndjson records in an LZ4 stream, per the
	// serialization layer's "optionally LZ4-wrapped in memory".
	LZ4 bool `toml:"lz4"`
}

// HeuristicFeatures toggles emission of the per-nibble ML feature vector.
type HeuristicFeatures struct {
	Enabled bool `toml:"enabled"`
}

// HeuristicNormalization toggles emission of the normalized hex string.
type HeuristicNormalization struct {
	Enabled bool `toml:"enabled"`
}

// HeuristicEntropy toggles Shannon entropy computation.
type HeuristicEntropy struct {
	Enabled bool `toml:"enabled"`
}

// Heuristics groups the non-hash signature heuristics.
type Heuristics struct {
	Features     HeuristicFeatures      `toml:"features"`
	Normalization HeuristicNormalization `toml:"normalization"`
	Entropy      HeuristicEntropy       `toml:"entropy"`
}

// SHA256 toggles SHA-256 hashing of normalized bytes.
type SHA256 struct {
	Enabled bool `toml:"enabled"`
}

// TLSH configures the TLSH similarity digest.
type TLSH struct {
	Enabled          bool `toml:"enabled"`
	MinimumByteSize  int  `toml:"minimum_byte_size"`
}

// MinHash configures the 32-bit MinHash similarity digest.
type MinHash struct {
	Enabled         bool   `toml:"enabled"`
	NumberOfHashes  int    `toml:"number_of_hashes"`
	ShingleSize     int    `toml:"shingle_size"`
	MaximumByteSize int    `toml:"maximum_byte_size"`
	Seed            uint64 `toml:"seed"`
}

// FileHashes configures the optional file-level hashes threaded onto
// records by the format collaborator.
type FileHashes struct {
	SHA256 SHA256 `toml:"sha256"`
	TLSH   TLSH   `toml:"tlsh"`
}

// Hashing groups the signature-level hash primitives.
type Hashing struct {
	SHA256  SHA256  `toml:"sha256"`
	TLSH    TLSH    `toml:"tlsh"`
	MinHash MinHash `toml:"minhash"`
	File    FileHashes `toml:"file"`
}

// MmapCache toggles whether the mmap-backed image cache is retained after
// the process exits.
type MmapCache struct {
	Enabled bool `toml:"enabled"`
}

// Mmap configures the memory-mapped image cache.
type Mmap struct {
	Directory string    `toml:"directory"`
	Cache     MmapCache `toml:"cache"`
}

// DisassemblerSweep configures the linear sweep heuristic.
type DisassemblerSweep struct {
	Enabled                  bool `toml:"enabled"`
	ValidJumpThreshold       int  `toml:"valid_jump_threshold"`
	ValidInstructionThreshold int `toml:"valid_instruction_threshold"`
}

// Disassembler groups disassembly-stage options.
type Disassembler struct {
	Sweep DisassemblerSweep `toml:"sweep"`
}

// Config is the root TOML document.
type Config struct {
	General      General      `toml:"general"`
	Heuristics   Heuristics   `toml:"heuristics"`
	Hashing      Hashing      `toml:"hashing"`
	Mmap         Mmap         `toml:"mmap"`
	Disassembler Disassembler `toml:"disassembler"`
}

// Default returns the documented default configuration: threads=1, TLSH
// minimum 50 bytes, MinHash {64 hashes, shingle 4, max 50 bytes, seed 0},
// sweep thresholds {2, 4}, every hashing, heuristic and sweep flag on, and
// the mmap cache file not kept (mmap.cache.enabled off).
func Default() *Config {
	return &Config{
		General: General{
			Threads: 1,
			Minimal: false,
			Debug:   false,
			LZ4:     false,
		},
		Heuristics: Heuristics{
			Features:      HeuristicFeatures{Enabled: true},
			Normalization: HeuristicNormalization{Enabled: true},
			Entropy:       HeuristicEntropy{Enabled: true},
		},
		Hashing: Hashing{
			SHA256: SHA256{Enabled: true},
			TLSH:   TLSH{Enabled: true, MinimumByteSize: 50},
			MinHash: MinHash{
				Enabled:         true,
				NumberOfHashes:  64,
				ShingleSize:     4,
				MaximumByteSize: 50,
				Seed:            0,
			},
			File: FileHashes{
				SHA256: SHA256{Enabled: true},
				TLSH:   TLSH{Enabled: true, MinimumByteSize: 50},
			},
		},
		Mmap: Mmap{
			Directory: ".",
			Cache:     MmapCache{Enabled: false},
		},
		Disassembler: Disassembler{
			Sweep: DisassemblerSweep{
				Enabled:                   true,
				ValidJumpThreshold:        2,
				ValidInstructionThreshold: 4,
			},
		},
	}
}

// DisableHashingAndHeuristics implements the `minimal` flag: every hashing
// and heuristic flag is turned off, following the upstream Config's
// disable_* methods.
func (c *Config) DisableHashingAndHeuristics() {
	c.Hashing.SHA256.Enabled = false
	c.Hashing.TLSH.Enabled = false
	c.Hashing.MinHash.Enabled = false
	c.Hashing.File.SHA256.Enabled = false
	c.Hashing.File.TLSH.Enabled = false
	c.Heuristics.Features.Enabled = false
	c.Heuristics.Normalization.Enabled = false
	c.Heuristics.Entropy.Enabled = false
}

// Load reads and decodes a TOML config file at path, starting from
// Default() so any field the file omits keeps its documented default.
// A missing file is not an error: the zero-configuration default is used,
// matching the teacher's osutil.Exists-guarded "file is optional" pattern
// (cmd/x/helper.go's parseJSON).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.WithStack(err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %q", path)
	}
	if cfg.General.Minimal {
		cfg.DisableHashingAndHeuristics()
	}
	return cfg, nil
}
