// Package format defines the executable-format collaborator contract
// (spec §6.1) and its concrete PE realization, with ELF/Mach-O/CIL left as
// unimplemented extension points.
package format

import (
	"errors"

	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
)

// ErrUnsupportedFormat is returned by an extension point not yet wired to
// a concrete parser.
var ErrUnsupportedFormat = errors.New("format: unsupported executable format")

// Image is the executable-format collaborator. A concrete implementation
// (PE today; ELF/Mach-O/CIL as extension points) provides everything the
// disassembler and feature extractor need without depending on the
// underlying container format.
type Image interface {
	// Architecture returns the target instruction set.
	Architecture() arch.Architecture
	// Bytes returns the image laid out so that file offset == virtual
	// address - ImageBase(), with padding for sparse sections.
	Bytes() []byte
	// ImageBase returns the virtual address corresponding to Bytes()[0].
	ImageBase() addr.Addr
	// ExecutableRanges returns the ordered [start, end) ranges that may
	// be disassembled.
	ExecutableRanges() []addr.Range
	// Entrypoints returns the union of the declared entry point, exports,
	// TLS callbacks, and any other format-specific function hints.
	Entrypoints() (addr.Addrs, error)
	// SHA256 and TLSH return the optional whole-file digests threaded
	// onto emitted records; either may be "".
	SHA256() string
	TLSH() string
	// Size returns the file size in bytes.
	Size() uint64
}
