// Package arch defines the instruction-set architectures the lexer core
// tags instructions, blocks, functions and records with.
package arch

// Architecture is a tagged enum over the instruction sets the core is aware
// of. Only I386 and AMD64 are decoded; CIL is carried as a tag value for
// .NET images (see format/cil.go for the extension point discussion).
type Architecture uint8

const (
	// UNKNOWN is the zero value: an image whose machine type the format
	// collaborator could not identify.
	UNKNOWN Architecture = iota
	// I386 is 32-bit x86.
	I386
	// AMD64 is 64-bit x86.
	AMD64
	// CIL is .NET Common Intermediate Language (extension point; not
	// decoded by disasm/x86).
	CIL
)

// String returns the lowercase name of the architecture.
func (a Architecture) String() string {
	switch a {
	case I386:
		return "i386"
	case AMD64:
		return "amd64"
	case CIL:
		return "cil"
	default:
		return "unknown"
	}
}

// MarshalJSON marshals the architecture as its lowercase name.
func (a Architecture) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// Mode returns the x86asm decode mode (16/32/64) this architecture implies.
// CIL and UNKNOWN return 0.
func (a Architecture) Mode() int {
	switch a {
	case I386:
		return 32
	case AMD64:
		return 64
	default:
		return 0
	}
}
