package format

// OpenCIL is an extension point for .NET CIL images (spec Overview: "with
// extension points for ... .NET CIL"). CIL's stack-machine bytecode has no
// x86-style operand/displacement wildcarding, so this needs its own
// decoder and classifier package before an Image realization is
// meaningful, not just a format parser.
func OpenCIL(path string) (Image, error) {
	return nil, ErrUnsupportedFormat
}
