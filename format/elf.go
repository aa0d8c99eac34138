package format

// OpenELF is an extension point for the ELF container format (spec
// Overview: "extension points for ELF/Mach-O"). No ELF-specific
// entrypoint/section heuristics have been implemented yet; wiring this in
// means adding an Image realization analogous to PE, backed by stdlib
// debug/elf instead of debug/pe.
func OpenELF(path string) (Image, error) {
	return nil, ErrUnsupportedFormat
}
