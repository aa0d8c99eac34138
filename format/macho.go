package format

// OpenMachO is an extension point for the Mach-O container format (spec
// Overview: "extension points for ELF/Mach-O"). Wiring this in means
// adding an Image realization backed by stdlib debug/macho.
func OpenMachO(path string) (Image, error) {
	return nil, ErrUnsupportedFormat
}
