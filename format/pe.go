package format

import (
	"debug/pe"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/kilobyte-re/lexer/hash/sha256"
	"github.com/kilobyte-re/lexer/hash/tlsh"
	"github.com/kilobyte-re/lexer/internal/addr"
	"github.com/kilobyte-re/lexer/internal/arch"
	"github.com/kilobyte-re/lexer/internal/diag"
)

// codeSectionFlag marks an IMAGE_SCN_CNT_CODE / executable section.
const codeSectionFlag = 0x00000020

// PE is the Image realization backed by stdlib debug/pe, supplemented with
// manual Export Directory Table and TLS Directory parsing for entrypoint
// discovery — debug/pe exposes section/symbol tables but not directory
// contents beyond what pe.File.ImportedSymbols needs, so the export/TLS
// walk below is hand-rolled against the raw data directory bytes.
type PE struct {
	file      *pe.File
	raw       []byte
	imageBase addr.Addr
	arch      arch.Architecture
	is64      bool
	sha256    string
	tlshHex   string
	size      uint64
}

// OpenPE opens path as a PE image, laying out Bytes() so that file offset
// == virtual address - ImageBase() (spec §6.1).
func OpenPE(path string) (*PE, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	file, err := pe.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p := &PE{file: file, raw: raw, size: uint64(len(raw))}

	switch opt := file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		p.imageBase = addr.Addr(opt.ImageBase)
		p.arch = arch.I386
		p.is64 = false
	case *pe.OptionalHeader64:
		p.imageBase = addr.Addr(opt.ImageBase)
		p.arch = arch.AMD64
		p.is64 = true
	default:
		return nil, errors.New("format: PE optional header missing or of unknown type")
	}

	p.sha256 = sha256.Hexdigest(raw)
	p.tlshHex = tlsh.Hexdigest(raw, 50)

	return p, nil
}

// Architecture implements Image.
func (p *PE) Architecture() arch.Architecture { return p.arch }

// ImageBase implements Image.
func (p *PE) ImageBase() addr.Addr { return p.imageBase }

// Bytes lays sections out virtually: a zero-filled buffer sized to the
// highest VirtualAddress+VirtualSize, with each section's raw bytes
// copied to its virtual offset (sparse padding for bss-like sections).
func (p *PE) Bytes() []byte {
	var highWater uint32
	for _, s := range p.file.Sections {
		if end := s.VirtualAddress + s.VirtualSize; end > highWater {
			highWater = end
		}
	}
	image := make([]byte, highWater)
	for _, s := range p.file.Sections {
		data, err := s.Data()
		if err != nil {
			diag.Warn.Printf("section %q: %v", s.Name, err)
			continue
		}
		n := copy(image[s.VirtualAddress:], data)
		_ = n
	}
	return image
}

// ExecutableRanges implements Image.
func (p *PE) ExecutableRanges() []addr.Range {
	var ranges []addr.Range
	for _, s := range p.file.Sections {
		if s.Characteristics&codeSectionFlag == 0 {
			continue
		}
		start := p.imageBase + addr.Addr(s.VirtualAddress)
		end := start + addr.Addr(s.VirtualSize)
		ranges = append(ranges, addr.Range{Start: start, End: end})
	}
	return ranges
}

// Entrypoints implements Image: the declared AddressOfEntryPoint, plus
// exported functions and TLS callbacks discovered via manual directory
// parsing (spec §6.1's "union of the declared entry point, exports, TLS
// callbacks, and any format-specific function hints").
func (p *PE) Entrypoints() (addr.Addrs, error) {
	var out addr.Addrs

	switch opt := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		out = append(out, p.imageBase+addr.Addr(opt.AddressOfEntryPoint))
	case *pe.OptionalHeader64:
		out = append(out, p.imageBase+addr.Addr(opt.AddressOfEntryPoint))
	}

	exports, err := p.exportEntrypoints()
	if err != nil {
		diag.Debug.Printf("export directory: %v", err)
	} else {
		out = append(out, exports...)
	}

	callbacks, err := p.tlsCallbacks()
	if err != nil {
		diag.Debug.Printf("TLS directory: %v", err)
	} else {
		out = append(out, callbacks...)
	}

	return out.Sorted(), nil
}

// dataDirectory indices, per the PE spec.
const (
	dirExport = 0
	dirTLS    = 9
)

func (p *PE) dataDirectory(index int) (virtualAddress, size uint32, ok bool) {
	switch opt := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if index >= len(opt.DataDirectory) {
			return 0, 0, false
		}
		d := opt.DataDirectory[index]
		return d.VirtualAddress, d.Size, d.VirtualAddress != 0
	case *pe.OptionalHeader64:
		if index >= len(opt.DataDirectory) {
			return 0, 0, false
		}
		d := opt.DataDirectory[index]
		return d.VirtualAddress, d.Size, d.VirtualAddress != 0
	}
	return 0, 0, false
}

// sectionBytes returns image bytes starting at a laid-out virtual address,
// resolved against the section that contains it.
func (p *PE) sectionBytes(rva uint32) []byte {
	for _, s := range p.file.Sections {
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+s.VirtualSize {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil
		}
		off := rva - s.VirtualAddress
		if int(off) >= len(data) {
			return nil
		}
		return data[off:]
	}
	return nil
}

// exportEntrypoints walks the Export Directory Table's AddressOfFunctions
// array (IMAGE_EXPORT_DIRECTORY), which debug/pe does not expose directly.
func (p *PE) exportEntrypoints() (addr.Addrs, error) {
	rva, size, ok := p.dataDirectory(dirExport)
	if !ok || size == 0 {
		return nil, nil
	}
	data := p.sectionBytes(rva)
	if len(data) < 40 {
		return nil, errors.New("export directory truncated")
	}

	numberOfFunctions := binary.LittleEndian.Uint32(data[20:24])
	addressOfFunctions := binary.LittleEndian.Uint32(data[28:32])

	table := p.sectionBytes(addressOfFunctions)
	var out addr.Addrs
	for i := uint32(0); i < numberOfFunctions; i++ {
		off := i * 4
		if int(off+4) > len(table) {
			break
		}
		funcRVA := binary.LittleEndian.Uint32(table[off : off+4])
		if funcRVA == 0 {
			continue
		}
		out = append(out, p.imageBase+addr.Addr(funcRVA))
	}
	return out, nil
}

// tlsCallbacks walks the TLS Directory's AddressOfCallBacks array
// (IMAGE_TLS_DIRECTORY), which debug/pe does not expose directly.
func (p *PE) tlsCallbacks() (addr.Addrs, error) {
	rva, size, ok := p.dataDirectory(dirTLS)
	if !ok || size == 0 {
		return nil, nil
	}
	data := p.sectionBytes(rva)

	var callbacksVA uint64
	if p.is64 {
		if len(data) < 32 {
			return nil, errors.New("TLS directory truncated")
		}
		callbacksVA = binary.LittleEndian.Uint64(data[24:32])
	} else {
		if len(data) < 16 {
			return nil, errors.New("TLS directory truncated")
		}
		callbacksVA = uint64(binary.LittleEndian.Uint32(data[12:16]))
	}
	if callbacksVA == 0 {
		return nil, nil
	}

	callbackRVA := uint32(callbacksVA) - uint32(p.imageBase)
	table := p.sectionBytes(callbackRVA)

	var out addr.Addrs
	stride := 4
	if p.is64 {
		stride = 8
	}
	for off := 0; off+stride <= len(table); off += stride {
		var va uint64
		if p.is64 {
			va = binary.LittleEndian.Uint64(table[off : off+8])
		} else {
			va = uint64(binary.LittleEndian.Uint32(table[off : off+4]))
		}
		if va == 0 {
			break
		}
		out = append(out, addr.Addr(va))
	}
	return out, nil
}

// SHA256 implements Image.
func (p *PE) SHA256() string { return p.sha256 }

// TLSH implements Image.
func (p *PE) TLSH() string { return p.tlshHex }

// Size implements Image.
func (p *PE) Size() uint64 { return p.size }

// Close releases the underlying debug/pe.File.
func (p *PE) Close() error {
	return p.file.Close()
}
