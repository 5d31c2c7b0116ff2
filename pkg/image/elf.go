package image

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
)

// ELFImage implements Image over a parsed ELF file. It exists for
// cmd/ropscan and for tests; the core never imports debug/elf itself —
// this is glue at the boundary spec.md §1 calls an external collaborator.
type ELFImage struct {
	path    string
	raw     []byte
	f       *elf.File
	address uint64 // runtime mapped base; 0 unless the caller relocates it
}

// LoadELF parses path and wraps it as an Image. address is the runtime
// mapped base to use for PIE relocation (spec.md §6 image.address);
// pass 0 if the image isn't currently mapped anywhere in particular.
func LoadELF(path string, address uint64) (*ELFImage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	return &ELFImage{path: path, raw: raw, f: f, address: address}, nil
}

func (i *ELFImage) Arch() string {
	switch i.f.Machine {
	case elf.EM_386:
		return "i386"
	case elf.EM_X86_64:
		return "amd64"
	case elf.EM_ARM:
		return "arm"
	default:
		return i.f.Machine.String()
	}
}

func (i *ELFImage) ExecutableSegments() []Segment {
	var out []Segment
	for _, p := range i.f.Progs {
		if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			continue
		}
		out = append(out, Segment{VAddr: p.Vaddr, Data: data})
	}
	return out
}

func (i *ELFImage) LoadAddr() uint64 {
	for _, p := range i.f.Progs {
		if p.Type == elf.PT_LOAD {
			return p.Vaddr
		}
	}
	return 0
}

func (i *ELFImage) Address() uint64 { return i.address }

// ELFType maps to the short tag the core checks for relocation
// (spec.md §6 image.elftype), the way Arch() maps the machine field —
// debug/elf's own Type.String() returns "ET_DYN"/"ET_EXEC"/etc, which
// IsPositionIndependent does not recognize.
func (i *ELFImage) ELFType() string {
	switch i.f.Type {
	case elf.ET_DYN:
		return "DYN"
	case elf.ET_EXEC:
		return "EXEC"
	default:
		return i.f.Type.String()
	}
}

func (i *ELFImage) FileName() string { return i.path }

func (i *ELFImage) Data() []byte { return i.raw }
