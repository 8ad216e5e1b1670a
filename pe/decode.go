package pe

import (
	"github.com/winecask/winecask/errors"
)

// Parse decodes a PE image from an in-memory buffer.
//
// Parse validates the DOS signature, PE signature and COFF header before
// anything else; a buffer that fails any of those checks yields a structured
// parse error. Past that point decoding degrades gracefully: an optional
// header or section header that would read beyond the buffer truncates the
// result instead of failing, and import extraction never fails at all.
//
// The returned Image is immutable and exclusively owned by the caller.
func Parse(data []byte) (*Image, error) {
	r := imageReader{data: data}

	if r.len() < dosHeaderSize {
		return nil, errors.TooSmall(dosHeaderSize, r.len())
	}

	magic, err := r.u16(0)
	if err != nil {
		return nil, err
	}
	if magic != dosMagic {
		return nil, errors.BadDosSignature(magic)
	}

	peOff32, err := r.u32(peOffsetField)
	if err != nil {
		return nil, err
	}
	peOff := int(peOff32)
	if peOff < 0 || !r.in(peOff, 4) {
		return nil, errors.OutOfBounds(errors.PhaseParse, "pe header offset", peOff, r.len())
	}

	sig, err := r.u32(peOff)
	if err != nil {
		return nil, err
	}
	if sig != peSignature {
		return nil, errors.BadPeSignature(sig)
	}

	img := &Image{
		DOS: DOSHeader{Magic: magic, PEHeaderOffset: peOff32},
	}

	coffOff := peOff + 4
	if !r.in(coffOff, coffHeaderSize) {
		return nil, errors.OutOfBounds(errors.PhaseParse, "coff header", coffOff, r.len())
	}
	if err := parseCOFF(r, coffOff, &img.COFF); err != nil {
		return nil, err
	}

	optOff := coffOff + coffHeaderSize
	optSize := int(img.COFF.SizeOfOptionalHeader)
	if optSize > 0 && r.in(optOff, optSize) {
		img.Optional = parseOptional(r, optOff, optSize, img.COFF.Machine == MachineAMD64)
	}

	sectionOff := optOff + optSize
	img.Sections = parseSections(r, sectionOff, int(img.COFF.NumberOfSections))

	img.Imports = parseImports(r, img)

	return img, nil
}

func parseCOFF(r imageReader, off int, hdr *COFFHeader) error {
	machine, err := r.u16(off)
	if err != nil {
		return err
	}
	hdr.Machine = Machine(machine)
	if hdr.NumberOfSections, err = r.u16(off + 2); err != nil {
		return err
	}
	if hdr.TimeDateStamp, err = r.u32(off + 4); err != nil {
		return err
	}
	if hdr.PointerToSymbolTable, err = r.u32(off + 8); err != nil {
		return err
	}
	if hdr.NumberOfSymbols, err = r.u32(off + 12); err != nil {
		return err
	}
	if hdr.SizeOfOptionalHeader, err = r.u16(off + 16); err != nil {
		return err
	}
	if hdr.Characteristics, err = r.u16(off + 18); err != nil {
		return err
	}
	return nil
}

// parseOptional decodes the optional header. The PE32 and PE32+ layouts
// diverge at ImageBase (4 vs 8 bytes at offset 28 vs 24) and at the
// NumberOfRvaAndSizes field (offset 92 vs 108); both shifts must be kept
// exactly. Fields whose offsets fall past the declared size are left zero
// rather than failing the parse.
func parseOptional(r imageReader, off, size int, is64 bool) *OptionalHeader {
	opt := &OptionalHeader{}

	read32 := func(rel int) uint32 {
		if rel+4 > size {
			return 0
		}
		v, err := r.u32(off + rel)
		if err != nil {
			return 0
		}
		return v
	}
	read16 := func(rel int) uint16 {
		if rel+2 > size {
			return 0
		}
		v, err := r.u16(off + rel)
		if err != nil {
			return 0
		}
		return v
	}

	opt.Magic = read16(0)
	opt.AddressOfEntryPoint = read32(16)

	var rvaCountOff, dirBase int
	if is64 {
		if size >= 32 {
			if v, err := r.u64(off + 24); err == nil {
				opt.ImageBase = v
			}
		}
		rvaCountOff = 108
		dirBase = 112
	} else {
		opt.ImageBase = uint64(read32(28))
		rvaCountOff = 92
		dirBase = 96
	}

	opt.SectionAlignment = read32(32)
	opt.FileAlignment = read32(36)
	opt.SizeOfImage = read32(56)
	opt.SizeOfHeaders = read32(60)
	opt.Subsystem = Subsystem(read16(68))
	opt.DLLCharacteristics = read16(70)
	opt.NumberOfRvaAndSizes = read32(rvaCountOff)

	count := int(opt.NumberOfRvaAndSizes)
	if count > 16 {
		count = 16
	}
	for i := 0; i < count; i++ {
		rel := dirBase + i*8
		if rel+8 > size {
			break
		}
		opt.DataDirectories = append(opt.DataDirectories, DataDirectory{
			VirtualAddress: read32(rel),
			Size:           read32(rel + 4),
		})
	}

	return opt
}

// parseSections reads up to count 40-byte section headers. A header that
// would run past the end of the buffer stops the walk with the sections
// collected so far; a truncated table is a partial result, not an error.
func parseSections(r imageReader, off, count int) []SectionHeader {
	var sections []SectionHeader
	for i := 0; i < count; i++ {
		base := off + i*sectionHeaderSize
		if !r.in(base, sectionHeaderSize) {
			break
		}
		name, err := r.paddedName(base)
		if err != nil {
			break
		}
		sec := SectionHeader{Name: name}
		sec.VirtualSize, _ = r.u32(base + 8)
		sec.VirtualAddress, _ = r.u32(base + 12)
		sec.SizeOfRawData, _ = r.u32(base + 16)
		sec.PointerToRawData, _ = r.u32(base + 20)
		sec.Characteristics, _ = r.u32(base + 36)
		sections = append(sections, sec)
	}
	return sections
}
