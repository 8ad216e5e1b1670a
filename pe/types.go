package pe

// DOSHeader holds the two fields of the legacy DOS header the loader needs.
type DOSHeader struct {
	Magic          uint16
	PEHeaderOffset uint32
}

// COFFHeader is the 20-byte file header following the PE signature.
type COFFHeader struct {
	Machine              Machine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// DataDirectory locates a table (imports, exports, relocations...) by RVA.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// OptionalHeader holds the subset of the optional header the environment
// consumes. Field widths diverge between PE32 and PE32+; values are widened
// to 64 bits here.
type OptionalHeader struct {
	Magic               uint16
	AddressOfEntryPoint uint32
	ImageBase           uint64
	SectionAlignment    uint32
	FileAlignment       uint32
	SizeOfImage         uint32
	SizeOfHeaders       uint32
	Subsystem           Subsystem
	DLLCharacteristics  uint16
	NumberOfRvaAndSizes uint32
	DataDirectories     []DataDirectory
}

// SectionHeader is one 40-byte entry of the section table.
type SectionHeader struct {
	Name             string
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
	Characteristics  uint32
}

// ImportEntry lists the functions an image imports from one DLL.
type ImportEntry struct {
	DLLName   string
	Functions []string
}

// Image is the parsed, immutable view of one PE file. It is created by a
// single Parse call and never mutated afterwards; the caller owns it
// exclusively.
type Image struct {
	DOS      DOSHeader
	COFF     COFFHeader
	Optional *OptionalHeader // nil when SizeOfOptionalHeader is zero or truncated
	Sections []SectionHeader
	Imports  []ImportEntry
}

// Valid reports whether parsing produced a complete header set. Truncated
// images can parse with a nil optional header; those are not Valid.
func (img *Image) Valid() bool {
	return img.Optional != nil
}

// Is64Bit reports whether the image targets a 64-bit machine.
func (img *Image) Is64Bit() bool {
	return img.COFF.Machine == MachineAMD64 || img.COFF.Machine == MachineARM64
}

// IsDLL reports whether the image is a library rather than an executable.
func (img *Image) IsDLL() bool {
	return img.COFF.Characteristics&CharacteristicsDLL != 0
}

// ArchitectureString returns a human-readable architecture name.
func (img *Image) ArchitectureString() string {
	return img.COFF.Machine.String()
}

// SubsystemString returns a human-readable subsystem name, or "unknown"
// when the optional header is absent.
func (img *Image) SubsystemString() string {
	if img.Optional == nil {
		return "unknown"
	}
	return img.Optional.Subsystem.String()
}

// EntryPoint returns the virtual address of the entry point, or zero when
// the optional header is absent.
func (img *Image) EntryPoint() uint64 {
	if img.Optional == nil {
		return 0
	}
	return img.Optional.ImageBase + uint64(img.Optional.AddressOfEntryPoint)
}

// Section returns the section with the given name, or nil.
func (img *Image) Section(name string) *SectionHeader {
	for i := range img.Sections {
		if img.Sections[i].Name == name {
			return &img.Sections[i]
		}
	}
	return nil
}

// RVAToOffset translates a relative virtual address to a file offset using
// the section table. The second result is false when no section covers rva.
func (img *Image) RVAToOffset(rva uint32) (uint32, bool) {
	for i := range img.Sections {
		s := &img.Sections[i]
		size := s.VirtualSize
		if size == 0 {
			size = s.SizeOfRawData
		}
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+size {
			return rva - s.VirtualAddress + s.PointerToRawData, true
		}
	}
	return 0, false
}

// DataDirectory returns the directory at index idx, or a zero directory when
// the optional header is absent or the index is past NumberOfRvaAndSizes.
func (img *Image) DataDirectory(idx int) DataDirectory {
	if img.Optional == nil || idx < 0 || idx >= len(img.Optional.DataDirectories) {
		return DataDirectory{}
	}
	return img.Optional.DataDirectories[idx]
}
