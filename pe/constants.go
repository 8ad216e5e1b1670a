package pe

// Signatures and well-known magic values from the PE/COFF specification.
const (
	dosMagic    = 0x5A4D     // "MZ"
	peSignature = 0x00004550 // "PE\0\0"

	peOffsetField        = 60 // e_lfanew: file offset of the PE signature
	dosHeaderSize        = 64
	coffHeaderSize       = 20
	sectionHeaderSize    = 40
	importDescriptorSize = 20
)

// Machine identifies the target CPU architecture (IMAGE_FILE_MACHINE_*).
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14C
	MachineAMD64   Machine = 0x8664
	MachineARM     Machine = 0x1C0
	MachineARM64   Machine = 0xAA64
)

// Optional header magic values.
const (
	MagicPE32     = 0x10B // 32-bit image
	MagicPE32Plus = 0x20B // 64-bit image
)

// Subsystem identifies the Windows subsystem the image targets.
type Subsystem uint16

const (
	SubsystemUnknown    Subsystem = 0
	SubsystemNative     Subsystem = 1
	SubsystemWindowsGUI Subsystem = 2
	SubsystemWindowsCUI Subsystem = 3
	SubsystemEFIApp     Subsystem = 10
)

// COFF characteristics flags (IMAGE_FILE_*).
const (
	CharacteristicsExecutable uint16 = 0x0002
	CharacteristicsLargeAware uint16 = 0x0020
	Characteristics32BitWord  uint16 = 0x0100
	CharacteristicsDLL        uint16 = 0x2000
)

// Section characteristics flags (IMAGE_SCN_*).
const (
	SectionCode              uint32 = 0x00000020
	SectionInitializedData   uint32 = 0x00000040
	SectionUninitializedData uint32 = 0x00000080
	SectionMemExecute        uint32 = 0x20000000
	SectionMemRead           uint32 = 0x40000000
	SectionMemWrite          uint32 = 0x80000000
)

// Data directory indices (IMAGE_DIRECTORY_ENTRY_*).
const (
	DirectoryExport    = 0
	DirectoryImport    = 1
	DirectoryResource  = 2
	DirectoryBaseReloc = 5
	DirectoryTLS       = 9
	DirectoryIAT       = 12
)

// String returns the architecture name for a machine value.
func (m Machine) String() string {
	switch m {
	case MachineI386:
		return "x86 (32-bit)"
	case MachineAMD64:
		return "x86-64 (64-bit)"
	case MachineARM:
		return "ARM (32-bit)"
	case MachineARM64:
		return "ARM64"
	default:
		return "unknown"
	}
}

// String returns the subsystem name for a subsystem value.
func (s Subsystem) String() string {
	switch s {
	case SubsystemNative:
		return "Native"
	case SubsystemWindowsGUI:
		return "Windows GUI"
	case SubsystemWindowsCUI:
		return "Windows Console"
	case SubsystemEFIApp:
		return "EFI Application"
	default:
		return "unknown"
	}
}
