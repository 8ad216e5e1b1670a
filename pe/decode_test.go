package pe

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	"github.com/winecask/winecask/errors"
)

func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putU64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:], v) }

const (
	testPEOffset  = 64
	testCOFFOff   = testPEOffset + 4
	testOptOff    = testCOFFOff + 20
	testOptSize64 = 240
	testOptSize32 = 224
)

// minimalImage64 builds the smallest well-formed PE32+ image: DOS header,
// PE signature, COFF header, full-size optional header, zero sections.
func minimalImage64(numSections uint16) []byte {
	b := make([]byte, testOptOff+testOptSize64+int(numSections)*40)
	putU16(b, 0, 0x5A4D)
	putU32(b, 60, testPEOffset)
	putU32(b, testPEOffset, 0x00004550)
	putU16(b, testCOFFOff, 0x8664)
	putU16(b, testCOFFOff+2, numSections)
	putU16(b, testCOFFOff+16, testOptSize64)
	putU16(b, testOptOff, MagicPE32Plus)
	putU32(b, testOptOff+16, 0x1000)      // entry point
	putU64(b, testOptOff+24, 0x140000000) // image base
	putU16(b, testOptOff+68, 2)           // Windows GUI
	putU32(b, testOptOff+108, 16)         // rva/size count
	return b
}

func TestParse_Minimal64(t *testing.T) {
	img, err := Parse(minimalImage64(0))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if !img.Is64Bit() {
		t.Error("expected 64-bit image")
	}
	if !img.Valid() {
		t.Error("complete image reported invalid")
	}
	if got := img.ArchitectureString(); got != "x86-64 (64-bit)" {
		t.Errorf("architecture %q, want %q", got, "x86-64 (64-bit)")
	}
	if img.Optional == nil {
		t.Fatal("expected optional header")
	}
	if img.Optional.ImageBase != 0x140000000 {
		t.Errorf("image base 0x%X, want 0x140000000", img.Optional.ImageBase)
	}
	if img.Optional.Subsystem != SubsystemWindowsGUI {
		t.Errorf("subsystem %d, want Windows GUI", img.Optional.Subsystem)
	}
	if got := img.SubsystemString(); got != "Windows GUI" {
		t.Errorf("subsystem string %q", got)
	}
	if img.EntryPoint() != 0x140001000 {
		t.Errorf("entry point 0x%X, want 0x140001000", img.EntryPoint())
	}
	if len(img.Sections) != 0 {
		t.Errorf("expected 0 sections, got %d", len(img.Sections))
	}
}

func TestParse_PE32(t *testing.T) {
	b := make([]byte, testOptOff+testOptSize32)
	putU16(b, 0, 0x5A4D)
	putU32(b, 60, testPEOffset)
	putU32(b, testPEOffset, 0x00004550)
	putU16(b, testCOFFOff, 0x14C) // i386
	putU16(b, testCOFFOff+16, testOptSize32)
	putU16(b, testOptOff, MagicPE32)
	putU32(b, testOptOff+28, 0x00400000) // 4-byte image base
	putU16(b, testOptOff+68, 3)          // console
	putU32(b, testOptOff+92, 16)         // rva count at the PE32 offset

	img, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if img.Is64Bit() {
		t.Error("expected 32-bit image")
	}
	if img.Optional.ImageBase != 0x00400000 {
		t.Errorf("image base 0x%X, want 0x00400000", img.Optional.ImageBase)
	}
	if img.Optional.NumberOfRvaAndSizes != 16 {
		t.Errorf("rva count %d, want 16", img.Optional.NumberOfRvaAndSizes)
	}
	if got := img.SubsystemString(); got != "Windows Console" {
		t.Errorf("subsystem string %q", got)
	}
}

func TestParse_ErrorLadder(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"empty", nil, errors.KindTooSmall},
		{"short", make([]byte, 63), errors.KindTooSmall},
		{"bad dos magic", func() []byte {
			b := make([]byte, 64)
			b[0], b[1] = 'Z', 'M'
			return b
		}(), errors.KindBadDosSig},
		{"pe offset past end", func() []byte {
			b := make([]byte, 64)
			putU16(b, 0, 0x5A4D)
			putU32(b, 60, 0xFFFF0000)
			return b
		}(), errors.KindOutOfBounds},
		{"bad pe signature", func() []byte {
			b := make([]byte, 128)
			putU16(b, 0, 0x5A4D)
			putU32(b, 60, 64)
			putU32(b, 64, 0x00004551)
			return b
		}(), errors.KindBadPeSig},
		{"truncated coff", func() []byte {
			b := make([]byte, 70)
			putU16(b, 0, 0x5A4D)
			putU32(b, 60, 64)
			putU32(b, 64, 0x00004550)
			return b
		}(), errors.KindOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Parse(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if img != nil {
				t.Error("expected nil image on error")
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: tt.kind}) {
				t.Errorf("error %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestParse_PartialSectionTable(t *testing.T) {
	// Declare four sections but truncate the buffer after the first one.
	b := minimalImage64(4)
	secOff := testOptOff + testOptSize64
	copy(b[secOff:], ".text\x00\x00\x00")
	putU32(b, secOff+8, 0x2000)  // virtual size
	putU32(b, secOff+12, 0x1000) // virtual address
	b = b[:secOff+40]

	img, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(img.Sections) != 1 {
		t.Fatalf("expected 1 section from truncated table, got %d", len(img.Sections))
	}
	if img.Sections[0].Name != ".text" {
		t.Errorf("section name %q, want .text", img.Sections[0].Name)
	}
	if img.COFF.NumberOfSections != 4 {
		t.Errorf("declared section count %d, want 4", img.COFF.NumberOfSections)
	}
}

func TestParse_MissingOptionalHeader(t *testing.T) {
	b := make([]byte, testOptOff)
	putU16(b, 0, 0x5A4D)
	putU32(b, 60, testPEOffset)
	putU32(b, testPEOffset, 0x00004550)
	putU16(b, testCOFFOff, 0x8664)
	// SizeOfOptionalHeader left zero.

	img, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if img.Optional != nil {
		t.Error("expected nil optional header")
	}
	if got := img.SubsystemString(); got != "unknown" {
		t.Errorf("subsystem string %q, want unknown", got)
	}
	if img.Valid() {
		t.Error("truncated image reported valid")
	}
	if img.EntryPoint() != 0 {
		t.Errorf("entry point 0x%X, want 0", img.EntryPoint())
	}
}

func TestRVAToOffset(t *testing.T) {
	b := minimalImage64(1)
	secOff := testOptOff + testOptSize64
	copy(b[secOff:], ".data\x00\x00\x00")
	putU32(b, secOff+8, 0x1000)  // virtual size
	putU32(b, secOff+12, 0x2000) // virtual address
	putU32(b, secOff+16, 0x1000) // raw size
	putU32(b, secOff+20, 0x400)  // raw pointer

	img, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	off, ok := img.RVAToOffset(0x2080)
	if !ok || off != 0x480 {
		t.Errorf("RVAToOffset(0x2080) = 0x%X,%v; want 0x480,true", off, ok)
	}
	if _, ok := img.RVAToOffset(0x9000); ok {
		t.Error("expected miss for RVA outside all sections")
	}
	if img.Section(".data") == nil {
		t.Error("Section(.data) not found")
	}
	if img.Section(".text") != nil {
		t.Error("Section(.text) should be absent")
	}
}

func FuzzParse(f *testing.F) {
	f.Add([]byte{})
	f.Add(minimalImage64(0))
	f.Add(minimalImage64(8)[:200])
	bad := minimalImage64(0)
	putU32(bad, 60, 0xFFFFFFF0)
	f.Add(bad)

	f.Fuzz(func(t *testing.T, data []byte) {
		// Primary property: Parse never panics or reads out of bounds,
		// whatever the input.
		img, err := Parse(data)

		// Any buffer that does not start with "MZ" must be rejected with
		// the DOS-signature error, never anything else past the size check.
		if len(data) >= 64 && (data[0] != 'M' || data[1] != 'Z') {
			if err == nil {
				t.Fatal("accepted buffer without MZ magic")
			}
		}
		if err == nil && img == nil {
			t.Fatal("nil image with nil error")
		}
	})
}
