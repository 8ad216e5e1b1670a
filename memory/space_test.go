package memory

import (
	stderrors "errors"
	"testing"

	"github.com/winecask/winecask/errors"
)

func isKind(err error, kind errors.Kind) bool {
	return stderrors.Is(err, &errors.Error{Phase: errors.PhaseMemory, Kind: kind})
}

func TestNew_DefaultRegions(t *testing.T) {
	s := New(256)

	want := map[string]bool{"null": false, "exe": false, "dll": false, "stack": false, "heap": false}
	for _, r := range s.Regions() {
		if _, ok := want[r.Name]; ok {
			want[r.Name] = true
		}
		if r.Base%PageSize != 0 || r.Size%PageSize != 0 {
			t.Errorf("region %s not page-aligned: base 0x%X size 0x%X", r.Name, r.Base, r.Size)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("default region %s missing", name)
		}
	}
	if s.TotalAllocated() != 0 {
		t.Errorf("fresh space has %d bytes allocated", s.TotalAllocated())
	}
	if s.MaxMemory() != 256*1024*1024 {
		t.Errorf("max memory %d", s.MaxMemory())
	}
}

func TestVirtualAlloc_BudgetCeiling(t *testing.T) {
	s := New(1) // 1 MiB budget

	var addrs []uint64
	for {
		addr, err := s.VirtualAlloc(0, 64*1024, ProtReadWrite)
		if err != nil {
			if !isKind(err, errors.KindOutOfMemory) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		addrs = append(addrs, addr)
		if s.TotalAllocated() > s.MaxMemory() {
			t.Fatalf("allocated %d exceeds budget %d", s.TotalAllocated(), s.MaxMemory())
		}
	}
	if len(addrs) != 16 {
		t.Errorf("expected 16 64KiB allocations in 1MiB, got %d", len(addrs))
	}

	// Denied allocation leaves state unchanged.
	before := s.TotalAllocated()
	if _, err := s.VirtualAlloc(0, PageSize, ProtReadWrite); err == nil {
		t.Fatal("expected out-of-memory")
	}
	if s.TotalAllocated() != before {
		t.Errorf("failed alloc changed totalAllocated: %d -> %d", before, s.TotalAllocated())
	}
}

func TestVirtualAlloc_FreeIdempotence(t *testing.T) {
	s := New(64)
	const size = 3 * PageSize

	before := s.TotalAllocated()
	addr, err := s.VirtualAlloc(0, size, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}
	if addr%PageSize != 0 {
		t.Errorf("allocation not page-aligned: 0x%X", addr)
	}
	if addr < HeapBase || addr >= HeapLimit {
		t.Errorf("zero-addr allocation outside heap window: 0x%X", addr)
	}
	if s.TotalAllocated() != before+size {
		t.Errorf("allocated %d, want %d", s.TotalAllocated(), before+size)
	}

	if err := s.VirtualFree(addr, size); err != nil {
		t.Fatalf("VirtualFree error: %v", err)
	}
	if s.TotalAllocated() != before {
		t.Errorf("free did not restore counter: %d, want %d", s.TotalAllocated(), before)
	}
	for _, r := range s.Regions() {
		if r.Allocated && r.Base == addr {
			t.Error("freed region still recorded")
		}
	}
}

func TestVirtualAlloc_RebackedPagesNotDoubleCounted(t *testing.T) {
	s := New(64)

	addr, err := s.VirtualAlloc(HeapBase, 2*PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}
	first := s.TotalAllocated()

	// Pinned re-allocation over the same backed pages must not re-charge.
	if _, err := s.VirtualAlloc(addr, 2*PageSize, ProtReadWrite); err != nil {
		t.Fatalf("re-alloc error: %v", err)
	}
	if s.TotalAllocated() != first {
		t.Errorf("re-backed pages double-counted: %d, want %d", s.TotalAllocated(), first)
	}
}

func TestVirtualAlloc_FirstFitSkipsAllocated(t *testing.T) {
	s := New(64)

	a, err := s.VirtualAlloc(0, PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("alloc a: %v", err)
	}
	b, err := s.VirtualAlloc(0, PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("alloc b: %v", err)
	}
	if a == b {
		t.Errorf("first-fit returned overlapping allocations at 0x%X", a)
	}
}

func TestTypedReadWrite_Fidelity(t *testing.T) {
	s := New(64)
	addr, err := s.VirtualAlloc(0, PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}

	const v64 uint64 = 0xDEADBEEFCAFEF00D
	if err := s.WriteU64(addr+16, v64); err != nil {
		t.Fatalf("WriteU64 error: %v", err)
	}
	got, err := s.ReadU64(addr + 16)
	if err != nil {
		t.Fatalf("ReadU64 error: %v", err)
	}
	if got != v64 {
		t.Errorf("ReadU64 = 0x%X, want 0x%X", got, v64)
	}

	if err := s.WriteU32(addr+32, 0x12345678); err != nil {
		t.Fatalf("WriteU32 error: %v", err)
	}
	got32, err := s.ReadU32(addr + 32)
	if err != nil {
		t.Fatalf("ReadU32 error: %v", err)
	}
	if got32 != 0x12345678 {
		t.Errorf("ReadU32 = 0x%X", got32)
	}

	if err := s.WriteByte(addr+40, 0xAB); err != nil {
		t.Fatalf("WriteByte error: %v", err)
	}
	if b := s.ReadByte(addr + 40); b != 0xAB {
		t.Errorf("ReadByte = 0x%X", b)
	}
}

func TestTypedAccess_PageStraddleFaults(t *testing.T) {
	s := New(64)
	addr, err := s.VirtualAlloc(0, 2*PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}

	straddle := addr + PageSize - 4
	if err := s.WriteU64(straddle, 1); !isKind(err, errors.KindPageStraddle) {
		t.Errorf("WriteU64 straddle: %v", err)
	}
	if _, err := s.ReadU64(straddle); !isKind(err, errors.KindPageStraddle) {
		t.Errorf("ReadU64 straddle: %v", err)
	}
	// Page-interior access right at the same boundary is fine.
	if err := s.WriteU32(straddle, 1); err != nil {
		t.Errorf("WriteU32 at boundary-4: %v", err)
	}
}

func TestWrite_NullPageFaults(t *testing.T) {
	s := New(64)

	if err := s.WriteByte(0x10, 1); !isKind(err, errors.KindNullPage) {
		t.Errorf("WriteByte null page: %v", err)
	}
	if err := s.WriteU64(0x8000, 1); !isKind(err, errors.KindNullPage) {
		t.Errorf("WriteU64 null page: %v", err)
	}
	// Never written-and-readable.
	if b := s.ReadByte(0x10); b != 0 {
		t.Errorf("null page readback = 0x%X", b)
	}
	if _, err := s.VirtualAlloc(0x100, PageSize, ProtReadWrite); !isKind(err, errors.KindNullPage) {
		t.Errorf("pinned alloc in null page: %v", err)
	}
}

func TestWrite_UnbackedPageFaults(t *testing.T) {
	s := New(64)

	if err := s.WriteU32(0x90000000, 7); !isKind(err, errors.KindUnbackedPage) {
		t.Errorf("WriteU32 unbacked: %v", err)
	}
	// Reads from unbacked pages are demand-zero.
	if v, err := s.ReadU32(0x90000000); err != nil || v != 0 {
		t.Errorf("ReadU32 unbacked = %d, %v", v, err)
	}
}

func TestBulkReadWrite(t *testing.T) {
	s := New(64)
	addr, err := s.VirtualAlloc(0, 2*PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}

	// Spans the page boundary on purpose; bulk access is byte-wise.
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	start := addr + PageSize - 512
	if err := s.WriteBytes(start, data); err != nil {
		t.Fatalf("WriteBytes error: %v", err)
	}
	got := s.ReadBytes(start, len(data))
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d = 0x%X, want 0x%X", i, got[i], data[i])
		}
	}

	// A range touching an unbacked page writes nothing.
	if err := s.WriteBytes(addr+2*PageSize-4, data[:16]); !isKind(err, errors.KindUnbackedPage) {
		t.Errorf("WriteBytes into unbacked: %v", err)
	}
	if v := s.ReadBytes(addr+2*PageSize-4, 4); v[0] != 0 {
		t.Error("partial write observed after faulted WriteBytes")
	}
}

func TestVirtualFree_ClampsAndRecycles(t *testing.T) {
	s := New(64)
	addr, err := s.VirtualAlloc(0, PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("VirtualAlloc error: %v", err)
	}

	// Freeing more than was allocated clamps rather than underflowing.
	if err := s.VirtualFree(addr, 8*PageSize); err != nil {
		t.Fatalf("VirtualFree error: %v", err)
	}
	if s.TotalAllocated() != 0 {
		t.Errorf("totalAllocated %d after over-free", s.TotalAllocated())
	}

	// Recycled page ids must come back zeroed.
	addr2, err := s.VirtualAlloc(0, PageSize, ProtReadWrite)
	if err != nil {
		t.Fatalf("re-alloc error: %v", err)
	}
	if b := s.ReadByte(addr2 + 8); b != 0 {
		t.Errorf("recycled page not zeroed: 0x%X", b)
	}
}
