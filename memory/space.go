package memory

import (
	"encoding/binary"
	"sync"

	"github.com/winecask/winecask/errors"
)

// PageSize is the granularity of the simulated address space.
const PageSize = 4096

const pageMask = PageSize - 1

// Fixed layout of the emulated process. These regions exist for the life of
// the space and are never removed.
const (
	NullBase  = 0x0
	NullSize  = 0x10000
	ImageBase = 0x00400000
	ImageSize = 0x10000000 - ImageBase
	DLLBase   = 0x10000000
	DLLSize   = 0x70000000 - DLLBase
	StackTop  = 0x7FFF0000
	StackSize = 0x00100000
	HeapBase  = 0x80000000
	HeapLimit = 0xC0000000
)

// Space is a page-granular simulated virtual address space. Backing pages
// live in an arena of fixed-size buffers indexed by page id; an index layer
// maps page base addresses to ids, so lookup stays O(1) without keying maps
// by raw pointers.
//
// A Space is owned by exactly one launch session and is safe for concurrent
// use within it.
type Space struct {
	mu        sync.Mutex
	pages     [][]byte
	freeIDs   []int
	pageIndex map[uint64]int
	regions   []Region
	allocated uint64
	max       uint64
}

// New constructs a space with the given RAM budget and the fixed default
// region layout (null page, EXE image window, DLL window, stack, heap).
func New(maxMemoryMB int) *Space {
	if maxMemoryMB <= 0 {
		maxMemoryMB = 256
	}
	s := &Space{
		pageIndex: make(map[uint64]int),
		max:       uint64(maxMemoryMB) * 1024 * 1024,
	}
	s.regions = []Region{
		{Base: NullBase, Size: NullSize, Name: "null", Prot: ProtNone, permanent: true},
		{Base: ImageBase, Size: ImageSize, Name: "exe", Prot: ProtRead | ProtExec, permanent: true},
		{Base: DLLBase, Size: DLLSize, Name: "dll", Prot: ProtRead | ProtExec, permanent: true},
		{Base: StackTop - StackSize, Size: StackSize, Name: "stack", Prot: ProtReadWrite, permanent: true},
		{Base: HeapBase, Size: HeapLimit - HeapBase, Name: "heap", Prot: ProtReadWrite, permanent: true},
	}
	return s
}

func alignDown(v uint64) uint64 { return v &^ uint64(pageMask) }

func alignUp(v uint64) uint64 { return (v + pageMask) &^ uint64(pageMask) }

// VirtualAlloc reserves and backs size bytes. A non-zero addr is aligned
// down and pinned (used for fixed image bases); addr zero picks the first
// gap in the heap window not overlapping an allocated region. Pages already
// backed are reused as-is and are not charged against the budget again.
//
// Allocation failure (budget exceeded, heap window exhausted) is a
// recoverable condition: the space is left unchanged and callers translate
// the error into the emulated process's own null-return convention.
func (s *Space) VirtualAlloc(addr, size uint64, prot Protection) (uint64, error) {
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseMemory, "zero-size allocation")
	}
	aligned := alignUp(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allocated+aligned > s.max {
		return 0, errors.OutOfMemory(aligned, s.allocated, s.max)
	}

	var base uint64
	if addr != 0 {
		base = alignDown(addr)
		if base < NullSize {
			return 0, errors.NullPage(addr)
		}
	} else {
		var ok bool
		base, ok = s.findHeapGap(aligned)
		if !ok {
			return 0, errors.OutOfMemory(aligned, s.allocated, s.max)
		}
	}

	for page := base; page < base+aligned; page += PageSize {
		if _, backed := s.pageIndex[page]; backed {
			continue
		}
		s.backPage(page)
		s.allocated += PageSize
	}

	s.regions = append(s.regions, Region{
		Base:      base,
		Size:      aligned,
		Name:      "alloc",
		Prot:      prot,
		Allocated: true,
	})
	return base, nil
}

// VirtualFree releases every page in the aligned range, returns their bytes
// to the budget and drops allocated region records fully contained in the
// range. Permanent regions are untouched.
func (s *Space) VirtualFree(addr, size uint64) error {
	if size == 0 {
		return errors.InvalidInput(errors.PhaseMemory, "zero-size free")
	}
	base := alignDown(addr)
	aligned := alignUp(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	for page := base; page < base+aligned; page += PageSize {
		id, backed := s.pageIndex[page]
		if !backed {
			continue
		}
		delete(s.pageIndex, page)
		s.pages[id] = nil
		s.freeIDs = append(s.freeIDs, id)
		if s.allocated >= PageSize {
			s.allocated -= PageSize
		} else {
			s.allocated = 0
		}
	}

	kept := s.regions[:0]
	for _, r := range s.regions {
		if r.Allocated && !r.permanent && r.Base >= base && r.End() <= base+aligned {
			continue
		}
		kept = append(kept, r)
	}
	s.regions = kept
	return nil
}

// findHeapGap runs a first-fit scan over the heap window for a range not
// overlapping any allocated region.
func (s *Space) findHeapGap(size uint64) (uint64, bool) {
	candidate := uint64(HeapBase)
	for candidate+size <= HeapLimit {
		conflict := false
		for _, r := range s.regions {
			if r.Allocated && r.overlaps(candidate, size) {
				candidate = alignUp(r.End())
				conflict = true
				break
			}
		}
		if !conflict {
			return candidate, true
		}
	}
	return 0, false
}

func (s *Space) backPage(page uint64) {
	buf := make([]byte, PageSize)
	var id int
	if n := len(s.freeIDs); n > 0 {
		id = s.freeIDs[n-1]
		s.freeIDs = s.freeIDs[:n-1]
		s.pages[id] = buf
	} else {
		id = len(s.pages)
		s.pages = append(s.pages, buf)
	}
	s.pageIndex[page] = id
}

// page returns the backing buffer for the page containing addr, or nil.
func (s *Space) page(addr uint64) []byte {
	id, ok := s.pageIndex[alignDown(addr)]
	if !ok {
		return nil
	}
	return s.pages[id]
}

// checkAccess validates a typed access of size bytes at addr. Values must
// not straddle pages; the environment's typed accessors are single-page by
// contract and faulting beats silent corruption.
func checkAccess(addr uint64, size int) error {
	if addr&pageMask+uint64(size) > PageSize {
		return errors.PageStraddle(addr, size)
	}
	return nil
}

// ReadByte reads one byte. Unbacked pages read as zero (demand-zero
// semantics; read-before-allocate is tolerated).
func (s *Space) ReadByte(addr uint64) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// ReadU32 reads a little-endian uint32 from a page-local address.
func (s *Space) ReadU32(addr uint64) (uint32, error) {
	if err := checkAccess(addr, 4); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return 0, nil
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint32(p[off:]), nil
}

// ReadU64 reads a little-endian uint64 from a page-local address.
func (s *Space) ReadU64(addr uint64) (uint64, error) {
	if err := checkAccess(addr, 8); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return 0, nil
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint64(p[off:]), nil
}

// WriteByte writes one byte. Writes to the null page or to unbacked pages
// fault explicitly rather than dropping data.
func (s *Space) WriteByte(addr uint64, v byte) error {
	if addr < NullSize {
		return errors.NullPage(addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return errors.UnbackedPage(addr)
	}
	p[addr&pageMask] = v
	return nil
}

// WriteU32 writes a little-endian uint32 to a page-local address.
func (s *Space) WriteU32(addr uint64, v uint32) error {
	if addr < NullSize {
		return errors.NullPage(addr)
	}
	if err := checkAccess(addr, 4); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return errors.UnbackedPage(addr)
	}
	binary.LittleEndian.PutUint32(p[addr&pageMask:], v)
	return nil
}

// WriteU64 writes a little-endian uint64 to a page-local address.
func (s *Space) WriteU64(addr uint64, v uint64) error {
	if addr < NullSize {
		return errors.NullPage(addr)
	}
	if err := checkAccess(addr, 8); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page(addr)
	if p == nil {
		return errors.UnbackedPage(addr)
	}
	binary.LittleEndian.PutUint64(p[addr&pageMask:], v)
	return nil
}

// ReadBytes copies n bytes starting at addr, crossing pages as needed.
// Unbacked pages contribute zeros.
func (s *Space) ReadBytes(addr uint64, n int) []byte {
	out := make([]byte, n)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; {
		p := s.page(addr + uint64(i))
		off := int((addr + uint64(i)) & pageMask)
		chunk := PageSize - off
		if chunk > n-i {
			chunk = n - i
		}
		if p != nil {
			copy(out[i:i+chunk], p[off:off+chunk])
		}
		i += chunk
	}
	return out
}

// WriteBytes copies data into the space starting at addr, crossing pages as
// needed. The whole range is validated first, so a fault writes nothing.
func (s *Space) WriteBytes(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if addr < NullSize {
		return errors.NullPage(addr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for page := alignDown(addr); page < addr+uint64(len(data)); page += PageSize {
		if _, backed := s.pageIndex[page]; !backed {
			return errors.UnbackedPage(page)
		}
	}
	for i := 0; i < len(data); {
		p := s.page(addr + uint64(i))
		off := int((addr + uint64(i)) & pageMask)
		chunk := PageSize - off
		if chunk > len(data)-i {
			chunk = len(data) - i
		}
		copy(p[off:off+chunk], data[i:i+chunk])
		i += chunk
	}
	return nil
}

// TotalAllocated returns the bytes currently backed by pages.
func (s *Space) TotalAllocated() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated
}

// MaxMemory returns the budget ceiling set at construction.
func (s *Space) MaxMemory() uint64 {
	return s.max
}

// Regions returns a snapshot of the current region list.
func (s *Space) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}
