package memory

// Protection is a page protection flag set.
type Protection uint8

const (
	ProtNone Protection = 0
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExec

	ProtReadWrite = ProtRead | ProtWrite
	ProtAll       = ProtRead | ProtWrite | ProtExec
)

// String returns the rwx-style rendering of a protection set.
func (p Protection) String() string {
	buf := []byte("---")
	if p&ProtRead != 0 {
		buf[0] = 'r'
	}
	if p&ProtWrite != 0 {
		buf[1] = 'w'
	}
	if p&ProtExec != 0 {
		buf[2] = 'x'
	}
	return string(buf)
}

// Region describes one tracked range of the address space. Base and Size are
// always page-aligned. Permanent regions are created at construction and
// survive VirtualFree.
type Region struct {
	Base      uint64
	Size      uint64
	Name      string
	Prot      Protection
	Allocated bool
	permanent bool
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

func (r Region) overlaps(base, size uint64) bool {
	return base < r.End() && r.Base < base+size
}
