package pe

import (
	"encoding/binary"
	"strings"

	"github.com/winecask/winecask/errors"
)

// imageReader provides bounds-checked little-endian reads at fixed offsets
// into an in-memory image. Every multi-byte read validates its full extent
// before touching the buffer, so malformed headers can never index past the
// end of the data.
type imageReader struct {
	data []byte
}

func (r imageReader) len() int {
	return len(r.data)
}

func (r imageReader) in(off, n int) bool {
	return off >= 0 && n >= 0 && off+n <= len(r.data) && off+n >= off
}

func (r imageReader) u8(off int) (uint8, error) {
	if !r.in(off, 1) {
		return 0, errors.OutOfBounds(errors.PhaseParse, "u8", off, len(r.data))
	}
	return r.data[off], nil
}

func (r imageReader) u16(off int) (uint16, error) {
	if !r.in(off, 2) {
		return 0, errors.OutOfBounds(errors.PhaseParse, "u16", off, len(r.data))
	}
	return binary.LittleEndian.Uint16(r.data[off:]), nil
}

func (r imageReader) u32(off int) (uint32, error) {
	if !r.in(off, 4) {
		return 0, errors.OutOfBounds(errors.PhaseParse, "u32", off, len(r.data))
	}
	return binary.LittleEndian.Uint32(r.data[off:]), nil
}

func (r imageReader) u64(off int) (uint64, error) {
	if !r.in(off, 8) {
		return 0, errors.OutOfBounds(errors.PhaseParse, "u64", off, len(r.data))
	}
	return binary.LittleEndian.Uint64(r.data[off:]), nil
}

// paddedName reads an 8-byte space of a section name, trimming the NUL
// padding PE uses for names shorter than eight characters.
func (r imageReader) paddedName(off int) (string, error) {
	if !r.in(off, 8) {
		return "", errors.OutOfBounds(errors.PhaseParse, "name", off, len(r.data))
	}
	return strings.TrimRight(string(r.data[off:off+8]), "\x00"), nil
}

// cstring reads a NUL-terminated string at off, capped at max bytes. A
// missing terminator within the cap returns ok=false.
func (r imageReader) cstring(off, max int) (string, bool) {
	if off < 0 || off >= len(r.data) {
		return "", false
	}
	end := off + max
	if end > len(r.data) || end < off {
		end = len(r.data)
	}
	for i := off; i < end; i++ {
		if r.data[i] == 0 {
			return string(r.data[off:i]), true
		}
	}
	return "", false
}
