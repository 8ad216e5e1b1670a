package pe

import (
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/winecask/winecask/errors"
)

// ParseFile maps path into memory, parses it as a PE image and returns the
// result. The mapping is released before returning; the Image holds no
// reference to the file.
func ParseFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "open "+path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "stat "+path)
	}
	if info.Size() == 0 {
		return nil, errors.TooSmall(dosHeaderSize, 0)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Mapping can fail on exotic filesystems; fall back to a plain read.
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, rerr, "read "+path)
		}
		return Parse(data)
	}
	defer m.Unmap()

	return Parse(m)
}
