// Package memory implements the page-granular simulated address space the
// emulated process runs against.
//
// The space tracks a fixed region layout (null page, EXE image window, DLL
// window, stack, heap) plus dynamic allocations made through VirtualAlloc.
// Backing storage is an arena of 4 KiB page buffers indexed by page id with
// an address-to-id map on top, so page lookup is O(1) and no raw pointers
// are ever used as map keys.
//
// Access semantics follow demand-zero loading on the read side (unbacked
// pages read as zero) and fault explicitly on the write side: writes to
// unbacked pages and to the null page return structured errors instead of
// silently dropping data. Typed multi-byte accessors are single-page by
// contract and report page-straddling addresses as errors.
package memory
