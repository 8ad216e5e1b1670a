// Package pe decodes Windows Portable Executable images.
//
// Parse works on an in-memory buffer and never performs I/O; ParseFile maps
// a file and hands the bytes to Parse. Decoding is deterministic and
// allocation-light: fixed little-endian fields at fixed offsets, every
// multi-byte read bounds-checked before it happens.
//
// Error behaviour is deliberately two-tiered. The signatures and COFF header
// are hard requirements and produce structured errors (too_small,
// bad_dos_signature, out_of_bounds, bad_pe_signature). Everything after them
// degrades gracefully: a truncated optional header or section table yields a
// partial Image, and the import walk collects what it can and falls back to
// a static system-DLL catalogue rather than ever failing. Real-world
// binaries are routinely damaged in exactly these trailing structures, and
// the launch pipeline wants a best-effort analysis rather than a refusal.
package pe
