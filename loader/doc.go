// Package loader resolves a PE image's DLL imports to modules.
//
// Each requested module resolves either to a real file found in the
// container search paths (native) or to a builtin stub backed by the
// dispatch table, governed by a per-module override Policy. Base addresses
// are synthetic: a monotonic bump allocator hands each module the next
// 64 KiB-aligned slot, which is enough for address-identity bookkeeping
// without a real relocation scheme.
//
// Loads are idempotent within a session and resolution failures are
// designed to degrade (stub record, logged refusal) rather than abort,
// because Windows binaries routinely import modules they never call.
package loader
