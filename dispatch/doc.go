// Package dispatch maintains the table of emulated Win32 API entry points.
//
// The table is a two-level registry (DLL name, function name) -> handler
// used to satisfy the imports a PE image declares when no real DLL is
// available. Handlers take raw 64-bit argument words and return one 64-bit
// value; the contract deliberately mirrors a calling convention's register
// slots so a real translation engine could drive the same table.
//
// Calls to unregistered entry points are a normal condition, not an error:
// they log at debug level and return zero, matching the "unimplemented
// Win32 call returns a benign value" behaviour Windows binaries expect from
// probing optional APIs.
package dispatch
