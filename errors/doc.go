// Package errors provides structured error types for the winecask environment.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: component path, offending
// value, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindNotFound).
//		Path("loader", "d3d11").
//		Detail("no native DLL in any search path").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadDosSignature(0x4D5A)
//	err := errors.OutOfMemory(4096, allocated, max)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree, so
// callers can test against a prototype:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseMemory, Kind: errors.KindOutOfMemory}) {
//		// handle budget exhaustion
//	}
package errors
