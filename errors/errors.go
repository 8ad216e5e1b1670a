package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse    Phase = "parse"    // PE image decoding
	PhaseMemory   Phase = "memory"   // virtual address space operations
	PhaseResolve  Phase = "resolve"  // DLL/import resolution
	PhaseDispatch Phase = "dispatch" // Win32 API dispatch
	PhaseConfig   Phase = "config"   // container configuration
	PhaseLaunch   Phase = "launch"   // launch orchestration
)

// Kind categorizes the error
type Kind string

const (
	KindTooSmall       Kind = "too_small"
	KindBadDosSig      Kind = "bad_dos_signature"
	KindBadPeSig       Kind = "bad_pe_signature"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindOutOfMemory    Kind = "out_of_memory"
	KindPageStraddle   Kind = "page_straddle"
	KindUnbackedPage   Kind = "unbacked_page"
	KindNullPage       Kind = "null_page"
	KindNotFound       Kind = "not_found"
	KindDisabled       Kind = "disabled"
	KindAlreadyRunning Kind = "already_running"
	KindSpawnFailed    Kind = "spawn_failed"
	KindUnsupported    Kind = "unsupported"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidState   Kind = "invalid_state"
)

// Error is the structured error type used throughout the environment
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the component path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TooSmall creates a truncated-buffer error
func TooSmall(need, have int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindTooSmall,
		Detail: fmt.Sprintf("buffer too small: need %d bytes, have %d", need, have),
		Value:  have,
	}
}

// BadDosSignature creates a bad MZ magic error
func BadDosSignature(got uint16) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindBadDosSig,
		Detail: fmt.Sprintf("DOS signature 0x%04X, want 0x5A4D (MZ)", got),
		Value:  got,
	}
}

// BadPeSignature creates a bad PE magic error
func BadPeSignature(got uint32) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindBadPeSig,
		Detail: fmt.Sprintf("PE signature 0x%08X, want 0x00004550", got),
		Value:  got,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, what string, offset, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s: offset %d out of bounds (length %d)", what, offset, length),
		Value:  offset,
	}
}

// OutOfMemory creates a budget-exceeded allocation error
func OutOfMemory(requested, allocated, max uint64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("allocation of %d bytes exceeds budget (%d of %d in use)", requested, allocated, max),
		Value:  requested,
	}
}

// PageStraddle creates a cross-page access error
func PageStraddle(addr uint64, size int) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindPageStraddle,
		Detail: fmt.Sprintf("%d-byte access at 0x%X straddles a page boundary", size, addr),
		Value:  addr,
	}
}

// UnbackedPage creates a write-to-unmapped-page error
func UnbackedPage(addr uint64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindUnbackedPage,
		Detail: fmt.Sprintf("write to unbacked page at 0x%X", addr),
		Value:  addr,
	}
}

// NullPage creates a null-page access error
func NullPage(addr uint64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindNullPage,
		Detail: fmt.Sprintf("write to null page at 0x%X", addr),
		Value:  addr,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Disabled creates a module-disabled-by-policy error
func Disabled(module string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindDisabled,
		Detail: fmt.Sprintf("module %q disabled by override policy", module),
	}
}

// AlreadyRunning creates a second-launch-refused error
func AlreadyRunning(process string) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindAlreadyRunning,
		Detail: fmt.Sprintf("a session is already running (%s)", process),
	}
}

// SpawnFailed creates a process-spawn error
func SpawnFailed(binary string, cause error) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindSpawnFailed,
		Detail: fmt.Sprintf("spawn %s", binary),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidState creates an invalid state-transition error
func InvalidState(from, requested string) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("cannot %s from state %s", requested, from),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
