package loader

import (
	"strings"

	"github.com/winecask/winecask/errors"
)

// Policy is the closed set of per-module override strategies. It replaces
// the loose "native,builtin"-style strings of user configuration with a
// tagged value decided once at configuration time.
type Policy int

const (
	// NativeThenBuiltin tries a real on-disk DLL first and falls back to
	// the builtin stub. This is the default for unseeded modules.
	NativeThenBuiltin Policy = iota
	// BuiltinThenNative prefers the builtin stub, using a native DLL only
	// when no stub module exists.
	BuiltinThenNative
	// Native only accepts a real on-disk DLL.
	Native
	// Builtin only synthesizes a stub record.
	Builtin
	// Disabled refuses to load the module at all.
	Disabled
)

// String returns the configuration spelling of the policy.
func (p Policy) String() string {
	switch p {
	case Native:
		return "native"
	case Builtin:
		return "builtin"
	case Disabled:
		return "disabled"
	case BuiltinThenNative:
		return "builtin,native"
	default:
		return "native,builtin"
	}
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "native":
		return Native, nil
	case "builtin":
		return Builtin, nil
	case "disabled", "":
		return Disabled, nil
	case "native,builtin":
		return NativeThenBuiltin, nil
	case "builtin,native":
		return BuiltinThenNative, nil
	default:
		return NativeThenBuiltin, errors.InvalidInput(errors.PhaseResolve, "unknown override policy "+s)
	}
}

// Modules whose stubs the environment always prefers; real system DLLs from
// a container would fight the API dispatch table.
var builtinSeeds = []string{
	"kernel32", "user32", "gdi32", "ntdll", "advapi32",
	"shell32", "ole32", "msvcrt", "ws2_32",
}

// DirectX and input/audio families default to native: their container
// builds (DXVK and friends) are the whole point of the graphics pipeline.
var nativeSeeds = []string{
	"d3d8", "d3d9", "d3d10", "d3d10core", "d3d11", "d3d12",
	"dxgi", "d3dcompiler_43", "d3dcompiler_47",
	"xinput1_3", "xinput1_4", "xinput9_1_0",
	"xaudio2_7", "xaudio2_9",
}

func seedOverrides() map[string]Policy {
	seeds := make(map[string]Policy, len(builtinSeeds)+len(nativeSeeds))
	for _, name := range builtinSeeds {
		seeds[name] = Builtin
	}
	for _, name := range nativeSeeds {
		seeds[name] = Native
	}
	return seeds
}
