package launch

import (
	"strconv"
	"strings"

	"github.com/winecask/winecask/config"
	"github.com/winecask/winecask/errors"
)

// Preset keys the architecture translator's tuning profile.
type Preset int

const (
	PresetCompatibility Preset = iota
	PresetPerformance
	PresetGaming
	PresetCustom
)

// String returns the configuration spelling of the preset.
func (p Preset) String() string {
	switch p {
	case PresetPerformance:
		return "performance"
	case PresetGaming:
		return "gaming"
	case PresetCustom:
		return "custom"
	default:
		return "compatibility"
	}
}

// ParsePreset converts a configuration string into a Preset.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(s) {
	case "compatibility", "":
		return PresetCompatibility, nil
	case "performance":
		return PresetPerformance, nil
	case "gaming":
		return PresetGaming, nil
	case "custom":
		return PresetCustom, nil
	default:
		return PresetCompatibility, errors.InvalidInput(errors.PhaseConfig, "unknown preset "+s)
	}
}

// translatorPresets are the per-preset dynarec flag tables. Everything here
// is declarative; selection is a lookup, never behavioural branching.
var translatorPresets = map[Preset]map[string]string{
	PresetCompatibility: {
		"BOX64_DYNAREC_BIGBLOCK":  "0",
		"BOX64_DYNAREC_STRONGMEM": "2",
		"BOX64_DYNAREC_FASTNAN":   "0",
		"BOX64_DYNAREC_FASTROUND": "0",
		"BOX64_DYNAREC_SAFEFLAGS": "2",
		"BOX64_DYNAREC_X87DOUBLE": "1",
	},
	PresetPerformance: {
		"BOX64_DYNAREC_BIGBLOCK":  "2",
		"BOX64_DYNAREC_STRONGMEM": "0",
		"BOX64_DYNAREC_FASTNAN":   "1",
		"BOX64_DYNAREC_FASTROUND": "1",
		"BOX64_DYNAREC_SAFEFLAGS": "0",
		"BOX64_DYNAREC_X87DOUBLE": "0",
	},
	PresetGaming: {
		"BOX64_DYNAREC_BIGBLOCK":  "1",
		"BOX64_DYNAREC_STRONGMEM": "1",
		"BOX64_DYNAREC_FASTNAN":   "1",
		"BOX64_DYNAREC_FASTROUND": "1",
		"BOX64_DYNAREC_SAFEFLAGS": "1",
		"BOX64_DYNAREC_X87DOUBLE": "0",
		"BOX64_DYNAREC_CALLRET":   "1",
	},
	PresetCustom: {},
}

// TranslatorEnv assembles the CPU-translator environment for one launch:
// preset table first, then container-derived values, then the container's
// user overrides. Later entries always win.
func TranslatorEnv(p Preset, c config.Container) map[string]string {
	env := map[string]string{
		"BOX64_LOG":      "1",
		"BOX64_NOBANNER": "1",
	}
	for k, v := range translatorPresets[p] {
		env[k] = v
	}
	if c.CPUCores > 0 {
		env["BOX64_MAXCPU"] = strconv.Itoa(c.CPUCores)
	}
	for k, v := range c.EnvOverrides {
		if strings.HasPrefix(k, "BOX64_") {
			env[k] = v
		}
	}
	return env
}
