package launch

import (
	"github.com/winecask/winecask/config"
)

// Declarative tables for the OS-compatibility layer. Every choice resolves
// by table lookup with a "default" fallback row; no branching logic beyond
// that.

var windowsVersionEnv = map[string]map[string]string{
	"win11":   {"WINE_WINDOWS_VERSION": "win11"},
	"win10":   {"WINE_WINDOWS_VERSION": "win10"},
	"win81":   {"WINE_WINDOWS_VERSION": "win81"},
	"win7":    {"WINE_WINDOWS_VERSION": "win7"},
	"winxp":   {"WINE_WINDOWS_VERSION": "winxp"},
	"default": {"WINE_WINDOWS_VERSION": "win10"},
}

var dxWrapperEnv = map[string]map[string]string{
	"dxvk": {
		"DXVK_HUD":         "0",
		"DXVK_ASYNC":       "1",
		"DXVK_STATE_CACHE": "1",
		"WINEDLLOVERRIDES": "d3d8,d3d9,d3d10core,d3d11,dxgi=n",
	},
	"vkd3d": {
		"VKD3D_FEATURE_LEVEL": "12_1",
		"WINEDLLOVERRIDES":    "d3d12=n",
	},
	"wined3d": {
		"WINEDLLOVERRIDES": "d3d9,d3d11,dxgi=b",
	},
	"default": {},
}

var graphicsDriverEnv = map[string]map[string]string{
	"turnip": {
		"MESA_VK_DEVICE_SELECT": "turnip",
		"TU_DEBUG":              "noconform",
	},
	"virgl": {
		"GALLIUM_DRIVER": "virpipe",
	},
	"zink": {
		"MESA_LOADER_DRIVER_OVERRIDE": "zink",
		"GALLIUM_DRIVER":              "zink",
	},
	"llvmpipe": {
		"LIBGL_ALWAYS_SOFTWARE": "1",
	},
	"default": {},
}

func tableLookup(table map[string]map[string]string, key string) map[string]string {
	if row, ok := table[key]; ok {
		return row
	}
	return table["default"]
}

// CompatEnv assembles the compatibility-layer environment: prefix path,
// emulated Windows version, DX-wrapper variables, graphics-driver
// variables, then the container's user overrides last.
func CompatEnv(c config.Container) map[string]string {
	env := map[string]string{
		"WINEDEBUG": "-all",
	}
	if c.RootPath != "" {
		env["WINEPREFIX"] = c.RootPath
	}
	for k, v := range tableLookup(windowsVersionEnv, c.WindowsVersion) {
		env[k] = v
	}
	for k, v := range tableLookup(dxWrapperEnv, c.DXWrapper) {
		env[k] = v
	}
	for k, v := range tableLookup(graphicsDriverEnv, c.GraphicsDriver) {
		env[k] = v
	}
	for k, v := range c.EnvOverrides {
		env[k] = v
	}
	return env
}

// MergeEnv folds maps into one environment, later maps winning.
func MergeEnv(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
