package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/winecask/winecask/errors"
)

// Container is the configuration snapshot for one emulated Windows
// environment. The launch pipeline consumes it verbatim; creating the
// on-disk layout (Program Files, System32, registry stubs) belongs to the
// container manager, not to this core.
type Container struct {
	// Name identifies the container in logs.
	Name string

	// RootPath is the filesystem root holding Program Files, System32 and
	// the system.reg/user.reg registry stubs. Read, never created.
	RootPath string

	// WindowsVersion is the emulated Windows version tag ("win10", "win7").
	WindowsVersion string

	// GraphicsDriver selects the host graphics stack ("turnip", "virgl",
	// "zink", "llvmpipe").
	GraphicsDriver string

	// DXWrapper selects the DirectX translation layer ("dxvk", "wined3d",
	// "vkd3d").
	DXWrapper string

	// Resolution is the emulated display mode, "WIDTHxHEIGHT".
	Resolution string

	// RAMMB is the virtual address space budget in megabytes.
	RAMMB int

	// CPUCores caps the translator's core usage.
	CPUCores int

	// EnvOverrides are user-supplied environment variables merged last over
	// everything the pipeline assembles.
	EnvOverrides map[string]string

	// DLLOverrides maps module names to override policy strings
	// ("native", "builtin", "native,builtin", "disabled").
	DLLOverrides map[string]string
}

// Default returns a container populated from host environment defaults.
func Default() Container {
	return Container{
		Name:           env.Str("WINECASK_CONTAINER", "default"),
		RootPath:       env.Str("WINECASK_ROOT", ""),
		WindowsVersion: env.Str("WINECASK_WINDOWS", "win10"),
		GraphicsDriver: env.Str("WINECASK_GFX", "turnip"),
		DXWrapper:      env.Str("WINECASK_DXWRAPPER", "dxvk"),
		Resolution:     env.Str("WINECASK_RESOLUTION", "1280x720"),
		RAMMB:          env.Int("WINECASK_RAM_MB", 2048),
		CPUCores:       env.Int("WINECASK_CORES", 4),
	}
}

// Validate normalizes the container in place and reports the first
// configuration problem found.
func (c *Container) Validate() error {
	if c.RAMMB <= 0 {
		c.RAMMB = 2048
	}
	if c.CPUCores <= 0 {
		c.CPUCores = 1
	}
	if c.WindowsVersion == "" {
		c.WindowsVersion = "win10"
	}
	c.DXWrapper = strings.ToLower(c.DXWrapper)
	c.GraphicsDriver = strings.ToLower(c.GraphicsDriver)

	if c.Resolution != "" {
		var w, h int
		if _, err := fmt.Sscanf(c.Resolution, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
			return errors.InvalidInput(errors.PhaseConfig,
				fmt.Sprintf("resolution %q is not WIDTHxHEIGHT", c.Resolution))
		}
	}
	return nil
}

// Width and Height split the resolution string; zeros when unset.
// PrefixInitialized reports whether the container root already carries the
// registry stubs of an initialized prefix. The stubs are only ever read;
// creating them belongs to the external compatibility layer's first run.
func (c *Container) PrefixInitialized() bool {
	if c.RootPath == "" {
		return false
	}
	for _, reg := range []string{"system.reg", "user.reg"} {
		if _, err := os.Stat(filepath.Join(c.RootPath, reg)); err == nil {
			return true
		}
	}
	return false
}

func (c *Container) Width() int {
	w, _ := c.dimensions()
	return w
}

func (c *Container) Height() int {
	_, h := c.dimensions()
	return h
}

func (c *Container) dimensions() (int, int) {
	var w, h int
	fmt.Sscanf(c.Resolution, "%dx%d", &w, &h)
	return w, h
}
