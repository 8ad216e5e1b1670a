package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/winecask/winecask/config"
	"github.com/winecask/winecask/launch"
	"github.com/winecask/winecask/pe"
)

func main() {
	var (
		exeFile     = flag.String("exe", "", "Path to Windows executable")
		root        = flag.String("container", "", "Container root directory")
		winVer      = flag.String("windows", "", "Windows version to emulate (win7, win8, win10, win11)")
		dxWrapper   = flag.String("dxwrapper", "", "DirectX wrapper (dxvk, vkd3d, wined3d, cnc-ddraw)")
		gfxDriver   = flag.String("graphics", "", "Graphics driver (turnip, virgl, vortek, llvmpipe)")
		resolution  = flag.String("resolution", "", "Screen resolution (WIDTHxHEIGHT)")
		ramMB       = flag.Int("ram", 0, "Container RAM budget in MB")
		cores       = flag.Int("cores", 0, "CPU cores exposed to the translator")
		presetName  = flag.String("preset", "compatibility", "Translator preset (compatibility, performance, gaming, custom)")
		envVars     = flag.String("env", "", "Environment overrides (KEY=VAL,KEY2=VAL2)")
		dllOverride = flag.String("dll", "", "DLL overrides (name=policy,name2=policy2)")
		analyze     = flag.Bool("analyze", false, "Analyze the executable and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *exeFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: winecask -exe <file.exe> [-container dir] [-windows ver] [-env K=V,...]")
		fmt.Fprintln(os.Stderr, "       winecask -exe <file.exe> -analyze")
		fmt.Fprintln(os.Stderr, "       winecask -exe <file.exe> -i  (interactive mode)")
		os.Exit(1)
	}

	if *analyze {
		if err := analyzeExe(*exeFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	c := config.Default()
	if *root != "" {
		c.RootPath = *root
	}
	if *winVer != "" {
		c.WindowsVersion = *winVer
	}
	if *dxWrapper != "" {
		c.DXWrapper = *dxWrapper
	}
	if *gfxDriver != "" {
		c.GraphicsDriver = *gfxDriver
	}
	if *resolution != "" {
		c.Resolution = *resolution
	}
	if *ramMB > 0 {
		c.RAMMB = *ramMB
	}
	if *cores > 0 {
		c.CPUCores = *cores
	}
	if *envVars != "" {
		c.EnvOverrides = parsePairs(*envVars)
	}
	if *dllOverride != "" {
		c.DLLOverrides = parsePairs(*dllOverride)
	}

	preset, err := launch.ParsePreset(*presetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*exeFile, c, preset); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*exeFile, c, preset); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(exeFile string, c config.Container, preset launch.Preset) error {
	o := launch.New(launch.Options{
		Preset:         preset,
		StatusInterval: 5 * time.Second,
	})

	sess, err := o.Launch(exeFile, c, func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		return err
	}

	<-sess.Done()
	if code := sess.ExitCode(); code != 0 {
		return fmt.Errorf("%s exited with code %d", sess.ProcessName(), code)
	}
	return nil
}

func analyzeExe(path string) error {
	img, err := pe.ParseFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Architecture: %s\n", img.ArchitectureString())
	fmt.Printf("Subsystem: %s\n", img.SubsystemString())
	if img.Optional != nil {
		fmt.Printf("Image base: 0x%X\n", img.Optional.ImageBase)
		fmt.Printf("Entry point: 0x%X\n", img.EntryPoint())
	}
	if img.IsDLL() {
		fmt.Printf("Type: DLL\n")
	} else {
		fmt.Printf("Type: executable\n")
	}

	fmt.Printf("\nSections:\n")
	for _, s := range img.Sections {
		fmt.Printf("  %-8s rva=0x%08X vsize=0x%08X raw=0x%08X\n",
			s.Name, s.VirtualAddress, s.VirtualSize, s.SizeOfRawData)
	}

	if len(img.Imports) > 0 {
		fmt.Printf("\nImported modules:\n")
		for _, imp := range img.Imports {
			fmt.Printf("  %s (%d functions)\n", imp.DLLName, len(imp.Functions))
		}
	}

	return nil
}

func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}
