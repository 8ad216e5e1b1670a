// Package winecask provides a lightweight Windows-compatibility execution
// environment for running PE executables through an external translator and
// compatibility-layer chain.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	winecask/            Root package documentation
//	├── launch/          Process-launch pipeline, presets and session supervision
//	├── pe/              PE (Portable Executable) binary parsing
//	├── memory/          Virtual address space with page-granular allocation
//	├── dispatch/        Win32 API dispatch table with builtin stub handlers
//	├── loader/          DLL resolution, override policies and import binding
//	├── config/          Container configuration and validation
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Launch an executable under the default container:
//
//	o := launch.New(launch.Options{})
//	sess, err := o.Launch("game.exe", config.Default(), func(line string) {
//		fmt.Println(line)
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	<-sess.Done()
//
// Or inspect a binary without running it:
//
//	img, err := pe.ParseFile("game.exe")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(img.ArchitectureString(), img.SubsystemString())
//
// When the external translator chain is not installed, Launch degrades to a
// deterministic fallback demo session instead of failing, so the surrounding
// tooling keeps working on hosts without the chain.
package winecask
