package dispatch

import (
	"time"

	"go.uber.org/zap"

	"github.com/winecask/winecask/memory"
)

// Builtins bundles the in-process stub implementations of the core system
// DLLs. Handlers that operate on guest memory hold the session's address
// space; everything else returns a plausible constant so defensively-coded
// binaries keep making progress.
type Builtins struct {
	space   *memory.Space
	start   time.Time
	resolve func(base uint64, name string) (uint64, bool)
}

// NewBuiltins creates the builtin handler set against one address space and
// registers it in the table under kernel32, user32, gdi32 and msvcrt.
func NewBuiltins(t *Table, space *memory.Space) *Builtins {
	b := &Builtins{
		space: space,
		start: time.Now(),
	}
	t.RegisterModule("kernel32", b.kernel32())
	t.RegisterModule("user32", b.user32())
	t.RegisterModule("gdi32", b.gdi32())
	t.RegisterModule("msvcrt", b.msvcrt())
	return b
}

// SetResolver installs the module-export lookup GetProcAddress delegates
// to. Without one, GetProcAddress returns NULL.
func (b *Builtins) SetResolver(fn func(base uint64, name string) (uint64, bool)) {
	b.resolve = fn
}

// readCString pulls a NUL-terminated name out of guest memory, capped so a
// missing terminator cannot run away.
func (b *Builtins) readCString(addr uint64) string {
	const maxName = 256
	buf := make([]byte, 0, 32)
	for i := uint64(0); i < maxName; i++ {
		c := b.space.ReadByte(addr + i)
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}
	return string(buf)
}

func arg(args []uint64, i int) uint64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

// performanceFrequency is the tick rate QueryPerformanceCounter reports.
const performanceFrequency = 10_000_000 // 100ns ticks

func (b *Builtins) kernel32() map[string]Handler {
	return map[string]Handler{
		"GetTickCount": func(args []uint64) uint64 {
			return uint64(time.Since(b.start) / time.Millisecond)
		},
		"GetTickCount64": func(args []uint64) uint64 {
			return uint64(time.Since(b.start) / time.Millisecond)
		},
		// Writes the counter through the caller-supplied pointer argument
		// and returns TRUE.
		"QueryPerformanceCounter": func(args []uint64) uint64 {
			ticks := uint64(time.Since(b.start) / (time.Second / performanceFrequency))
			if err := b.space.WriteU64(arg(args, 0), ticks); err != nil {
				Logger().Debug("QueryPerformanceCounter store failed", zap.Error(err))
				return 0
			}
			return 1
		},
		"QueryPerformanceFrequency": func(args []uint64) uint64 {
			if err := b.space.WriteU64(arg(args, 0), performanceFrequency); err != nil {
				return 0
			}
			return 1
		},
		// Budget exhaustion maps to the emulated NULL return, never a host
		// failure.
		"VirtualAlloc": func(args []uint64) uint64 {
			addr, err := b.space.VirtualAlloc(arg(args, 0), arg(args, 1), memory.ProtReadWrite)
			if err != nil {
				Logger().Debug("VirtualAlloc denied", zap.Error(err))
				return 0
			}
			return addr
		},
		"VirtualFree": func(args []uint64) uint64 {
			if err := b.space.VirtualFree(arg(args, 0), arg(args, 1)); err != nil {
				return 0
			}
			return 1
		},
		"HeapAlloc": func(args []uint64) uint64 {
			addr, err := b.space.VirtualAlloc(0, arg(args, 2), memory.ProtReadWrite)
			if err != nil {
				return 0
			}
			return addr
		},
		"HeapFree": func(args []uint64) uint64 {
			return 1
		},
		"GetProcessHeap": func(args []uint64) uint64 {
			return memory.HeapBase
		},
		"GetModuleHandleA": func(args []uint64) uint64 {
			return memory.ImageBase
		},
		"GetProcAddress": func(args []uint64) uint64 {
			if b.resolve == nil {
				return 0
			}
			name := b.readCString(arg(args, 1))
			if name == "" {
				return 0
			}
			addr, ok := b.resolve(arg(args, 0), name)
			if !ok {
				return 0
			}
			return addr
		},
		"GetCurrentProcess": func(args []uint64) uint64 {
			return 0xFFFFFFFFFFFFFFFF // pseudo-handle
		},
		"GetCurrentProcessId": func(args []uint64) uint64 {
			return 4
		},
		"GetCurrentThreadId": func(args []uint64) uint64 {
			return 8
		},
		"GetLastError": func(args []uint64) uint64 {
			return 0
		},
		"SetLastError": func(args []uint64) uint64 {
			return 0
		},
		"Sleep": func(args []uint64) uint64 {
			// Deliberately no real sleep; the translator chain owns timing.
			return 0
		},
		"ExitProcess": func(args []uint64) uint64 {
			Logger().Info("emulated ExitProcess", zap.Uint64("code", arg(args, 0)))
			return 0
		},
		"CloseHandle": func(args []uint64) uint64 {
			return 1
		},
		"GetSystemInfo": func(args []uint64) uint64 {
			return 0
		},
	}
}

func (b *Builtins) user32() map[string]Handler {
	return map[string]Handler{
		"MessageBoxA": func(args []uint64) uint64 {
			return 1 // IDOK
		},
		"CreateWindowExA": func(args []uint64) uint64 {
			return 0x00010001 // synthetic HWND
		},
		"ShowWindow": func(args []uint64) uint64 {
			return 1
		},
		"UpdateWindow": func(args []uint64) uint64 {
			return 1
		},
		"DefWindowProcA": func(args []uint64) uint64 {
			return 0
		},
		"GetSystemMetrics": func(args []uint64) uint64 {
			switch arg(args, 0) {
			case 0: // SM_CXSCREEN
				return 1280
			case 1: // SM_CYSCREEN
				return 720
			}
			return 0
		},
		"RegisterClassExA": func(args []uint64) uint64 {
			return 0xC000 // synthetic class atom
		},
	}
}

func (b *Builtins) gdi32() map[string]Handler {
	return map[string]Handler{
		"CreateCompatibleDC": func(args []uint64) uint64 {
			return 0x00020001 // synthetic HDC
		},
		"DeleteDC": func(args []uint64) uint64 {
			return 1
		},
		"BitBlt": func(args []uint64) uint64 {
			return 1
		},
		"GetStockObject": func(args []uint64) uint64 {
			return 0x00030001
		},
	}
}

func (b *Builtins) msvcrt() map[string]Handler {
	return map[string]Handler{
		"malloc": func(args []uint64) uint64 {
			addr, err := b.space.VirtualAlloc(0, arg(args, 0), memory.ProtReadWrite)
			if err != nil {
				return 0
			}
			return addr
		},
		"free": func(args []uint64) uint64 {
			return 0
		},
		"memcpy": func(args []uint64) uint64 {
			dst, src, n := arg(args, 0), arg(args, 1), arg(args, 2)
			data := b.space.ReadBytes(src, int(n))
			if err := b.space.WriteBytes(dst, data); err != nil {
				Logger().Debug("memcpy fault", zap.Error(err))
				return 0
			}
			return dst
		},
		"printf": func(args []uint64) uint64 {
			return 0
		},
	}
}
