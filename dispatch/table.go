package dispatch

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler implements one emulated Win32 API entry point. Arguments arrive as
// raw 64-bit words mirroring the calling convention's register and stack
// slots; the single return value travels back the same way. Handlers that
// need to touch guest memory capture the session's memory.Space when they
// are built (see NewBuiltins).
type Handler func(args []uint64) uint64

// Table is the registry of emulated API entry points: a two-level mapping
// from DLL name to function name to handler. Lookups normalize the module
// name the same way the loader does (lowercase, .dll stripped).
//
// Table is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	modules map[string]map[string]Handler
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{
		modules: make(map[string]map[string]Handler),
	}
}

// NormalizeModule lowercases a module name and strips a trailing .dll.
func NormalizeModule(name string) string {
	name = strings.ToLower(name)
	return strings.TrimSuffix(name, ".dll")
}

// Register adds or replaces a single handler.
func (t *Table) Register(module, function string, h Handler) {
	module = NormalizeModule(module)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.modules[module] == nil {
		t.modules[module] = make(map[string]Handler)
	}
	t.modules[module][function] = h
}

// RegisterModule adds every handler in funcs under one module name.
func (t *Table) RegisterModule(module string, funcs map[string]Handler) {
	module = NormalizeModule(module)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.modules[module] == nil {
		t.modules[module] = make(map[string]Handler)
	}
	for name, h := range funcs {
		t.modules[module][name] = h
	}
}

// Lookup returns the handler for (module, function), or nil.
func (t *Table) Lookup(module, function string) Handler {
	module = NormalizeModule(module)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if funcs, ok := t.modules[module]; ok {
		return funcs[function]
	}
	return nil
}

// Has reports whether any handlers are registered for module.
func (t *Table) Has(module string) bool {
	module = NormalizeModule(module)

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.modules[module]
	return ok
}

// Functions returns the handler names registered under module.
func (t *Table) Functions(module string) []string {
	module = NormalizeModule(module)

	t.mu.RLock()
	defer t.mu.RUnlock()
	funcs := t.modules[module]
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	return names
}

// Call dispatches an emulated API call. Unregistered (module, function)
// pairs are non-fatal: real Windows binaries probe optional APIs
// defensively, so an unknown call logs and returns a benign zero instead of
// crashing the emulated process.
func (t *Table) Call(module, function string, args []uint64) uint64 {
	h := t.Lookup(module, function)
	if h == nil {
		Logger().Debug("unimplemented API call",
			zap.String("module", NormalizeModule(module)),
			zap.String("function", function),
			zap.Int("args", len(args)))
		return 0
	}
	return h(args)
}
