package loader

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/winecask/winecask/dispatch"
	"github.com/winecask/winecask/errors"
	"github.com/winecask/winecask/pe"
)

// Synthetic module base addresses come from a bump allocator: modules never
// collide as long as the counter is not reset mid-session.
const (
	firstModuleBase = 0x10000000
	moduleBaseStep  = 0x10000
	exportAddrStep  = 16
)

// Module is one resolved DLL binding. IsNative means a real file was found
// in the search path; otherwise the record is satisfied by builtin stubs.
type Module struct {
	Name     string
	Path     string
	Base     uint64
	Size     uint64
	Exports  map[string]uint64
	IsNative bool
}

// Loader resolves import-table entries to modules. Loads are idempotent per
// session: a name resolves once and every later request returns the cached
// record. A Loader is owned by one launch session.
type Loader struct {
	mu          sync.Mutex
	table       *dispatch.Table
	modules     map[string]*Module
	overrides   map[string]Policy
	searchPaths []string
	nextBase    uint64
}

// New creates a loader bound to the session's dispatch table, with the
// default override seeding (system DLLs builtin, DirectX/XInput/XAudio
// native, everything else native-then-builtin).
func New(table *dispatch.Table) *Loader {
	return &Loader{
		table:     table,
		modules:   make(map[string]*Module),
		overrides: seedOverrides(),
		nextBase:  firstModuleBase,
	}
}

// SetOverride installs a per-module policy, replacing any seed.
func (l *Loader) SetOverride(name string, p Policy) {
	name = dispatch.NormalizeModule(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[name] = p
}

// Override returns the effective policy for a module name.
func (l *Loader) Override(name string) Policy {
	name = dispatch.NormalizeModule(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.overrides[name]; ok {
		return p
	}
	return NativeThenBuiltin
}

// ConfigureSearchPaths derives the native DLL search order from the
// container root and the target executable's directory. Declared order is
// resolution order. Paths that do not exist are kept out of the list.
func (l *Loader) ConfigureSearchPaths(containerRoot, exePath string) {
	var paths []string
	if exePath != "" {
		paths = append(paths, filepath.Dir(exePath))
	}
	if containerRoot != "" {
		paths = append(paths,
			filepath.Join(containerRoot, "System32"),
			filepath.Join(containerRoot, "SysWOW64"),
			filepath.Join(containerRoot, "Program Files"),
		)
	}

	var existing []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			existing = append(existing, p)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPaths = existing
}

// SearchPaths returns the configured native search order.
func (l *Loader) SearchPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.searchPaths))
	copy(out, l.searchPaths)
	return out
}

// LoadModule resolves one module by name according to its override policy.
// The load is idempotent: a second request for an already-loaded name
// returns the existing record.
func (l *Loader) LoadModule(name string) (*Module, error) {
	name = dispatch.NormalizeModule(name)

	l.mu.Lock()
	defer l.mu.Unlock()

	if mod, ok := l.modules[name]; ok {
		return mod, nil
	}

	policy := NativeThenBuiltin
	if p, ok := l.overrides[name]; ok {
		policy = p
	}

	var mod *Module
	switch policy {
	case Disabled:
		Logger().Info("module load refused by override", zap.String("module", name))
		return nil, errors.Disabled(name)
	case Native:
		mod = l.loadNative(name)
	case Builtin:
		mod = l.loadBuiltin(name)
	case BuiltinThenNative:
		// A builtin only counts as available when stub handlers exist for
		// the module; otherwise the native path gets its chance first.
		if l.table != nil && l.table.Has(name) {
			mod = l.loadBuiltin(name)
		} else if mod = l.loadNative(name); mod == nil {
			mod = l.loadBuiltin(name)
		}
	default: // NativeThenBuiltin
		if mod = l.loadNative(name); mod == nil {
			mod = l.loadBuiltin(name)
		}
	}

	if mod == nil {
		// Builtin synthesis only declines when even a stub is impossible;
		// in practice this means a Native-only policy with no file found.
		return nil, errors.NotFound(errors.PhaseResolve, "module", name)
	}

	l.modules[name] = mod
	Logger().Debug("module loaded",
		zap.String("module", name),
		zap.Bool("native", mod.IsNative),
		zap.Uint64("base", mod.Base))
	return mod, nil
}

// loadNative searches the configured paths in declared order for
// <name>.dll. Returns nil when no file is found. Caller holds l.mu.
func (l *Loader) loadNative(name string) *Module {
	for _, dir := range l.searchPaths {
		path := filepath.Join(dir, name+".dll")
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		return &Module{
			Name:     name,
			Path:     path,
			Base:     l.bumpBase(),
			Size:     uint64(info.Size()),
			Exports:  make(map[string]uint64),
			IsNative: true,
		}
	}
	return nil
}

// loadBuiltin synthesizes a stub record. Modules with registered dispatch
// handlers get an export table of those handler names at synthetic
// addresses; unknown DLLs get an empty table. Caller holds l.mu.
func (l *Loader) loadBuiltin(name string) *Module {
	base := l.bumpBase()
	exports := make(map[string]uint64)
	if l.table != nil {
		names := l.table.Functions(name)
		sort.Strings(names)
		for i, fn := range names {
			exports[fn] = base + uint64(i+1)*exportAddrStep
		}
	}
	return &Module{
		Name:    name,
		Base:    base,
		Size:    moduleBaseStep,
		Exports: exports,
	}
}

func (l *Loader) bumpBase() uint64 {
	base := l.nextBase
	l.nextBase += moduleBaseStep
	return base
}

// ResolveImport returns the synthetic address of a symbol in an
// already-loaded module. This is the hook the dispatch layer uses for
// GetProcAddress-style lookups; a missing module or symbol reports false.
func (l *Loader) ResolveImport(dll, function string) (uint64, bool) {
	name := dispatch.NormalizeModule(dll)

	l.mu.Lock()
	defer l.mu.Unlock()
	mod, ok := l.modules[name]
	if !ok {
		return 0, false
	}
	addr, ok := mod.Exports[function]
	return addr, ok
}

// Modules returns the loaded modules in load order.
func (l *Loader) Modules() []*Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Module, 0, len(l.modules))
	for _, mod := range l.modules {
		out = append(out, mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}

// BindImports materializes every import entry of a parsed image. Failures
// are counted, not propagated: an unresolved module degrades to "stub
// supplied" semantics downstream and must never abort a launch.
func (l *Loader) BindImports(imports []pe.ImportEntry) (loaded, failed int) {
	for _, entry := range imports {
		if _, err := l.LoadModule(entry.DLLName); err != nil {
			Logger().Debug("import binding degraded",
				zap.String("module", entry.DLLName),
				zap.Error(err))
			failed++
			continue
		}
		loaded++
	}
	return loaded, failed
}

// Reset drops every cached module record and restarts the base allocator.
// The session owning the loader calls this when it ends.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules = make(map[string]*Module)
	l.nextBase = firstModuleBase
}
