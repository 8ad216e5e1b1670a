package launch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/winecask/winecask/config"
	"github.com/winecask/winecask/dispatch"
	"github.com/winecask/winecask/errors"
	"github.com/winecask/winecask/loader"
	"github.com/winecask/winecask/memory"
	"github.com/winecask/winecask/pe"
)

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	// Translator is the CPU-architecture translator binary (default box64).
	Translator string
	// CompatLayer is the OS-compatibility binary (default wine).
	CompatLayer string
	// Preset selects the translator tuning profile.
	Preset Preset
	// Args are extra arguments passed to the target executable.
	Args []string
	// StatusInterval is the fallback mode's status cadence (default 2s).
	StatusInterval time.Duration
}

// Orchestrator sequences one launch at a time: capability check, translator
// environment, compatibility environment, import bindings, spawn,
// supervision. Per session it owns one address space, one dispatch table
// and one loader; nothing is shared across sessions, which is what makes
// the single-session guard sufficient synchronization for them.
type Orchestrator struct {
	mu    sync.Mutex
	opts  Options
	state atomic.Int32
	sess  *Session

	space  *memory.Space
	table  *dispatch.Table
	loader *loader.Loader
}

// New creates an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	if opts.Translator == "" {
		opts.Translator = "box64"
	}
	if opts.CompatLayer == "" {
		opts.CompatLayer = "wine"
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 2 * time.Second
	}
	return &Orchestrator{opts: opts}
}

// State returns the pipeline's current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	Logger().Debug("state transition", zap.Stringer("state", s))
}

// IsRunning reports whether a session is live.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	sess := o.sess
	o.mu.Unlock()
	return sess != nil && sess.IsRunning()
}

// Session returns the current (or last) session, or nil.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

// ProcessName returns the display name of the emulated process, or "".
func (o *Orchestrator) ProcessName() string {
	if sess := o.Session(); sess != nil {
		return sess.ProcessName()
	}
	return ""
}

// Launch runs the pipeline for exePath under the given container. Only one
// session may run at a time; a second request fails with already_running
// and performs no state transition. On success the returned session is
// live (real or fallback) and onOutput receives every log line.
func (o *Orchestrator) Launch(exePath string, c config.Container, onOutput func(string)) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess != nil && o.sess.IsRunning() {
		return nil, errors.AlreadyRunning(o.sess.ProcessName())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sess := newSession(exePath, c, onOutput)
	o.sess = sess
	procName := filepath.Base(exePath)

	// Binary analysis. A parse failure is a log line, not a refusal: the
	// external chain revalidates the image on its own.
	img, err := pe.ParseFile(exePath)
	if err != nil {
		sess.emit(fmt.Sprintf("Cannot analyze %s: %v (continuing best-effort)", procName, err))
	} else {
		sess.emit(fmt.Sprintf("Analyzing %s: architecture %s, subsystem %s",
			procName, img.ArchitectureString(), img.SubsystemString()))
	}

	if jitAvailable() {
		sess.emit("JIT capability: available")
	} else {
		sess.emit("JIT capability: unavailable, translator will run in interpreter mode")
	}

	o.setState(StateConfiguringTranslator)
	translatorEnv := TranslatorEnv(o.opts.Preset, c)
	sess.emit(fmt.Sprintf("Translator configured: preset %s, %d dynarec flags",
		o.opts.Preset, len(translatorEnv)))

	o.setState(StateConfiguringCompat)
	compatEnv := CompatEnv(c)
	sess.emit(fmt.Sprintf("Compatibility layer configured: Windows version %s, prefix %q",
		c.WindowsVersion, c.RootPath))
	if c.PrefixInitialized() {
		sess.emit("Prefix registry found, reusing existing container state")
	} else {
		sess.emit("Prefix not initialized, compatibility layer will create it on first run")
	}
	sess.emit(fmt.Sprintf("Graphics pipeline: %s via %s driver",
		strings.ToUpper(c.DXWrapper), c.GraphicsDriver))

	o.setState(StatePreparingBindings)
	o.prepareBindings(sess, img, c, exePath)

	sess.Env = MergeEnv(translatorEnv, compatEnv, c.EnvOverrides)

	o.setState(StateSpawning)
	o.spawn(sess, procName, exePath)
	return sess, nil
}

// prepareBindings materializes the session's address space, dispatch table
// and loader, then binds the image's imports. Failures here degrade to
// stubs and never abort the launch.
func (o *Orchestrator) prepareBindings(sess *Session, img *pe.Image, c config.Container, exePath string) {
	o.space = memory.New(c.RAMMB)
	o.table = dispatch.NewTable()
	builtins := dispatch.NewBuiltins(o.table, o.space)
	o.loader = loader.New(o.table)
	o.loader.ConfigureSearchPaths(c.RootPath, exePath)

	// GetProcAddress resolves through the loader's module records.
	builtins.SetResolver(func(base uint64, name string) (uint64, bool) {
		for _, mod := range o.loader.Modules() {
			if mod.Base == base {
				return o.loader.ResolveImport(mod.Name, name)
			}
		}
		return 0, false
	})

	for name, policyStr := range c.DLLOverrides {
		policy, err := loader.ParsePolicy(policyStr)
		if err != nil {
			sess.emit(fmt.Sprintf("Ignoring DLL override %s=%q: %v", name, policyStr, err))
			continue
		}
		o.loader.SetOverride(name, policy)
	}

	if img == nil {
		sess.emit("Import bindings skipped: no analyzable image")
		return
	}
	loaded, failed := o.loader.BindImports(img.Imports)
	sess.emit(fmt.Sprintf("Import bindings prepared: %d modules resolved, %d degraded to stubs",
		loaded, failed))
}

// spawn starts the external translator chain, or activates fallback mode
// when the chain is unavailable. Fallback is first-class behaviour: the
// caller always ends up with a running-looking session.
func (o *Orchestrator) spawn(sess *Session, procName, exePath string) {
	translator, terr := exec.LookPath(o.opts.Translator)
	compat, cerr := exec.LookPath(o.opts.CompatLayer)
	if terr != nil || cerr != nil {
		missing := o.opts.Translator
		if terr == nil {
			missing = o.opts.CompatLayer
		}
		o.enterFallback(sess, procName, fmt.Sprintf("%s not found on PATH", missing))
		return
	}

	args := append([]string{compat, exePath}, o.opts.Args...)
	cmd := exec.Command(translator, args...)
	cmd.Env = append(os.Environ(), flattenEnv(sess.Env)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.enterFallback(sess, procName, err.Error())
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		o.enterFallback(sess, procName, err.Error())
		return
	}

	sess.emit(fmt.Sprintf("Spawning: %s %s %s", translator, compat, exePath))
	if err := cmd.Start(); err != nil {
		Logger().Warn("spawn failed", zap.Error(err))
		o.enterFallback(sess, procName, errors.SpawnFailed(translator, err).Error())
		return
	}

	sess.cmd = cmd
	sess.setRunning(procName, false)
	o.setState(StateRunning)
	sess.emit(fmt.Sprintf("Process started: pid %d", cmd.Process.Pid))

	go o.supervise(sess, cmd, stdout, stderr)
}

// supervise drains both output streams concurrently and reports the exit
// code only after both hit EOF, so no trailing output is lost.
func (o *Orchestrator) supervise(sess *Session, cmd *exec.Cmd, stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relayLines(sess, stdout, "[stdout] ")
	}()
	go func() {
		defer wg.Done()
		relayLines(sess, stderr, "[stderr] ")
	}()
	wg.Wait()

	err := cmd.Wait()
	switch {
	case sess.wasCancelled():
		sess.emit("Session stopped")
		o.setState(StateExited)
		sess.finish(0)
	case err == nil:
		sess.emit("Process exited: code 0")
		o.setState(StateExited)
		sess.finish(0)
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			sess.emit(fmt.Sprintf("Process exited: code %d", code))
			o.setState(StateExited)
			sess.finish(code)
		} else {
			sess.emit(fmt.Sprintf("Process faulted: %v", err))
			o.setState(StateFaulted)
			sess.finish(-1)
		}
	}
}

// relayLines copies one stream line-by-line into the session log. A partial
// final line (no trailing newline) is flushed as a line at stream close.
func relayLines(sess *Session, r io.Reader, prefix string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sess.emit(prefix + scanner.Text())
	}
}

// enterFallback activates the simulated demo session: a labeled marker, a
// synthesized boot sequence, then periodic status lines until Stop.
func (o *Orchestrator) enterFallback(sess *Session, procName, reason string) {
	sess.setRunning(procName, true)
	o.setState(StateRunning)

	sess.emit(fmt.Sprintf("Translator chain unavailable (%s); entering fallback demo mode", reason))
	sess.emit(fmt.Sprintf("[demo] Booting emulated environment for %s", procName))
	sess.emit(fmt.Sprintf("[demo] Windows %s prefix initialized", sess.Container.WindowsVersion))
	sess.emit(fmt.Sprintf("[demo] %s graphics pipeline attached", strings.ToUpper(sess.Container.DXWrapper)))
	sess.emit("[demo] Main window created")

	go func() {
		ticker := time.NewTicker(o.opts.StatusInterval)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-sess.stop:
				sess.emit("Session stopped")
				o.setState(StateExited)
				sess.finish(0)
				return
			case <-ticker.C:
				sess.emit(fmt.Sprintf("[demo] status: running, uptime %ds",
					int(time.Since(start).Seconds())))
			}
		}
	}()
}

// Stop force-terminates the current session. Valid any time from Spawning
// on; it never blocks waiting for drain goroutines, which observe
// termination and exit on their own. Stops record exit code zero.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	sess := o.sess
	o.mu.Unlock()

	if sess == nil || !o.State().stoppable() {
		return
	}

	sess.markCancelled()
	sess.requestStop()

	sess.mu.Lock()
	cmd := sess.cmd
	sess.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			Logger().Debug("kill failed", zap.Error(err))
		}
	}
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
