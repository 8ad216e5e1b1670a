package launch

import (
	"os/exec"
	"sync"

	"github.com/winecask/winecask/config"
)

// Session is the transient state of one launch: target, configuration
// snapshot, assembled environment, child handle (nil in fallback mode) and
// the append-only output log.
//
// All output, from any goroutine, funnels through emit — the single update
// path that keeps the log and the observer callback consistent with each
// other. Per-stream line order is preserved because each drain goroutine
// calls emit serially; interleaving between streams is unspecified.
type Session struct {
	ExePath   string
	Container config.Container
	Env       map[string]string

	mu        sync.Mutex
	output    []string
	onOutput  func(string)
	procName  string
	running   bool
	fallback  bool
	cancelled bool
	exitCode  int

	cmd      *exec.Cmd
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newSession(exePath string, c config.Container, onOutput func(string)) *Session {
	return &Session{
		ExePath:   exePath,
		Container: c,
		onOutput:  onOutput,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// emit appends one line to the output log and notifies the observer.
func (s *Session) emit(line string) {
	s.mu.Lock()
	s.output = append(s.output, line)
	cb := s.onOutput
	s.mu.Unlock()

	if cb != nil {
		cb(line)
	}
}

// OutputLines returns a snapshot of the log so far.
func (s *Session) OutputLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.output))
	copy(out, s.output)
	return out
}

// IsRunning reports whether the session is live.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsFallback reports whether the session runs in simulated demo mode.
func (s *Session) IsFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

// ProcessName returns the display name of the emulated process.
func (s *Session) ProcessName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procName
}

// ExitCode returns the recorded exit code; zero for orchestrator stops.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Done is closed once the session has fully ended (streams drained, exit
// code recorded).
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setRunning(procName string, fallback bool) {
	s.mu.Lock()
	s.procName = procName
	s.running = true
	s.fallback = fallback
	s.mu.Unlock()
}

func (s *Session) markCancelled() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Session) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// finish records the exit code, clears the running flag and releases the
// child handle. Safe to call once per session.
func (s *Session) finish(code int) {
	s.mu.Lock()
	s.exitCode = code
	s.running = false
	s.cmd = nil
	s.mu.Unlock()
	close(s.done)
}

// requestStop flips the continuation flag for the fallback loop and any
// other waiter. Never blocks.
func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
