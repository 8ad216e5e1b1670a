package launch

import (
	"encoding/binary"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/winecask/winecask/config"
	"github.com/winecask/winecask/errors"
)

// writeTestExe drops a minimal PE32+ GUI executable into a temp dir.
func writeTestExe(t *testing.T) string {
	t.Helper()
	b := make([]byte, 64+4+20+240)
	binary.LittleEndian.PutUint16(b[0:], 0x5A4D)
	binary.LittleEndian.PutUint32(b[60:], 64)
	binary.LittleEndian.PutUint32(b[64:], 0x00004550)
	binary.LittleEndian.PutUint16(b[68:], 0x8664)
	binary.LittleEndian.PutUint16(b[68+16:], 240)
	opt := 68 + 20
	binary.LittleEndian.PutUint16(b[opt:], 0x20B)
	binary.LittleEndian.PutUint64(b[opt+24:], 0x140000000)
	binary.LittleEndian.PutUint16(b[opt+68:], 2) // Windows GUI

	path := filepath.Join(t.TempDir(), "game.exe")
	if err := os.WriteFile(path, b, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// fallbackOrchestrator builds an orchestrator whose external binaries can
// never resolve, forcing the demo path deterministically.
func fallbackOrchestrator(interval time.Duration) *Orchestrator {
	return New(Options{
		Translator:     "winecask-test-no-such-translator",
		CompatLayer:    "winecask-test-no-such-compat",
		StatusInterval: interval,
	})
}

func dxvkContainer() config.Container {
	return config.Container{
		WindowsVersion: "win10",
		DXWrapper:      "DXVK",
		GraphicsDriver: "turnip",
		Resolution:     "1280x720",
		RAMMB:          256,
		CPUCores:       2,
	}
}

func TestLaunch_FallbackDeterminism(t *testing.T) {
	o := fallbackOrchestrator(20 * time.Millisecond)

	sess, err := o.Launch(writeTestExe(t), dxvkContainer(), nil)
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}
	defer o.Stop()

	if o.State() != StateRunning {
		t.Fatalf("state %s, want Running", o.State())
	}
	if !sess.IsFallback() {
		t.Fatal("expected fallback mode with binaries absent")
	}

	// Wait for at least one periodic status line.
	deadline := time.After(2 * time.Second)
	for {
		lines := sess.OutputLines()
		if containsMatch(lines, "status: running") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no periodic status line; log: %v", lines)
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The fallback marker must precede any periodic status line.
	lines := sess.OutputLines()
	marker, status := indexOfMatch(lines, "fallback"), indexOfMatch(lines, "status: running")
	if marker < 0 {
		t.Fatalf("no fallback marker in log: %v", lines)
	}
	if marker > status {
		t.Errorf("marker at %d after status at %d", marker, status)
	}
}

func TestLaunch_EndToEndOrdering(t *testing.T) {
	o := fallbackOrchestrator(time.Hour) // silence periodic lines

	sess, err := o.Launch(writeTestExe(t), dxvkContainer(), nil)
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}
	defer o.Stop()

	lines := sess.OutputLines()
	wantInOrder := []string{
		"x86-64",     // analysis
		"Translator", // translator config
		"win10",      // compat config mentions windows version
		"DXVK",       // graphics pipeline mentions the wrapper
		"fallback",   // fallback marker last
	}
	pos := -1
	for _, want := range wantInOrder {
		idx := indexOfMatchFrom(lines, want, pos+1)
		if idx < 0 {
			t.Fatalf("missing %q after position %d; log: %v", want, pos, lines)
		}
		pos = idx
	}
}

func TestLaunch_SingleSessionGuard(t *testing.T) {
	o := fallbackOrchestrator(time.Hour)

	sess, err := o.Launch(writeTestExe(t), dxvkContainer(), nil)
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}
	defer o.Stop()

	before := sess.OutputLines()
	_, err = o.Launch(writeTestExe(t), dxvkContainer(), nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLaunch, Kind: errors.KindAlreadyRunning}) {
		t.Fatalf("second launch error %v, want already_running", err)
	}
	after := sess.OutputLines()
	if len(before) != len(after) {
		t.Errorf("refused launch touched the session log: %d -> %d lines", len(before), len(after))
	}
	if !o.IsRunning() {
		t.Error("original session no longer running")
	}
}

func TestStop_EndsFallbackSession(t *testing.T) {
	o := fallbackOrchestrator(10 * time.Millisecond)

	sess, err := o.Launch(writeTestExe(t), dxvkContainer(), nil)
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}

	o.Stop()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after Stop")
	}

	if o.State() != StateExited {
		t.Errorf("state %s, want Exited", o.State())
	}
	if sess.IsRunning() {
		t.Error("session still running after Stop")
	}
	if sess.ExitCode() != 0 {
		t.Errorf("exit code %d, want 0 for orchestrator stop", sess.ExitCode())
	}

	// Stop is idempotent and a no-op outside stoppable states.
	o.Stop()

	// A new launch is allowed once the previous session ended.
	if _, err := o.Launch(writeTestExe(t), dxvkContainer(), nil); err != nil {
		t.Errorf("relaunch after stop: %v", err)
	}
	o.Stop()
}

func TestLaunch_UnanalyzableTargetStillRuns(t *testing.T) {
	o := fallbackOrchestrator(time.Hour)

	path := filepath.Join(t.TempDir(), "broken.exe")
	if err := os.WriteFile(path, []byte("not a pe file at all"), 0o755); err != nil {
		t.Fatal(err)
	}

	sess, err := o.Launch(path, dxvkContainer(), nil)
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}
	defer o.Stop()

	if !sess.IsRunning() {
		t.Fatal("session not running for unanalyzable target")
	}
	if indexOfMatch(sess.OutputLines(), "Cannot analyze") < 0 {
		t.Errorf("missing best-effort analysis line: %v", sess.OutputLines())
	}
}

func TestLaunch_ObserverReceivesLines(t *testing.T) {
	o := fallbackOrchestrator(time.Hour)

	var got []string
	sess, err := o.Launch(writeTestExe(t), dxvkContainer(), func(line string) {
		got = append(got, line)
	})
	if err != nil {
		t.Fatalf("Launch error: %v", err)
	}
	defer o.Stop()

	if len(got) != len(sess.OutputLines()) {
		t.Errorf("observer saw %d lines, log has %d", len(got), len(sess.OutputLines()))
	}
	if o.ProcessName() != "game.exe" {
		t.Errorf("process name %q", o.ProcessName())
	}
}

func containsMatch(lines []string, substr string) bool {
	return indexOfMatch(lines, substr) >= 0
}

func indexOfMatch(lines []string, substr string) int {
	return indexOfMatchFrom(lines, substr, 0)
}

func indexOfMatchFrom(lines []string, substr string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], substr) {
			return i
		}
	}
	return -1
}
