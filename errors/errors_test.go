package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := New(PhaseParse, KindOutOfBounds).
		Path("sections", "3").
		Detail("header past end of buffer").
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "[parse]") {
		t.Errorf("message missing phase: %s", msg)
	}
	if !strings.Contains(msg, "out_of_bounds") {
		t.Errorf("message missing kind: %s", msg)
	}
	if !strings.Contains(msg, "sections.3") {
		t.Errorf("message missing path: %s", msg)
	}
	if !strings.Contains(msg, "header past end of buffer") {
		t.Errorf("message missing detail: %s", msg)
	}
}

func TestError_Is(t *testing.T) {
	err := OutOfMemory(4096, 1024, 2048)

	if !stderrors.Is(err, &Error{Phase: PhaseMemory, Kind: KindOutOfMemory}) {
		t.Error("expected Is match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseMemory, Kind: KindNullPage}) {
		t.Error("unexpected Is match on different kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseParse, Kind: KindOutOfMemory}) {
		t.Error("unexpected Is match on different phase")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("exec: file not found")
	err := SpawnFailed("box64", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap chain to reach cause")
	}
	if !strings.Contains(err.Error(), "caused by") {
		t.Errorf("message missing cause: %s", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{TooSmall(64, 10), PhaseParse, KindTooSmall},
		{BadDosSignature(0x1234), PhaseParse, KindBadDosSig},
		{BadPeSignature(0xDEAD), PhaseParse, KindBadPeSig},
		{PageStraddle(0x80000FFE, 8), PhaseMemory, KindPageStraddle},
		{UnbackedPage(0x90000000), PhaseMemory, KindUnbackedPage},
		{NullPage(0x10), PhaseMemory, KindNullPage},
		{Disabled("winemenubuilder"), PhaseResolve, KindDisabled},
		{AlreadyRunning("game.exe"), PhaseLaunch, KindAlreadyRunning},
		{NotFound(PhaseResolve, "export", "CreateFileW"), PhaseResolve, KindNotFound},
		{InvalidState("Idle", "stop"), PhaseLaunch, KindInvalidState},
	}

	for _, tt := range tests {
		if tt.err.Phase != tt.phase {
			t.Errorf("%s: phase %s, want %s", tt.err.Kind, tt.err.Phase, tt.phase)
		}
		if tt.err.Kind != tt.kind {
			t.Errorf("kind %s, want %s", tt.err.Kind, tt.kind)
		}
		if tt.err.Error() == "" {
			t.Errorf("%s: empty message", tt.kind)
		}
	}
}
