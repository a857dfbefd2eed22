package common

import (
	"errors"
	"testing"
)

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

func TestGuardNamesPausedModule(t *testing.T) {
	pauses := pauseSet{"cdp": true}
	err := Guard(pauses, " cdp ")
	if !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	var paused *PausedError
	if !errors.As(err, &paused) || paused.Module != "cdp" {
		t.Fatalf("expected PausedError for cdp, got %#v", err)
	}
	if err.Error() != "cdp: module paused" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestGuardAllowsWhenUnpausedOrUnset(t *testing.T) {
	if err := Guard(pauseSet{"cdp": true}, "oracle"); err != nil {
		t.Fatalf("unpaused module rejected: %v", err)
	}
	if err := Guard(nil, "cdp"); err != nil {
		t.Fatalf("nil view rejected: %v", err)
	}
	if err := Guard(pauseSet{"": true}, "  "); err != nil {
		t.Fatalf("empty module rejected: %v", err)
	}
}
