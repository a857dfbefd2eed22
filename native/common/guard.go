package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModulePaused matches every pause rejection under errors.Is.
var ErrModulePaused = errors.New("module paused")

// PausedError names the module that rejected a write.
type PausedError struct {
	Module string
}

func (e *PausedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Module, ErrModulePaused)
}

func (e *PausedError) Unwrap() error { return ErrModulePaused }

// PauseView reads the per-module pause flags kept in state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects state-changing calls into a paused module. A nil view or an
// empty module name never blocks.
func Guard(p PauseView, module string) error {
	module = strings.TrimSpace(module)
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return &PausedError{Module: module}
	}
	return nil
}
