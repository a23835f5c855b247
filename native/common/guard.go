package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrReentrant    = errors.New("reentrant call rejected")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard rejects a mutating entry point invoked while another one on
// the same engine is still executing. The zero value is ready to use.
type ReentrancyGuard struct {
	busy bool
}

// Enter marks the guard busy and returns the release function that must run on
// every exit path.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if g.busy {
		return nil, ErrReentrant
	}
	g.busy = true
	return func() { g.busy = false }, nil
}

// Busy reports whether a guarded call is in flight.
func (g *ReentrancyGuard) Busy() bool {
	return g != nil && g.busy
}
