// terminate.go is the one routine that stops a generator, shared by
// timeouts, cancellation and Registry.KillAll.
package execute

import (
	"errors"
	"fmt"
	"time"
)

// ErrKillTimeout is returned when a process survives SIGKILL for a full grace period.
var ErrKillTimeout = errors.New("process did not exit after kill")

// Terminate stops p in two phases: a polite interrupt, up to grace for it to
// exit, then a forced kill and up to grace again. It returns nil as soon as
// p has exited.
func Terminate(p Process, grace time.Duration) error {
	select {
	case <-p.Done():
		return nil
	default:
	}

	// An interrupt failure still leaves the kill phase to try.
	interruptErr := p.Interrupt()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.Done():
		return nil
	case <-timer.C:
	}

	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), errors.Join(err, interruptErr))
	}

	timer.Reset(grace)
	select {
	case <-p.Done():
		return nil
	case <-timer.C:
		return fmt.Errorf("pid %d: %w", p.Pid(), ErrKillTimeout)
	}
}
