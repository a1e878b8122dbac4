package core

import (
	"errors"
	"fmt"
)

var (
	// ErrStarted is returned when registration is attempted after the
	// orchestrator began coordinating.
	ErrStarted = errors.New("orchestrator already started")

	// ErrUnknownLoop is returned when a domain name does not resolve to a
	// registered loop.
	ErrUnknownLoop = errors.New("unknown domain loop")
)

func errScheduleFrozen(loop, sys string) error {
	return fmt.Errorf("cannot add system %q to loop %q: %w", sys, loop, ErrStarted)
}
