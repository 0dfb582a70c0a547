package execution

import (
	"github.com/pkg/errors"
)

type CursorState int

const (
	Idle CursorState = iota
	Active
	Destroyed
)

func (s CursorState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Active:
		return "Active"
	case Destroyed:
		return "Destroyed"
	}
	return "Unknown"
}

// lifecycle is the state machine embedded in every cursor.
type lifecycle struct {
	name  string
	state CursorState
}

func (l *lifecycle) State() CursorState {
	return l.state
}

func (l *lifecycle) checkIdle() error {
	if l.state != Idle {
		return errors.Wrapf(ErrCursorLifecycle, "%s: open on %s cursor", l.name, l.state)
	}
	return nil
}

func (l *lifecycle) checkIdleOrActive(operation string) error {
	if l.state == Destroyed {
		return errors.Wrapf(ErrCursorLifecycle, "%s: %s on destroyed cursor", l.name, operation)
	}
	return nil
}

func (l *lifecycle) isActive() bool {
	return l.state == Active
}
