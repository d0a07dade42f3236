package player

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by every operation issued after Close.
var ErrClosed = errors.New("the player is closed")

// ErrInvalidArgument means a setter received a value it refuses to apply;
// the playback state is left untouched.
type ErrInvalidArgument struct {
	Name   string
	Reason string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid value of '%s': %s", e.Name, e.Reason)
}

// ErrSeekOutOfRange means the requested seek target lies outside the
// media timeline.
type ErrSeekOutOfRange struct {
	Target   time.Duration
	Duration time.Duration
}

func (e ErrSeekOutOfRange) Error() string {
	return fmt.Sprintf("seek target %v is out of range [0s, %v]", e.Target, e.Duration)
}
