package player

import (
	"fmt"
)

// Status is the playback state machine's current state.
//
// Opening -> Ready <-> Paused, with Seeking as a transient detour, Ended
// on end-of-stream (looping disabled) and Errored on a fatal decode
// error. Ended and Errored are recoverable through Seek/Restart; only
// Closed is terminal.
type Status int32

const (
	StatusOpening = Status(iota)
	StatusReady
	StatusPaused
	StatusSeeking
	StatusEnded
	StatusErrored
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusReady:
		return "ready"
	case StatusPaused:
		return "paused"
	case StatusSeeking:
		return "seeking"
	case StatusEnded:
		return "ended"
	case StatusErrored:
		return "errored"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", int32(s))
	}
}
