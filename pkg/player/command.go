package player

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is a transport-control request sent into the decode goroutine.
// Commands are applied strictly in the order they were sent, atomically
// with respect to decode progress.
type Command interface {
	fmt.Stringer
	isCommand() // just to enable build-time type checks
}

// Position identifies a point on the media timeline, either by time or by
// frame index.
type Position interface {
	isPosition()
}

type PositionTime time.Duration

var _ Position = PositionTime(0)

func (PositionTime) isPosition() {}

type PositionFrame uint64

var _ Position = PositionFrame(0)

func (PositionFrame) isPosition() {}

type CommandSetPaused struct {
	Paused bool `json:"paused"`
}

var _ Command = (*CommandSetPaused)(nil)

func (CommandSetPaused) isCommand() {}

func (cmd CommandSetPaused) String() string {
	return string(tryJSON(cmd))
}

type CommandSeek struct {
	Target   time.Duration `json:"target"`
	Accurate bool          `json:"accurate"`
}

var _ Command = (*CommandSeek)(nil)

func (CommandSeek) isCommand() {}

func (cmd CommandSeek) String() string {
	return string(tryJSON(cmd))
}

type CommandSetSpeed struct {
	Speed float64 `json:"speed"`
}

var _ Command = (*CommandSetSpeed)(nil)

func (CommandSetSpeed) isCommand() {}

func (cmd CommandSetSpeed) String() string {
	return string(tryJSON(cmd))
}

type CommandSetVolume struct {
	Volume float64 `json:"volume"`
}

var _ Command = (*CommandSetVolume)(nil)

func (CommandSetVolume) isCommand() {}

func (cmd CommandSetVolume) String() string {
	return string(tryJSON(cmd))
}

type CommandSetMuted struct {
	Muted bool `json:"muted"`
}

var _ Command = (*CommandSetMuted)(nil)

func (CommandSetMuted) isCommand() {}

func (cmd CommandSetMuted) String() string {
	return string(tryJSON(cmd))
}

type CommandSetLooping struct {
	Looping bool `json:"looping"`
}

var _ Command = (*CommandSetLooping)(nil)

func (CommandSetLooping) isCommand() {}

func (cmd CommandSetLooping) String() string {
	return string(tryJSON(cmd))
}

type CommandRestart struct{}

var _ Command = (*CommandRestart)(nil)

func (CommandRestart) isCommand() {}

func (cmd CommandRestart) String() string {
	return string(tryJSON(cmd))
}

type CommandShutdown struct{}

var _ Command = (*CommandShutdown)(nil)

func (CommandShutdown) isCommand() {}

func (cmd CommandShutdown) String() string {
	return string(tryJSON(cmd))
}

func tryJSON(value any) []byte {
	b, _ := json.Marshal(value)
	return b
}
