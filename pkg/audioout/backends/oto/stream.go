package oto

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

type Stream struct {
	player *oto.Player
}

var _ types.Stream = (*Stream)(nil)

func newStream(player *oto.Player) *Stream {
	return &Stream{
		player: player,
	}
}

// Drain waits until the player stops, which happens after the source reader
// reports EOF and the buffered samples were played out.
func (stream *Stream) Drain() error {
	for stream.player.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func (stream *Stream) Close() error {
	err := stream.player.Close()
	if err != nil {
		return fmt.Errorf("unable to close the player: %w", err)
	}
	return nil
}
