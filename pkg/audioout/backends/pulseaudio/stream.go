package pulseaudio

import (
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

type Stream struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
}

var _ types.Stream = (*Stream)(nil)

func newStream(client *pulse.Client, stream *pulse.PlaybackStream) *Stream {
	return &Stream{
		client: client,
		stream: stream,
	}
}

// Drain blocks until everything read from the source so far was played out.
func (stream *Stream) Drain() error {
	stream.stream.Drain()
	return nil
}

func (stream *Stream) Close() error {
	stream.stream.Close()
	stream.client.Close()
	return nil
}
