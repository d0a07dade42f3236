package player

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	"github.com/xaionaro-go/avplayer/pkg/ringbuffer"
)

// audioPipe is the io.Reader handed to the audio output: the device
// callback pulls f32le bytes out of it at its own cadence. It never
// blocks; whenever the player is not actively playing (paused, seeking,
// ended, errored) or the ring buffer underruns, it emits silence instead,
// which also freezes the consumed-samples counter and therefore the
// audio-led clock.
type audioPipe struct {
	state  *playbackState
	ring   *ringbuffer.RingBuffer[float32]
	closed atomic.Bool

	scratch []float32
}

var _ io.Reader = (*audioPipe)(nil)

func newAudioPipe(state *playbackState, ring *ringbuffer.RingBuffer[float32]) *audioPipe {
	return &audioPipe{
		state: state,
		ring:  ring,
	}
}

func (pipe *audioPipe) Read(b []byte) (int, error) {
	if pipe.closed.Load() {
		return 0, io.EOF
	}

	sampleCount := len(b) / 4
	if cap(pipe.scratch) < sampleCount {
		pipe.scratch = make([]float32, sampleCount)
	}
	scratch := pipe.scratch[:sampleCount]

	consumed := 0
	if pipe.state.Status() == StatusReady {
		consumed = pipe.ring.Read(scratch)
	}

	gain := float32(pipe.state.Volume())
	if pipe.state.muted.Load() {
		gain = 0
	}
	for i := 0; i < consumed; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(scratch[i]*gain))
	}
	for i := consumed; i < sampleCount; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], 0)
	}
	return sampleCount * 4, nil
}

// close makes the next Read report EOF, which lets the audio output wind
// down its stream.
func (pipe *audioPipe) close() {
	pipe.closed.Store(true)
}
