package player

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/xaionaro-go/avplayer/pkg/media"
	"github.com/xaionaro-go/xsync"
)

// playbackState is written by the decode goroutine and read by everybody
// else. The hot scalar fields are atomics so that reads from the audio
// callback path and from UI polling never take a lock; the cold fields sit
// behind an RWMutex.
type playbackState struct {
	status     atomic.Int32
	paused     atomic.Bool
	eos        atomic.Bool
	looping    atomic.Bool
	muted      atomic.Bool
	speedBits  atomic.Uint64
	volumeBits atomic.Uint64

	displayWidth  atomic.Int64
	displayHeight atomic.Int64

	locker  xsync.RWMutex
	info    media.Info
	lastErr error
}

func newPlaybackState(cfg Config) *playbackState {
	state := &playbackState{}
	state.status.Store(int32(StatusOpening))
	state.paused.Store(cfg.StartPaused)
	state.looping.Store(cfg.Looping)
	state.muted.Store(cfg.Muted)
	state.setSpeed(cfg.Speed)
	state.setVolume(clampVolume(cfg.Volume))
	return state
}

func (state *playbackState) Status() Status {
	return Status(state.status.Load())
}

func (state *playbackState) setStatus(s Status) {
	state.status.Store(int32(s))
}

func (state *playbackState) Speed() float64 {
	return math.Float64frombits(state.speedBits.Load())
}

func (state *playbackState) setSpeed(speed float64) {
	state.speedBits.Store(math.Float64bits(speed))
}

func (state *playbackState) Volume() float64 {
	return math.Float64frombits(state.volumeBits.Load())
}

func (state *playbackState) setVolume(volume float64) {
	state.volumeBits.Store(math.Float64bits(volume))
}

func (state *playbackState) DisplaySize() (int, int) {
	return int(state.displayWidth.Load()), int(state.displayHeight.Load())
}

func (state *playbackState) Info(ctx context.Context) media.Info {
	return xsync.RDoR1(ctx, &state.locker, func() media.Info {
		return state.info
	})
}

func (state *playbackState) setInfo(ctx context.Context, info media.Info) {
	state.locker.Do(ctx, func() {
		state.info = info
	})
}

func (state *playbackState) LastError(ctx context.Context) error {
	return xsync.RDoR1(ctx, &state.locker, func() error {
		return state.lastErr
	})
}

func (state *playbackState) setLastError(ctx context.Context, err error) {
	state.locker.Do(ctx, func() {
		state.lastErr = err
	})
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
