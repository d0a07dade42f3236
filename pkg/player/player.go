// Package player implements the playback engine: it decodes media on a
// dedicated goroutine, paces decoded video frames through a bounded frame
// buffer, feeds decoded audio into the audio device through a ring buffer,
// and exposes a transport-control surface driven by a command protocol.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/audioout"
	"github.com/xaionaro-go/avplayer/pkg/decoder"
	"github.com/xaionaro-go/avplayer/pkg/framebuffer"
	"github.com/xaionaro-go/avplayer/pkg/media"
	"github.com/xaionaro-go/avplayer/pkg/mediaclock"
	"github.com/xaionaro-go/avplayer/pkg/resampler"
	"github.com/xaionaro-go/avplayer/pkg/ringbuffer"
	"github.com/xaionaro-go/eventbus"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

const (
	commandQueueSize = 16

	// audioRingSeconds is how much resampled audio the decoder may run ahead
	// of the device. It bounds decode-ahead on audio the same way the frame
	// buffer bounds it on video.
	audioRingSeconds = 1
)

// Player plays one media URL. Construct it with New; it is safe for
// concurrent use. The rendering side polls PopFrame (or CurrentFrame) at its
// own cadence; everything else reacts to commands.
type Player struct {
	config   Config
	session  decoder.Session
	state    *playbackState
	frames   *framebuffer.FrameBuffer
	ring     *ringbuffer.RingBuffer[float32]
	pipe     *audioPipe
	stream   audioout.Stream
	resample *resampler.Resampler
	clock    *mediaclock.Clock
	eventBus *eventbus.EventBus

	commandChan chan Command
	doneChan    chan struct{}
	cancelFunc  context.CancelFunc

	endLocker    xsync.Mutex
	endChan      chan struct{}
	endChanFired bool

	// The fields below belong to the decode goroutine; nobody else touches
	// them.
	seekGeneration     uint64
	discardVideoBefore time.Duration
	discardAudioBefore time.Duration
	reanchorPending    bool
	prebufferVideoLeft int
	prebufferAudioLeft int
}

// New opens the URL, starts the decode goroutine and returns immediately;
// the player comes up in StatusOpening and transitions on its own once the
// prebuffer fills. If the media has an audio track but no audio output is
// usable, playback downgrades to video-only instead of failing.
func New(
	ctx context.Context,
	url string,
	opts ...Option,
) (_ *Player, _err error) {
	logger.Debugf(ctx, "New(ctx, '%s')", url)
	defer func() { logger.Debugf(ctx, "/New(ctx, '%s'): %v", url, _err) }()

	cfg := Options(opts).Config()
	if cfg.Speed <= 0 || math.IsNaN(cfg.Speed) {
		return nil, ErrInvalidArgument{Name: "speed", Reason: fmt.Sprintf("must be positive, got %f", cfg.Speed)}
	}
	if cfg.WallClock == nil {
		return nil, ErrInvalidArgument{Name: "wall_clock", Reason: "must not be nil"}
	}
	cfg.Volume = clampVolume(cfg.Volume)

	var session decoder.Session
	var err error
	if cfg.Backend != nil {
		session, err = cfg.Backend.Open(ctx, url, cfg.BackendConfig)
	} else {
		session, err = decoder.Open(ctx, url, cfg.BackendConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", url, err)
	}
	defer func() {
		if _err != nil {
			session.Close()
		}
	}()

	info := session.Info()
	if info.URL == "" {
		info.URL = url
	}

	p := &Player{
		config:      cfg,
		session:     session,
		state:       newPlaybackState(cfg),
		frames:      framebuffer.New(cfg.FrameBufferCapacity, cfg.DropTolerance),
		commandChan: make(chan Command, commandQueueSize),
		doneChan:    make(chan struct{}),
		endChan:     make(chan struct{}),

		discardVideoBefore: -1,
		discardAudioBefore: -1,
	}

	if cfg.EventBus != nil {
		p.eventBus = cfg.EventBus
	} else {
		p.eventBus = eventbus.New()
	}

	if info.HasAudio && !cfg.DisableAudio {
		if err := p.initAudio(ctx, info); err != nil {
			logger.Warnf(ctx, "audio is unavailable, downgrading to video-only: %v", err)
			info.HasAudio = false
		}
	}
	p.state.setInfo(ctx, info)

	if p.stream != nil {
		p.clock = mediaclock.NewAudioLed(
			cfg.WallClock,
			p.ring.Consumed,
			float64(audioout.DeviceSampleRate*audioout.DeviceChannels),
			cfg.Speed,
		)
	} else {
		p.clock = mediaclock.NewWall(cfg.WallClock, cfg.Speed)
	}

	publishEvent(ctx, p, EventOpened{Info: info})

	loopCtx, loopCancel := context.WithCancel(xcontext.DetachDone(ctx))
	p.cancelFunc = loopCancel
	observability.Go(loopCtx, func(ctx context.Context) {
		p.decodeLoop(ctx)
	})
	return p, nil
}

func (p *Player) initAudio(ctx context.Context, info media.Info) error {
	output := p.config.AudioOutput
	if output == nil {
		var err error
		output, err = audioout.Auto(ctx)
		if err != nil {
			return fmt.Errorf("unable to find an audio output: %w", err)
		}
	}

	resample, err := resampler.New(
		float64(info.SampleRate),
		float64(audioout.DeviceSampleRate),
		info.Channels,
		audioout.DeviceChannels,
		p.config.Speed,
	)
	if err != nil {
		return fmt.Errorf("unable to initialize the resampler: %w", err)
	}

	ring := ringbuffer.New[float32](uint(audioout.DeviceSampleRate * audioout.DeviceChannels * audioRingSeconds))
	pipe := newAudioPipe(p.state, ring)
	stream, err := output.PlayPCM(
		ctx,
		audioout.DeviceSampleRate,
		audioout.DeviceChannels,
		audioout.DeviceFormat,
		audioout.DeviceBufferSize,
		pipe,
	)
	if err != nil {
		return fmt.Errorf("unable to start the audio stream: %w", err)
	}

	p.resample = resample
	p.ring = ring
	p.pipe = pipe
	p.stream = stream
	return nil
}

// PopFrame returns the frame due for presentation at the current clock
// position, or nil if none is due yet. Frames superseded by a newer
// already-due frame are dropped on the way.
func (p *Player) PopFrame(ctx context.Context) *media.VideoFrame {
	return p.frames.PopReady(ctx, p.GetPosition(ctx))
}

// CurrentFrame returns the most recently popped frame; it keeps returning
// the same one across pause, seek and end-of-stream so the consumer always
// has a picture.
func (p *Player) CurrentFrame(ctx context.Context) *media.VideoFrame {
	return p.frames.CurrentFrame(ctx)
}

// TakeFrameReady reports whether a new frame arrived since the previous
// call, clearing the flag.
func (p *Player) TakeFrameReady(ctx context.Context) bool {
	return p.frames.TakeFrameReady()
}

func (p *Player) BufferedLen(ctx context.Context) int {
	return p.frames.Len(ctx)
}

func (p *Player) FrameBufferStats(ctx context.Context) framebuffer.Stats {
	return p.frames.Stats(ctx)
}

// SetFrameBufferCapacity resizes the frame buffer at runtime. Capacity 0
// switches it into the single-slot latest-frame mode.
func (p *Player) SetFrameBufferCapacity(ctx context.Context, capacity uint) {
	p.frames.SetCapacity(ctx, capacity)
}

// GetPosition returns the current position on the media timeline, clamped
// into [0, duration].
func (p *Player) GetPosition(ctx context.Context) time.Duration {
	pos := p.clock.Now(ctx)
	if pos < 0 {
		return 0
	}
	if duration := p.state.Info(ctx).Duration; duration > 0 && pos > duration {
		return duration
	}
	return pos
}

func (p *Player) GetLength(ctx context.Context) time.Duration {
	return p.state.Info(ctx).Duration
}

func (p *Player) GetInfo(ctx context.Context) media.Info {
	return p.state.Info(ctx)
}

func (p *Player) GetFrameRate(ctx context.Context) float64 {
	return p.state.Info(ctx).FrameRate
}

func (p *Player) GetVideoSize(ctx context.Context) (int, int) {
	info := p.state.Info(ctx)
	return info.Width, info.Height
}

func (p *Player) GetAspectRatio(ctx context.Context) float64 {
	return p.state.Info(ctx).AspectRatio()
}

func (p *Player) HasAudio(ctx context.Context) bool {
	return p.state.Info(ctx).HasAudio
}

func (p *Player) GetStatus(ctx context.Context) Status {
	return p.state.Status()
}

func (p *Player) GetPause(ctx context.Context) bool {
	return p.state.paused.Load()
}

func (p *Player) IsEnded(ctx context.Context) bool {
	return p.state.eos.Load()
}

func (p *Player) IsLooping(ctx context.Context) bool {
	return p.state.looping.Load()
}

func (p *Player) GetSpeed(ctx context.Context) float64 {
	return p.state.Speed()
}

func (p *Player) GetVolume(ctx context.Context) float64 {
	return p.state.Volume()
}

func (p *Player) IsMuted(ctx context.Context) bool {
	return p.state.muted.Load()
}

func (p *Player) LastError(ctx context.Context) error {
	return p.state.LastError(ctx)
}

// GetDisplaySize returns the size set via SetDisplaySize, falling back to
// the video size.
func (p *Player) GetDisplaySize(ctx context.Context) (int, int) {
	w, h := p.state.DisplaySize()
	if w > 0 && h > 0 {
		return w, h
	}
	return p.GetVideoSize(ctx)
}

func (p *Player) SetDisplaySize(ctx context.Context, width, height int) {
	p.state.displayWidth.Store(int64(width))
	p.state.displayHeight.Store(int64(height))
}

func (p *Player) SetDisplayWidth(ctx context.Context, width int) {
	p.state.displayWidth.Store(int64(width))
}

func (p *Player) SetDisplayHeight(ctx context.Context, height int) {
	p.state.displayHeight.Store(int64(height))
}

// EndChan returns a channel that closes when playback reaches the end of
// the stream (or an unrecoverable error). A subsequent seek or restart
// replaces the channel, so re-request it after reusing the player.
func (p *Player) EndChan(ctx context.Context) <-chan struct{} {
	return xsync.DoR1(ctx, &p.endLocker, func() <-chan struct{} {
		return p.endChan
	})
}

func (p *Player) closeEndChan(ctx context.Context) {
	p.endLocker.Do(ctx, func() {
		if p.endChanFired {
			return
		}
		p.endChanFired = true
		close(p.endChan)
	})
}

func (p *Player) resetEndChan(ctx context.Context) {
	p.endLocker.Do(ctx, func() {
		if !p.endChanFired {
			return
		}
		p.endChanFired = false
		p.endChan = make(chan struct{})
	})
}

// SetPause pauses or resumes playback.
func (p *Player) SetPause(ctx context.Context, pause bool) error {
	return p.sendCommand(ctx, &CommandSetPaused{Paused: pause})
}

// Seek jumps to the given position. With accurate set, decoded frames
// before the target are discarded so playback resumes exactly there;
// otherwise playback resumes at the nearest keyframe at or before the
// target.
func (p *Player) Seek(ctx context.Context, pos Position, accurate bool) error {
	target, err := p.resolvePosition(ctx, pos)
	if err != nil {
		return err
	}
	duration := p.state.Info(ctx).Duration
	if target < 0 || (duration > 0 && target > duration) {
		return ErrSeekOutOfRange{Target: target, Duration: duration}
	}
	return p.sendCommand(ctx, &CommandSeek{Target: target, Accurate: accurate})
}

func (p *Player) resolvePosition(ctx context.Context, pos Position) (time.Duration, error) {
	switch pos := pos.(type) {
	case PositionTime:
		return time.Duration(pos), nil
	case PositionFrame:
		interval := p.state.Info(ctx).FrameInterval()
		if interval <= 0 {
			return 0, ErrInvalidArgument{Name: "position", Reason: "cannot address by frame: the frame rate is unknown"}
		}
		return time.Duration(pos) * interval, nil
	default:
		return 0, ErrInvalidArgument{Name: "position", Reason: fmt.Sprintf("unexpected type %T", pos)}
	}
}

// SetSpeed changes the playback speed multiplier. The position is
// continuous across the change.
func (p *Player) SetSpeed(ctx context.Context, speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return ErrInvalidArgument{Name: "speed", Reason: fmt.Sprintf("must be positive, got %f", speed)}
	}
	return p.sendCommand(ctx, &CommandSetSpeed{Speed: speed})
}

// SetVolume sets the output gain; values outside [0, 1] are clamped.
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	return p.sendCommand(ctx, &CommandSetVolume{Volume: clampVolume(volume)})
}

func (p *Player) SetMuted(ctx context.Context, muted bool) error {
	return p.sendCommand(ctx, &CommandSetMuted{Muted: muted})
}

func (p *Player) SetLooping(ctx context.Context, looping bool) error {
	return p.sendCommand(ctx, &CommandSetLooping{Looping: looping})
}

// Restart seeks back to the beginning and unpauses, also recovering from
// the ended and errored states.
func (p *Player) Restart(ctx context.Context) error {
	return p.sendCommand(ctx, &CommandRestart{})
}

// Close shuts the player down and waits for the decode goroutine to finish.
// It is idempotent.
func (p *Player) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close")
	defer logger.Debugf(ctx, "/Close")

	err := p.sendCommand(ctx, &CommandShutdown{})
	switch {
	case err == nil:
	case errors.Is(err, ErrClosed):
		// already shutting down (or shut down), just wait below
	default:
		return err
	}

	select {
	case <-p.doneChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) sendCommand(ctx context.Context, cmd Command) error {
	logger.Debugf(ctx, "sendCommand(ctx, %s)", cmd)
	defer logger.Debugf(ctx, "/sendCommand(ctx, %s)", cmd)

	select {
	case <-p.doneChan:
		return ErrClosed
	default:
	}

	select {
	case p.commandChan <- cmd:
		return nil
	case <-p.doneChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
