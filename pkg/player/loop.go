package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/audioout"
	"github.com/xaionaro-go/avplayer/pkg/decoder"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

// drainPollInterval is how often the loop re-checks the buffers while
// waiting for the tail of the stream to play out.
const drainPollInterval = 10 * time.Millisecond

// decodeLoop is the only goroutine that talks to the decode session. It
// reads units, pushes them into the buffers (blocking on backpressure, but
// staying preemptible by commands), and applies every command, so commands
// are always serialized with decode progress.
func (p *Player) decodeLoop(ctx context.Context) {
	logger.Debugf(ctx, "decodeLoop")
	defer logger.Debugf(ctx, "/decodeLoop")
	defer close(p.doneChan)

	p.startPrebuffer(ctx)
	p.maybeFinishPrebuffer(ctx)

	for {
		p.drainCommands(ctx)

		switch p.state.Status() {
		case StatusClosed:
			return
		case StatusEnded, StatusErrored:
			// nothing to decode until a command revives playback
			select {
			case <-ctx.Done():
				p.applyShutdown(ctx)
				return
			case cmd := <-p.commandChan:
				p.applyCommand(ctx, cmd)
			}
			continue
		}

		unit, err := p.session.ReadUnit(ctx)
		switch {
		case err == nil:
			p.processUnit(ctx, unit)
		case errors.Is(err, io.EOF):
			p.onEndOfStream(ctx)
		case ctx.Err() != nil:
			p.applyShutdown(ctx)
			return
		default:
			p.onDecodeError(ctx, err)
		}
	}
}

func (p *Player) drainCommands(ctx context.Context) {
	for {
		select {
		case cmd := <-p.commandChan:
			p.applyCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (p *Player) processUnit(ctx context.Context, unit decoder.Unit) {
	switch unit := unit.(type) {
	case *decoder.VideoUnit:
		p.processVideoFrame(ctx, unit.Frame)
	case *decoder.AudioUnit:
		p.processAudioChunk(ctx, unit.Chunk)
	default:
		logger.Errorf(ctx, "unexpected unit type %T", unit)
	}
	p.maybeFinishPrebuffer(ctx)
}

func (p *Player) processVideoFrame(ctx context.Context, frame *media.VideoFrame) {
	if frame == nil {
		return
	}
	if p.discardVideoBefore >= 0 {
		if frame.PTS < p.discardVideoBefore {
			logger.Tracef(ctx, "discarding a pre-target video frame: %v < %v", frame.PTS, p.discardVideoBefore)
			return
		}
		p.discardVideoBefore = -1
	}
	if p.reanchorPending {
		// an inaccurate seek lands on a sync point; the timeline restarts
		// from whatever came out first
		p.clock.SeekTo(ctx, frame.PTS)
		p.reanchorPending = false
	}
	if !p.pushVideoFrame(ctx, frame) {
		return
	}
	if p.prebufferVideoLeft > 0 {
		p.prebufferVideoLeft--
	}
}

func (p *Player) processAudioChunk(ctx context.Context, chunk *media.AudioChunk) {
	if chunk == nil || p.resample == nil {
		return
	}
	if p.discardAudioBefore >= 0 {
		if chunk.PTS+chunk.Duration() <= p.discardAudioBefore {
			logger.Tracef(ctx, "discarding a pre-target audio chunk: %v < %v", chunk.PTS, p.discardAudioBefore)
			return
		}
		p.discardAudioBefore = -1
	}
	if p.reanchorPending && !p.state.Info(ctx).HasVideo {
		p.clock.SeekTo(ctx, chunk.PTS)
		p.reanchorPending = false
	}

	samples := p.resample.Resample(chunk.Samples)
	if !p.pushSamples(ctx, samples) {
		return
	}
	if p.prebufferAudioLeft > 0 {
		p.prebufferAudioLeft -= len(samples)
		if p.prebufferAudioLeft < 0 {
			p.prebufferAudioLeft = 0
		}
	}
}

// pushVideoFrame blocks until the frame fits into the frame buffer, reacting
// to commands in the meanwhile. It reports false when the frame was
// abandoned (a seek flushed the buffers, or the player closed).
func (p *Player) pushVideoFrame(ctx context.Context, frame *media.VideoFrame) bool {
	generation := p.seekGeneration
	for {
		if p.state.Status() == StatusClosed {
			return false
		}
		if p.frames.TryPush(ctx, frame) {
			return true
		}
		if p.forceFinishPrebufferIfStuck(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			p.applyShutdown(ctx)
			return false
		case <-p.frames.Space():
		case cmd := <-p.commandChan:
			p.applyCommand(ctx, cmd)
			if p.seekGeneration != generation {
				return false
			}
		}
	}
}

// pushSamples writes resampled audio into the ring, blocking (preemptibly)
// while it is full. Reports false when the rest of the chunk was abandoned.
func (p *Player) pushSamples(ctx context.Context, samples []float32) bool {
	generation := p.seekGeneration
	for len(samples) > 0 {
		if p.state.Status() == StatusClosed {
			return false
		}
		n := p.ring.Write(samples)
		samples = samples[n:]
		if len(samples) == 0 {
			return true
		}
		if p.forceFinishPrebufferIfStuck(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			p.applyShutdown(ctx)
			return false
		case <-p.ring.Space():
		case cmd := <-p.commandChan:
			p.applyCommand(ctx, cmd)
			if p.seekGeneration != generation {
				return false
			}
		}
	}
	return true
}

// forceFinishPrebufferIfStuck ends the prebuffering phase when a buffer
// filled up before the prebuffer targets were met: the buffers cannot drain
// before playback starts, so waiting any longer would deadlock.
func (p *Player) forceFinishPrebufferIfStuck(ctx context.Context) bool {
	switch p.state.Status() {
	case StatusOpening, StatusSeeking:
	default:
		return false
	}
	logger.Debugf(ctx, "a buffer is full before the prebuffer target was reached, starting playback")
	p.prebufferVideoLeft = 0
	p.prebufferAudioLeft = 0
	p.finishPrebuffer(ctx)
	return true
}

// startPrebuffer computes how much data must be buffered before playback
// may leave the Opening/Seeking state.
func (p *Player) startPrebuffer(ctx context.Context) {
	info := p.state.Info(ctx)

	p.prebufferVideoLeft = 0
	if info.HasVideo {
		target := p.config.PrebufferFrames
		if capacity := p.frames.Cap(ctx); capacity == 0 || target > capacity {
			target = capacity
		}
		if target == 0 {
			target = 1
		}
		p.prebufferVideoLeft = int(target)
	}

	p.prebufferAudioLeft = 0
	if p.ring != nil && info.HasAudio {
		// the time-equivalent of the video prebuffer, capped to half the
		// ring so it is always reachable
		span := time.Duration(p.config.PrebufferFrames) * info.FrameInterval()
		if span <= 0 {
			span = 200 * time.Millisecond
		}
		if max := audioRingSeconds * time.Second / 2; span > max {
			span = max
		}
		p.prebufferAudioLeft = int(span.Seconds() * audioout.DeviceSampleRate * audioout.DeviceChannels)
	}

	logger.Debugf(ctx, "prebuffer targets: %d frames, %d samples", p.prebufferVideoLeft, p.prebufferAudioLeft)
}

func (p *Player) maybeFinishPrebuffer(ctx context.Context) {
	switch p.state.Status() {
	case StatusOpening, StatusSeeking:
	default:
		return
	}
	if p.prebufferVideoLeft > 0 || p.prebufferAudioLeft > 0 {
		return
	}
	p.finishPrebuffer(ctx)
}

// finishPrebuffer transitions out of Opening/Seeking. The clock is adjusted
// before the status is published: whoever observes the new status must see a
// consistent position.
func (p *Player) finishPrebuffer(ctx context.Context) {
	if p.state.paused.Load() {
		p.clock.Pause(ctx)
		p.setStatusEvented(ctx, StatusPaused)
	} else {
		p.clock.Resume(ctx)
		p.setStatusEvented(ctx, StatusReady)
	}
}

func (p *Player) setStatusEvented(ctx context.Context, new Status) {
	old := p.state.Status()
	if old == new {
		return
	}
	p.state.setStatus(new)
	logger.Debugf(ctx, "state transition: %s -> %s", old, new)
	publishEvent(ctx, p, EventStateChanged{Old: old, New: new})
}

func (p *Player) applyCommand(ctx context.Context, cmd Command) {
	logger.Debugf(ctx, "applyCommand(ctx, %s)", cmd)
	defer logger.Debugf(ctx, "/applyCommand(ctx, %s)", cmd)

	switch cmd := cmd.(type) {
	case *CommandSetPaused:
		p.applySetPaused(ctx, cmd.Paused)
	case *CommandSeek:
		p.applySeek(ctx, cmd.Target, cmd.Accurate)
	case *CommandSetSpeed:
		p.applySetSpeed(ctx, cmd.Speed)
	case *CommandSetVolume:
		p.state.setVolume(clampVolume(cmd.Volume))
	case *CommandSetMuted:
		p.state.muted.Store(cmd.Muted)
	case *CommandSetLooping:
		p.state.looping.Store(cmd.Looping)
	case *CommandRestart:
		p.applyRestart(ctx)
	case *CommandShutdown:
		p.applyShutdown(ctx)
	default:
		logger.Errorf(ctx, "unexpected command type %T", cmd)
	}
}

func (p *Player) applySetPaused(ctx context.Context, paused bool) {
	p.state.paused.Store(paused)
	switch {
	case paused && p.state.Status() == StatusReady:
		p.clock.Pause(ctx)
		p.setStatusEvented(ctx, StatusPaused)
	case !paused && p.state.Status() == StatusPaused:
		p.clock.Resume(ctx)
		p.setStatusEvented(ctx, StatusReady)
	default:
		// during Opening/Seeking the flag is consulted once prebuffering
		// finishes; in Ended/Errored it only matters after a recovery
	}
}

func (p *Player) applySetSpeed(ctx context.Context, speed float64) {
	if speed <= 0 {
		logger.Errorf(ctx, "invalid speed: %f", speed)
		return
	}
	p.clock.SetSpeed(ctx, speed)
	if p.resample != nil {
		p.resample.SetSpeed(speed)
	}
	p.state.setSpeed(speed)
}

func (p *Player) applySeek(ctx context.Context, target time.Duration, accurate bool) {
	logger.Debugf(ctx, "applySeek(ctx, %v, %t)", target, accurate)
	defer logger.Debugf(ctx, "/applySeek(ctx, %v, %t)", target, accurate)

	oldStatus := p.state.Status()
	if oldStatus == StatusClosed {
		return
	}
	p.setStatusEvented(ctx, StatusSeeking)

	if err := p.session.Seek(ctx, target); err != nil {
		err = fmt.Errorf("unable to seek to %v: %w", target, err)
		logger.Errorf(ctx, "%v", err)
		p.state.setLastError(ctx, err)
		publishEvent(ctx, p, EventError{Err: err})
		// the session still plays from the old position
		p.setStatusEvented(ctx, oldStatus)
		return
	}

	p.seekGeneration++
	p.frames.Flush(ctx)
	if p.ring != nil {
		p.ring.Flush()
	}
	if p.resample != nil {
		p.resample.Reset()
	}

	p.state.eos.Store(false)
	p.state.setLastError(ctx, nil)
	p.clock.Pause(ctx)
	p.clock.SeekTo(ctx, target)
	if accurate {
		p.discardVideoBefore = target
		p.discardAudioBefore = target
		p.reanchorPending = false
	} else {
		p.discardVideoBefore = -1
		p.discardAudioBefore = -1
		p.reanchorPending = true
	}

	p.resetEndChan(ctx)
	p.startPrebuffer(ctx)
	p.maybeFinishPrebuffer(ctx)
	publishEvent(ctx, p, EventSeeked{Target: target, Accurate: accurate})
}

func (p *Player) applyRestart(ctx context.Context) {
	p.state.paused.Store(false)
	p.applySeek(ctx, 0, true)
}

// onEndOfStream lets the already-buffered tail play out, then either loops
// or transitions to Ended.
func (p *Player) onEndOfStream(ctx context.Context) {
	logger.Debugf(ctx, "onEndOfStream")
	defer logger.Debugf(ctx, "/onEndOfStream")

	if p.state.looping.Load() {
		p.applySeek(ctx, 0, false)
		return
	}

	generation := p.seekGeneration
	for p.state.Status() == StatusReady && p.buffersNonEmpty(ctx) {
		select {
		case <-ctx.Done():
			p.applyShutdown(ctx)
			return
		case cmd := <-p.commandChan:
			p.applyCommand(ctx, cmd)
			if p.seekGeneration != generation {
				// a seek rescued playback
				return
			}
		case <-p.config.WallClock.After(drainPollInterval):
		}
	}
	if p.state.Status() == StatusClosed {
		return
	}

	// the tail is played out; snap the clock to the end of the stream so
	// the reported position does not stop a ring-buffer's worth short
	if duration := p.state.Info(ctx).Duration; duration > 0 {
		p.clock.SeekTo(ctx, duration)
	}
	p.clock.Pause(ctx)
	p.state.eos.Store(true)
	p.setStatusEvented(ctx, StatusEnded)
	p.closeEndChan(ctx)
	publishEvent(ctx, p, EventEndOfStream{})
}

func (p *Player) buffersNonEmpty(ctx context.Context) bool {
	if p.frames.Len(ctx) > 0 {
		return true
	}
	return p.ring != nil && p.ring.Len() > 0
}

func (p *Player) onDecodeError(ctx context.Context, err error) {
	var errDecode decoder.ErrDecode
	if errors.As(err, &errDecode) && !errDecode.Fatal {
		logger.Debugf(ctx, "skipping an undecodable unit: %v", err)
		return
	}

	logger.Errorf(ctx, "fatal decode error: %v", err)
	p.clock.Pause(ctx)
	p.state.setLastError(ctx, err)
	p.setStatusEvented(ctx, StatusErrored)
	p.closeEndChan(ctx)
	publishEvent(ctx, p, EventError{Err: err})
}

func (p *Player) applyShutdown(ctx context.Context) {
	logger.Debugf(ctx, "applyShutdown")
	defer logger.Debugf(ctx, "/applyShutdown")

	if p.state.Status() == StatusClosed {
		return
	}
	p.setStatusEvented(ctx, StatusClosed)
	p.clock.Pause(ctx)

	if p.pipe != nil {
		p.pipe.close()
	}
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the audio stream: %v", err)
		}
	}
	if err := p.session.Close(); err != nil {
		logger.Errorf(ctx, "unable to close the decode session: %v", err)
	}

	p.frames.Flush(ctx)
	p.closeEndChan(ctx)
	publishEvent(ctx, p, EventShutdown{})
	if p.cancelFunc != nil {
		p.cancelFunc()
	}
}
