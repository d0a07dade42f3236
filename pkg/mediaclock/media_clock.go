// Package mediaclock maps playback progress to a position on the media
// timeline. It is the single source of truth for "now" in media time; video
// presentation and end-of-stream timing derive from it.
package mediaclock

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/xaionaro-go/xsync"
)

// Clock converts playback progress into media time.
//
// In audio-led mode the position derives from the cumulative amount of
// samples the audio device consumed, so the picture follows the sound and a
// paused (non-consuming) device freezes the position. Without an audio track
// the position advances with wall time while the clock is running.
//
// Every transition (pause, resume, seek, speed change) re-anchors the affine
// mapping, so the reported position is continuous across parameter changes.
type Clock struct {
	locker xsync.RWMutex

	wall     clock.Clock
	consumed func() uint64

	samplesPerSecond float64
	speed            float64
	running          bool

	anchorMedia    time.Duration
	anchorConsumed uint64
	anchorWall     time.Time
}

// NewAudioLed returns a clock driven by a cumulative sample counter.
// samplesPerSecond is the device sample rate multiplied by the channel
// count, i.e. the rate at which the counter grows during playback.
//
// The clock starts anchored at position zero.
func NewAudioLed(
	wall clock.Clock,
	consumed func() uint64,
	samplesPerSecond float64,
	speed float64,
) *Clock {
	if samplesPerSecond <= 0 {
		panic(fmt.Errorf("invalid samples per second: %f", samplesPerSecond))
	}
	return &Clock{
		wall:             wall,
		consumed:         consumed,
		samplesPerSecond: samplesPerSecond,
		speed:            speed,
		anchorConsumed:   consumed(),
		anchorWall:       wall.Now(),
	}
}

// NewWall returns a wall-time driven clock, for media without an audio
// track. It starts at position zero in the stopped state; call Resume to
// let it advance.
func NewWall(wall clock.Clock, speed float64) *Clock {
	return &Clock{
		wall:       wall,
		speed:      speed,
		anchorWall: wall.Now(),
	}
}

// AudioLed reports whether the clock follows audio consumption.
func (c *Clock) AudioLed() bool {
	return c.consumed != nil
}

// Now returns the current position on the media timeline.
func (c *Clock) Now(ctx context.Context) time.Duration {
	return xsync.RDoR1(ctx, &c.locker, c.now)
}

func (c *Clock) now() time.Duration {
	if c.consumed != nil {
		deviceSeconds := float64(c.consumed()-c.anchorConsumed) / c.samplesPerSecond
		return c.anchorMedia + time.Duration(deviceSeconds*c.speed*float64(time.Second))
	}
	if !c.running {
		return c.anchorMedia
	}
	return c.anchorMedia + time.Duration(float64(c.wall.Since(c.anchorWall))*c.speed)
}

func (c *Clock) rebase() {
	c.anchorMedia = c.now()
	if c.consumed != nil {
		c.anchorConsumed = c.consumed()
	}
	c.anchorWall = c.wall.Now()
}

// SetSpeed changes the playback speed multiplier without moving the current
// position.
func (c *Clock) SetSpeed(ctx context.Context, speed float64) {
	c.locker.Do(ctx, func() {
		c.rebase()
		c.speed = speed
	})
}

func (c *Clock) Speed(ctx context.Context) float64 {
	return xsync.RDoR1(ctx, &c.locker, func() float64 {
		return c.speed
	})
}

// Pause freezes a wall-time clock. In audio-led mode the position freezes by
// itself once the device callback stops consuming samples; the re-anchoring
// here merely keeps the mapping tidy.
func (c *Clock) Pause(ctx context.Context) {
	c.locker.Do(ctx, func() {
		c.rebase()
		c.running = false
	})
}

// Resume lets the clock advance again. The time spent stopped does not
// contribute to the position.
func (c *Clock) Resume(ctx context.Context) {
	c.locker.Do(ctx, func() {
		c.rebase()
		c.running = true
	})
}

// SeekTo moves the clock to the given position, keeping speed and the
// running state.
func (c *Clock) SeekTo(ctx context.Context, pos time.Duration) {
	c.locker.Do(ctx, func() {
		c.anchorMedia = pos
		if c.consumed != nil {
			c.anchorConsumed = c.consumed()
		}
		c.anchorWall = c.wall.Now()
	})
}
