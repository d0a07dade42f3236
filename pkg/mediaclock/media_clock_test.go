package mediaclock

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestWallClock(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	c := NewWall(mock, 1.0)
	require.False(t, c.AudioLed())

	require.Equal(t, time.Duration(0), c.Now(ctx))

	// stopped: wall time passing does not move the position
	mock.Add(time.Second)
	require.Equal(t, time.Duration(0), c.Now(ctx))

	c.Resume(ctx)
	mock.Add(time.Second)
	require.Equal(t, time.Second, c.Now(ctx))

	c.Pause(ctx)
	mock.Add(time.Second)
	require.Equal(t, time.Second, c.Now(ctx))

	c.Resume(ctx)
	mock.Add(500 * time.Millisecond)
	require.Equal(t, 1500*time.Millisecond, c.Now(ctx))
}

func TestWallClockSpeed(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	c := NewWall(mock, 1.0)
	c.Resume(ctx)

	mock.Add(time.Second)
	require.Equal(t, time.Second, c.Now(ctx))

	c.SetSpeed(ctx, 2.0)
	require.Equal(t, 2.0, c.Speed(ctx))
	mock.Add(time.Second)
	require.Equal(t, 3*time.Second, c.Now(ctx))

	c.SetSpeed(ctx, 0.5)
	mock.Add(time.Second)
	require.Equal(t, 3500*time.Millisecond, c.Now(ctx))
}

func TestWallClockSeek(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	c := NewWall(mock, 1.0)
	c.Resume(ctx)

	c.SeekTo(ctx, 10*time.Second)
	require.Equal(t, 10*time.Second, c.Now(ctx))

	mock.Add(time.Second)
	require.Equal(t, 11*time.Second, c.Now(ctx))
}

func TestAudioLedClock(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()

	var consumed uint64
	// 48kHz stereo: 96000 samples per second of playback
	c := NewAudioLed(mock, func() uint64 { return consumed }, 96000, 1.0)
	require.True(t, c.AudioLed())

	require.Equal(t, time.Duration(0), c.Now(ctx))

	consumed = 96000
	require.Equal(t, time.Second, c.Now(ctx))

	// wall time alone must not advance an audio-led clock
	mock.Add(10 * time.Second)
	require.Equal(t, time.Second, c.Now(ctx))

	consumed += 48000
	require.Equal(t, 1500*time.Millisecond, c.Now(ctx))
}

func TestAudioLedClockSpeed(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()

	var consumed uint64
	c := NewAudioLed(mock, func() uint64 { return consumed }, 96000, 1.0)

	consumed = 96000
	require.Equal(t, time.Second, c.Now(ctx))

	// at 2x, half a second of device output covers one second of media
	c.SetSpeed(ctx, 2.0)
	consumed += 48000
	require.Equal(t, 2*time.Second, c.Now(ctx))
}

func TestAudioLedClockSeek(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()

	var consumed uint64
	c := NewAudioLed(mock, func() uint64 { return consumed }, 96000, 1.0)

	consumed = 96000
	c.SeekTo(ctx, 5*time.Second)
	require.Equal(t, 5*time.Second, c.Now(ctx))

	consumed += 96000
	require.Equal(t, 6*time.Second, c.Now(ctx))
}

func TestAudioLedClockPauseFreeze(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()

	var consumed uint64
	c := NewAudioLed(mock, func() uint64 { return consumed }, 96000, 1.0)

	consumed = 48000
	before := c.Now(ctx)

	// while paused the device callback emits silence without consuming, so
	// the counter (and therefore the position) stays put
	c.Pause(ctx)
	mock.Add(5 * time.Second)
	require.Equal(t, before, c.Now(ctx))

	c.Resume(ctx)
	require.Equal(t, before, c.Now(ctx))

	consumed += 48000
	require.Equal(t, before+500*time.Millisecond, c.Now(ctx))
}
