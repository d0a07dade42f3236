package framebuffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

func frame(pts time.Duration) *media.VideoFrame {
	return &media.VideoFrame{PTS: pts}
}

func TestFrameBufferCapacityBound(t *testing.T) {
	ctx := context.Background()
	fb := New(3, 0)

	require.True(t, fb.TryPush(ctx, frame(0)))
	require.True(t, fb.TryPush(ctx, frame(40*time.Millisecond)))
	require.True(t, fb.TryPush(ctx, frame(80*time.Millisecond)))
	require.False(t, fb.TryPush(ctx, frame(120*time.Millisecond)))
	require.Equal(t, 3, fb.Len(ctx))
}

func TestFrameBufferPopOrder(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 0)

	for _, pts := range []time.Duration{0, 40 * time.Millisecond, 80 * time.Millisecond} {
		require.True(t, fb.TryPush(ctx, frame(pts)))
	}

	f := fb.PopReady(ctx, 0)
	require.NotNil(t, f)
	require.Equal(t, time.Duration(0), f.PTS)

	f = fb.PopReady(ctx, 40*time.Millisecond)
	require.NotNil(t, f)
	require.Equal(t, 40*time.Millisecond, f.PTS)

	require.Nil(t, fb.PopReady(ctx, 50*time.Millisecond), "the next frame is not due yet")

	f = fb.PopReady(ctx, 80*time.Millisecond)
	require.NotNil(t, f)
	require.Equal(t, 80*time.Millisecond, f.PTS)
}

func TestFrameBufferDropsSuperseded(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 0)

	for _, pts := range []time.Duration{0, 40 * time.Millisecond, 80 * time.Millisecond} {
		require.True(t, fb.TryPush(ctx, frame(pts)))
	}

	// at t=200ms all three frames are late; only the newest is presented
	f := fb.PopReady(ctx, 200*time.Millisecond)
	require.NotNil(t, f)
	require.Equal(t, 80*time.Millisecond, f.PTS)

	stats := fb.Stats(ctx)
	require.Equal(t, uint64(2), stats.Dropped)
	require.Equal(t, uint64(1), stats.Popped)
	require.Equal(t, uint64(3), stats.Pushed)
}

func TestFrameBufferDropTolerance(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 20*time.Millisecond)

	require.True(t, fb.TryPush(ctx, frame(100*time.Millisecond)))
	require.Nil(t, fb.PopReady(ctx, 70*time.Millisecond))
	require.NotNil(t, fb.PopReady(ctx, 85*time.Millisecond))
}

func TestFrameBufferCurrentFrame(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 0)

	require.Nil(t, fb.CurrentFrame(ctx))

	require.True(t, fb.TryPush(ctx, frame(0)))
	f := fb.PopReady(ctx, 0)
	require.NotNil(t, f)
	require.Same(t, f, fb.CurrentFrame(ctx))

	// nothing left to pop, but the current frame stays presentable
	require.Nil(t, fb.PopReady(ctx, time.Second))
	require.Same(t, f, fb.CurrentFrame(ctx))
}

func TestFrameBufferSingleSlot(t *testing.T) {
	ctx := context.Background()
	fb := New(0, 0)

	require.True(t, fb.TryPush(ctx, frame(0)))
	require.True(t, fb.TryPush(ctx, frame(500*time.Millisecond)))
	require.Equal(t, 1, fb.Len(ctx))

	// single-slot mode is not gated by the clock
	f := fb.PopReady(ctx, 0)
	require.NotNil(t, f)
	require.Equal(t, 500*time.Millisecond, f.PTS)
	require.Nil(t, fb.PopReady(ctx, 0))

	stats := fb.Stats(ctx)
	require.Equal(t, uint64(1), stats.Dropped)
}

func TestFrameBufferTakeFrameReady(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 0)

	require.False(t, fb.TakeFrameReady())

	require.True(t, fb.TryPush(ctx, frame(0)))
	require.True(t, fb.TakeFrameReady())
	require.False(t, fb.TakeFrameReady(), "the flag is cleared by taking it")

	require.True(t, fb.TryPush(ctx, frame(40*time.Millisecond)))
	fb.Flush(ctx)
	require.False(t, fb.TakeFrameReady(), "a flush clears the flag")
}

func TestFrameBufferFlush(t *testing.T) {
	ctx := context.Background()
	fb := New(10, 0)

	require.True(t, fb.TryPush(ctx, frame(0)))
	cur := fb.PopReady(ctx, 0)
	require.NotNil(t, cur)

	require.True(t, fb.TryPush(ctx, frame(40*time.Millisecond)))
	require.True(t, fb.TryPush(ctx, frame(80*time.Millisecond)))
	fb.Flush(ctx)

	require.Equal(t, 0, fb.Len(ctx))
	require.Same(t, cur, fb.CurrentFrame(ctx))
	require.Equal(t, uint64(1), fb.Stats(ctx).Flushes)
}

func TestFrameBufferSetCapacity(t *testing.T) {
	ctx := context.Background()
	fb := New(5, 0)

	for i := 0; i < 5; i++ {
		require.True(t, fb.TryPush(ctx, frame(time.Duration(i)*40*time.Millisecond)))
	}

	fb.SetCapacity(ctx, 2)
	require.Equal(t, 2, fb.Len(ctx))
	require.Equal(t, uint(2), fb.Cap(ctx))

	// the oldest frames were discarded, the newest two remain
	f := fb.PopReady(ctx, 120*time.Millisecond)
	require.NotNil(t, f)
	require.Equal(t, 120*time.Millisecond, f.PTS)
	f = fb.PopReady(ctx, 160*time.Millisecond)
	require.NotNil(t, f)
	require.Equal(t, 160*time.Millisecond, f.PTS)

	require.Equal(t, uint64(3), fb.Stats(ctx).Dropped)
}

func TestFrameBufferSetCapacityZeroAtRuntime(t *testing.T) {
	ctx := context.Background()
	fb := New(3, 0)

	for i := 0; i < 3; i++ {
		require.True(t, fb.TryPush(ctx, frame(time.Duration(i)*40*time.Millisecond)))
	}

	fb.SetCapacity(ctx, 0)
	require.Equal(t, 1, fb.Len(ctx))

	f := fb.PopReady(ctx, 0)
	require.NotNil(t, f)
	require.Equal(t, 80*time.Millisecond, f.PTS)
	require.Nil(t, fb.PopReady(ctx, 0))

	// pushes now overwrite instead of queueing
	require.True(t, fb.TryPush(ctx, frame(120*time.Millisecond)))
	require.True(t, fb.TryPush(ctx, frame(160*time.Millisecond)))
	require.Equal(t, 1, fb.Len(ctx))
}

func TestFrameBufferSpaceSignal(t *testing.T) {
	ctx := context.Background()
	fb := New(1, 0)

	require.True(t, fb.TryPush(ctx, frame(0)))
	require.False(t, fb.TryPush(ctx, frame(40*time.Millisecond)))

	select {
	case <-fb.Space():
		t.Fatal("unexpected space notification")
	default:
	}

	require.NotNil(t, fb.PopReady(ctx, 0))

	select {
	case <-fb.Space():
	case <-time.After(time.Second):
		t.Fatal("no space notification after a pop")
	}
	require.True(t, fb.TryPush(ctx, frame(40*time.Millisecond)))
}
