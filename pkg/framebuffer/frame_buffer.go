// Package framebuffer implements the bounded queue of decoded video frames
// sitting between the decoder goroutine and the render consumer.
package framebuffer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xaionaro-go/avplayer/pkg/media"
	"github.com/xaionaro-go/xsync"
)

// Stats are cumulative counters over the lifetime of the buffer.
type Stats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64
	Flushes uint64
}

// FrameBuffer is a bounded FIFO of video frames in ascending PTS order.
//
// The producer uses TryPush and waits on Space when the buffer is full, which
// is what couples decode speed to consumption speed. Capacity 0 switches the
// buffer into a single-slot mode: TryPush always succeeds by overwriting the
// slot, and PopReady hands out the slot content regardless of the clock.
type FrameBuffer struct {
	locker xsync.Mutex

	queue         []*media.VideoFrame
	capacity      uint
	current       *media.VideoFrame
	dropTolerance time.Duration
	stats         Stats

	frameReady atomic.Bool
	spaceCh    chan struct{}
}

func New(capacity uint, dropTolerance time.Duration) *FrameBuffer {
	return &FrameBuffer{
		capacity:      capacity,
		dropTolerance: dropTolerance,
		spaceCh:       make(chan struct{}, 1),
	}
}

// TryPush appends frame to the tail and sets the frame-ready flag. It
// reports false when the buffer is full; the producer should then wait on
// Space (or on a preempting command) and retry. In single-slot mode it never
// fails: the previous unconsumed frame is overwritten and counted as dropped.
func (fb *FrameBuffer) TryPush(ctx context.Context, frame *media.VideoFrame) bool {
	return xsync.DoR1(ctx, &fb.locker, func() bool {
		if fb.capacity == 0 {
			if len(fb.queue) != 0 {
				fb.queue[0] = frame
				fb.stats.Dropped++
			} else {
				fb.queue = append(fb.queue, frame)
			}
			fb.stats.Pushed++
			fb.frameReady.Store(true)
			return true
		}

		if uint(len(fb.queue)) >= fb.capacity {
			return false
		}
		fb.queue = append(fb.queue, frame)
		fb.stats.Pushed++
		fb.frameReady.Store(true)
		return true
	})
}

// PopReady returns the frame due for presentation at media time now, or nil
// if none is due yet (or the buffer is empty). Frames superseded by a later
// frame that is also already due are discarded. The returned frame stays
// available through CurrentFrame until a newer one is popped.
func (fb *FrameBuffer) PopReady(ctx context.Context, now time.Duration) *media.VideoFrame {
	return xsync.DoR1(ctx, &fb.locker, func() *media.VideoFrame {
		if len(fb.queue) == 0 {
			return nil
		}

		if fb.capacity == 0 {
			return fb.popHead()
		}

		for len(fb.queue) >= 2 && fb.queue[1].PTS <= now {
			fb.queue[0] = nil
			fb.queue = fb.queue[1:]
			fb.stats.Dropped++
		}
		if fb.queue[0].PTS > now+fb.dropTolerance {
			return nil
		}
		return fb.popHead()
	})
}

func (fb *FrameBuffer) popHead() *media.VideoFrame {
	frame := fb.queue[0]
	fb.queue[0] = nil
	fb.queue = fb.queue[1:]
	fb.stats.Popped++
	fb.current = frame
	fb.notifySpace()
	return frame
}

// CurrentFrame returns the most recently popped frame. It keeps returning
// the same frame after end-of-stream or while a seek is in flight, so the
// consumer always has something to present.
func (fb *FrameBuffer) CurrentFrame(ctx context.Context) *media.VideoFrame {
	return xsync.DoR1(ctx, &fb.locker, func() *media.VideoFrame {
		return fb.current
	})
}

// TakeFrameReady reports whether a frame was pushed since the last call,
// clearing the flag. It is how a render loop distinguishes "new data
// available" from "consume now".
func (fb *FrameBuffer) TakeFrameReady() bool {
	return fb.frameReady.Swap(false)
}

// Space returns a channel that receives a value whenever room may have been
// freed up. Spurious wakeups are possible.
func (fb *FrameBuffer) Space() <-chan struct{} {
	return fb.spaceCh
}

func (fb *FrameBuffer) notifySpace() {
	select {
	case fb.spaceCh <- struct{}{}:
	default:
	}
}

func (fb *FrameBuffer) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &fb.locker, func() int {
		return len(fb.queue)
	})
}

func (fb *FrameBuffer) Cap(ctx context.Context) uint {
	return xsync.DoR1(ctx, &fb.locker, func() uint {
		return fb.capacity
	})
}

// SetCapacity changes the capacity at runtime. Shrinking discards the oldest
// frames that no longer fit; switching to 0 keeps only the newest one.
func (fb *FrameBuffer) SetCapacity(ctx context.Context, capacity uint) {
	fb.locker.Do(ctx, func() {
		fb.capacity = capacity

		keep := int(capacity)
		if capacity == 0 {
			keep = 1
		}
		if excess := len(fb.queue) - keep; excess > 0 {
			for i := 0; i < excess; i++ {
				fb.queue[i] = nil
			}
			fb.queue = fb.queue[excess:]
			fb.stats.Dropped += uint64(excess)
		}
		fb.notifySpace()
	})
}

// Flush discards all queued frames, keeping the current frame so that the
// consumer does not flash to black while new data is decoded.
func (fb *FrameBuffer) Flush(ctx context.Context) {
	fb.locker.Do(ctx, func() {
		for i := range fb.queue {
			fb.queue[i] = nil
		}
		fb.queue = fb.queue[:0]
		fb.stats.Flushes++
		fb.frameReady.Store(false)
		fb.notifySpace()
	})
}

func (fb *FrameBuffer) Stats(ctx context.Context) Stats {
	return xsync.DoR1(ctx, &fb.locker, func() Stats {
		return fb.stats
	})
}
