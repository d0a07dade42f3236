package media

import (
	"time"
)

// VideoFrame is one decoded picture. Data holds the planes packed
// back-to-back with no padding; for NV12 that is the full-resolution Y
// plane followed by the half-resolution interleaved UV plane.
//
// A frame is produced by the decode goroutine, owned by the frame buffer
// while queued, and owned by whoever popped it afterwards.
type VideoFrame struct {
	PTS         time.Duration
	Duration    time.Duration
	Width       int
	Height      int
	PixelFormat PixelFormat
	Data        []byte
}

// YPlane returns the luma plane of an NV12 frame (nil for other formats).
func (f *VideoFrame) YPlane() []byte {
	if f.PixelFormat != PixelFormatNV12 {
		return nil
	}
	n := f.Width * f.Height
	if len(f.Data) < n {
		return nil
	}
	return f.Data[:n]
}

// UVPlane returns the interleaved chroma plane of an NV12 frame
// (nil for other formats).
func (f *VideoFrame) UVPlane() []byte {
	if f.PixelFormat != PixelFormatNV12 {
		return nil
	}
	y := f.Width * f.Height
	end := y + y/2
	if len(f.Data) < end {
		return nil
	}
	return f.Data[y:end]
}

// AudioChunk is one block of decoded audio. Samples are interleaved
// float32 values at the chunk's own rate and channel count; the engine is
// responsible for resampling them to the output device's rate.
type AudioChunk struct {
	PTS        time.Duration
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the play time the chunk covers at its native rate.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// FrameCount returns the number of sample frames (one value per channel).
func (c *AudioChunk) FrameCount() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}
