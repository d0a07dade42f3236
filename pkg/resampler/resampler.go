// Package resampler converts interleaved float32 PCM between sample rates
// and channel layouts. The decoder goroutine runs every audio chunk through
// it before handing the samples to the audio ring buffer, which is also
// where the playback speed multiplier is applied (a chunk played at 2x
// occupies half as many device samples).
package resampler

import (
	"fmt"
	"math"
)

// Resampler is a linear-interpolating rate converter. It is stateful: the
// last frame of each input chunk is carried over so that consecutive chunks
// join without a discontinuity. It is not safe for concurrent use; the
// decoder goroutine owns it.
type Resampler struct {
	srcRate     float64
	dstRate     float64
	speed       float64
	inChannels  int
	outChannels int

	// step is how many source frames one output frame advances; pos is the
	// position of the next output frame in source-frame units, where 0 is
	// the first frame of the current chunk and -1 is the carried-over frame.
	step float64
	pos  float64
	prev []float32

	out     []float32
	frameA  []float32
	frameB  []float32
	scratch []float32
}

func New(srcRate, dstRate float64, inChannels, outChannels int, speed float64) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %f -> %f", srcRate, dstRate)
	}
	if speed <= 0 {
		return nil, fmt.Errorf("invalid speed: %f", speed)
	}
	if inChannels <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d -> %d", inChannels, outChannels)
	}
	if inChannels != outChannels && inChannels != 1 && outChannels != 1 {
		return nil, fmt.Errorf("do not know how to convert %d channels to %d", inChannels, outChannels)
	}
	r := &Resampler{
		srcRate:     srcRate,
		dstRate:     dstRate,
		inChannels:  inChannels,
		outChannels: outChannels,
		prev:        make([]float32, outChannels),
		frameA:      make([]float32, outChannels),
		frameB:      make([]float32, outChannels),
		scratch:     make([]float32, outChannels),
		pos:         0,
	}
	r.SetSpeed(speed)
	return r, nil
}

// SetSpeed changes the playback speed multiplier. Takes effect from the next
// Resample call.
func (r *Resampler) SetSpeed(speed float64) {
	r.speed = speed
	r.step = r.srcRate * speed / r.dstRate
}

func (r *Resampler) Speed() float64 {
	return r.speed
}

// Reset drops the carried-over inter-chunk state. Call it when the input
// stream jumps (a seek), so the joint interpolation does not bridge
// unrelated samples.
func (r *Resampler) Reset() {
	r.pos = 0
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// Resample converts one chunk of interleaved samples. The returned slice is
// reused by the next call, so the caller must copy the data out (writing it
// into a ring buffer counts) before resampling again.
func (r *Resampler) Resample(src []float32) []float32 {
	frames := len(src) / r.inChannels
	r.out = r.out[:0]
	if frames == 0 {
		return r.out
	}

	for ; r.pos <= float64(frames-1); r.pos += r.step {
		i := int(math.Floor(r.pos))
		t := r.pos - float64(i)

		a := r.frameAt(src, i, r.frameA)
		if t == 0 {
			r.out = append(r.out, a...)
			continue
		}
		b := r.frameAt(src, i+1, r.frameB)
		for ch := 0; ch < r.outChannels; ch++ {
			r.scratch[ch] = a[ch] + (b[ch]-a[ch])*float32(t)
		}
		r.out = append(r.out, r.scratch...)
	}

	r.pos -= float64(frames)
	r.frameAt(src, frames-1, r.prev)
	return r.out
}

// frameAt reads source frame i (or the carried-over frame for i == -1) into
// dst, converting the channel layout on the way.
func (r *Resampler) frameAt(src []float32, i int, dst []float32) []float32 {
	if i < 0 {
		copy(dst, r.prev)
		return dst
	}
	base := i * r.inChannels
	switch {
	case r.inChannels == r.outChannels:
		copy(dst, src[base:base+r.inChannels])
	case r.inChannels == 1:
		for ch := range dst {
			dst[ch] = src[base]
		}
	default:
		var sum float32
		for ch := 0; ch < r.inChannels; ch++ {
			sum += src[base+ch]
		}
		dst[0] = sum / float32(r.inChannels)
	}
	return dst
}
