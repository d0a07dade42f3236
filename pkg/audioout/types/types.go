// Package types defines the interface between the playback engine and the
// audio output backends.
package types

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"
)

// Output is a PCM sink. PlayPCM starts pulling samples from the reader at
// the device's own cadence and returns immediately; the returned Stream
// controls the lifetime of the playback.
type Output interface {
	Ping(ctx context.Context) error
	PlayPCM(
		ctx context.Context,
		sampleRate uint32,
		channels uint16,
		format PCMFormat,
		bufferSize time.Duration,
		reader io.Reader,
	) (Stream, error)
}

// Stream is one running playback on an Output.
type Stream interface {
	// Drain blocks until the source reader is exhausted and everything read
	// so far was handed to the device.
	Drain() error
	Close() error
}

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatFloat32LE
)

func (f PCMFormat) Size() uint32 {
	switch f {
	case PCMFormatUndefined:
		return math.MaxUint32
	case PCMFormatFloat32LE:
		return 4
	default:
		return math.MaxUint32
	}
}

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "<undefined>"
	case PCMFormatFloat32LE:
		return "f32le"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", f)
	}
}
