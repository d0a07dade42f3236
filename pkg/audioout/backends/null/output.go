// Package null implements an audio output without any audio device: it
// consumes the PCM stream at wall-clock pace and throws the samples away.
// It is the last-resort backend for headless environments, keeping the
// engine's audio-led clock ticking.
package null

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
)

type Output struct{}

var _ types.Output = (*Output)(nil)

func NewOutput() Output {
	return Output{}
}

func (Output) Ping(ctx context.Context) error {
	return nil
}

func (Output) PlayPCM(
	ctx context.Context,
	sampleRate uint32,
	channels uint16,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (types.Stream, error) {
	if format.Size() == 0 || format == types.PCMFormatUndefined {
		return nil, fmt.Errorf("unsupported PCM format: %v", format)
	}

	stream := newStream(ctx, sampleRate, channels, format, reader)
	observability.Go(ctx, func(ctx context.Context) {
		stream.consumeLoop(ctx)
	})
	return stream, nil
}

type Stream struct {
	reader        io.Reader
	bytesPerTick  int
	tickInterval  time.Duration
	cancelFunc    context.CancelFunc
	cancelledCtx  context.Context
	drainedChan   chan struct{}
	consumeBuffer []byte
}

var _ types.Stream = (*Stream)(nil)

func newStream(
	ctx context.Context,
	sampleRate uint32,
	channels uint16,
	format types.PCMFormat,
	reader io.Reader,
) *Stream {
	// the stream outlives the opening call (a device keeps playing after
	// the open returns), so only Close or source exhaustion stops it
	cancelledCtx, cancelFunc := context.WithCancel(xcontext.DetachDone(ctx))

	// pull 10ms of audio per tick, like a small hardware period
	tickInterval := 10 * time.Millisecond
	bytesPerTick := int(uint64(sampleRate) * uint64(channels) * uint64(format.Size()) / 100)

	return &Stream{
		reader:        reader,
		bytesPerTick:  bytesPerTick,
		tickInterval:  tickInterval,
		cancelFunc:    cancelFunc,
		cancelledCtx:  cancelledCtx,
		drainedChan:   make(chan struct{}),
		consumeBuffer: make([]byte, bytesPerTick),
	}
}

func (stream *Stream) consumeLoop(ctx context.Context) {
	defer close(stream.drainedChan)

	ticker := time.NewTicker(stream.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stream.cancelledCtx.Done():
			return
		case <-ticker.C:
		}

		_, err := io.ReadFull(stream.reader, stream.consumeBuffer)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return
		default:
			logger.Errorf(ctx, "unable to read from the PCM source: %v", err)
			return
		}
	}
}

// Drain blocks until the source reader is exhausted (or the stream is
// closed).
func (stream *Stream) Drain() error {
	<-stream.drainedChan
	return nil
}

func (stream *Stream) Close() error {
	stream.cancelFunc()
	return nil
}
