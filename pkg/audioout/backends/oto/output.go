// Package oto implements an audio output on top of the cross-platform oto
// library.
package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

type Output struct {
}

var _ types.Output = (*Output)(nil)

func NewOutput() Output {
	return Output{}
}

func (Output) Ping(ctx context.Context) error {
	_, err := getOtoContext()
	if err != nil {
		return fmt.Errorf("unable to get an oto context: %w", err)
	}
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
	// oto does not allow to initialize a context multiple times, so we
	// cannot reconfigure the context every time different sampleRate,
	// channels, format or bufferSize are given; we just require the values
	// the shared context was made with.
	if sampleRate != SampleRate {
		return nil, fmt.Errorf("the expected sample rate is %d, but received %d", SampleRate, sampleRate)
	}
	if channels != Channels {
		return nil, fmt.Errorf("the expected number of channels is %d, but received %d", Channels, channels)
	}
	if format != Format {
		return nil, fmt.Errorf("the expected format is %v, but received %v", Format, format)
	}
	if bufferSize != BufferSize {
		return nil, fmt.Errorf("the expected buffer size is %v, but received %v", BufferSize, bufferSize)
	}

	otoCtx, err := getOtoContext()
	if err != nil {
		return nil, fmt.Errorf("unable to get an oto context: %w", err)
	}

	player := otoCtx.NewPlayer(reader)
	player.Play()
	return newStream(player), nil
}
