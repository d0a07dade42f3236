// Package pulseaudio implements an audio output talking to a PulseAudio
// (or pipewire-pulse) daemon with a pure Go client.
package pulseaudio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

type Output struct {
}

var _ types.Output = (*Output)(nil)

func NewOutput() Output {
	return Output{}
}

func (Output) Ping(ctx context.Context) error {
	c, err := pulse.NewClient()
	if err != nil {
		return fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	defer c.Close()
	return nil
}

func (Output) PlayPCM(
	ctx context.Context,
	sampleRate uint32,
	channels uint16,
	format types.PCMFormat,
	bufferSize time.Duration,
	rawReader io.Reader,
) (types.Stream, error) {
	reader, err := newPulseReader(format, rawReader)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a reader for Pulse: %w", err)
	}

	var channelsOption pulse.PlaybackOption
	switch channels {
	case 1:
		channelsOption = pulse.PlaybackMono
	case 2:
		channelsOption = pulse.PlaybackStereo
	default:
		return nil, fmt.Errorf("do not know how to configure a playback with %d channels", channels)
	}

	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}

	stream, err := c.NewPlayback(
		reader,
		pulse.PlaybackLatency(bufferSize.Seconds()),
		pulse.PlaybackSampleRate(int(sampleRate)),
		channelsOption,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to initialize a playback: %w", err)
	}

	stream.Start()
	return newStream(c, stream), nil
}

type pulseReader struct {
	pulseFormat byte
	io.Reader
}

func newPulseReader(pcmFormat types.PCMFormat, reader io.Reader) (*pulseReader, error) {
	var pulseFormat byte
	switch pcmFormat {
	case types.PCMFormatFloat32LE:
		pulseFormat = proto.FormatFloat32LE
	default:
		return nil, fmt.Errorf("received an unexpected format: %v", pcmFormat)
	}
	return &pulseReader{
		pulseFormat: pulseFormat,
		Reader:      reader,
	}, nil
}

var _ pulse.Reader = (*pulseReader)(nil)

func (r pulseReader) Format() byte {
	return r.pulseFormat
}
