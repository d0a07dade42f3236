package libav

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

// sampleConverter turns decoded audio frames of any sample format (planar
// or packed, integer or float) into interleaved float32 at the frame's own
// rate and channel layout. Rate conversion is left to the engine's
// resampler; only the sample format is normalized here.
type sampleConverter struct {
	resampleContext *astiav.SoftwareResampleContext
	dstFrame        *astiav.Frame
}

func newSampleConverter() *sampleConverter {
	return &sampleConverter{
		resampleContext: astiav.AllocSoftwareResampleContext(),
		dstFrame:        astiav.AllocFrame(),
	}
}

func (c *sampleConverter) close() {
	c.resampleContext.Free()
	c.dstFrame.Free()
}

func (c *sampleConverter) toFloat32(
	src *astiav.Frame,
	pts time.Duration,
) (*media.AudioChunk, error) {
	sampleRate := src.SampleRate()
	channels := src.ChannelLayout().Channels()
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid audio frame parameters: rate=%d channels=%d", sampleRate, channels)
	}

	data := src
	nbSamples := src.NbSamples()
	if src.SampleFormat() != astiav.SampleFormatFlt {
		c.dstFrame.SetChannelLayout(src.ChannelLayout())
		c.dstFrame.SetSampleFormat(astiav.SampleFormatFlt)
		c.dstFrame.SetSampleRate(sampleRate)
		if err := c.resampleContext.ConvertFrame(src, c.dstFrame); err != nil {
			return nil, fmt.Errorf("unable to convert the sample format: %w", err)
		}
		data = c.dstFrame
		nbSamples = c.dstFrame.NbSamples()
	}

	b, err := data.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to get the frame data: %w", err)
	}
	size := nbSamples * channels * 4
	if len(b) < size {
		return nil, fmt.Errorf("the frame data is too short: %d < %d", len(b), size)
	}

	chunk := &media.AudioChunk{
		PTS:        pts,
		Samples:    make([]float32, nbSamples*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
	for i := range chunk.Samples {
		chunk.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}

	if data == c.dstFrame {
		c.dstFrame.Unref()
	}
	return chunk, nil
}
