package audiofile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

// how many sample frames one AudioUnit carries
const chunkFrames = 4096

// pcmSource is the per-format decoding half of a session: it hands out
// interleaved float32 frames and supports seeking by frame index.
type pcmSource interface {
	SampleRate() int
	Channels() int

	// TotalFrames returns the stream length in sample frames, or a
	// negative value when it is unknown.
	TotalFrames() int64

	// ReadFrames fills dst (whose length is a multiple of Channels())
	// and returns the number of frames read. io.EOF signals the end.
	ReadFrames(dst []float32) (int, error)

	SeekFrame(frame int64) error

	CodecName() string
}

type Session struct {
	file   *os.File
	source pcmSource
	info   media.Info

	positionFrames int64
	scratch        []float32
}

var _ types.Session = (*Session)(nil)

func newSession(url string, file *os.File, source pcmSource) *Session {
	info := media.Info{
		URL:        url,
		HasAudio:   true,
		SampleRate: source.SampleRate(),
		Channels:   source.Channels(),
		AudioCodec: source.CodecName(),
	}
	if total := source.TotalFrames(); total >= 0 {
		info.Duration = time.Duration(float64(total) / float64(source.SampleRate()) * float64(time.Second))
	}
	return &Session{
		file:    file,
		source:  source,
		info:    info,
		scratch: make([]float32, chunkFrames*source.Channels()),
	}
}

func (s *Session) Info() media.Info {
	return s.info
}

func (s *Session) ReadUnit(ctx context.Context) (types.Unit, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	frames, err := s.source.ReadFrames(s.scratch)
	if frames == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, types.ErrDecode{Err: fmt.Errorf("unable to decode: %w", err)}
	}

	rate := s.source.SampleRate()
	channels := s.source.Channels()
	chunk := &media.AudioChunk{
		PTS:        time.Duration(float64(s.positionFrames) / float64(rate) * float64(time.Second)),
		Samples:    make([]float32, frames*channels),
		SampleRate: rate,
		Channels:   channels,
	}
	copy(chunk.Samples, s.scratch[:frames*channels])
	s.positionFrames += int64(frames)
	return &types.AudioUnit{Chunk: chunk}, nil
}

func (s *Session) Seek(ctx context.Context, target time.Duration) error {
	frame := int64(target.Seconds() * float64(s.source.SampleRate()))
	if frame < 0 {
		frame = 0
	}
	if total := s.source.TotalFrames(); total >= 0 && frame > total {
		frame = total
	}
	if err := s.source.SeekFrame(frame); err != nil {
		return types.ErrSeek{Target: target, Err: err}
	}
	s.positionFrames = frame
	return nil
}

func (s *Session) Close() error {
	return s.file.Close()
}
