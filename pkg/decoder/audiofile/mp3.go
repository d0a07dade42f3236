package audiofile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs 16-bit little-endian stereo at the stream's rate.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = mp3Channels * 2
)

type mp3Source struct {
	decoder *mp3.Decoder
	scratch []byte
}

var _ pcmSource = (*mp3Source)(nil)

func openMP3(f *os.File) (pcmSource, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("not an mp3 stream: %w", err)
	}
	return &mp3Source{decoder: decoder}, nil
}

func (s *mp3Source) SampleRate() int {
	return s.decoder.SampleRate()
}

func (s *mp3Source) Channels() int {
	return mp3Channels
}

func (s *mp3Source) TotalFrames() int64 {
	return s.decoder.Length() / mp3BytesPerFrame
}

func (s *mp3Source) ReadFrames(dst []float32) (int, error) {
	want := len(dst) / mp3Channels * mp3BytesPerFrame
	if cap(s.scratch) < want {
		s.scratch = make([]byte, want)
	}
	n, err := io.ReadFull(s.decoder, s.scratch[:want])
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	frames := n / mp3BytesPerFrame
	for i := 0; i < frames*mp3Channels; i++ {
		sample := int16(binary.LittleEndian.Uint16(s.scratch[i*2:]))
		dst[i] = float32(sample) / 32768
	}
	return frames, err
}

func (s *mp3Source) SeekFrame(frame int64) error {
	_, err := s.decoder.Seek(frame*mp3BytesPerFrame, io.SeekStart)
	if err != nil {
		return fmt.Errorf("unable to seek to frame %d: %w", frame, err)
	}
	return nil
}

func (s *mp3Source) CodecName() string {
	return "mp3"
}
