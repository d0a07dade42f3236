package audiofile

import (
	"fmt"
	"os"

	"github.com/mewkiz/flac"
)

type flacSource struct {
	stream *flac.Stream

	// leftover holds interleaved samples of the last parsed flac frame
	// that did not fit into the caller's buffer yet.
	leftover []float32
	scale    float32
}

var _ pcmSource = (*flacSource)(nil)

func openFLAC(f *os.File) (pcmSource, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("not a flac stream: %w", err)
	}
	return &flacSource{
		stream: stream,
		scale:  float32(int64(1) << (stream.Info.BitsPerSample - 1)),
	}, nil
}

func (s *flacSource) SampleRate() int {
	return int(s.stream.Info.SampleRate)
}

func (s *flacSource) Channels() int {
	return int(s.stream.Info.NChannels)
}

func (s *flacSource) TotalFrames() int64 {
	if s.stream.Info.NSamples == 0 {
		return -1
	}
	return int64(s.stream.Info.NSamples)
}

func (s *flacSource) ReadFrames(dst []float32) (int, error) {
	channels := s.Channels()
	filled := 0

	for filled < len(dst) {
		if len(s.leftover) == 0 {
			frame, err := s.stream.ParseNext()
			if err != nil {
				return filled / channels, err
			}
			blockSize := len(frame.Subframes[0].Samples)
			if cap(s.leftover) < blockSize*channels {
				s.leftover = make([]float32, 0, blockSize*channels)
			}
			s.leftover = s.leftover[:blockSize*channels]
			for i := 0; i < blockSize; i++ {
				for ch := 0; ch < channels; ch++ {
					s.leftover[i*channels+ch] = float32(frame.Subframes[ch].Samples[i]) / s.scale
				}
			}
		}

		n := copy(dst[filled:], s.leftover)
		s.leftover = s.leftover[n:]
		filled += n
	}
	return filled / channels, nil
}

func (s *flacSource) SeekFrame(frame int64) error {
	_, err := s.stream.Seek(uint64(frame))
	if err != nil {
		return fmt.Errorf("unable to seek to frame %d: %w", frame, err)
	}
	s.leftover = nil
	return nil
}

func (s *flacSource) CodecName() string {
	return "flac"
}
