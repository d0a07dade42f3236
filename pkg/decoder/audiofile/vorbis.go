package audiofile

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

type vorbisSource struct {
	reader *oggvorbis.Reader
}

var _ pcmSource = (*vorbisSource)(nil)

func openVorbis(f *os.File) (pcmSource, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("not an ogg/vorbis stream: %w", err)
	}
	return &vorbisSource{reader: reader}, nil
}

func (s *vorbisSource) SampleRate() int {
	return s.reader.SampleRate()
}

func (s *vorbisSource) Channels() int {
	return s.reader.Channels()
}

func (s *vorbisSource) TotalFrames() int64 {
	return s.reader.Length()
}

func (s *vorbisSource) ReadFrames(dst []float32) (int, error) {
	filled := 0
	for filled < len(dst) {
		n, err := s.reader.Read(dst[filled:])
		filled += n
		if err != nil {
			return filled / s.Channels(), err
		}
	}
	return filled / s.Channels(), nil
}

func (s *vorbisSource) SeekFrame(frame int64) error {
	if err := s.reader.SetPosition(frame); err != nil {
		return fmt.Errorf("unable to seek to frame %d: %w", frame, err)
	}
	return nil
}

func (s *vorbisSource) CodecName() string {
	return "vorbis"
}
