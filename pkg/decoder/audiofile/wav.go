package audiofile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// wav format codes this source understands
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xfffe
)

// wavSource reads RIFF/WAVE files holding PCM (8/16/24/32-bit integer) or
// 32-bit float samples. Compressed WAVE payloads fall through to the libav
// backend.
type wavSource struct {
	file *os.File

	formatCode    uint16
	channels      int
	sampleRate    int
	bitsPerSample int

	dataStart   int64
	dataLength  int64
	frameStride int

	positionFrames int64
	scratch        []byte
}

var _ pcmSource = (*wavSource)(nil)

func openWAV(f *os.File) (pcmSource, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, fmt.Errorf("not a wav stream: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a wav stream: no RIFF/WAVE header")
	}

	s := &wavSource{file: f}
	if err := s.parseChunks(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseChunks walks the chunk list looking for "fmt " and "data". Unknown
// chunks (LIST, cue, etc.) are skipped; chunk sizes are word-aligned.
func (s *wavSource) parseChunks() error {
	offset := int64(12)
	var haveFormat, haveData bool
	for !(haveFormat && haveData) {
		var header [8]byte
		if _, err := s.file.ReadAt(header[:], offset); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fmt.Errorf("not a usable wav stream: fmt/data chunk is missing")
			}
			return fmt.Errorf("unable to read a chunk header: %w", err)
		}
		size := int64(binary.LittleEndian.Uint32(header[4:]))

		switch string(header[0:4]) {
		case "fmt ":
			if err := s.parseFormat(offset+8, size); err != nil {
				return err
			}
			haveFormat = true
		case "data":
			s.dataStart = offset + 8
			s.dataLength = size
			haveData = true
		}
		offset += 8 + size + size%2
	}

	s.frameStride = s.channels * s.bitsPerSample / 8
	if s.dataLength > 0 && s.frameStride > 0 {
		s.dataLength -= s.dataLength % int64(s.frameStride)
	}
	return nil
}

func (s *wavSource) parseFormat(offset, size int64) error {
	if size < 16 {
		return fmt.Errorf("the fmt chunk is too short: %d bytes", size)
	}
	var b [16]byte
	if _, err := s.file.ReadAt(b[:], offset); err != nil {
		return fmt.Errorf("unable to read the fmt chunk: %w", err)
	}

	s.formatCode = binary.LittleEndian.Uint16(b[0:])
	s.channels = int(binary.LittleEndian.Uint16(b[2:]))
	s.sampleRate = int(binary.LittleEndian.Uint32(b[4:]))
	s.bitsPerSample = int(binary.LittleEndian.Uint16(b[14:]))

	if s.formatCode == wavFormatExtensible {
		// the real format code lives in the extension's GUID prefix
		var sub [2]byte
		if _, err := s.file.ReadAt(sub[:], offset+24); err != nil {
			return fmt.Errorf("unable to read the fmt extension: %w", err)
		}
		s.formatCode = binary.LittleEndian.Uint16(sub[:])
	}

	if s.channels <= 0 || s.sampleRate <= 0 {
		return fmt.Errorf("invalid wav parameters: %d channels at %d Hz", s.channels, s.sampleRate)
	}
	switch {
	case s.formatCode == wavFormatPCM && (s.bitsPerSample == 8 || s.bitsPerSample == 16 || s.bitsPerSample == 24 || s.bitsPerSample == 32):
	case s.formatCode == wavFormatIEEEFloat && s.bitsPerSample == 32:
	default:
		return fmt.Errorf("unsupported wav payload: format code %d at %d bits", s.formatCode, s.bitsPerSample)
	}
	return nil
}

func (s *wavSource) SampleRate() int {
	return s.sampleRate
}

func (s *wavSource) Channels() int {
	return s.channels
}

func (s *wavSource) TotalFrames() int64 {
	return s.dataLength / int64(s.frameStride)
}

func (s *wavSource) ReadFrames(dst []float32) (int, error) {
	wantFrames := int64(len(dst) / s.channels)
	if left := s.TotalFrames() - s.positionFrames; wantFrames > left {
		wantFrames = left
	}
	if wantFrames <= 0 {
		return 0, io.EOF
	}

	want := int(wantFrames) * s.frameStride
	if cap(s.scratch) < want {
		s.scratch = make([]byte, want)
	}
	n, err := s.file.ReadAt(s.scratch[:want], s.dataStart+s.positionFrames*int64(s.frameStride))
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("unable to read the sample data: %w", err)
	}

	frames := n / s.frameStride
	s.decodeSamples(s.scratch[:frames*s.frameStride], dst)
	s.positionFrames += int64(frames)
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (s *wavSource) decodeSamples(src []byte, dst []float32) {
	bytesPerSample := s.bitsPerSample / 8
	count := len(src) / bytesPerSample
	switch {
	case s.formatCode == wavFormatIEEEFloat:
		for i := 0; i < count; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	case s.bitsPerSample == 8:
		// 8-bit wav is unsigned
		for i := 0; i < count; i++ {
			dst[i] = (float32(src[i]) - 128) / 128
		}
	case s.bitsPerSample == 16:
		for i := 0; i < count; i++ {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[i*2:]))) / 32768
		}
	case s.bitsPerSample == 24:
		for i := 0; i < count; i++ {
			v := int32(src[i*3]) | int32(src[i*3+1])<<8 | int32(src[i*3+2])<<16
			v = v << 8 >> 8 // sign-extend
			dst[i] = float32(v) / 8388608
		}
	case s.bitsPerSample == 32:
		for i := 0; i < count; i++ {
			dst[i] = float32(int32(binary.LittleEndian.Uint32(src[i*4:]))) / 2147483648
		}
	}
}

func (s *wavSource) SeekFrame(frame int64) error {
	if frame < 0 {
		frame = 0
	}
	if total := s.TotalFrames(); frame > total {
		frame = total
	}
	s.positionFrames = frame
	return nil
}

func (s *wavSource) CodecName() string {
	if s.formatCode == wavFormatIEEEFloat {
		return "pcm_f32le"
	}
	return fmt.Sprintf("pcm_s%dle", s.bitsPerSample)
}
