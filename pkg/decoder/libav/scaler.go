package libav

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

// scaler converts decoded video frames of whatever pixel format the codec
// produced into the engine's canonical NV12 layout. The underlying
// swscale context is recreated whenever the source geometry changes.
type scaler struct {
	scaleContext *astiav.SoftwareScaleContext
	srcWidth     int
	srcHeight    int
	srcFormat    astiav.PixelFormat
	dstFrame     *astiav.Frame
}

func newScaler() *scaler {
	return &scaler{
		dstFrame:  astiav.AllocFrame(),
		srcFormat: astiav.PixelFormatNone,
	}
}

func (s *scaler) close() {
	if s.scaleContext != nil {
		s.scaleContext.Free()
		s.scaleContext = nil
	}
	s.dstFrame.Free()
}

func (s *scaler) toNV12(
	src *astiav.Frame,
	pts time.Duration,
	frameDuration time.Duration,
) (*media.VideoFrame, error) {
	width, height := src.Width(), src.Height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", width, height)
	}

	data := src
	if src.PixelFormat() != astiav.PixelFormatNv12 {
		if err := s.scale(src); err != nil {
			return nil, err
		}
		data = s.dstFrame
	}

	b, err := data.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to get the frame data: %w", err)
	}
	size := media.PixelFormatNV12.FrameSize(width, height)
	if len(b) < size {
		return nil, fmt.Errorf("the frame data is too short: %d < %d", len(b), size)
	}

	frame := &media.VideoFrame{
		PTS:         pts,
		Duration:    frameDuration,
		Width:       width,
		Height:      height,
		PixelFormat: media.PixelFormatNV12,
		Data:        make([]byte, size),
	}
	copy(frame.Data, b[:size])

	if data == s.dstFrame {
		s.dstFrame.Unref()
	}
	return frame, nil
}

func (s *scaler) scale(src *astiav.Frame) error {
	if s.scaleContext == nil ||
		s.srcWidth != src.Width() ||
		s.srcHeight != src.Height() ||
		s.srcFormat != src.PixelFormat() {
		if s.scaleContext != nil {
			s.scaleContext.Free()
			s.scaleContext = nil
		}
		scaleContext, err := astiav.CreateSoftwareScaleContext(
			src.Width(), src.Height(), src.PixelFormat(),
			src.Width(), src.Height(), astiav.PixelFormatNv12,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		)
		if err != nil {
			return fmt.Errorf("unable to create a scale context: %w", err)
		}
		s.scaleContext = scaleContext
		s.srcWidth = src.Width()
		s.srcHeight = src.Height()
		s.srcFormat = src.PixelFormat()
	}

	if err := s.scaleContext.ScaleFrame(src, s.dstFrame); err != nil {
		return fmt.Errorf("unable to scale the frame: %w", err)
	}
	s.dstFrame.SetPts(src.Pts())
	return nil
}
