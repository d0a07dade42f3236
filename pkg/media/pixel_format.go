package media

import (
	"fmt"
)

// PixelFormat enumerates the pixel layouts a VideoFrame may carry. The
// engine normalizes everything to NV12, so consumers only ever have to
// handle that one; the other values exist for conversion helpers.
type PixelFormat uint

const (
	PixelFormatUndefined = PixelFormat(iota)
	PixelFormatNV12
	PixelFormatI420
	PixelFormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUndefined:
		return "<undefined>"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatI420:
		return "i420"
	case PixelFormatRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", uint(f))
	}
}

// PlaneCount returns the number of planes of the format.
func (f PixelFormat) PlaneCount() int {
	switch f {
	case PixelFormatNV12:
		return 2
	case PixelFormatI420:
		return 3
	case PixelFormatRGBA:
		return 1
	default:
		return 0
	}
}

// FrameSize returns the number of bytes a packed frame of the given
// dimensions occupies in this format.
func (f PixelFormat) FrameSize(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	switch f {
	case PixelFormatNV12, PixelFormatI420:
		return width*height + width*height/2
	case PixelFormatRGBA:
		return width * height * 4
	default:
		return 0
	}
}
