package media

import (
	"fmt"
	"image"
)

// YUVMatrix selects the coefficients used when converting NV12 pixel data
// to RGBA in software.
type YUVMatrix uint

const (
	// YUVMatrixBT709Full is the default: HD content, full-range samples.
	YUVMatrixBT709Full = YUVMatrix(iota)
	YUVMatrixBT709Limited
	YUVMatrixBT601Limited
)

func (m YUVMatrix) String() string {
	switch m {
	case YUVMatrixBT709Full:
		return "bt709-full"
	case YUVMatrixBT709Limited:
		return "bt709-limited"
	case YUVMatrixBT601Limited:
		return "bt601-limited"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", uint(m))
	}
}

type yuvCoeffs struct {
	yScale float64
	yBias  float64
	rV     float64
	gU     float64
	gV     float64
	bU     float64
}

var yuvCoeffsMap = map[YUVMatrix]yuvCoeffs{
	YUVMatrixBT709Full:    {yScale: 1, yBias: 0, rV: 1.5748, gU: -0.1873, gV: -0.4681, bU: 1.8556},
	YUVMatrixBT709Limited: {yScale: 1.1644, yBias: 16, rV: 1.7927, gU: -0.2132, gV: -0.5329, bU: 2.1124},
	YUVMatrixBT601Limited: {yScale: 1.1644, yBias: 16, rV: 1.5960, gU: -0.3918, gV: -0.8130, bU: 2.0172},
}

// ToRGBA converts an NV12 frame to a stdlib RGBA image using BT.709
// full-range coefficients. Use NV12ToRGBA to pick a different matrix.
func (f *VideoFrame) ToRGBA() (*image.RGBA, error) {
	return NV12ToRGBA(f, YUVMatrixBT709Full)
}

// NV12ToRGBA converts an NV12 frame to RGBA in software. Renderers with
// native NV12 surface support should upload the planes directly instead.
func NV12ToRGBA(f *VideoFrame, matrix YUVMatrix) (*image.RGBA, error) {
	if f.PixelFormat != PixelFormatNV12 {
		return nil, fmt.Errorf("expected an nv12 frame, but received %v", f.PixelFormat)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", f.Width, f.Height)
	}
	yPlane, uvPlane := f.YPlane(), f.UVPlane()
	if yPlane == nil || uvPlane == nil {
		return nil, fmt.Errorf("frame data is too short: have %d bytes, need %d", len(f.Data), PixelFormatNV12.FrameSize(f.Width, f.Height))
	}
	c, ok := yuvCoeffsMap[matrix]
	if !ok {
		return nil, fmt.Errorf("unknown YUV matrix: %v", matrix)
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for row := 0; row < f.Height; row++ {
		yOff := row * f.Width
		uvOff := (row / 2) * f.Width
		dstOff := row * img.Stride
		for col := 0; col < f.Width; col++ {
			y := (float64(yPlane[yOff+col]) - c.yBias) * c.yScale
			u := float64(uvPlane[uvOff+(col/2)*2]) - 128
			v := float64(uvPlane[uvOff+(col/2)*2+1]) - 128

			dst := img.Pix[dstOff+col*4 : dstOff+col*4+4 : dstOff+col*4+4]
			dst[0] = clampU8(y + c.rV*v)
			dst[1] = clampU8(y + c.gU*u + c.gV*v)
			dst[2] = clampU8(y + c.bU*u)
			dst[3] = 0xff
		}
	}
	return img, nil
}

func clampU8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// FitRect computes the aspect-fit placement of a frame inside a container:
// the result is scaled to the largest size that still fits and centered
// (letterboxed or pillarboxed).
func FitRect(frameW, frameH, boxW, boxH int) image.Rectangle {
	if frameW <= 0 || frameH <= 0 || boxW <= 0 || boxH <= 0 {
		return image.Rectangle{}
	}
	scale := float64(boxW) / float64(frameW)
	if s := float64(boxH) / float64(frameH); s < scale {
		scale = s
	}
	w := int(float64(frameW) * scale)
	h := int(float64(frameH) * scale)
	x := (boxW - w) / 2
	y := (boxH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
