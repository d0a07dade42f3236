package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoFrameInterval(t *testing.T) {
	info := Info{FrameRate: 25}
	assert.Equal(t, 40*time.Millisecond, info.FrameInterval())

	assert.Equal(t, time.Duration(0), Info{}.FrameInterval())
}

func TestInfoAspectRatio(t *testing.T) {
	info := Info{Width: 1920, Height: 1080}
	assert.InDelta(t, 16.0/9.0, info.AspectRatio(), 1e-9)

	assert.Zero(t, Info{Width: 1920}.AspectRatio())
}

func TestPixelFormatFrameSize(t *testing.T) {
	assert.Equal(t, 4*4+4*4/2, PixelFormatNV12.FrameSize(4, 4))
	assert.Equal(t, 4*4*4, PixelFormatRGBA.FrameSize(4, 4))
	assert.Zero(t, PixelFormatNV12.FrameSize(0, 4))
	assert.Zero(t, PixelFormatUndefined.FrameSize(4, 4))
}

func TestVideoFramePlanes(t *testing.T) {
	w, h := 4, 2
	frame := &VideoFrame{
		Width:       w,
		Height:      h,
		PixelFormat: PixelFormatNV12,
		Data:        make([]byte, PixelFormatNV12.FrameSize(w, h)),
	}
	require.Len(t, frame.YPlane(), w*h)
	require.Len(t, frame.UVPlane(), w*h/2)

	frame.Data = frame.Data[:3] // truncated
	assert.Nil(t, frame.YPlane())
	assert.Nil(t, frame.UVPlane())

	frame.PixelFormat = PixelFormatRGBA
	assert.Nil(t, frame.YPlane())
}

func grayNV12Frame(w, h int, y, u, v byte) *VideoFrame {
	data := make([]byte, PixelFormatNV12.FrameSize(w, h))
	for i := 0; i < w*h; i++ {
		data[i] = y
	}
	for i := w * h; i < len(data); i += 2 {
		data[i] = u
		data[i+1] = v
	}
	return &VideoFrame{
		Width:       w,
		Height:      h,
		PixelFormat: PixelFormatNV12,
		Data:        data,
	}
}

func TestNV12ToRGBAGray(t *testing.T) {
	frame := grayNV12Frame(4, 4, 128, 128, 128)
	img, err := frame.ToRGBA()
	require.NoError(t, err)

	for i := 0; i < len(img.Pix); i += 4 {
		assert.Equal(t, uint8(128), img.Pix[i])
		assert.Equal(t, uint8(128), img.Pix[i+1])
		assert.Equal(t, uint8(128), img.Pix[i+2])
		assert.Equal(t, uint8(0xff), img.Pix[i+3])
	}
}

func TestNV12ToRGBAClamps(t *testing.T) {
	frame := grayNV12Frame(2, 2, 255, 0, 255)
	img, err := NV12ToRGBA(frame, YUVMatrixBT601Limited)
	require.NoError(t, err)

	// well out of range before clamping
	assert.Equal(t, uint8(255), img.Pix[0])
	assert.Equal(t, uint8(0xff), img.Pix[3])
}

func TestNV12ToRGBAErrors(t *testing.T) {
	_, err := NV12ToRGBA(&VideoFrame{PixelFormat: PixelFormatRGBA, Width: 2, Height: 2}, YUVMatrixBT709Full)
	require.Error(t, err)

	_, err = NV12ToRGBA(&VideoFrame{PixelFormat: PixelFormatNV12, Width: 2, Height: 2, Data: []byte{0}}, YUVMatrixBT709Full)
	require.Error(t, err)
}

func TestFitRect(t *testing.T) {
	// pillarboxed: 16:9 frame in a square box
	r := FitRect(1920, 1080, 100, 100)
	assert.Equal(t, 100, r.Dx())
	assert.Equal(t, 56, r.Dy())
	assert.Equal(t, 0, r.Min.X)
	assert.Equal(t, 22, r.Min.Y)

	// letterboxed
	r = FitRect(1080, 1920, 100, 100)
	assert.Equal(t, 56, r.Dx())
	assert.Equal(t, 100, r.Dy())

	assert.True(t, FitRect(0, 0, 100, 100).Empty())
}

func TestAudioChunkDuration(t *testing.T) {
	chunk := &AudioChunk{
		Samples:    make([]float32, 48000*2),
		SampleRate: 48000,
		Channels:   2,
	}
	assert.Equal(t, time.Second, chunk.Duration())
	assert.Equal(t, 48000, chunk.FrameCount())

	assert.Zero(t, (&AudioChunk{}).Duration())
}
