package resampler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResamplerIdentity(t *testing.T) {
	r, err := New(48000, 48000, 2, 2, 1.0)
	require.NoError(t, err)

	src := []float32{1, 2, 3, 4, 5, 6}
	require.Equal(t, src, r.Resample(src))
}

func TestResamplerUpsample(t *testing.T) {
	// 1Hz -> 2Hz doubles the frame count via interpolation
	r, err := New(1, 2, 1, 1, 1.0)
	require.NoError(t, err)

	out := r.Resample([]float32{0, 1})
	require.Equal(t, []float32{0, 0.5, 1}, out)

	// the carried-over tail keeps consecutive chunks continuous
	out = r.Resample([]float32{2})
	require.Equal(t, []float32{1.5, 2}, out)
}

func TestResamplerDownsample(t *testing.T) {
	r, err := New(2, 1, 1, 1, 1.0)
	require.NoError(t, err)

	out := r.Resample([]float32{0, 1, 2, 3, 4, 5})
	require.Equal(t, []float32{0, 2, 4}, out)
}

func TestResamplerMonoToStereo(t *testing.T) {
	r, err := New(48000, 48000, 1, 2, 1.0)
	require.NoError(t, err)

	out := r.Resample([]float32{1, 2, 3})
	require.Equal(t, []float32{1, 1, 2, 2, 3, 3}, out)
}

func TestResamplerStereoToMono(t *testing.T) {
	r, err := New(48000, 48000, 2, 1, 1.0)
	require.NoError(t, err)

	out := r.Resample([]float32{0, 2, 2, 4})
	require.Equal(t, []float32{1, 3}, out)
}

func TestResamplerSpeed(t *testing.T) {
	r, err := New(48000, 48000, 1, 1, 2.0)
	require.NoError(t, err)

	// 2x speed: one second of media squeezed into half a second of output
	out := r.Resample([]float32{0, 1, 2, 3})
	require.Equal(t, []float32{0, 2}, out)

	r.SetSpeed(0.5)
	require.Equal(t, 0.5, r.Speed())
	out = r.Resample([]float32{4, 5, 6, 7})
	require.Equal(t, []float32{4, 4.5, 5, 5.5, 6, 6.5, 7}, out)
}

func TestResamplerRejectsBadArguments(t *testing.T) {
	_, err := New(0, 48000, 2, 2, 1.0)
	require.Error(t, err)
	_, err = New(48000, 48000, 2, 2, 0)
	require.Error(t, err)
	_, err = New(48000, 48000, 0, 2, 1.0)
	require.Error(t, err)
	_, err = New(48000, 48000, 6, 2, 1.0)
	require.Error(t, err)
}
