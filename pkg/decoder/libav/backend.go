// Package libav implements a decode backend on top of ffmpeg's libraries
// (via the astiav bindings): demuxing, software/hardware decoding, pixel
// format normalization to NV12 and audio sample conversion to interleaved
// float32.
package libav

import (
	"context"

	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
)

const BackendName = "libav"

type Backend struct{}

var _ types.Backend = (*Backend)(nil)

func NewBackend() Backend {
	return Backend{}
}

func (Backend) Name() string {
	return BackendName
}

// Available always reports success: the libraries are linked into the
// binary, there is no runtime service to probe.
func (Backend) Available(ctx context.Context) error {
	return nil
}

func (Backend) Open(
	ctx context.Context,
	url string,
	cfg types.Config,
) (types.Session, error) {
	return openSession(ctx, url, cfg)
}
