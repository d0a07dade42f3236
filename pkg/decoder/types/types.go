// Package types defines the interface between the playback engine and the
// decode backends.
package types

import (
	"context"
	"time"

	"github.com/xaionaro-go/avplayer/pkg/media"
)

// Backend is a factory of decode sessions. Open probes and demuxes the
// given URL; it either returns a working Session or an ErrOpen.
type Backend interface {
	Name() string

	// Available reports whether the backend can work at all in this
	// process/environment (regardless of any specific media file).
	Available(ctx context.Context) error

	Open(ctx context.Context, url string, cfg Config) (Session, error)
}

// Config is passed to Backend.Open.
type Config struct {
	// HardwareDeviceTypeName selects a hardware decoding device (e.g.
	// "vaapi", "cuda"); empty means software decoding only. Backends
	// without hardware support ignore it.
	HardwareDeviceTypeName string `yaml:"hardware_device_type_name,omitempty"`

	// VideoCodecName overrides the automatic decoder selection for the
	// video stream (e.g. "h264_cuvid").
	VideoCodecName string `yaml:"video_codec_name,omitempty"`
}

// Session is one opened media stream. It is driven from a single dedicated
// goroutine; no method is safe to call concurrently with another.
type Session interface {
	Info() media.Info

	// ReadUnit returns the next decoded unit in stream order. It returns
	// io.EOF at the end of the stream and ErrDecode on decode problems;
	// a non-fatal ErrDecode means the offending unit was skipped and the
	// session is still usable.
	ReadUnit(ctx context.Context) (Unit, error)

	// Seek jumps to the nearest sync point at or before target. The next
	// ReadUnit returns units from there on; an accurate position is the
	// caller's job (decode and discard until the target).
	Seek(ctx context.Context, target time.Duration) error

	Close() error
}

// Unit is one decoded item: either a video frame or a block of audio
// samples.
type Unit interface {
	isUnit() // just to enable build-time type checks
}

type VideoUnit struct {
	Frame *media.VideoFrame
}

var _ Unit = (*VideoUnit)(nil)

func (*VideoUnit) isUnit() {}

type AudioUnit struct {
	Chunk *media.AudioChunk
}

var _ Unit = (*AudioUnit)(nil)

func (*AudioUnit) isUnit() {}
