// Package media defines the data types exchanged between decode backends,
// the playback engine and its consumers: stream metadata, decoded video
// frames in the canonical pixel format, and blocks of decoded audio samples.
package media

import (
	"time"
)

// Info describes an opened media stream. It is computed once at open time
// and never mutated afterwards.
type Info struct {
	URL        string        `yaml:"url"`
	Duration   time.Duration `yaml:"duration"`
	HasVideo   bool          `yaml:"has_video"`
	HasAudio   bool          `yaml:"has_audio"`
	FrameRate  float64       `yaml:"frame_rate,omitempty"`
	Width      int           `yaml:"width,omitempty"`
	Height     int           `yaml:"height,omitempty"`
	SampleRate int           `yaml:"sample_rate,omitempty"`
	Channels   int           `yaml:"channels,omitempty"`
	VideoCodec string        `yaml:"video_codec,omitempty"`
	AudioCodec string        `yaml:"audio_codec,omitempty"`
}

// FrameInterval returns the nominal duration of one video frame,
// or zero if the frame rate is unknown.
func (info Info) FrameInterval() time.Duration {
	if info.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / info.FrameRate)
}

// AspectRatio returns width/height, or zero if the dimensions are unknown.
func (info Info) AspectRatio() float64 {
	if info.Width <= 0 || info.Height <= 0 {
		return 0
	}
	return float64(info.Width) / float64(info.Height)
}