package player

import (
	"time"

	"github.com/xaionaro-go/avplayer/pkg/audioout"
	"github.com/xaionaro-go/avplayer/pkg/clock"
	"github.com/xaionaro-go/avplayer/pkg/decoder"
	"github.com/xaionaro-go/eventbus"
)

type Config struct {
	FrameBufferCapacity uint          `yaml:"frame_buffer_capacity"`
	PrebufferFrames     uint          `yaml:"prebuffer_frames"`
	Looping             bool          `yaml:"looping"`
	Speed               float64       `yaml:"speed"`
	Volume              float64       `yaml:"volume"`
	Muted               bool          `yaml:"muted"`
	StartPaused         bool          `yaml:"start_paused"`
	DropTolerance       time.Duration `yaml:"drop_tolerance"`
	DisableAudio        bool          `yaml:"disable_audio"`
	BackendConfig       decoder.Config `yaml:"backend,omitempty"`

	Backend     decoder.Backend    `yaml:"-"`
	AudioOutput audioout.Output    `yaml:"-"`
	EventBus    *eventbus.EventBus `yaml:"-"`
	WallClock   clock.Clock        `yaml:"-"`
}

func (cfg Config) Options() Options {
	return Options{
		OptionFrameBufferCapacity(cfg.FrameBufferCapacity),
		OptionPrebufferFrames(cfg.PrebufferFrames),
		OptionLooping(cfg.Looping),
		OptionSpeed(cfg.Speed),
		OptionVolume(cfg.Volume),
		OptionMuted(cfg.Muted),
		OptionStartPaused(cfg.StartPaused),
		OptionDropTolerance(cfg.DropTolerance),
		OptionDisableAudio(cfg.DisableAudio),
		OptionBackendConfig(cfg.BackendConfig),
	}
}

type Option interface {
	Apply(cfg *Config)
}

type Options []Option

func (s Options) Config() Config {
	cfg := DefaultConfig()
	s.apply(&cfg)
	return cfg
}

func (s Options) apply(cfg *Config) {
	for _, opt := range s {
		opt.Apply(cfg)
	}
}

var DefaultConfig = func() Config {
	return Config{
		FrameBufferCapacity: 30,
		PrebufferFrames:     5,
		Looping:             false,
		Speed:               1.0,
		Volume:              1.0,
		WallClock:           clock.Get(),
	}
}

type OptionFrameBufferCapacity uint

func (s OptionFrameBufferCapacity) Apply(cfg *Config) {
	cfg.FrameBufferCapacity = uint(s)
}

type OptionPrebufferFrames uint

func (s OptionPrebufferFrames) Apply(cfg *Config) {
	cfg.PrebufferFrames = uint(s)
}

type OptionLooping bool

func (s OptionLooping) Apply(cfg *Config) {
	cfg.Looping = bool(s)
}

type OptionSpeed float64

func (s OptionSpeed) Apply(cfg *Config) {
	cfg.Speed = float64(s)
}

type OptionVolume float64

func (s OptionVolume) Apply(cfg *Config) {
	cfg.Volume = float64(s)
}

type OptionMuted bool

func (s OptionMuted) Apply(cfg *Config) {
	cfg.Muted = bool(s)
}

type OptionStartPaused bool

func (s OptionStartPaused) Apply(cfg *Config) {
	cfg.StartPaused = bool(s)
}

type OptionDropTolerance time.Duration

func (s OptionDropTolerance) Apply(cfg *Config) {
	cfg.DropTolerance = time.Duration(s)
}

type OptionDisableAudio bool

func (s OptionDisableAudio) Apply(cfg *Config) {
	cfg.DisableAudio = bool(s)
}

type OptionBackendConfig decoder.Config

func (s OptionBackendConfig) Apply(cfg *Config) {
	cfg.BackendConfig = decoder.Config(s)
}

type optionBackend struct {
	Backend decoder.Backend
}

// OptionBackend forces a specific decode backend instead of probing the
// registered ones.
func OptionBackend(backend decoder.Backend) Option {
	return optionBackend{Backend: backend}
}

func (s optionBackend) Apply(cfg *Config) {
	cfg.Backend = s.Backend
}

type optionAudioOutput struct {
	Output audioout.Output
}

// OptionAudioOutput forces a specific audio output instead of probing the
// registered ones.
func OptionAudioOutput(output audioout.Output) Option {
	return optionAudioOutput{Output: output}
}

func (s optionAudioOutput) Apply(cfg *Config) {
	cfg.AudioOutput = s.Output
}

type optionEventBus struct {
	EventBus *eventbus.EventBus
}

// OptionEventBus makes the player publish its events into an existing
// bus instead of a private one.
func OptionEventBus(eventBus *eventbus.EventBus) Option {
	return optionEventBus{EventBus: eventBus}
}

func (s optionEventBus) Apply(cfg *Config) {
	cfg.EventBus = s.EventBus
}

type optionWallClock struct {
	Clock clock.Clock
}

// OptionWallClock overrides the wall clock; tests inject a mock here.
func OptionWallClock(c clock.Clock) Option {
	return optionWallClock{Clock: c}
}

func (s optionWallClock) Apply(cfg *Config) {
	cfg.WallClock = s.Clock
}
