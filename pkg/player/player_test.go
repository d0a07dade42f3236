package player

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avplayer/pkg/audioout"
	"github.com/xaionaro-go/avplayer/pkg/clock"
	"github.com/xaionaro-go/avplayer/pkg/decoder"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

type fakeBackend struct {
	session *fakeSession
}

var _ decoder.Backend = (*fakeBackend)(nil)

func (b *fakeBackend) Name() string {
	return "fake"
}

func (b *fakeBackend) Available(ctx context.Context) error {
	return nil
}

func (b *fakeBackend) Open(ctx context.Context, url string, cfg decoder.Config) (decoder.Session, error) {
	return b.session, nil
}

// fakeSession replays a pre-built list of units; Seek lands on the nearest
// "sync point" (a multiple of syncInterval) at or before the target, the way
// a container with sparse keyframes would.
type fakeSession struct {
	locker       sync.Mutex
	info         media.Info
	units        []decoder.Unit
	pos          int
	syncInterval time.Duration
	seeks        []time.Duration
	closed       bool
}

var _ decoder.Session = (*fakeSession)(nil)

func (s *fakeSession) Info() media.Info {
	return s.info
}

func (s *fakeSession) ReadUnit(ctx context.Context) (decoder.Unit, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.pos >= len(s.units) {
		return nil, io.EOF
	}
	unit := s.units[s.pos]
	s.pos++
	return unit, nil
}

func (s *fakeSession) Seek(ctx context.Context, target time.Duration) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.seeks = append(s.seeks, target)

	landing := target
	if s.syncInterval > 0 {
		landing = target - target%s.syncInterval
	}
	s.pos = len(s.units)
	for i, unit := range s.units {
		if unitPTS(unit) >= landing {
			s.pos = i
			break
		}
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) seekCount() int {
	s.locker.Lock()
	defer s.locker.Unlock()
	return len(s.seeks)
}

func (s *fakeSession) isClosed() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.closed
}

func unitPTS(unit decoder.Unit) time.Duration {
	switch unit := unit.(type) {
	case *decoder.VideoUnit:
		return unit.Frame.PTS
	case *decoder.AudioUnit:
		return unit.Chunk.PTS
	}
	return 0
}

func newFakeVideoSession(frames int, interval, syncInterval time.Duration) *fakeSession {
	s := &fakeSession{
		syncInterval: syncInterval,
		info: media.Info{
			URL:       "fake://video",
			Duration:  time.Duration(frames) * interval,
			HasVideo:  true,
			FrameRate: float64(time.Second) / float64(interval),
			Width:     64,
			Height:    36,
		},
	}
	for i := 0; i < frames; i++ {
		s.units = append(s.units, &decoder.VideoUnit{
			Frame: &media.VideoFrame{
				PTS:         time.Duration(i) * interval,
				Duration:    interval,
				Width:       64,
				Height:      36,
				PixelFormat: media.PixelFormatNV12,
			},
		})
	}
	return s
}

func newFakeAudioSession(chunks int, chunkDuration time.Duration) *fakeSession {
	s := &fakeSession{
		info: media.Info{
			URL:        "fake://audio",
			Duration:   time.Duration(chunks) * chunkDuration,
			HasAudio:   true,
			SampleRate: audioout.DeviceSampleRate,
			Channels:   audioout.DeviceChannels,
		},
	}
	samplesPerChunk := int(chunkDuration.Seconds() * audioout.DeviceSampleRate * audioout.DeviceChannels)
	for i := 0; i < chunks; i++ {
		samples := make([]float32, samplesPerChunk)
		for j := range samples {
			samples[j] = 0.25
		}
		s.units = append(s.units, &decoder.AudioUnit{
			Chunk: &media.AudioChunk{
				PTS:        time.Duration(i) * chunkDuration,
				Samples:    samples,
				SampleRate: audioout.DeviceSampleRate,
				Channels:   audioout.DeviceChannels,
			},
		})
	}
	return s
}

// fakeOutput captures the PCM reader so the test can pump it by hand, the
// way a device callback would.
type fakeOutput struct {
	locker sync.Mutex
	reader io.Reader
}

var _ audioout.Output = (*fakeOutput)(nil)

func (o *fakeOutput) Ping(ctx context.Context) error {
	return nil
}

func (o *fakeOutput) PlayPCM(
	ctx context.Context,
	sampleRate uint32,
	channels uint16,
	format audioout.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (audioout.Stream, error) {
	o.locker.Lock()
	defer o.locker.Unlock()
	o.reader = reader
	return &fakeStream{}, nil
}

func (o *fakeOutput) pump(t *testing.T, d time.Duration) {
	t.Helper()
	o.locker.Lock()
	reader := o.reader
	o.locker.Unlock()
	require.NotNil(t, reader)

	samples := int(d.Seconds() * audioout.DeviceSampleRate * audioout.DeviceChannels)
	buf := make([]byte, samples*4)
	_, err := io.ReadFull(reader, buf)
	require.NoError(t, err)
}

type fakeStream struct{}

func (s *fakeStream) Drain() error { return nil }
func (s *fakeStream) Close() error { return nil }

func waitStatus(t *testing.T, p *Player, expected Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.GetStatus(context.Background()) == expected
	}, 5*time.Second, time.Millisecond, "never reached status '%s'", expected)
}

func TestPlaybackVideoOnly(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(30, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionFrameBufferCapacity(10),
		OptionPrebufferFrames(3),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	require.False(t, p.HasAudio(ctx))
	require.Equal(t, 3*time.Second, p.GetLength(ctx))
	require.Equal(t, time.Duration(0), p.GetPosition(ctx))
	require.True(t, p.TakeFrameReady(ctx))

	frame := p.PopFrame(ctx)
	require.NotNil(t, frame)
	require.Equal(t, time.Duration(0), frame.PTS)

	// the next frame is not due until the clock reaches it
	require.Nil(t, p.PopFrame(ctx))

	mock.Add(100 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, p.GetPosition(ctx))
	frame = p.PopFrame(ctx)
	require.NotNil(t, frame)
	require.Equal(t, 100*time.Millisecond, frame.PTS)
	require.Same(t, frame, p.CurrentFrame(ctx))
}

func TestPrebufferFillsBeforeReady(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(60, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionFrameBufferCapacity(30),
		OptionPrebufferFrames(5),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	require.GreaterOrEqual(t, p.BufferedLen(ctx), 5)
	require.False(t, p.IsEnded(ctx))
}

func TestStateChangeEvents(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()
	mock := clock.NewMock()
	sess := newFakeVideoSession(60, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionPrebufferFrames(2),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	stateCh, err := p.SubscribeToStateChanges(ctx)
	require.NoError(t, err)

	waitStatus(t, p, StatusReady)
	require.NoError(t, p.SetPause(ctx, true))
	waitStatus(t, p, StatusPaused)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stateCh:
			require.True(t, ok)
			if ev.New == StatusPaused {
				require.Equal(t, StatusReady, ev.Old)
				return
			}
		case <-deadline:
			t.Fatal("never received the pause transition")
		}
	}
}

func TestPauseFreezesPosition(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(60, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	mock.Add(200 * time.Millisecond)
	require.Equal(t, 200*time.Millisecond, p.GetPosition(ctx))

	require.NoError(t, p.SetPause(ctx, true))
	waitStatus(t, p, StatusPaused)
	require.True(t, p.GetPause(ctx))

	mock.Add(500 * time.Millisecond)
	require.Equal(t, 200*time.Millisecond, p.GetPosition(ctx))

	// the current frame survives the pause
	require.NoError(t, p.SetPause(ctx, false))
	waitStatus(t, p, StatusReady)
	mock.Add(100 * time.Millisecond)
	require.Equal(t, 300*time.Millisecond, p.GetPosition(ctx))
}

func TestSeekAccurate(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 500*time.Millisecond)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionFrameBufferCapacity(10),
		OptionPrebufferFrames(2),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	// 1.3s is not a sync point: the session lands at 1s, the engine decodes
	// and discards up to the requested position
	require.NoError(t, p.Seek(ctx, PositionTime(1300*time.Millisecond), true))
	require.Eventually(t, func() bool {
		return p.GetStatus(ctx) == StatusReady && p.GetPosition(ctx) == 1300*time.Millisecond
	}, 5*time.Second, time.Millisecond)

	frame := p.PopFrame(ctx)
	require.NotNil(t, frame)
	require.Equal(t, 1300*time.Millisecond, frame.PTS)
}

func TestSeekInaccurate(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 500*time.Millisecond)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionFrameBufferCapacity(10),
		OptionPrebufferFrames(2),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	// without the accurate flag playback resumes at the sync point itself,
	// and the clock re-anchors there
	require.NoError(t, p.Seek(ctx, PositionTime(1300*time.Millisecond), false))
	require.Eventually(t, func() bool {
		return p.GetStatus(ctx) == StatusReady && p.GetPosition(ctx) == 1000*time.Millisecond
	}, 5*time.Second, time.Millisecond)

	frame := p.PopFrame(ctx)
	require.NotNil(t, frame)
	require.Equal(t, 1000*time.Millisecond, frame.PTS)
}

func TestSeekByFrame(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	require.NoError(t, p.Seek(ctx, PositionFrame(20), true))
	require.Eventually(t, func() bool {
		return p.GetStatus(ctx) == StatusReady && p.GetPosition(ctx) == 2*time.Second
	}, 5*time.Second, time.Millisecond)
}

func TestSeekOutOfRange(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	var errOutOfRange ErrSeekOutOfRange
	require.ErrorAs(t, p.Seek(ctx, PositionTime(time.Hour), false), &errOutOfRange)
	require.ErrorAs(t, p.Seek(ctx, PositionTime(-time.Second), false), &errOutOfRange)
	require.Equal(t, 0, sess.seekCount())
}

func TestEndOfStreamAndRestart(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(10, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionPrebufferFrames(2),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	endCh := p.EndChan(ctx)

	deadline := time.After(5 * time.Second)
	for ended := false; !ended; {
		select {
		case <-endCh:
			ended = true
		case <-deadline:
			t.Fatal("the stream never ended")
		default:
			mock.Add(50 * time.Millisecond)
			p.PopFrame(ctx)
			time.Sleep(time.Millisecond)
		}
	}

	waitStatus(t, p, StatusEnded)
	require.True(t, p.IsEnded(ctx))
	require.Equal(t, time.Second, p.GetPosition(ctx))
	require.NotNil(t, p.CurrentFrame(ctx))

	require.NoError(t, p.Restart(ctx))
	waitStatus(t, p, StatusReady)
	require.False(t, p.IsEnded(ctx))
	require.Equal(t, time.Duration(0), p.GetPosition(ctx))

	select {
	case <-p.EndChan(ctx):
		t.Fatal("the end channel should have been re-armed")
	default:
	}
}

func TestLooping(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(5, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionLooping(true),
		OptionFrameBufferCapacity(3),
		OptionPrebufferFrames(1),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	require.True(t, p.IsLooping(ctx))

	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		p.PopFrame(ctx)
		return sess.seekCount() >= 2
	}, 5*time.Second, time.Millisecond)

	require.False(t, p.IsEnded(ctx))
	select {
	case <-p.EndChan(ctx):
		t.Fatal("a looping player must not report the end of the stream")
	default:
	}
}

func TestSetSpeedValidation(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	var errInvalid ErrInvalidArgument
	require.ErrorAs(t, p.SetSpeed(ctx, 0), &errInvalid)
	require.ErrorAs(t, p.SetSpeed(ctx, -2), &errInvalid)
	require.Equal(t, 1.0, p.GetSpeed(ctx))

	require.NoError(t, p.SetSpeed(ctx, 2.0))
	require.Eventually(t, func() bool {
		return p.GetSpeed(ctx) == 2.0
	}, 5*time.Second, time.Millisecond)

	// at 2x a 100ms wall interval covers 200ms of media
	before := p.GetPosition(ctx)
	mock.Add(100 * time.Millisecond)
	require.Equal(t, before+200*time.Millisecond, p.GetPosition(ctx))
}

func TestVolumeAndMute(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)

	require.NoError(t, p.SetVolume(ctx, 2.5))
	require.Eventually(t, func() bool {
		return p.GetVolume(ctx) == 1.0
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, p.SetVolume(ctx, -1))
	require.Eventually(t, func() bool {
		return p.GetVolume(ctx) == 0.0
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, p.SetMuted(ctx, true))
	require.Eventually(t, func() bool {
		return p.IsMuted(ctx)
	}, 5*time.Second, time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeVideoSession(100, 100*time.Millisecond, 0)
	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
	)
	require.NoError(t, err)

	waitStatus(t, p, StatusReady)

	require.NoError(t, p.Close(ctx))
	require.Equal(t, StatusClosed, p.GetStatus(ctx))
	require.True(t, sess.isClosed())

	require.NoError(t, p.Close(ctx))
	require.True(t, errors.Is(p.SetPause(ctx, true), ErrClosed))
}

func TestAudioLedPositionAndPause(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	sess := newFakeAudioSession(20, 100*time.Millisecond)
	out := &fakeOutput{}
	p, err := New(ctx, "fake://audio",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionAudioOutput(out),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	require.True(t, p.HasAudio(ctx))
	require.Equal(t, time.Duration(0), p.GetPosition(ctx))

	// the position follows what the device consumed, not the wall clock
	mock.Add(time.Hour)
	require.Equal(t, time.Duration(0), p.GetPosition(ctx))

	out.pump(t, 100*time.Millisecond)
	require.Equal(t, 100*time.Millisecond, p.GetPosition(ctx))

	require.NoError(t, p.SetPause(ctx, true))
	waitStatus(t, p, StatusPaused)
	out.pump(t, 100*time.Millisecond) // silence; nothing is consumed
	require.Equal(t, 100*time.Millisecond, p.GetPosition(ctx))

	require.NoError(t, p.SetPause(ctx, false))
	waitStatus(t, p, StatusReady)
	out.pump(t, 50*time.Millisecond)
	require.Equal(t, 150*time.Millisecond, p.GetPosition(ctx))
}

func TestAudioUnavailableDowngradesToVideoOnly(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()

	sess := newFakeVideoSession(30, 100*time.Millisecond, 0)
	sess.info.HasAudio = true
	sess.info.SampleRate = audioout.DeviceSampleRate
	sess.info.Channels = 7 // unconvertible layout, the resampler refuses it

	p, err := New(ctx, "fake://video",
		OptionBackend(&fakeBackend{session: sess}),
		OptionWallClock(mock),
		OptionAudioOutput(&fakeOutput{}),
	)
	require.NoError(t, err)
	defer p.Close(ctx)

	waitStatus(t, p, StatusReady)
	require.False(t, p.HasAudio(ctx))

	// the wall clock drives playback now
	mock.Add(100 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, p.GetPosition(ctx))
}
