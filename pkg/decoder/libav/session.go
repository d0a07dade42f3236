package libav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
	"github.com/xaionaro-go/avplayer/pkg/media"
)

// Session decodes one opened container. It is driven from a single
// goroutine (the engine's decode goroutine), so no locking happens here.
type Session struct {
	*astikit.Closer
	formatContext *astiav.FormatContext

	info media.Info

	videoStreamIndex int
	audioStreamIndex int
	streamDecoders   map[int]streamDecoder

	packet        *astiav.Packet
	inputFrame    *astiav.Frame
	softwareFrame *astiav.Frame

	scaler    *scaler
	converter *sampleConverter

	pending      []types.Unit
	draining     bool
	drainIndexes []int

	lastVideoPTS time.Duration
}

var _ types.Session = (*Session)(nil)

func openSession(
	ctx context.Context,
	url string,
	cfg types.Config,
) (_ret *Session, _err error) {
	logger.Debugf(ctx, "openSession(ctx, '%s')", url)
	defer func() { logger.Debugf(ctx, "/openSession(ctx, '%s'): %v", url, _err) }()

	if url == "" {
		return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("the provided URL is empty")}
	}

	s := &Session{
		Closer:           astikit.NewCloser(),
		videoStreamIndex: -1,
		audioStreamIndex: -1,
		streamDecoders:   make(map[int]streamDecoder),
		lastVideoPTS:     -1,
	}
	defer func() {
		if _err != nil {
			_ = s.Close()
		}
	}()

	s.formatContext = astiav.AllocFormatContext()
	if s.formatContext == nil {
		return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("unable to allocate a format context")}
	}
	s.Closer.Add(s.formatContext.Free)

	if err := s.formatContext.OpenInput(url, nil, nil); err != nil {
		return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("unable to open the input: %w", err)}
	}
	s.Closer.Add(s.formatContext.CloseInput)

	if err := s.formatContext.FindStreamInfo(nil); err != nil {
		return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("unable to get stream info: %w", err)}
	}

	if err := s.initStreamDecoders(ctx, cfg); err != nil {
		return nil, types.ErrOpen{URL: url, Err: err}
	}

	s.packet = astiav.AllocPacket()
	s.Closer.Add(s.packet.Free)
	s.inputFrame = astiav.AllocFrame()
	s.Closer.Add(s.inputFrame.Free)
	s.softwareFrame = astiav.AllocFrame()
	s.Closer.Add(s.softwareFrame.Free)

	s.scaler = newScaler()
	s.Closer.Add(s.scaler.close)
	s.converter = newSampleConverter()
	s.Closer.Add(s.converter.close)

	s.info = s.probeInfo(url)
	return s, nil
}

// initStreamDecoders picks the first video and the first audio stream and
// opens a decoder for each. Other streams (subtitles, data, additional
// tracks) are ignored.
func (s *Session) initStreamDecoders(
	ctx context.Context,
	cfg types.Config,
) error {
	for _, stream := range s.formatContext.Streams() {
		switch stream.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if s.videoStreamIndex >= 0 {
				logger.Debugf(ctx, "ignoring the additional video stream #%d", stream.Index())
				continue
			}
			decoder, err := s.newVideoDecoder(ctx, stream, cfg)
			if err != nil {
				return fmt.Errorf("unable to initialize a decoder for video stream #%d: %w", stream.Index(), err)
			}
			s.streamDecoders[stream.Index()] = decoder
			s.videoStreamIndex = stream.Index()
		case astiav.MediaTypeAudio:
			if s.audioStreamIndex >= 0 {
				logger.Debugf(ctx, "ignoring the additional audio stream #%d", stream.Index())
				continue
			}
			decoder, err := newSoftwareDecoder(s.formatContext, stream)
			if err != nil {
				return fmt.Errorf("unable to initialize a decoder for audio stream #%d: %w", stream.Index(), err)
			}
			s.streamDecoders[stream.Index()] = decoder
			s.audioStreamIndex = stream.Index()
		default:
			logger.Debugf(ctx, "stream %d is not an audio/video stream, skipping", stream.Index())
		}
	}

	if s.videoStreamIndex < 0 && s.audioStreamIndex < 0 {
		return fmt.Errorf("found no decodable audio or video streams")
	}
	return nil
}

func (s *Session) newVideoDecoder(
	ctx context.Context,
	stream *astiav.Stream,
	cfg types.Config,
) (streamDecoder, error) {
	if cfg.HardwareDeviceTypeName != "" {
		hwType := astiav.FindHardwareDeviceTypeByName(cfg.HardwareDeviceTypeName)
		if hwType == astiav.HardwareDeviceTypeNone {
			logger.Errorf(ctx, "the hardware device '%s' not found", cfg.HardwareDeviceTypeName)
		} else {
			decoderHW, err := newHardwareDecoder(ctx, stream, hwType, cfg)
			if err == nil {
				return decoderHW, nil
			}
			logger.Warnf(ctx, "unable to initialize a hardware decoder for video stream #%d: %v", stream.Index(), err)
		}
	}
	return newSoftwareDecoder(s.formatContext, stream)
}

func (s *Session) probeInfo(url string) media.Info {
	info := media.Info{
		URL:      url,
		Duration: toDuration(s.formatContext.Duration(), 1/float64(astiav.TimeBase)),
	}
	if s.videoStreamIndex >= 0 {
		stream := s.streamDecoders[s.videoStreamIndex].InputStream()
		params := stream.CodecParameters()
		info.HasVideo = true
		info.Width = params.Width()
		info.Height = params.Height()
		info.FrameRate = s.formatContext.GuessFrameRate(stream, nil).Float64()
		info.VideoCodec = params.CodecID().Name()
	}
	if s.audioStreamIndex >= 0 {
		stream := s.streamDecoders[s.audioStreamIndex].InputStream()
		params := stream.CodecParameters()
		info.HasAudio = true
		info.SampleRate = params.SampleRate()
		info.Channels = params.ChannelLayout().Channels()
		info.AudioCodec = params.CodecID().Name()
	}
	return info
}

func (s *Session) Info() media.Info {
	return s.info
}

// ReadUnit returns the next decoded unit in demux order. One packet may
// decode into multiple frames, so units are queued internally and handed
// out one at a time.
func (s *Session) ReadUnit(ctx context.Context) (types.Unit, error) {
	for len(s.pending) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := s.decodeMore(ctx); err != nil {
			return nil, err
		}
	}

	unit := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return unit, nil
}

// decodeMore reads one packet (or drains one decoder at the end of the
// stream) and appends the resulting units to the pending queue.
func (s *Session) decodeMore(ctx context.Context) error {
	if s.draining {
		return s.drainNext(ctx)
	}

	if err := s.formatContext.ReadFrame(s.packet); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			s.startDraining(ctx)
			return nil
		}
		return types.ErrDecode{Err: fmt.Errorf("unable to read a packet: %w", err), Fatal: true}
	}
	defer s.packet.Unref()

	streamDecoder, ok := s.streamDecoders[s.packet.StreamIndex()]
	if !ok {
		return nil
	}

	if err := streamDecoder.CodecContext().SendPacket(s.packet); err != nil {
		return types.ErrDecode{Err: fmt.Errorf("unable to send a packet to the decoder: %w", err)}
	}
	return s.receiveFrames(ctx, streamDecoder)
}

func (s *Session) startDraining(ctx context.Context) {
	logger.Debugf(ctx, "reached the end of the container, draining the decoders")
	s.draining = true
	s.drainIndexes = s.drainIndexes[:0]
	for idx, streamDecoder := range s.streamDecoders {
		if err := streamDecoder.CodecContext().SendPacket(nil); err != nil {
			logger.Debugf(ctx, "unable to send the flush packet to the decoder of stream #%d: %v", idx, err)
			continue
		}
		s.drainIndexes = append(s.drainIndexes, idx)
	}
}

func (s *Session) drainNext(ctx context.Context) error {
	for len(s.drainIndexes) > 0 {
		idx := s.drainIndexes[0]
		err := s.receiveFrames(ctx, s.streamDecoders[idx])
		if err == nil && len(s.pending) == 0 {
			// this decoder is exhausted
			s.drainIndexes = s.drainIndexes[1:]
			continue
		}
		return err
	}
	return io.EOF
}

// receiveFrames pulls every frame the decoder has ready and converts each
// to a unit.
func (s *Session) receiveFrames(
	ctx context.Context,
	streamDecoder streamDecoder,
) error {
	decoderCtx := streamDecoder.CodecContext()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := decoderCtx.ReceiveFrame(s.inputFrame)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
			return nil
		default:
			return types.ErrDecode{Err: fmt.Errorf("unable to receive a frame: %w", err)}
		}

		frame, err := s.resolveFrame(streamDecoder)
		if err != nil {
			s.inputFrame.Unref()
			return err
		}

		unit, err := s.frameToUnit(streamDecoder, frame)
		frame.Unref()
		if err != nil {
			return err
		}
		if unit != nil {
			s.pending = append(s.pending, unit)
		}
	}
}

// resolveFrame maps a hardware frame into main memory; software frames are
// passed through.
func (s *Session) resolveFrame(streamDecoder streamDecoder) (*astiav.Frame, error) {
	decoderHW, ok := streamDecoder.(*hardwareDecoder)
	if !ok || s.inputFrame.PixelFormat() != decoderHW.hardwarePixelFormat {
		return s.inputFrame, nil
	}

	if err := s.inputFrame.TransferHardwareData(s.softwareFrame); err != nil {
		return nil, types.ErrDecode{Err: fmt.Errorf("unable to transfer the hardware frame data: %w", err)}
	}
	s.softwareFrame.SetPts(s.inputFrame.Pts())
	s.inputFrame.Unref()
	return s.softwareFrame, nil
}

func (s *Session) frameToUnit(
	streamDecoder streamDecoder,
	frame *astiav.Frame,
) (types.Unit, error) {
	stream := streamDecoder.InputStream()
	pts := toDuration(frame.Pts(), stream.TimeBase().Float64())

	switch stream.CodecParameters().MediaType() {
	case astiav.MediaTypeVideo:
		if frame.Pts() == astiav.NoPtsValue {
			pts = s.lastVideoPTS + s.info.FrameInterval()
		}
		s.lastVideoPTS = pts
		videoFrame, err := s.scaler.toNV12(frame, pts, s.info.FrameInterval())
		if err != nil {
			return nil, types.ErrDecode{Err: fmt.Errorf("unable to convert the video frame: %w", err)}
		}
		return &types.VideoUnit{Frame: videoFrame}, nil
	case astiav.MediaTypeAudio:
		chunk, err := s.converter.toFloat32(frame, pts)
		if err != nil {
			return nil, types.ErrDecode{Err: fmt.Errorf("unable to convert the audio frame: %w", err)}
		}
		return &types.AudioUnit{Chunk: chunk}, nil
	}
	return nil, nil
}

// Seek jumps to the key frame at or before target. The decoders are
// flushed so no pre-seek picture leaks through.
func (s *Session) Seek(ctx context.Context, target time.Duration) error {
	logger.Debugf(ctx, "Seek(ctx, %v)", target)
	defer logger.Debugf(ctx, "/Seek(ctx, %v)", target)

	ts := int64(target.Seconds() * float64(astiav.TimeBase))
	if err := s.formatContext.SeekFrame(-1, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return types.ErrSeek{Target: target, Err: err}
	}

	for _, streamDecoder := range s.streamDecoders {
		streamDecoder.CodecContext().FlushBuffers()
	}
	s.pending = s.pending[:0]
	s.draining = false
	s.drainIndexes = s.drainIndexes[:0]
	s.lastVideoPTS = target - s.info.FrameInterval()
	return nil
}

func (s *Session) Close() error {
	for _, streamDecoder := range s.streamDecoders {
		_ = streamDecoder.Close()
	}
	s.streamDecoders = map[int]streamDecoder{}
	return s.Closer.Close()
}

func toDuration(ts int64, timeBase float64) time.Duration {
	seconds := float64(ts) * timeBase
	return time.Duration(float64(time.Second) * seconds)
}
