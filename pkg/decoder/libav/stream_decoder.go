package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
)

type streamDecoder interface {
	CodecContext() *astiav.CodecContext
	InputStream() *astiav.Stream
	Close() error
}

type softwareDecoder struct {
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	inputStream  *astiav.Stream
}

func (d *softwareDecoder) CodecContext() *astiav.CodecContext {
	return d.codecContext
}

func (d *softwareDecoder) InputStream() *astiav.Stream {
	return d.inputStream
}

func (d *softwareDecoder) Close() error {
	d.codecContext.Free()
	return nil
}

func newSoftwareDecoder(
	formatContext *astiav.FormatContext,
	stream *astiav.Stream,
) (_ret *softwareDecoder, _err error) {
	decoder := &softwareDecoder{
		inputStream: stream,
	}
	defer func() {
		if _err != nil {
			_ = decoder.Close()
		}
	}()

	decoder.codec = astiav.FindDecoder(stream.CodecParameters().CodecID())
	if decoder.codec == nil {
		return nil, fmt.Errorf("unable to find a codec using codec ID %v", stream.CodecParameters().CodecID())
	}

	decoder.codecContext = astiav.AllocCodecContext(decoder.codec)
	if decoder.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}

	err := stream.CodecParameters().ToCodecContext(decoder.codecContext)
	if err != nil {
		return nil, fmt.Errorf("CodecParameters().ToCodecContext(...) returned error: %w", err)
	}

	if stream.CodecParameters().MediaType() == astiav.MediaTypeVideo {
		decoder.codecContext.SetFramerate(formatContext.GuessFrameRate(stream, nil))
	}

	if err := decoder.codecContext.Open(decoder.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}

	return decoder, nil
}

type hardwareDecoder struct {
	codec                 *astiav.Codec
	codecContext          *astiav.CodecContext
	hardwareDeviceContext *astiav.HardwareDeviceContext
	hardwarePixelFormat   astiav.PixelFormat
	inputStream           *astiav.Stream
}

func (d *hardwareDecoder) CodecContext() *astiav.CodecContext {
	return d.codecContext
}

func (d *hardwareDecoder) InputStream() *astiav.Stream {
	return d.inputStream
}

func (d *hardwareDecoder) Close() error {
	d.codecContext.Free()
	return nil
}

func newHardwareDecoder(
	ctx context.Context,
	stream *astiav.Stream,
	hardwareDeviceType astiav.HardwareDeviceType,
	cfg types.Config,
) (_ret *hardwareDecoder, _err error) {
	if stream.CodecParameters().MediaType() != astiav.MediaTypeVideo {
		return nil, fmt.Errorf("currently hardware decoding is supported only for video streams")
	}

	decoder := &hardwareDecoder{inputStream: stream}
	defer func() {
		if _err != nil {
			_ = decoder.Close()
		}
	}()

	if cfg.VideoCodecName != "" {
		decoder.codec = astiav.FindDecoderByName(cfg.VideoCodecName)
	} else {
		decoder.codec = astiav.FindDecoder(stream.CodecParameters().CodecID())
	}
	if decoder.codec == nil {
		return nil, fmt.Errorf("unable to find a codec using codec ID %v", stream.CodecParameters().CodecID())
	}

	if decoder.codecContext = astiav.AllocCodecContext(decoder.codec); decoder.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}

	for _, p := range decoder.codec.HardwareConfigs() {
		if p.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) && p.HardwareDeviceType() == hardwareDeviceType {
			decoder.hardwarePixelFormat = p.PixelFormat()
			break
		}
	}

	if decoder.hardwarePixelFormat == astiav.PixelFormatNone {
		return nil, fmt.Errorf("hardware device type '%v' is not supported", hardwareDeviceType)
	}

	if err := stream.CodecParameters().ToCodecContext(decoder.codecContext); err != nil {
		return nil, fmt.Errorf("CodecParameters().ToCodecContext(...) returned error: %w", err)
	}

	var err error
	decoder.hardwareDeviceContext, err = astiav.CreateHardwareDeviceContext(
		hardwareDeviceType,
		cfg.HardwareDeviceTypeName,
		nil,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create hardware device context: %w", err)
	}

	decoder.codecContext.SetHardwareDeviceContext(decoder.hardwareDeviceContext)
	decoder.codecContext.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		for _, pf := range pfs {
			if pf == decoder.hardwarePixelFormat {
				return pf
			}
		}

		logger.Errorf(ctx, "unable to find appropriate pixel format")
		return astiav.PixelFormatNone
	})

	if err := decoder.codecContext.Open(decoder.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}

	return decoder, nil
}
