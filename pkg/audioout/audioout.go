// Package audioout selects and drives an audio output backend.
package audioout

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/avplayer/pkg/audioout/registry"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

type Output = types.Output
type Stream = types.Stream

type PCMFormat = types.PCMFormat

const (
	PCMFormatUndefined = types.PCMFormatUndefined
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
)

// The format every output is driven with. The engine resamples whatever the
// media contains into this format, so backends that cannot reconfigure their
// device (oto) still work.
const (
	DeviceSampleRate = 48000
	DeviceChannels   = 2
	DeviceBufferSize = 100 * time.Millisecond
	DeviceFormat     = types.PCMFormatFloat32LE
)

// Auto returns the first registered output that responds to a ping, in
// priority order. It fails when no backend is usable; the caller is expected
// to downgrade to video-only playback in that case.
func Auto(ctx context.Context) (Output, error) {
	factories := registry.Factories()
	if len(factories) == 0 {
		return nil, fmt.Errorf("no audio output backends are registered")
	}

	var result *multierror.Error
	for _, factory := range factories {
		output := factory.NewOutput()
		err := output.Ping(ctx)
		if err == nil {
			return output, nil
		}
		result = multierror.Append(result, fmt.Errorf("%T: %w", output, err))
	}
	return nil, fmt.Errorf("unable to find a working audio output: %w", result.ErrorOrNil())
}
