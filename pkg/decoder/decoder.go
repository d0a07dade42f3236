// Package decoder selects a decode backend and opens media through it.
package decoder

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/avplayer/pkg/decoder/registry"
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
)

type Backend = types.Backend
type Session = types.Session
type Config = types.Config

type Unit = types.Unit
type VideoUnit = types.VideoUnit
type AudioUnit = types.AudioUnit

type ErrOpen = types.ErrOpen
type ErrDecode = types.ErrDecode
type ErrSeek = types.ErrSeek

// Open tries the registered backends in priority order until one of them
// accepts the URL. The composite error of all refusals is returned when
// none does.
func Open(
	ctx context.Context,
	url string,
	cfg Config,
) (Session, error) {
	factories := registry.Factories()
	if len(factories) == 0 {
		return nil, fmt.Errorf("no decode backends are registered")
	}

	var result *multierror.Error
	for _, factory := range factories {
		backend := factory.NewBackend()
		if err := backend.Available(ctx); err != nil {
			logger.Debugf(ctx, "backend '%s' is not available: %v", backend.Name(), err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		session, err := backend.Open(ctx, url, cfg)
		if err == nil {
			logger.Debugf(ctx, "opened '%s' with backend '%s'", url, backend.Name())
			return session, nil
		}
		logger.Debugf(ctx, "backend '%s' refused '%s': %v", backend.Name(), url, err)
		result = multierror.Append(result, fmt.Errorf("%s: %w", backend.Name(), err))
	}
	return nil, ErrOpen{URL: url, Err: result.ErrorOrNil()}
}
