// Package audiofile implements a decode backend for plain audio files
// (mp3, flac, ogg/vorbis, wav) using pure Go decoders. It produces
// audio-only sessions; video containers are refused so that they fall
// through to the libav backend.
package audiofile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
)

const BackendName = "audiofile"

type Backend struct{}

var _ types.Backend = (*Backend)(nil)

func NewBackend() Backend {
	return Backend{}
}

func (Backend) Name() string {
	return BackendName
}

func (Backend) Available(ctx context.Context) error {
	return nil
}

// sourceOpener tries to interpret the file as one specific format. It
// returns an error when the content does not parse as that format.
type sourceOpener struct {
	Extensions []string
	Open       func(f *os.File) (pcmSource, error)
}

var sourceOpeners = []sourceOpener{
	{Extensions: []string{".mp3"}, Open: openMP3},
	{Extensions: []string{".flac"}, Open: openFLAC},
	{Extensions: []string{".ogg", ".oga"}, Open: openVorbis},
	{Extensions: []string{".wav"}, Open: openWAV},
}

func (Backend) Open(
	ctx context.Context,
	url string,
	_ types.Config,
) (types.Session, error) {
	f, err := os.Open(url)
	if err != nil {
		return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("unable to open the file: %w", err)}
	}

	ext := strings.ToLower(filepath.Ext(url))
	var result *multierror.Error
	for _, opener := range orderedOpeners(ext) {
		if _, err := f.Seek(0, 0); err != nil {
			f.Close()
			return nil, types.ErrOpen{URL: url, Err: fmt.Errorf("unable to rewind the file: %w", err)}
		}
		source, err := opener.Open(f)
		if err == nil {
			logger.Debugf(ctx, "opened '%s' as %v", url, opener.Extensions)
			return newSession(url, f, source), nil
		}
		result = multierror.Append(result, err)
	}

	f.Close()
	return nil, types.ErrOpen{URL: url, Err: result.ErrorOrNil()}
}

// orderedOpeners puts the opener matching the file extension first, so the
// common case does not pay for the format sniffing fallback.
func orderedOpeners(ext string) []sourceOpener {
	ordered := make([]sourceOpener, 0, len(sourceOpeners))
	for _, opener := range sourceOpeners {
		for _, e := range opener.Extensions {
			if e == ext {
				ordered = append(ordered, opener)
				break
			}
		}
	}
	for _, opener := range sourceOpeners {
		matched := false
		for _, e := range opener.Extensions {
			if e == ext {
				matched = true
				break
			}
		}
		if !matched {
			ordered = append(ordered, opener)
		}
	}
	return ordered
}
