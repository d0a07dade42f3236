package types

import (
	"fmt"
	"time"
)

// ErrOpen means the media could not be opened at all: bad URL, unreadable
// container, no decodable streams. It is always fatal at construction.
type ErrOpen struct {
	URL string
	Err error
}

func (e ErrOpen) Error() string {
	return fmt.Sprintf("unable to open '%s': %v", e.URL, e.Err)
}

func (e ErrOpen) Unwrap() error {
	return e.Err
}

// ErrDecode is a per-unit decode problem. A non-fatal one means the unit
// was skipped and decoding may continue; a fatal one means the session
// cannot produce any more data.
type ErrDecode struct {
	Err   error
	Fatal bool
}

func (e ErrDecode) Error() string {
	if e.Fatal {
		return fmt.Sprintf("fatal decode error: %v", e.Err)
	}
	return fmt.Sprintf("decode error (unit skipped): %v", e.Err)
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

// ErrSeek means the backend refused to seek to the requested position.
type ErrSeek struct {
	Target time.Duration
	Err    error
}

func (e ErrSeek) Error() string {
	return fmt.Sprintf("unable to seek to %v: %v", e.Target, e.Err)
}

func (e ErrSeek) Unwrap() error {
	return e.Err
}
