// Package source provides fixed-width sample streams from entropy sources.
//
// Live audio capture is not part of this package: recorded or piped audio
// is read through PCM and WAV, and Jitter provides samples from scheduler
// timing noise without any hardware.
package source

import (
	"context"
	"errors"
	"io"
)

// Errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrInvalidWAV        = errors.New("invalid wav data")
)

// Source delivers raw samples of a fixed bit width.
type Source interface {
	// ReadSamples fills buf with the next samples and returns how many were
	// read. Any error ends the stream: io.EOF signals a clean end of the
	// samples, everything else is a fault.
	ReadSamples(ctx context.Context, buf []int32) (int, error)
	// SampleWidth returns the bit width of the delivered samples.
	SampleWidth() uint
	// Close releases the source.
	Close() error
}

// Slice is a Source that replays samples from memory.
type Slice struct {
	samples []int32
	width   uint
	pos     int
}

// NewSlice returns a source replaying samples of the given width.
func NewSlice(samples []int32, width uint) *Slice {
	return &Slice{
		samples: samples,
		width:   width,
	}
}

// ReadSamples implements Source.
func (s *Slice) ReadSamples(ctx context.Context, buf []int32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

// SampleWidth implements Source.
func (s *Slice) SampleWidth() uint {
	return s.width
}

// Close implements Source.
func (s *Slice) Close() error {
	return nil
}
