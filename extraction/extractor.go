// Package extraction turns raw fixed-width samples of an entropy source into
// biased bits, ready to be conditioned.
package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/safing/mibis/log"
)

// Mode selects how bits are taken from a sample.
type Mode string

// Extraction Modes.
const (
	// ModeLSB takes the lowest bits of each sample.
	ModeLSB Mode = "lsb"
	// ModeOptimized takes a fixed set of noisy, non-contiguous bit positions.
	ModeOptimized Mode = "optimized"
	// ModeThreshold derives one bit per sample by comparing the sample
	// magnitude with a running average.
	ModeThreshold Mode = "threshold"
)

// Defaults.
const (
	DefaultSampleWidth    = 16
	DefaultThresholdShift = 4
	MaxSampleWidth        = 32
)

// DefaultOptimizedPositions are the bit positions used by ModeOptimized. The
// two least significant bits are followed by bits 4 and 5, skipping bits 2
// and 3.
var DefaultOptimizedPositions = []uint{0, 1, 4, 5}

// Errors.
var (
	ErrUnknownMode    = errors.New("unknown extraction mode")
	ErrBitsPerSample  = errors.New("invalid number of bits per sample")
	ErrBitPosition    = errors.New("bit position out of range")
	ErrSampleWidth    = errors.New("invalid sample width")
	ErrThresholdShift = errors.New("invalid threshold shift")
)

// ParseMode parses the name of an extraction mode.
func ParseMode(name string) (Mode, error) {
	switch mode := Mode(strings.ToLower(name)); mode {
	case ModeLSB, ModeOptimized, ModeThreshold:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Options configure an Extractor.
type Options struct {
	Mode Mode
	// BitsPerSample is the number of bits taken from every sample. Zero
	// selects the mode's default. ModeThreshold always yields one bit.
	BitsPerSample int
	// SampleWidth is the bit width of the source samples. Zero selects
	// DefaultSampleWidth.
	SampleWidth uint
	// Positions overrides DefaultOptimizedPositions for ModeOptimized.
	Positions []uint
	// ThresholdShift sets the smoothing of the running average of
	// ModeThreshold: every sample moves the average by 1/2^shift of the
	// difference. Zero selects DefaultThresholdShift.
	ThresholdShift uint
}

// Extractor extracts bits from samples. It is not safe for concurrent use.
type Extractor struct {
	mode      Mode
	width     uint
	positions []uint
	shift     uint

	average int64
	primed  bool
}

// New returns a new extractor for the given options.
func New(opts Options) (*Extractor, error) {
	e := &Extractor{
		mode:  opts.Mode,
		width: opts.SampleWidth,
		shift: opts.ThresholdShift,
	}
	if e.width == 0 {
		e.width = DefaultSampleWidth
	}
	if e.width > MaxSampleWidth {
		return nil, fmt.Errorf("%w: %d bits (max %d)", ErrSampleWidth, e.width, MaxSampleWidth)
	}
	if opts.BitsPerSample < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBitsPerSample, opts.BitsPerSample)
	}
	if opts.BitsPerSample > int(e.width) {
		return nil, fmt.Errorf("%w: %d bits from %d bit samples", ErrBitsPerSample, opts.BitsPerSample, e.width)
	}

	switch e.mode {
	case ModeLSB:
		k := opts.BitsPerSample
		if k == 0 {
			k = 1
		}
		e.positions = make([]uint, k)
		for i := range e.positions {
			e.positions[i] = uint(i)
		}

	case ModeOptimized:
		positions := opts.Positions
		if len(positions) == 0 {
			positions = DefaultOptimizedPositions
		}
		k := opts.BitsPerSample
		if k == 0 {
			k = len(positions)
		}
		if k > len(positions) {
			return nil, fmt.Errorf(
				"%w: %d bits requested, but only %d positions are configured",
				ErrBitsPerSample, k, len(positions),
			)
		}
		e.positions = make([]uint, k)
		copy(e.positions, positions)

	case ModeThreshold:
		if opts.BitsPerSample > 1 {
			log.Warningf("extraction: threshold mode yields one bit per sample, ignoring %d bits per sample", opts.BitsPerSample)
		}
		if e.shift == 0 {
			e.shift = DefaultThresholdShift
		}
		if e.shift > 16 {
			return nil, fmt.Errorf("%w: %d (max 16)", ErrThresholdShift, e.shift)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, e.mode)
	}

	seen := make(map[uint]struct{}, len(e.positions))
	for _, pos := range e.positions {
		if pos >= e.width {
			return nil, fmt.Errorf("%w: bit %d of a %d bit sample", ErrBitPosition, pos, e.width)
		}
		if _, ok := seen[pos]; ok {
			return nil, fmt.Errorf("%w: bit %d used twice", ErrBitPosition, pos)
		}
		seen[pos] = struct{}{}
	}

	log.Infof("extraction: using %s mode with %d bit(s) per %d bit sample", e.mode, e.BitsPerSample(), e.width)
	return e, nil
}

// Mode returns the extraction mode.
func (e *Extractor) Mode() Mode {
	return e.mode
}

// BitsPerSample returns how many bits every sample yields.
func (e *Extractor) BitsPerSample() int {
	if e.mode == ModeThreshold {
		return 1
	}
	return len(e.positions)
}

// SampleWidth returns the bit width of the samples.
func (e *Extractor) SampleWidth() uint {
	return e.width
}

// Positions returns the bit positions taken from every sample, in output order.
func (e *Extractor) Positions() []uint {
	return append([]uint(nil), e.positions...)
}

// Extract appends the bits of one sample to dst.
func (e *Extractor) Extract(dst []byte, sample int32) []byte {
	if e.mode == ModeThreshold {
		return append(dst, e.threshold(sample))
	}

	v := uint32(sample)
	for _, pos := range e.positions {
		dst = append(dst, byte(v>>pos)&1)
	}
	return dst
}

// ExtractAll appends the bits of all samples to dst.
func (e *Extractor) ExtractAll(dst []byte, samples []int32) []byte {
	for _, sample := range samples {
		dst = e.Extract(dst, sample)
	}
	return dst
}

// Reset forgets the running average of ModeThreshold.
func (e *Extractor) Reset() {
	e.average = 0
	e.primed = false
}

func (e *Extractor) threshold(sample int32) byte {
	magnitude := int64(sample)
	if magnitude < 0 {
		magnitude = -magnitude
	}

	if !e.primed {
		e.average = magnitude
		e.primed = true
		return 0
	}

	var bit byte
	if magnitude > e.average {
		bit = 1
	}
	e.average += (magnitude - e.average) >> e.shift
	return bit
}
