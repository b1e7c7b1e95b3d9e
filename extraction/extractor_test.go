package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractModes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		opts     Options
		samples  []int32
		expected []byte
	}{
		{
			name:     "lsb default",
			opts:     Options{Mode: ModeLSB},
			samples:  []int32{0, 1, 2, 3, -1, -2},
			expected: []byte{0, 1, 0, 1, 1, 0},
		},
		{
			name:     "lsb two bits",
			opts:     Options{Mode: ModeLSB, BitsPerSample: 2},
			samples:  []int32{0b10, 0b01, -1},
			expected: []byte{0, 1, 1, 0, 1, 1},
		},
		{
			name: "optimized default positions",
			opts: Options{Mode: ModeOptimized},
			// bits 0,1,4,5
			samples:  []int32{0b110011, 0b001100, 0b100001},
			expected: []byte{1, 1, 1, 1, 0, 0, 0, 0, 1, 0, 0, 1},
		},
		{
			name:     "optimized three bits",
			opts:     Options{Mode: ModeOptimized, BitsPerSample: 3},
			samples:  []int32{0b010001},
			expected: []byte{1, 0, 1},
		},
		{
			name:     "optimized custom positions",
			opts:     Options{Mode: ModeOptimized, Positions: []uint{15, 0}},
			samples:  []int32{-32768, 1},
			expected: []byte{1, 0, 0, 1},
		},
		{
			name:     "threshold",
			opts:     Options{Mode: ModeThreshold, ThresholdShift: 1},
			samples:  []int32{100, 200, 50, -300, 0, 120},
			expected: []byte{0, 1, 0, 1, 0, 1},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, err := New(tc.opts)
			require.NoError(t, err)
			bits := e.ExtractAll(nil, tc.samples)
			assert.Equal(t, tc.expected, bits)
			assert.Len(t, bits, len(tc.samples)*e.BitsPerSample())
		})
	}
}

func TestThresholdIsReproducible(t *testing.T) {
	t.Parallel()

	samples := []int32{5, -7, 300, 12, -4000, 3, 3, 3, 90, -90}

	a, err := New(Options{Mode: ModeThreshold})
	require.NoError(t, err)
	b, err := New(Options{Mode: ModeThreshold})
	require.NoError(t, err)

	first := a.ExtractAll(nil, samples)
	assert.Equal(t, first, b.ExtractAll(nil, samples))

	// the running average persists until reset
	second := a.ExtractAll(nil, samples)
	a.Reset()
	assert.Equal(t, first, a.ExtractAll(nil, samples))
	assert.Len(t, second, len(samples))
}

func TestExtractorConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		opts Options
		err  error
	}{
		{"unknown mode", Options{Mode: "msb"}, ErrUnknownMode},
		{"too many bits", Options{Mode: ModeLSB, BitsPerSample: 17}, ErrBitsPerSample},
		{"negative bits", Options{Mode: ModeLSB, BitsPerSample: -1}, ErrBitsPerSample},
		{"too many optimized bits", Options{Mode: ModeOptimized, BitsPerSample: 5}, ErrBitsPerSample},
		{"position out of range", Options{Mode: ModeOptimized, SampleWidth: 8, Positions: []uint{0, 8}}, ErrBitPosition},
		{"duplicate position", Options{Mode: ModeOptimized, Positions: []uint{1, 1}}, ErrBitPosition},
		{"default position out of narrow sample", Options{Mode: ModeOptimized, SampleWidth: 4}, ErrBitPosition},
		{"sample too wide", Options{Mode: ModeLSB, SampleWidth: 64}, ErrSampleWidth},
		{"threshold shift", Options{Mode: ModeThreshold, ThresholdShift: 20}, ErrThresholdShift},
	}

	for _, tc := range testCases {
		_, err := New(tc.opts)
		assert.ErrorIs(t, err, tc.err, tc.name)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("Optimized")
	require.NoError(t, err)
	assert.Equal(t, ModeOptimized, mode)

	_, err = ParseMode("random")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
