package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/extraction"
	"github.com/safing/mibis/mibis"
)

func TestOptionsFromConfig(t *testing.T) { //nolint:paralleltest // Modifies global config.
	require.NoError(t, RegisterConfig())
	require.NoError(t, RegisterConfig())

	opts, err := OptionsFromConfig()
	require.NoError(t, err)
	assert.Equal(t, extraction.ModeOptimized, opts.Extraction.Mode)
	assert.Equal(t, 4, opts.Extraction.BitsPerSample)
	assert.Equal(t, []uint{0, 1, 4, 5}, opts.Extraction.Positions)
	assert.Equal(t, uint(16), opts.Extraction.SampleWidth)
	assert.Equal(t, mibis.DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, MixerDual, opts.MixerMode)
	assert.Equal(t, mibis.TailDrop, opts.Tail)
	assert.True(t, opts.Concurrent)

	require.NoError(t, config.SetConfigOption(CfgExtractionModeKey, "threshold"))
	require.NoError(t, config.SetConfigOption(CfgMixerModeKey, "single"))
	require.NoError(t, config.SetConfigOption(CfgXORTailKey, "carry"))
	require.NoError(t, config.SetConfigOption(CfgBatchSizeKey, 65))
	defer func() {
		for _, key := range []string{CfgExtractionModeKey, CfgMixerModeKey, CfgXORTailKey, CfgBatchSizeKey} {
			_ = config.SetConfigOption(key, nil)
		}
	}()

	opts, err = OptionsFromConfig()
	require.NoError(t, err)
	assert.Equal(t, extraction.ModeThreshold, opts.Extraction.Mode)
	assert.Equal(t, 1, opts.Extraction.BitsPerSample)
	assert.Nil(t, opts.Extraction.Positions)
	assert.Equal(t, MixerSingle, opts.MixerMode)
	assert.Equal(t, mibis.TailCarry, opts.Tail)
	assert.Equal(t, 65, opts.BatchSize)

	// invalid values are refused by the option
	assert.Error(t, config.SetConfigOption(CfgMixerModeKey, "triple"))

	// the threshold shift ranges from 1 to 16
	assert.Error(t, config.SetConfigOption(CfgThresholdShiftKey, 0))
	assert.Error(t, config.SetConfigOption(CfgThresholdShiftKey, 17))
	require.NoError(t, config.SetConfigOption(CfgThresholdShiftKey, 16))
	defer func() {
		_ = config.SetConfigOption(CfgThresholdShiftKey, nil)
	}()
	opts, err = OptionsFromConfig()
	require.NoError(t, err)
	assert.Equal(t, uint(16), opts.Extraction.ThresholdShift)

	// batch sizes are validated when building the options
	require.NoError(t, config.SetConfigOption(CfgBatchSizeKey, 64))
	_, err = OptionsFromConfig()
	assert.ErrorIs(t, err, mibis.ErrBatchSizeMismatch)
}
