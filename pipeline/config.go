package pipeline

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/extraction"
	"github.com/safing/mibis/mibis"
)

// Configuration Keys.
const (
	CfgExtractionModeKey     = "trng/extraction_mode"
	CfgBitsPerSampleKey      = "trng/bits_per_sample"
	CfgOptimizedPositionsKey = "trng/optimized_positions"
	CfgSampleWidthKey        = "trng/sample_width"
	CfgBatchSizeKey          = "trng/batch_size_bits"
	CfgMixerModeKey          = "trng/mixer_mode"
	CfgXORTailKey            = "trng/xor_tail"
	CfgThresholdShiftKey     = "trng/threshold_shift"
	CfgConcurrentKey         = "trng/concurrent"
)

var (
	registerOnce sync.Once
	registerErr  error

	extractionMode     config.StringOption
	bitsPerSample      config.IntOption
	optimizedPositions config.StringArrayOption
	sampleWidth        config.IntOption
	batchSize          config.IntOption
	mixerMode          config.StringOption
	xorTail            config.StringOption
	thresholdShift     config.IntOption
	concurrent         config.BoolOption
)

// RegisterConfig registers the pipeline options. It may be called multiple
// times.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func registerConfig() error {
	for _, opt := range []*config.Option{
		{
			Name:            "Extraction Mode",
			Key:             CfgExtractionModeKey,
			Description:     "How bits are taken from samples: lsb, optimized or threshold.",
			OptType:         config.OptTypeString,
			DefaultValue:    string(extraction.ModeOptimized),
			ValidationRegex: "^(lsb|optimized|threshold)$",
		},
		{
			Name:            "Bits per Sample",
			Key:             CfgBitsPerSampleKey,
			Description:     "Number of bits taken from every sample. Threshold mode always takes one.",
			OptType:         config.OptTypeInt,
			DefaultValue:    4,
			ValidationRegex: "^([1-9]|[1-2][0-9]|3[0-2])$",
		},
		{
			Name:            "Optimized Bit Positions",
			Key:             CfgOptimizedPositionsKey,
			Description:     "Bit positions taken from every sample in optimized mode, in output order.",
			OptType:         config.OptTypeStringArray,
			ExpertiseLevel:  config.ExpertiseLevelExpert,
			DefaultValue:    []string{"0", "1", "4", "5"},
			ValidationRegex: "^([0-9]|[1-2][0-9]|3[0-1])$",
		},
		{
			Name:            "Sample Width",
			Key:             CfgSampleWidthKey,
			Description:     "Bit width of raw PCM input samples: 8, 16, 24 or 32.",
			OptType:         config.OptTypeInt,
			DefaultValue:    extraction.DefaultSampleWidth,
			ValidationRegex: "^(8|16|24|32)$",
		},
		{
			Name:            "Batch Size",
			Key:             CfgBatchSizeKey,
			Description:     "Number of bits mixed at once. Must be a power of two plus one.",
			OptType:         config.OptTypeInt,
			ExpertiseLevel:  config.ExpertiseLevelExpert,
			RequiresRestart: true,
			DefaultValue:    mibis.DefaultBatchSize,
			ValidationRegex: "^[0-9]+$",
		},
		{
			Name:            "Mixer Mode",
			Key:             CfgMixerModeKey,
			Description:     "Use two alternating mixers (dual) or one (single).",
			OptType:         config.OptTypeString,
			ExpertiseLevel:  config.ExpertiseLevelExpert,
			RequiresRestart: true,
			DefaultValue:    string(MixerDual),
			ValidationRegex: "^(dual|single)$",
		},
		{
			Name:            "XOR Tail",
			Key:             CfgXORTailKey,
			Description:     "What happens to the unpaired last slot of a mix buffer: drop or carry.",
			OptType:         config.OptTypeString,
			ExpertiseLevel:  config.ExpertiseLevelDeveloper,
			DefaultValue:    mibis.TailDrop.String(),
			ValidationRegex: "^(drop|carry)$",
		},
		{
			Name:            "Threshold Shift",
			Key:             CfgThresholdShiftKey,
			Description:     "Smoothing of the running average in threshold mode, as a power of two.",
			OptType:         config.OptTypeInt,
			ExpertiseLevel:  config.ExpertiseLevelDeveloper,
			DefaultValue:    extraction.DefaultThresholdShift,
			ValidationRegex: "^([1-9]|1[0-6])$",
		},
		{
			Name:            "Concurrent Pipeline",
			Key:             CfgConcurrentKey,
			Description:     "Run extraction and conditioning in separate goroutines.",
			OptType:         config.OptTypeBool,
			ExpertiseLevel:  config.ExpertiseLevelExpert,
			RequiresRestart: true,
			DefaultValue:    true,
		},
	} {
		if err := config.Register(opt); err != nil {
			return err
		}
	}

	extractionMode = config.GetAsString(CfgExtractionModeKey, string(extraction.ModeOptimized))
	bitsPerSample = config.GetAsInt(CfgBitsPerSampleKey, 4)
	optimizedPositions = config.GetAsStringArray(CfgOptimizedPositionsKey, []string{"0", "1", "4", "5"})
	sampleWidth = config.GetAsInt(CfgSampleWidthKey, extraction.DefaultSampleWidth)
	batchSize = config.GetAsInt(CfgBatchSizeKey, mibis.DefaultBatchSize)
	mixerMode = config.GetAsString(CfgMixerModeKey, string(MixerDual))
	xorTail = config.GetAsString(CfgXORTailKey, mibis.TailDrop.String())
	thresholdShift = config.GetAsInt(CfgThresholdShiftKey, extraction.DefaultThresholdShift)
	concurrent = config.GetAsBool(CfgConcurrentKey, true)
	return nil
}

// SampleWidthFromConfig returns the configured width of raw PCM samples.
func SampleWidthFromConfig() (uint, error) {
	if err := RegisterConfig(); err != nil {
		return 0, err
	}
	return uint(sampleWidth()), nil
}

// OptionsFromConfig builds pipeline options from the current configuration.
func OptionsFromConfig() (Options, error) {
	if err := RegisterConfig(); err != nil {
		return Options{}, err
	}

	mode, err := extraction.ParseMode(extractionMode())
	if err != nil {
		return Options{}, err
	}
	mixers, err := ParseMixerMode(mixerMode())
	if err != nil {
		return Options{}, err
	}
	tail, err := mibis.ParseTailPolicy(xorTail())
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Extraction: extraction.Options{
			Mode:           mode,
			BitsPerSample:  int(bitsPerSample()),
			SampleWidth:    uint(sampleWidth()),
			ThresholdShift: uint(thresholdShift()),
		},
		BatchSize:  int(batchSize()),
		MixerMode:  mixers,
		Tail:       tail,
		Concurrent: concurrent(),
	}
	if mode == extraction.ModeThreshold {
		opts.Extraction.BitsPerSample = 1
	}
	if mode == extraction.ModeOptimized {
		for _, value := range optimizedPositions() {
			pos, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return Options{}, fmt.Errorf("invalid bit position %q: %w", value, err)
			}
			opts.Extraction.Positions = append(opts.Extraction.Positions, uint(pos))
		}
	}

	if err := mibis.ValidateBatchSize(opts.BatchSize); err != nil {
		return Options{}, err
	}
	return opts, nil
}
