package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/safing/mibis/api"
	"github.com/safing/mibis/config"
	"github.com/safing/mibis/formats/dsd"
	"github.com/safing/mibis/log"
	"github.com/safing/mibis/pipeline"
	"github.com/safing/mibis/rng"
	"github.com/safing/mibis/sink"
	"github.com/safing/mibis/source"
	"github.com/safing/mibis/store"
	"github.com/safing/mibis/trng"
	"github.com/safing/mibis/utils"
)

// Defaults of the generate command.
const (
	DefaultTargetBits = 13000000
	DefaultOutputBase = "random_bits"
)

var (
	exitCode int

	genOpts = generateOptions{}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate files of conditioned random bits",
		Long: `Reads samples from a wav or raw pcm file, or from scheduler jitter, and writes
three bit files and a report:

  <output>_raw.bin     the extracted bits before conditioning
  <output>_mibis.bin   the bits conditioned with MiBiS&XOR
  <output>_sha3.bin    a SHA3-256 stream of the conditioned file, for comparison
  <output>_report.*    the counters of the run`,
		Args: cobra.NoArgs,
		RunE: runGenerate,
	}
)

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.StringVarP(&genOpts.Output, "output", "o", DefaultOutputBase, "base name of the output files")
	flags.Uint64VarP(&genOpts.TargetBits, "bits", "n", DefaultTargetBits, "number of conditioned bits to generate")
	flags.IntP("batch", "b", 0, "number of bits mixed at once, a power of two plus one")
	flags.BoolP("single-mixer", "s", false, "use a single mixer instead of two alternating ones")
	flags.StringP("extraction", "e", "", "bit extraction method [lsb|optimized|threshold]")
	flags.Int("bits-per-sample", 0, "number of bits taken from each sample")
	flags.Int("sample-width", 0, "bit width of raw pcm input samples [8|16|24|32]")
	flags.String("tail", "", "handling of the unpaired last slot of a mix buffer [drop|carry]")
	flags.StringVarP(&genOpts.Input, "input", "i", trng.SourceJitter, `sample source: a .wav or raw pcm file, or "jitter"`)
	flags.DurationVar(&genOpts.JitterTick, "jitter-tick", source.DefaultJitterTick, "timer interval of the jitter source")
	flags.StringVar(&genOpts.ReportFormat, "report-format", "json", "format of the report [json|yaml|cbor|msgpack]")
	flags.StringVar(&genOpts.StorePath, "store", "", "also keep the conditioned bits and the report in this database")
}

// flagOptions maps generate flags to the options they override.
var flagOptions = map[string]string{
	"batch":           pipeline.CfgBatchSizeKey,
	"extraction":      pipeline.CfgExtractionModeKey,
	"bits-per-sample": pipeline.CfgBitsPerSampleKey,
	"sample-width":    pipeline.CfgSampleWidthKey,
	"tail":            pipeline.CfgXORTailKey,
}

func registerAllConfig() error {
	var errs *multierror.Error
	for _, register := range []func() error{
		trng.RegisterConfig,
		rng.RegisterConfig,
		api.RegisterConfig,
	} {
		if err := register(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	for name, key := range flagOptions {
		if !flags.Changed(name) {
			continue
		}
		if err := setFromFlag(flags.Lookup(name), key); err != nil {
			return err
		}
	}

	if flags.Changed("single-mixer") {
		single, err := flags.GetBool("single-mixer")
		if err != nil {
			return err
		}
		mode := pipeline.MixerDual
		if single {
			mode = pipeline.MixerSingle
		}
		if err := config.SetConfigOption(pipeline.CfgMixerModeKey, string(mode)); err != nil {
			return err
		}
	}
	return nil
}

// setFromFlag sets the option key to the value of the flag.
func setFromFlag(flag *pflag.Flag, key string) error {
	var value interface{} = flag.Value.String()
	if flag.Value.Type() == "int" {
		n, err := strconv.Atoi(flag.Value.String())
		if err != nil {
			return err
		}
		value = n
	}

	if err := config.SetConfigOption(key, value); err != nil {
		return fmt.Errorf("invalid value %v for --%s: %w", value, flag.Name, err)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := log.Start(); err != nil {
		return err
	}
	defer log.Shutdown()

	if err := registerAllConfig(); err != nil {
		return err
	}
	if err := applyFlags(cmd); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := generate(ctx, genOpts)
	if err != nil {
		log.Errorf("generate: %s", err)
		return err
	}
	if report.Interrupted {
		exitCode = 130
	}
	return nil
}

type generateOptions struct {
	Output       string
	TargetBits   uint64
	Input        string
	JitterTick   time.Duration
	ReportFormat string
	StorePath    string
}

// Report holds the counters of a generate run.
type Report struct {
	RunID          string  `json:"run_id" yaml:"run_id"`
	Source         string  `json:"source" yaml:"source"`
	ExtractionMode string  `json:"extraction_mode" yaml:"extraction_mode"`
	BitsPerSample  int     `json:"bits_per_sample" yaml:"bits_per_sample"`
	BatchSize      int     `json:"batch_size" yaml:"batch_size"`
	MixerMode      string  `json:"mixer_mode" yaml:"mixer_mode"`
	Tail           string  `json:"tail" yaml:"tail"`
	TargetBits     uint64  `json:"target_bits" yaml:"target_bits"`
	SamplesRead    uint64  `json:"samples_read" yaml:"samples_read"`
	RawBits        uint64  `json:"raw_bits" yaml:"raw_bits"`
	Batches        uint64  `json:"batches" yaml:"batches"`
	OutputBits     uint64  `json:"output_bits" yaml:"output_bits"`
	SHA3Bits       uint64  `json:"sha3_bits" yaml:"sha3_bits"`
	Seconds        float64 `json:"seconds" yaml:"seconds"`
	BitsPerSecond  float64 `json:"bits_per_second" yaml:"bits_per_second"`
	Exhausted      bool    `json:"source_exhausted" yaml:"source_exhausted"`
	Interrupted    bool    `json:"interrupted" yaml:"interrupted"`
	RawFile        string  `json:"raw_file" yaml:"raw_file"`
	MibisFile      string  `json:"mibis_file" yaml:"mibis_file"`
	SHA3File       string  `json:"sha3_file" yaml:"sha3_file"`
}

// bitFile is a file of packed bits.
type bitFile struct {
	path string
	f    *os.File
	buf  *bufio.Writer
	*sink.Writer
}

func createBitFile(path string) (*bitFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, 1<<16)
	return &bitFile{
		path:   path,
		f:      f,
		buf:    buf,
		Writer: sink.NewWriter(buf),
	}, nil
}

func (bf *bitFile) Close() error {
	var errs *multierror.Error
	if err := bf.Writer.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := bf.buf.Flush(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := bf.f.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	log.Infof("generate: saved %d bits (%s) to %s", bf.Written(), bytefmt.ByteSize((bf.Written()+7)/8), bf.path)
	return nil
}

// progress logs the share of the target that was written.
type progress struct {
	target  uint64
	written uint64
	next    uint64
	step    uint64
}

func newProgress(target uint64) *progress {
	step := target / 10
	if step == 0 {
		step = 1
	}
	return &progress{
		target: target,
		next:   step,
		step:   step,
	}
}

func (p *progress) WriteBits(bits []byte) error {
	p.written += uint64(len(bits))
	if p.written >= p.next {
		log.Infof(
			"generate: progress %.1f%% (%d/%d bits, %s)",
			float64(p.written)/float64(p.target)*100,
			p.written, p.target,
			bytefmt.ByteSize(p.written/8),
		)
		for p.next <= p.written {
			p.next += p.step
		}
	}
	return nil
}

func openSource(input string, tick time.Duration) (source.Source, error) {
	if input == trng.SourceJitter {
		return source.NewJitter(tick), nil
	}

	width, err := pipeline.SampleWidthFromConfig()
	if err != nil {
		return nil, err
	}
	return source.OpenFile(input, width)
}

func generate(ctx context.Context, opts generateOptions) (report *Report, err error) {
	if opts.TargetBits == 0 {
		return nil, errors.New("the number of bits to generate must be greater than zero")
	}
	format, err := dsd.ParseFormat(opts.ReportFormat)
	if err != nil {
		return nil, err
	}

	pipelineOpts, err := pipeline.OptionsFromConfig()
	if err != nil {
		return nil, err
	}
	log.Tracef("generate: pipeline options: %s", spew.Sdump(pipelineOpts))

	src, err := openSource(opts.Input, opts.JitterTick)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = src.Close()
	}()

	p, err := pipeline.New("generate", src, pipelineOpts)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(opts.Output, ".bin")
	report = &Report{
		RunID:          p.ID().String(),
		Source:         opts.Input,
		ExtractionMode: string(p.Extractor().Mode()),
		BitsPerSample:  p.Extractor().BitsPerSample(),
		BatchSize:      p.Options().BatchSize,
		MixerMode:      string(p.Options().MixerMode),
		Tail:           p.Options().Tail.String(),
		TargetBits:     opts.TargetBits,
		RawFile:        base + "_raw.bin",
		MibisFile:      base + "_mibis.bin",
		SHA3File:       base + "_sha3.bin",
	}
	log.Infof(
		"generate: generating %d bits into %s, %s and %s",
		opts.TargetBits, report.RawFile, report.MibisFile, report.SHA3File,
	)

	if err := utils.EnsureParent(report.RawFile, 0o755); err != nil {
		return nil, err
	}
	raw, err := createBitFile(report.RawFile)
	if err != nil {
		return nil, err
	}
	mibisOut, err := createBitFile(report.MibisFile)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	p.SetRawSink(raw)
	out := sink.Multi{mibisOut, newProgress(opts.TargetBits)}

	var db *store.Store
	var runWriter *store.RunWriter
	if opts.StorePath != "" {
		db, err = store.Open(opts.StorePath)
		if err != nil {
			_ = raw.Close()
			_ = mibisOut.Close()
			return nil, err
		}
		defer func() {
			_ = db.Close()
		}()
		runWriter = db.NewRunWriter(p.ID(), store.DefaultChunkBits)
		out = append(out, runWriter)
	}

	runErr := p.Run(ctx, out, opts.TargetBits)
	switch {
	case runErr == nil:
	case errors.Is(runErr, pipeline.ErrSourceExhausted):
		log.Warningf("generate: source ran out of samples after %d of %d bits", p.Stats().BitsOutput, opts.TargetBits)
		report.Exhausted = true
	case errors.Is(runErr, context.Canceled):
		log.Warning("generate: interrupted, saving the bits generated so far")
		report.Interrupted = true
	}

	var errs *multierror.Error
	for _, c := range []interface{ Close() error }{raw, mibisOut} {
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if runWriter != nil {
		if err := runWriter.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if !report.Exhausted && !report.Interrupted && runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	stats := p.Stats()
	report.SamplesRead = stats.SamplesRead
	report.RawBits = stats.BitsExtracted
	report.Batches = stats.Batches
	report.OutputBits = stats.BitsOutput
	report.Seconds = stats.Duration.Seconds()
	if report.Seconds > 0 {
		report.BitsPerSecond = float64(report.OutputBits) / report.Seconds
	}

	report.SHA3Bits, err = writeSHA3(report.MibisFile, report.SHA3File, opts.TargetBits)
	if err != nil {
		return nil, err
	}

	if err := writeReport(report, base, format); err != nil {
		return nil, err
	}
	if db != nil {
		if err := db.SaveReport(p.ID(), report, format); err != nil {
			return nil, err
		}
	}

	log.Infof(
		"generate: generated %d bits in %.2fs (%.2f bits/s)",
		report.OutputBits, report.Seconds, report.BitsPerSecond,
	)
	return report, nil
}

// writeSHA3 writes the SHA3 comparison stream of the packed conditioned file.
func writeSHA3(input, output string, targetBits uint64) (uint64, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return 0, err
	}

	log.Tracef("generate: conditioned output starts with %s", utils.HexPreview(data))

	bits := sink.SHA3Bits(data, int(targetBits))
	bf, err := createBitFile(output)
	if err != nil {
		return 0, err
	}
	if err := bf.WriteBits(bits); err != nil {
		_ = bf.Close()
		return 0, err
	}
	return uint64(len(bits)), bf.Close()
}

func writeReport(report *Report, base string, format dsd.SerializationFormat) error {
	data, err := dsd.DumpWithoutIdentifier(report, format, "  ")
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s_report.%s", base, format)
	if err := os.WriteFile(path, data, 0o0644); err != nil { //nolint:gosec
		return err
	}
	log.Infof("generate: saved report to %s", path)
	return nil
}
