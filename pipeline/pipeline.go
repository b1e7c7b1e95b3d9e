package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"

	"github.com/safing/mibis/extraction"
	"github.com/safing/mibis/log"
	"github.com/safing/mibis/metrics"
	"github.com/safing/mibis/mibis"
	"github.com/safing/mibis/sink"
	"github.com/safing/mibis/source"
)

// DefaultReadSize is the number of samples read from the source at once.
const DefaultReadSize = 4096

// Options configure a Pipeline.
type Options struct {
	Extraction extraction.Options
	BatchSize  int
	MixerMode  MixerMode
	Tail       mibis.TailPolicy
	// Concurrent runs extraction and conditioning in separate goroutines.
	Concurrent bool
	// ReadSize is the number of samples read at once. Zero selects
	// DefaultReadSize.
	ReadSize int
}

// Stats are the counters of a pipeline run.
type Stats struct {
	SamplesRead   uint64
	BitsExtracted uint64
	BitsOutput    uint64
	Batches       uint64
	Duration      time.Duration
}

// Pipeline reads samples from a source, extracts bits, conditions them with
// the MiBiS mixers and the XOR compressor and writes the result to a sink.
type Pipeline struct {
	id        uuid.UUID
	name      string
	opts      Options
	src       source.Source
	extractor *extraction.Extractor
	scheduler *Scheduler
	metrics   *metrics.Pipeline

	raw     Sink
	samples []int32
	readErr error

	samplesRead   atomic.Uint64
	bitsExtracted atomic.Uint64
	bitsOutput    atomic.Uint64
	batches       atomic.Uint64
	duration      atomic.Int64
}

// New creates a pipeline for the given source. The sample width of the
// extractor is taken from the source.
func New(name string, src source.Source, opts Options) (*Pipeline, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}

	m, err := metrics.ForPipeline(name)
	if err != nil {
		return nil, err
	}

	opts.Extraction.SampleWidth = src.SampleWidth()
	extractor, err := extraction.New(opts.Extraction)
	if err != nil {
		return nil, err
	}

	if opts.MixerMode == "" {
		opts.MixerMode = MixerDual
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = mibis.DefaultBatchSize
	}
	scheduler, err := NewScheduler(opts.BatchSize, opts.MixerMode, opts.Tail, m)
	if err != nil {
		return nil, err
	}

	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}

	return &Pipeline{
		id:        id,
		name:      name,
		opts:      opts,
		src:       src,
		extractor: extractor,
		scheduler: scheduler,
		metrics:   m,
		samples:   make([]int32, opts.ReadSize),
	}, nil
}

// ID returns the unique id of the pipeline.
func (p *Pipeline) ID() uuid.UUID {
	return p.id
}

// Name returns the name of the pipeline.
func (p *Pipeline) Name() string {
	return p.name
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Extractor returns the bit extractor.
func (p *Pipeline) Extractor() *extraction.Extractor {
	return p.extractor
}

// Scheduler returns the mixer scheduler.
func (p *Pipeline) Scheduler() *Scheduler {
	return p.scheduler
}

// SetRawSink sets a sink that receives the extracted bits before they are
// conditioned. It must be set before Run.
func (p *Pipeline) SetRawSink(raw Sink) {
	p.raw = raw
}

// Stats returns the counters of the pipeline. It is safe to call while the
// pipeline is running.
func (p *Pipeline) Stats() Stats {
	return Stats{
		SamplesRead:   p.samplesRead.Load(),
		BitsExtracted: p.bitsExtracted.Load(),
		BitsOutput:    p.bitsOutput.Load(),
		Batches:       p.batches.Load(),
		Duration:      time.Duration(p.duration.Load()),
	}
}

// Run conditions samples until the source ends, ctx is canceled, the sink
// fails or targetBits output bits were written. A targetBits of zero means
// no limit. Reaching the target returns nil; the end of the source returns
// ErrSourceExhausted.
func (p *Pipeline) Run(ctx context.Context, dst Sink, targetBits uint64) error {
	start := time.Now()
	defer func() {
		p.duration.Add(int64(time.Since(start)))
	}()

	var out Sink = SinkFunc(func(bits []byte) error {
		if err := dst.WriteBits(bits); err != nil {
			return err
		}
		p.bitsOutput.Add(uint64(len(bits)))
		return nil
	})
	if targetBits > 0 {
		out = &sink.Limit{W: out, N: targetBits}
	}
	limited := out
	out = SinkFunc(func(bits []byte) error {
		p.batches.Add(1)
		return limited.WriteBits(bits)
	})

	log.Infof(
		"pipeline: starting %s (%s) with %s mixer mode, concurrent=%v",
		p.name, p.id, p.opts.MixerMode, p.opts.Concurrent,
	)

	var err error
	if p.opts.Concurrent {
		err = p.scheduler.Run(ctx, p.next, out)
	} else {
		err = p.runSequential(ctx, out)
	}

	stats := p.Stats()
	switch {
	case errors.Is(err, sink.ErrLimitReached):
		log.Infof("pipeline: %s reached target of %d bits", p.name, targetBits)
		return nil
	case errors.Is(err, ErrSourceExhausted):
		log.Infof(
			"pipeline: %s finished, source exhausted after %d samples, %d bits written",
			p.name, stats.SamplesRead, stats.BitsOutput,
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Infof("pipeline: %s stopped: %s", p.name, err)
	case err != nil:
		log.Errorf("pipeline: %s failed: %s", p.name, err)
	}
	return err
}

func (p *Pipeline) runSequential(ctx context.Context, out Sink) error {
	defer func() {
		_, _ = p.scheduler.Discard()
	}()

	var (
		buf []byte
		err error
	)
	for {
		buf, err = p.next(ctx, buf[:0])
		if err != nil {
			break
		}
		if err := p.scheduler.Push(buf, out); err != nil {
			return err
		}
	}

	// the source stopped, emit the last completed batch
	if flushErr := p.scheduler.Flush(out); flushErr != nil {
		return flushErr
	}
	return err
}

// next reads samples and appends the extracted bits to dst.
func (p *Pipeline) next(ctx context.Context, dst []byte) ([]byte, error) {
	for len(dst) == 0 {
		if p.readErr != nil {
			return dst, p.readErr
		}

		n, err := p.src.ReadSamples(ctx, p.samples)
		if err != nil {
			p.readErr = p.sourceError(ctx, err)
		}
		if n == 0 {
			continue
		}

		dst = p.extractor.ExtractAll(dst, p.samples[:n])
		p.samplesRead.Add(uint64(n))
		p.bitsExtracted.Add(uint64(len(dst)))
		p.metrics.SamplesRead.Add(n)
		p.metrics.BitsExtracted.Add(len(dst))

		if p.raw != nil {
			if err := p.raw.WriteBits(dst); err != nil {
				return dst[:0], fmt.Errorf("raw output failed: %w", err)
			}
		}
	}
	return dst, nil
}

func (p *Pipeline) sourceError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return ErrSourceExhausted
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		p.metrics.SourceFaults.Inc()
		return fmt.Errorf("%w: %w", ErrSourceFault, err)
	}
}
