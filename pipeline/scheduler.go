package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safing/mibis/log"
	"github.com/safing/mibis/metrics"
	"github.com/safing/mibis/mibis"
)

// MixerMode selects how many mixers a Scheduler uses.
type MixerMode string

// Mixer Modes.
const (
	// MixerDual alternates between two mixers, so that one is filled while
	// the other one is mixed and drained.
	MixerDual MixerMode = "dual"
	// MixerSingle uses one mixer, which is mixed and drained as soon as its
	// batch is complete.
	MixerSingle MixerMode = "single"
)

// ParseMixerMode parses the name of a mixer mode.
func ParseMixerMode(name string) (MixerMode, error) {
	switch mode := MixerMode(strings.ToLower(name)); mode {
	case MixerDual, MixerSingle:
		return mode, nil
	case "":
		return MixerDual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMixerMode, name)
	}
}

// BitSource appends the next extracted bits to dst. It is called by the
// Scheduler whenever the filling mixer needs more bits.
type BitSource func(ctx context.Context, dst []byte) ([]byte, error)

// Scheduler moves bits through the mixers and the compressor. At most one
// mixer is filling and at most one mixer is ready at any time, and batches
// are drained in the order they were completed.
//
// A Scheduler is not safe for concurrent use; Run manages its own goroutines.
type Scheduler struct {
	mode       MixerMode
	mixers     []*mibis.Mixer
	compressor *mibis.Compressor
	metrics    *metrics.Pipeline

	filling *mibis.Mixer
	ready   *mibis.Mixer

	out []byte
}

// NewScheduler returns a scheduler for batches of batchSize bits. The
// metrics are optional.
func NewScheduler(batchSize int, mode MixerMode, tail mibis.TailPolicy, m *metrics.Pipeline) (*Scheduler, error) {
	count := 2
	switch mode {
	case MixerDual:
	case MixerSingle:
		count = 1
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMixerMode, mode)
	}

	s := &Scheduler{
		mode:       mode,
		mixers:     make([]*mibis.Mixer, 0, count),
		compressor: mibis.NewCompressor(tail),
		metrics:    m,
		out:        make([]byte, 0, batchSize/2+1),
	}
	for i := 0; i < count; i++ {
		mixer, err := mibis.NewMixer(string(rune('A'+i)), batchSize)
		if err != nil {
			return nil, err
		}
		s.mixers = append(s.mixers, mixer)
	}

	log.Debugf("pipeline: scheduler uses %d mixer(s) with %d bit batches, xor tail %s", count, batchSize, tail)
	return s, nil
}

// Mode returns the mixer mode.
func (s *Scheduler) Mode() MixerMode {
	return s.mode
}

// Mixers returns the mixers of the scheduler. They must not be modified.
func (s *Scheduler) Mixers() []*mibis.Mixer {
	return s.mixers
}

// BatchSize returns the batch size in bits.
func (s *Scheduler) BatchSize() int {
	return s.mixers[0].Size()
}

// Pending returns the number of bits in the filling mixer.
func (s *Scheduler) Pending() int {
	if s.filling == nil {
		return 0
	}
	return s.filling.Filled()
}

// Push routes bits into the filling mixer. Whenever a batch is complete it is
// mixed, and the previously ready batch is drained into sink first.
func (s *Scheduler) Push(bits []byte, sink Sink) error {
	for len(bits) > 0 {
		if s.filling == nil {
			s.filling = s.nextIdle()
		}

		n, err := s.filling.Fill(bits)
		if err != nil {
			return err
		}
		bits = bits[n:]

		if s.filling.Full() {
			if err := s.complete(sink); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush drains the ready mixer, if any. A partially filled batch is kept.
func (s *Scheduler) Flush(sink Sink) error {
	if s.ready == nil {
		return nil
	}
	m := s.ready
	s.ready = nil
	return s.drain(m, sink)
}

// Discard abandons the partially filled batch and returns the number of
// dropped bits. Ready batches must be flushed first.
func (s *Scheduler) Discard() (int, error) {
	if s.ready != nil {
		return 0, fmt.Errorf("%w: mixer %s is ready", ErrSchedulerBusy, s.ready.Name())
	}
	if s.filling == nil {
		return 0, nil
	}

	dropped, err := s.filling.Discard()
	if err != nil {
		return 0, err
	}
	s.filling = nil
	s.discarded(dropped)
	return dropped, nil
}

func (s *Scheduler) nextIdle() *mibis.Mixer {
	for _, m := range s.mixers {
		if m.State() == mibis.Idle {
			return m
		}
	}
	// Unreachable: complete drains the ready mixer before another one is mixed.
	panic("pipeline: no idle mixer")
}

func (s *Scheduler) complete(sink Sink) error {
	m := s.filling
	s.filling = nil

	// drain the previous batch first, so that only one mixer is ready
	if err := s.Flush(sink); err != nil {
		s.filling = m
		return err
	}

	if err := s.mix(m); err != nil {
		return err
	}
	s.ready = m

	if s.mode == MixerSingle {
		return s.Flush(sink)
	}
	return nil
}

func (s *Scheduler) mix(m *mibis.Mixer) error {
	start := time.Now()
	if err := m.Mix(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.MixDuration.UpdateDuration(start)
		s.metrics.BatchesMixed.Inc()
	}
	return nil
}

func (s *Scheduler) drain(m *mibis.Mixer, sink Sink) error {
	start := time.Now()
	out, err := m.Drain(s.compressor, s.out[:0])
	if err != nil {
		return err
	}
	s.out = out
	if s.metrics != nil {
		s.metrics.DrainDuration.UpdateDuration(start)
		s.metrics.BitsOutput.Add(len(out))
	}
	return sink.WriteBits(out)
}

func (s *Scheduler) discarded(bits int) {
	if bits > 0 && s.metrics != nil {
		s.metrics.BitsDiscarded.Add(bits)
	}
}

// Run conditions bits from next until it fails or ctx is canceled. One
// goroutine fills the mixers, another one mixes and drains them into sink.
// Idle and filled mixers are handed over through channels holding at most as
// many mixers as exist, so extraction blocks while no mixer is idle.
//
// Batches that were completed before the stop are still emitted. A partially
// filled batch is discarded. Run returns the error of next or sink, or the
// error of ctx if it was canceled.
func (s *Scheduler) Run(ctx context.Context, next BitSource, sink Sink) error {
	if s.filling != nil || s.ready != nil {
		return ErrSchedulerBusy
	}

	idle := make(chan *mibis.Mixer, len(s.mixers))
	filled := make(chan *mibis.Mixer, len(s.mixers))
	for _, m := range s.mixers {
		idle <- m
	}

	group, groupCtx := errgroup.WithContext(ctx)
	var sourceErr error

	// extraction
	group.Go(func() error {
		defer close(filled)

		var buf, pending []byte
		for {
			var m *mibis.Mixer
			select {
			case m = <-idle:
			case <-groupCtx.Done():
				return nil
			}

			for !m.Full() {
				if len(pending) == 0 {
					var err error
					buf, err = next(groupCtx, buf[:0])
					pending = buf
					if err != nil {
						// completed batches are still conditioned
						sourceErr = err
						return nil
					}
					continue
				}

				n, err := m.Fill(pending)
				if err != nil {
					return err
				}
				pending = pending[n:]
			}

			// capacity of filled equals the number of mixers
			filled <- m
		}
	})

	// conditioning
	group.Go(func() error {
		for m := range filled {
			if err := s.mix(m); err != nil {
				return err
			}
			err := s.drain(m, sink)
			idle <- m
			if err != nil {
				return err
			}
		}
		return nil
	})

	err := group.Wait()

	// release partial and unprocessed batches
	for _, m := range s.mixers {
		if m.State() == mibis.Filling {
			dropped, _ := m.Discard()
			s.discarded(dropped)
		}
	}

	switch {
	case err != nil:
		return err
	case sourceErr != nil:
		return sourceErr
	default:
		return ctx.Err()
	}
}
