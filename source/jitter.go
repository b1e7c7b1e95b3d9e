package source

import (
	"context"
	"time"
)

// DefaultJitterTick is the default timer interval of a Jitter source.
const DefaultJitterTick = 100 * time.Microsecond

// Jitter is a Source that samples scheduler noise: every sample is the
// measured duration in nanoseconds of a fixed timer interval. The more work
// the program does, the noisier the samples get, as the scheduler cannot
// immediately run the goroutine when the timer fires.
type Jitter struct {
	tick  time.Duration
	timer *time.Timer
}

// NewJitter returns a jitter source with the given timer interval.
func NewJitter(tick time.Duration) *Jitter {
	if tick <= 0 {
		tick = DefaultJitterTick
	}
	j := &Jitter{
		tick:  tick,
		timer: time.NewTimer(tick),
	}
	j.stopTimer()
	return j
}

// ReadSamples implements Source.
func (j *Jitter) ReadSamples(ctx context.Context, buf []int32) (int, error) {
	for i := range buf {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		start := time.Now()
		j.timer.Reset(j.tick)
		select {
		case <-j.timer.C:
		case <-ctx.Done():
			j.stopTimer()
			return i, ctx.Err()
		}
		buf[i] = int32(time.Since(start).Nanoseconds())
	}
	return len(buf), nil
}

// stopTimer stops the timer and removes a tick that fired but was not
// received, so that the next Reset waits a full interval.
func (j *Jitter) stopTimer() {
	if !j.timer.Stop() {
		select {
		case <-j.timer.C:
		default:
		}
	}
}

// SampleWidth implements Source.
func (j *Jitter) SampleWidth() uint {
	return 32
}

// Close implements Source.
func (j *Jitter) Close() error {
	j.stopTimer()
	return nil
}
