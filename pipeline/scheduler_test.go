package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/mibis/mibis"
)

var errTestSourceDone = errors.New("test source done")

type collector struct {
	lock sync.Mutex
	bits []byte
}

func (c *collector) WriteBits(bits []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.bits = append(c.bits, bits...)
	return nil
}

func (c *collector) Bits() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]byte(nil), c.bits...)
}

func randomBits(rng *rand.Rand, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(rng.Intn(2))
	}
	return bits
}

// reference conditions all complete batches one after another.
func reference(t *testing.T, bits []byte, size int, tail mibis.TailPolicy) []byte {
	t.Helper()

	c := mibis.NewCompressor(tail)
	var out []byte
	for len(bits) >= size {
		slots, err := mibis.Mix(bits[:size])
		require.NoError(t, err)
		out = c.Compress(out, slots)
		bits = bits[size:]
	}
	return out
}

// chunked returns a BitSource that delivers bits in random chunk sizes.
func chunked(bits []byte, seed int64) BitSource {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	return func(ctx context.Context, dst []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return dst, err
		}
		if len(bits) == 0 {
			return dst, errTestSourceDone
		}
		n := 1 + rng.Intn(40)
		if n > len(bits) {
			n = len(bits)
		}
		dst = append(dst, bits[:n]...)
		bits = bits[n:]
		return dst, nil
	}
}

func pushAll(t *testing.T, s *Scheduler, next BitSource, sink Sink) {
	t.Helper()

	var buf []byte
	for {
		var err error
		buf, err = next(context.Background(), buf[:0])
		if err != nil {
			require.ErrorIs(t, err, errTestSourceDone)
			break
		}
		require.NoError(t, s.Push(buf, sink))
		assertStates(t, s)
	}
	require.NoError(t, s.Flush(sink))
}

func assertStates(t *testing.T, s *Scheduler) {
	t.Helper()

	var filling, ready int
	for _, m := range s.Mixers() {
		switch m.State() {
		case mibis.Filling:
			filling++
		case mibis.Ready:
			ready++
		case mibis.Mixing:
			t.Fatalf("mixer %s left in mixing state", m.Name())
		}
	}
	assert.LessOrEqual(t, filling, 1, "more than one mixer filling")
	assert.LessOrEqual(t, ready, 1, "more than one mixer ready")
}

func TestSchedulerModesAgree(t *testing.T) {
	t.Parallel()

	const size = 17
	rng := rand.New(rand.NewSource(1)) //nolint:gosec
	// 7 complete batches and a partial one
	input := randomBits(rng, 7*size+5)

	for _, tail := range []mibis.TailPolicy{mibis.TailDrop, mibis.TailCarry} {
		expected := reference(t, input, size, tail)

		for _, mode := range []MixerMode{MixerDual, MixerSingle} {
			s, err := NewScheduler(size, mode, tail, nil)
			require.NoError(t, err)

			out := &collector{}
			pushAll(t, s, chunked(input, 2), out)
			assert.Equal(t, expected, out.Bits(), "%s mode with %s tail", mode, tail)

			// the partial batch is never emitted
			assert.Equal(t, 5, s.Pending())
			dropped, err := s.Discard()
			require.NoError(t, err)
			assert.Equal(t, 5, dropped)
			for _, m := range s.Mixers() {
				assert.Equal(t, mibis.Idle, m.State())
			}
		}
	}
}

func TestSchedulerDualKeepsOneBatchReady(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(9, MixerDual, mibis.TailDrop, nil)
	require.NoError(t, err)
	out := &collector{}

	bits := randomBits(rand.New(rand.NewSource(3)), 18) //nolint:gosec
	require.NoError(t, s.Push(bits[:9], out))
	// the first batch is mixed but not drained yet
	assert.Empty(t, out.Bits())
	assert.Equal(t, mibis.Ready, s.Mixers()[0].State())

	// completing the second batch drains the first one
	require.NoError(t, s.Push(bits[9:], out))
	assert.Len(t, out.Bits(), 4)
	assert.Equal(t, mibis.Idle, s.Mixers()[0].State())
	assert.Equal(t, mibis.Ready, s.Mixers()[1].State())

	_, err = s.Discard()
	assert.ErrorIs(t, err, ErrSchedulerBusy)
	require.NoError(t, s.Flush(out))
	assert.Len(t, out.Bits(), 8)
}

func TestSchedulerRunMatchesPush(t *testing.T) {
	t.Parallel()

	const size = 33
	rng := rand.New(rand.NewSource(4)) //nolint:gosec
	input := randomBits(rng, 20*size+11)

	for _, mode := range []MixerMode{MixerDual, MixerSingle} {
		for _, tail := range []mibis.TailPolicy{mibis.TailDrop, mibis.TailCarry} {
			s, err := NewScheduler(size, mode, tail, nil)
			require.NoError(t, err)

			out := &collector{}
			err = s.Run(context.Background(), chunked(input, 5), out)
			require.ErrorIs(t, err, errTestSourceDone)
			assert.Equal(t, reference(t, input, size, tail), out.Bits(), "%s mode with %s tail", mode, tail)

			for _, m := range s.Mixers() {
				assert.Equal(t, mibis.Idle, m.State())
			}
		}
	}
}

func TestSchedulerRunBackpressure(t *testing.T) {
	t.Parallel()

	const size = 9
	s, err := NewScheduler(size, MixerDual, mibis.TailDrop, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(6)) //nolint:gosec
	var calls atomic.Int32
	next := func(ctx context.Context, dst []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return dst, err
		}
		calls.Add(1)
		return append(dst, randomBits(rng, size)...), nil
	}

	release := make(chan struct{})
	var written atomic.Int32
	sink := SinkFunc(func(bits []byte) error {
		<-release
		written.Add(int32(len(bits)))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, next, sink)
	}()

	// one batch is blocked in the sink, one waits, no mixer is idle
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(3))

	cancel()
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	// completed batches are emitted in whole
	assert.Zero(t, written.Load()%(size/2))
	for _, m := range s.Mixers() {
		assert.Equal(t, mibis.Idle, m.State())
	}
}

func TestSchedulerRunStopsOnSinkError(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(9, MixerDual, mibis.TailDrop, nil)
	require.NoError(t, err)

	errFull := errors.New("disk full")
	input := randomBits(rand.New(rand.NewSource(7)), 900) //nolint:gosec
	err = s.Run(context.Background(), chunked(input, 8), SinkFunc(func([]byte) error {
		return errFull
	}))
	assert.ErrorIs(t, err, errFull)

	for _, m := range s.Mixers() {
		assert.Equal(t, mibis.Idle, m.State())
	}
}

func TestParseMixerMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMixerMode("Single")
	require.NoError(t, err)
	assert.Equal(t, MixerSingle, mode)

	mode, err = ParseMixerMode("")
	require.NoError(t, err)
	assert.Equal(t, MixerDual, mode)

	_, err = ParseMixerMode("triple")
	assert.ErrorIs(t, err, ErrUnknownMixerMode)

	_, err = NewScheduler(9, "triple", mibis.TailDrop, nil)
	assert.ErrorIs(t, err, ErrUnknownMixerMode)
	_, err = NewScheduler(10, MixerDual, mibis.TailDrop, nil)
	assert.ErrorIs(t, err, mibis.ErrBatchSizeMismatch)
}
