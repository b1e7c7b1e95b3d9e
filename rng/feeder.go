package rng

import (
	"context"

	"github.com/tevino/abool"
	"golang.org/x/crypto/sha3"

	"github.com/safing/mibis/metrics"
)

type entropyData struct {
	data    []byte
	entropy int
}

// Feeder collects entropy and feeds it to the RNG as soon as enough was
// gathered.
type Feeder struct {
	input        chan *entropyData
	entropy      int64
	needsEntropy *abool.AtomicBool
	pool         sha3.ShakeHash
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewFeeder returns a new entropy Feeder.
func NewFeeder() *Feeder {
	ctx, cancel := context.WithCancel(module.Ctx)
	f := &Feeder{
		input:        make(chan *entropyData),
		needsEntropy: abool.NewBool(true),
		pool:         sha3.NewShake256(),
		ctx:          ctx,
		cancel:       cancel,
	}
	module.StartWorker("feeder", f.run)
	return f
}

// NeedsEntropy returns whether the feeder is currently gathering entropy.
func (f *Feeder) NeedsEntropy() bool {
	return f.needsEntropy.IsSet()
}

// SupplyEntropyIfNeeded supplies entropy to the Feeder, but will not block
// if no entropy is currently needed.
func (f *Feeder) SupplyEntropyIfNeeded(data []byte, entropy int) bool {
	if !f.needsEntropy.IsSet() {
		return false
	}

	select {
	case f.input <- &entropyData{data: data, entropy: entropy}:
		return true
	default:
		return false
	}
}

// CloseFeeder stops the feed processing - the responsible goroutine exits.
func (f *Feeder) CloseFeeder() {
	f.cancel()
}

func (f *Feeder) run(_ context.Context) error {
	defer f.needsEntropy.UnSet()

	for {
		// gather
		f.needsEntropy.Set()
	gather:
		for {
			select {
			case newEntropy := <-f.input:
				_, _ = f.pool.Write(newEntropy.data)
				f.entropy += int64(newEntropy.entropy)
				metrics.RNGFeedBytes.Add(len(newEntropy.data))
				if f.entropy >= minFeedEntropy() {
					break gather
				}
			case <-f.ctx.Done():
				return nil
			}
		}

		// feed
		f.needsEntropy.UnSet()
		seed := make([]byte, 64)
		_, _ = f.pool.Read(seed)
		select {
		case rngFeeder <- seed:
		case <-f.ctx.Done():
			return nil
		}

		f.pool.Reset()
		f.entropy = 0
	}
}
