package sink

import (
	"sync/atomic"

	"github.com/safing/mibis/rng"
)

// Feeder hands conditioned bits to the RNG, counting every bit as one bit of
// entropy. Bits are dropped while the RNG does not need entropy, so the
// pipeline is never blocked.
type Feeder struct {
	feeder  *rng.Feeder
	fed     atomic.Uint64
	skipped atomic.Uint64
}

// NewFeeder returns a sink feeding the RNG.
func NewFeeder() *Feeder {
	return &Feeder{
		feeder: rng.NewFeeder(),
	}
}

// WriteBits implements BitWriter.
func (f *Feeder) WriteBits(bits []byte) error {
	if !f.feeder.NeedsEntropy() {
		f.skipped.Add(uint64(len(bits)))
		return nil
	}

	packed, err := Pack(bits)
	if err != nil {
		return err
	}
	if f.feeder.SupplyEntropyIfNeeded(packed, len(bits)) {
		f.fed.Add(uint64(len(bits)))
	} else {
		f.skipped.Add(uint64(len(bits)))
	}
	return nil
}

// Fed returns the number of bits handed to the RNG.
func (f *Feeder) Fed() uint64 {
	return f.fed.Load()
}

// Skipped returns the number of bits dropped because the RNG did not need
// entropy.
func (f *Feeder) Skipped() uint64 {
	return f.skipped.Load()
}

// Close stops the RNG feeder.
func (f *Feeder) Close() error {
	f.feeder.CloseFeeder()
	return nil
}
