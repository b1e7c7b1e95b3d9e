// Package sink provides destinations for bit streams: packed files, memory,
// hashes, the RNG and network subscribers.
//
// All sinks take bits as bytes holding 0 or 1, and none of them keeps a
// reference to the passed slice after WriteBits returns.
package sink

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ErrLimitReached is returned by Limit once its limit was written.
var ErrLimitReached = errors.New("bit limit reached")

// BitWriter is the interface implemented by all sinks.
type BitWriter interface {
	WriteBits(bits []byte) error
}

// Collector keeps all written bits in memory. It is safe for concurrent use.
type Collector struct {
	lock sync.Mutex
	bits []byte
}

// WriteBits implements BitWriter.
func (c *Collector) WriteBits(bits []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.bits = append(c.bits, bits...)
	return nil
}

// Bits returns a copy of the collected bits.
func (c *Collector) Bits() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]byte(nil), c.bits...)
}

// Len returns the number of collected bits.
func (c *Collector) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.bits)
}

// Multi writes to all of its sinks. All sinks receive the bits, even if some
// fail, and the errors are combined.
type Multi []BitWriter

// WriteBits implements BitWriter.
func (m Multi) WriteBits(bits []byte) error {
	var errs *multierror.Error
	for _, w := range m {
		if err := w.WriteBits(bits); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Limit passes at most N bits to the wrapped sink. The last chunk is
// truncated, and ErrLimitReached is returned as soon as N bits were written.
type Limit struct {
	W       BitWriter
	N       uint64
	written uint64
}

// WriteBits implements BitWriter.
func (l *Limit) WriteBits(bits []byte) error {
	if l.written >= l.N {
		return ErrLimitReached
	}

	if remaining := l.N - l.written; uint64(len(bits)) > remaining {
		bits = bits[:remaining]
	}
	if err := l.W.WriteBits(bits); err != nil {
		return err
	}
	l.written += uint64(len(bits))

	if l.written >= l.N {
		return ErrLimitReached
	}
	return nil
}

// Written returns the number of bits passed on.
func (l *Limit) Written() uint64 {
	return l.written
}
