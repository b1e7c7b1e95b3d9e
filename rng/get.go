package rng

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/safing/mibis/log"
	"github.com/safing/mibis/metrics"
)

var (
	bytesSinceReseed int64

	// Reader provides a global instance to read from the RNG.
	Reader io.Reader = reader{}

	errInvalidMax = errors.New("max must be greater than zero")
)

type reader struct{}

func (r reader) Read(b []byte) (n int, err error) {
	return Read(b)
}

// Read reads random bytes into the supplied byte slice.
func Read(b []byte) (n int, err error) {
	rngLock.Lock()
	defer rngLock.Unlock()

	if !rngReady {
		return 0, ErrNotReady
	}

	limit := reseedAfterBytes()
	if bytesSinceReseed <= limit && bytesSinceReseed+int64(len(b)) > limit {
		// the generator rekeys after every request, this only flags
		// a lack of fresh entropy
		log.Warningf("random: read more than %d bytes since last reseed, feeders are too slow", limit)
	}
	bytesSinceReseed += int64(len(b))

	metrics.RNGBytesRead.Add(len(b))
	return copy(b, rng.PseudoRandomData(uint(len(b)))), nil
}

// Bytes allocates a new byte slice of given length and fills it with random data.
func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Number returns a random number from 0 to (incl.) max.
func Number(max uint64) (uint64, error) {
	if max == 0 {
		return 0, errInvalidMax
	}

	b := make([]byte, 8)
	if max == math.MaxUint64 {
		if _, err := Read(b); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	}

	// reject the incomplete last range to avoid modulo bias
	r := max + 1
	limit := math.MaxUint64 - (math.MaxUint64%r+1)%r
	for {
		if _, err := Read(b); err != nil {
			return 0, err
		}
		if n := binary.BigEndian.Uint64(b); n <= limit {
			return n % r, nil
		}
	}
}
