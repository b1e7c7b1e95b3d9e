package mibis

import (
	"errors"
	"fmt"
	"math/bits"
)

// DefaultBatchSize is the default number of bits per batch: 2^20+1.
const DefaultBatchSize = 1<<20 + 1

// Errors.
var (
	ErrDegenerateBatch   = errors.New("batch size must be larger than 1 bit")
	ErrBatchSizeMismatch = errors.New("batch size does not match mix buffer size")
	ErrInvalidState      = errors.New("invalid mixer state for operation")
	ErrInvalidBit        = errors.New("bit value must be 0 or 1")
)

// Steps returns the number of subdivision levels for a batch of numBits bits.
func Steps(numBits int) (int, error) {
	if numBits <= 1 {
		return 0, fmt.Errorf("%w: got %d", ErrDegenerateBatch, numBits)
	}
	// floor(log2(x)) + 1 is the bit length of x.
	return bits.Len(uint(numBits - 1)), nil
}

// BufferSize returns the size of the mix buffer for a batch of numBits bits.
func BufferSize(numBits int) (int, error) {
	steps, err := Steps(numBits)
	if err != nil {
		return 0, err
	}
	return 1<<(steps-1) + 1, nil
}

// ValidateBatchSize checks that a batch of numBits fills its mix buffer exactly.
func ValidateBatchSize(numBits int) error {
	size, err := BufferSize(numBits)
	if err != nil {
		return err
	}
	if size != numBits {
		return fmt.Errorf(
			"%w: %d bits would mix into %d slots, use a size of the form 2^k+1 (eg. %d or %d)",
			ErrBatchSizeMismatch, numBits, size, size, 2*size-1,
		)
	}
	return nil
}
