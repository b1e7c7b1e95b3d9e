package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
)

// Writer packs bits into bytes, most significant bit first. The last byte is
// padded with zero bits on Close.
type Writer struct {
	w       *bitio.Writer
	written uint64
	closed  bool
}

// NewWriter returns a Writer packing bits into w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: bitio.NewWriter(w),
	}
}

// WriteBits implements BitWriter.
func (w *Writer) WriteBits(bits []byte) error {
	if w.closed {
		return errors.New("writer is closed")
	}

	for _, bit := range bits {
		if bit > 1 {
			return fmt.Errorf("invalid bit value %d", bit)
		}
		if err := w.w.WriteBool(bit == 1); err != nil {
			return err
		}
	}
	w.written += uint64(len(bits))
	return nil
}

// Written returns the number of written bits, without padding.
func (w *Writer) Written() uint64 {
	return w.written
}

// Close pads the last byte with zeros and flushes it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.w.Close()
}

// Unpack reads packed bits from r, most significant bit first. A maxBits of
// zero reads all bits, including the padding of the last byte.
func Unpack(r io.Reader, maxBits uint64) ([]byte, error) {
	br := bitio.NewReader(r)

	var bits []byte
	for maxBits == 0 || uint64(len(bits)) < maxBits {
		bit, err := br.ReadBool()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return bits, nil
		default:
			return bits, err
		}

		if bit {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
	return bits, nil
}

// Pack returns bits packed into bytes, most significant bit first, with the
// last byte padded with zeros.
func Pack(bits []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, (len(bits)+7)/8))
	w := NewWriter(buf)
	if err := w.WriteBits(bits); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
