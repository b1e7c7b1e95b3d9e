package store

import (
	"bytes"

	"github.com/gofrs/uuid"

	"github.com/safing/mibis/sink"
)

// DefaultChunkBits is the number of bits stored per database entry.
const DefaultChunkBits = 1 << 20

// RunWriter writes the bit stream of a run into the store in chunks.
type RunWriter struct {
	store     *Store
	id        uuid.UUID
	chunkBits uint64

	buf     bytes.Buffer
	w       *sink.Writer
	pending uint64
	total   uint64
}

// NewRunWriter returns a writer storing bits for the run with the given id.
// The chunk size is rounded down to full bytes; zero selects DefaultChunkBits.
func (s *Store) NewRunWriter(id uuid.UUID, chunkBits uint64) *RunWriter {
	chunkBits -= chunkBits % 8
	if chunkBits == 0 {
		chunkBits = DefaultChunkBits
	}

	rw := &RunWriter{
		store:     s,
		id:        id,
		chunkBits: chunkBits,
	}
	rw.w = sink.NewWriter(&rw.buf)
	return rw
}

// WriteBits implements sink.BitWriter.
func (rw *RunWriter) WriteBits(bits []byte) error {
	for len(bits) > 0 {
		n := rw.chunkBits - rw.pending
		if uint64(len(bits)) < n {
			n = uint64(len(bits))
		}
		if err := rw.w.WriteBits(bits[:n]); err != nil {
			return err
		}
		bits = bits[n:]
		rw.pending += n

		if rw.pending == rw.chunkBits {
			if err := rw.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Written returns the number of written bits.
func (rw *RunWriter) Written() uint64 {
	return rw.total + rw.pending
}

// Close stores the last, padded chunk.
func (rw *RunWriter) Close() error {
	if rw.pending == 0 {
		return nil
	}
	return rw.flush()
}

func (rw *RunWriter) flush() error {
	// closing pads a partial byte and flushes the buffered bits
	if err := rw.w.Close(); err != nil {
		return err
	}
	if err := rw.store.putChunk(rw.id, rw.pending, rw.buf.Bytes()); err != nil {
		return err
	}

	rw.total += rw.pending
	rw.pending = 0
	rw.buf.Reset()
	rw.w = sink.NewWriter(&rw.buf)
	return nil
}
