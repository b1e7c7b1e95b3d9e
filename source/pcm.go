package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PCM reads little endian, interleaved PCM samples from a reader. 8 bit
// samples are unsigned, as in wav files, and are shifted to be signed.
type PCM struct {
	r      *bufio.Reader
	closer io.Closer
	width  uint
	buf    []byte
}

// NewPCM returns a source reading samples of the given width (8, 16, 24 or
// 32 bits) from r. If r is an io.Closer, it is closed with the source.
func NewPCM(r io.Reader, width uint) (*PCM, error) {
	switch width {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bit samples", ErrUnsupportedFormat, width)
	}

	p := &PCM{
		r:     bufio.NewReaderSize(r, 64*1024),
		width: width,
		buf:   make([]byte, 4),
	}
	if closer, ok := r.(io.Closer); ok {
		p.closer = closer
	}
	return p, nil
}

// ReadSamples implements Source.
func (p *PCM) ReadSamples(ctx context.Context, buf []int32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	sampleBytes := int(p.width / 8)
	raw := p.buf[:sampleBytes]
	for i := range buf {
		_, err := io.ReadFull(p.r, raw)
		if err != nil {
			switch {
			case i > 0 && errors.Is(err, io.EOF):
				return i, nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				return i, fmt.Errorf("%w: stream ends within a %d bit sample", err, p.width)
			}
			return i, err
		}
		buf[i] = decodeSample(raw, p.width)
	}
	return len(buf), nil
}

func decodeSample(raw []byte, width uint) int32 {
	switch width {
	case 8:
		return int32(raw[0]) - 128
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(raw)))
	case 24:
		v := int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16
		// sign extend
		return v << 8 >> 8
	default:
		return int32(binary.LittleEndian.Uint32(raw))
	}
}

// SampleWidth implements Source.
func (p *PCM) SampleWidth() uint {
	return p.width
}

// Close implements Source.
func (p *PCM) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
