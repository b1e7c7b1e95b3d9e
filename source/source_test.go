package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeWAV encodes mono PCM-16 samples into wav format, with an additional
// LIST chunk in front of the data.
func encodeWAV(t *testing.T, samples []int16, sampleRate uint32) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	list := []byte("INFOISFT\x03\x00\x00\x00go\x00\x00")
	dataSize := uint32(len(samples) * 2)

	write := func(v interface{}) {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, v))
	}
	buf.WriteString("RIFF")
	write(uint32(4 + 8 + 16 + 8 + len(list) + 8 + int(dataSize)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1))      // PCM
	write(uint16(1))      // mono
	write(sampleRate)     // sample rate
	write(sampleRate * 2) // byte rate
	write(uint16(2))      // block align
	write(uint16(16))     // bits per sample

	buf.WriteString("LIST")
	write(uint32(len(list)))
	buf.Write(list)

	buf.WriteString("data")
	write(dataSize)
	write(samples)

	return buf.Bytes()
}

func readAll(t *testing.T, s Source) []int32 {
	t.Helper()

	var all []int32
	buf := make([]int32, 3)
	for {
		n, err := s.ReadSamples(context.Background(), buf)
		all = append(all, buf[:n]...)
		if err == io.EOF {
			return all
		}
		require.NoError(t, err)
	}
}

func TestSlice(t *testing.T) {
	t.Parallel()

	s := NewSlice([]int32{1, 2, 3, 4, 5}, 16)
	assert.Equal(t, uint(16), s.SampleWidth())
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, readAll(t, s))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSlice([]int32{1}, 16).ReadSamples(ctx, make([]int32, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPCM(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		width    uint
		data     []byte
		expected []int32
	}{
		{8, []byte{0, 128, 255}, []int32{-128, 0, 127}},
		{16, []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80}, []int32{1, -1, -32768}},
		{24, []byte{0xff, 0xff, 0x7f, 0x00, 0x00, 0x80, 0x02, 0x00, 0x00}, []int32{8388607, -8388608, 2}},
		{32, []byte{0xfe, 0xff, 0xff, 0xff}, []int32{-2}},
	}

	for _, tc := range testCases {
		p, err := NewPCM(bytes.NewReader(tc.data), tc.width)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, readAll(t, p), "%d bit", tc.width)
		assert.NoError(t, p.Close())
	}

	_, err := NewPCM(bytes.NewReader(nil), 12)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// a partial sample is a fault, not a clean end
	p, err := NewPCM(bytes.NewReader([]byte{1, 0, 2}), 16)
	require.NoError(t, err)
	buf := make([]int32, 4)
	n, err := p.ReadSamples(context.Background(), buf)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "within a 16 bit sample")
}

func TestWAV(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	data := encodeWAV(t, samples, 44100)

	pcm, info, err := NewWAV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint32(44100), info.SampleRate)
	assert.Equal(t, uint16(1), info.Channels)
	assert.Equal(t, uint16(16), info.BitsPerSample)
	assert.Equal(t, uint32(len(samples)), info.NumSamples())
	assert.Equal(t, uint(16), pcm.SampleWidth())
	assert.Equal(t, []int32{0, 1, -1, 32767, -32768, 1234}, readAll(t, pcm))

	// open from file
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, data, 0o0600))
	s, err := OpenFile(path, 16)
	require.NoError(t, err)
	assert.Len(t, readAll(t, s), len(samples))
	assert.NoError(t, s.Close())

	// broken headers
	_, _, err = NewWAV(bytes.NewReader([]byte("RIFX\x00\x00\x00\x00WAVE")))
	assert.ErrorIs(t, err, ErrInvalidWAV)
	_, _, err = NewWAV(bytes.NewReader(data[:30]))
	assert.ErrorIs(t, err, ErrInvalidWAV)

	float := append([]byte(nil), data...)
	binary.LittleEndian.PutUint16(float[20:], 3)
	_, _, err = NewWAV(bytes.NewReader(float))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestJitter(t *testing.T) {
	t.Parallel()

	j := NewJitter(50 * time.Microsecond)
	defer func() {
		_ = j.Close()
	}()
	assert.Equal(t, uint(32), j.SampleWidth())

	buf := make([]int32, 16)
	n, err := j.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	for _, sample := range buf {
		assert.GreaterOrEqual(t, sample, int32(50*time.Microsecond))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = j.ReadSamples(ctx, buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJitterIgnoresMissedTick(t *testing.T) {
	t.Parallel()

	tick := 2 * time.Millisecond
	j := NewJitter(tick)
	defer func() {
		_ = j.Close()
	}()

	// a tick fires while nobody waits for it, as when a read is canceled
	// at the same time
	j.timer.Reset(time.Microsecond)
	time.Sleep(10 * time.Millisecond)
	j.stopTimer()

	buf := make([]int32, 4)
	n, err := j.ReadSamples(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for _, sample := range buf {
		assert.GreaterOrEqual(t, sample, int32(tick))
	}
}
