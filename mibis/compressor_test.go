package mibis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXORDefinition(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5)) //nolint:gosec
	for _, size := range []int{2, 3, 5, 9, 17, 1025} {
		slots := randomBits(rng, size)
		out := XOR(slots)
		require.Len(t, out, size/2)
		for i := range out {
			assert.Equal(t, slots[2*i]^slots[2*i+1], out[i])
		}
	}
}

func TestTailDrop(t *testing.T) {
	t.Parallel()

	c := NewCompressor(TailDrop)
	out := c.Compress(nil, bitsFromString("11010"))
	out = c.Compress(out, bitsFromString("10011"))
	assert.Equal(t, bitsFromString("0111"), out)
	assert.False(t, c.Carrying())
}

func TestTailCarry(t *testing.T) {
	t.Parallel()

	c := NewCompressor(TailCarry)

	out := c.Compress(nil, bitsFromString("11010"))
	assert.Equal(t, bitsFromString("01"), out)
	assert.True(t, c.Carrying())

	// the carried 0 is paired with the first slot of the next buffer
	out = c.Compress(out, bitsFromString("10011"))
	assert.Equal(t, bitsFromString("01100"), out)
	assert.False(t, c.Carrying())

	// over two odd buffers no slot is lost
	assert.Len(t, out, (5+5)/2)

	out = c.Compress(out[:0], bitsFromString("111"))
	assert.Equal(t, bitsFromString("0"), out)
	c.Reset()
	assert.False(t, c.Carrying())
}

func TestParseTailPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseTailPolicy("carry")
	require.NoError(t, err)
	assert.Equal(t, TailCarry, p)
	assert.Equal(t, "carry", p.String())

	p, err = ParseTailPolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, TailDrop, p)

	_, err = ParseTailPolicy("keep")
	assert.Error(t, err)
}
