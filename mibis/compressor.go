package mibis

import (
	"fmt"
	"strings"
)

// TailPolicy defines what happens to the unpaired last slot of an odd sized
// mix buffer.
type TailPolicy uint8

// Tail Policies.
const (
	// TailDrop ignores the unpaired slot.
	TailDrop TailPolicy = iota
	// TailCarry keeps the unpaired slot and pairs it with the first slot of
	// the next buffer.
	TailCarry
)

func (p TailPolicy) String() string {
	switch p {
	case TailDrop:
		return "drop"
	case TailCarry:
		return "carry"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParseTailPolicy parses the name of a tail policy.
func ParseTailPolicy(name string) (TailPolicy, error) {
	switch strings.ToLower(name) {
	case "drop", "":
		return TailDrop, nil
	case "carry":
		return TailCarry, nil
	default:
		return 0, fmt.Errorf("unknown xor tail policy %q", name)
	}
}

// Compressor XORs adjacent slot pairs of mix buffers. A compressor is stateful
// only with TailCarry, where it holds the carried slot between buffers.
type Compressor struct {
	policy   TailPolicy
	carry    byte
	carrying bool
}

// NewCompressor returns a compressor with the given tail policy.
func NewCompressor(policy TailPolicy) *Compressor {
	return &Compressor{
		policy: policy,
	}
}

// Policy returns the tail policy.
func (c *Compressor) Policy() TailPolicy {
	return c.policy
}

// Carrying returns whether a slot is carried over to the next buffer.
func (c *Compressor) Carrying() bool {
	return c.carrying
}

// Compress appends slots[2i] XOR slots[2i+1] to dst for every full pair.
func (c *Compressor) Compress(dst, slots []byte) []byte {
	i := 0
	if c.carrying && len(slots) > 0 {
		dst = append(dst, c.carry^slots[0])
		c.carrying = false
		i = 1
	}

	for ; i+1 < len(slots); i += 2 {
		dst = append(dst, slots[i]^slots[i+1])
	}

	if i < len(slots) && c.policy == TailCarry {
		c.carry = slots[i]
		c.carrying = true
	}
	return dst
}

// Reset forgets a carried slot.
func (c *Compressor) Reset() {
	c.carry = 0
	c.carrying = false
}

// XOR compresses a single mix buffer with the drop policy.
func XOR(slots []byte) []byte {
	return (&Compressor{}).Compress(make([]byte, 0, len(slots)/2), slots)
}
