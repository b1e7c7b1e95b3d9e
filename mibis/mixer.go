package mibis

import (
	"fmt"

	"github.com/safing/mibis/log"
)

// State is the lifecycle state of a Mixer.
type State uint32

// Mixer States.
const (
	Idle State = iota
	Filling
	Mixing
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Filling:
		return "filling"
	case Mixing:
		return "mixing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Mixer holds one batch buffer and one mix buffer and runs the MiBiS stage on
// them. Both buffers are allocated once and reused for every cycle.
type Mixer struct {
	name  string
	state State

	batch  []byte
	filled int
	slots  []byte
	queue  []span

	cycles uint64
}

// NewMixer returns an idle mixer for batches of batchSize bits.
func NewMixer(name string, batchSize int) (*Mixer, error) {
	if err := ValidateBatchSize(batchSize); err != nil {
		return nil, err
	}
	steps, _ := Steps(batchSize)
	log.Debugf("mibis: mixer %s uses %d slots in %d steps", name, batchSize, steps)

	return &Mixer{
		name:  name,
		batch: make([]byte, batchSize),
		slots: make([]byte, batchSize),
		queue: make([]span, 0, queueCapacity(batchSize)),
	}, nil
}

// Name returns the name of the mixer.
func (m *Mixer) Name() string {
	return m.name
}

// State returns the current state of the mixer.
func (m *Mixer) State() State {
	return m.state
}

// Size returns the batch and buffer size in bits.
func (m *Mixer) Size() int {
	return len(m.slots)
}

// Filled returns the number of bits of the current batch.
func (m *Mixer) Filled() int {
	return m.filled
}

// Full returns whether the current batch is complete.
func (m *Mixer) Full() bool {
	return m.filled == len(m.batch)
}

// Cycles returns the number of completed mixing cycles.
func (m *Mixer) Cycles() uint64 {
	return m.cycles
}

// Fill appends extracted bits to the current batch and returns how many were
// taken. An idle mixer starts a new batch.
func (m *Mixer) Fill(bits []byte) (int, error) {
	switch m.state {
	case Idle:
		m.state = Filling
		m.filled = 0
	case Filling:
	default:
		return 0, fmt.Errorf("%w: cannot fill mixer %s while %s", ErrInvalidState, m.name, m.state)
	}

	n := copy(m.batch[m.filled:], bits)
	for _, bit := range m.batch[m.filled : m.filled+n] {
		if bit > 1 {
			return 0, fmt.Errorf("%w: got %d", ErrInvalidBit, bit)
		}
	}
	m.filled += n
	return n, nil
}

// Mix rearranges the complete batch into the mix buffer and marks the mixer
// as ready for draining.
func (m *Mixer) Mix() error {
	if m.state != Filling || !m.Full() {
		return fmt.Errorf(
			"%w: cannot mix %s mixer %s with %d/%d bits",
			ErrInvalidState, m.state, m.name, m.filled, len(m.batch),
		)
	}

	m.state = Mixing
	m.queue = mixInto(m.slots, m.batch, m.queue)
	m.state = Ready
	return nil
}

// Slots returns the mix buffer of a ready mixer. The returned slice is owned
// by the mixer and is overwritten by the next cycle.
func (m *Mixer) Slots() ([]byte, error) {
	if m.state != Ready {
		return nil, fmt.Errorf("%w: mixer %s is %s", ErrInvalidState, m.name, m.state)
	}
	return m.slots, nil
}

// Drain compresses the mix buffer into dst and returns the mixer to idle.
func (m *Mixer) Drain(c *Compressor, dst []byte) ([]byte, error) {
	if m.state != Ready {
		return dst, fmt.Errorf("%w: cannot drain mixer %s while %s", ErrInvalidState, m.name, m.state)
	}

	dst = c.Compress(dst, m.slots)
	m.state = Idle
	m.filled = 0
	m.cycles++
	return dst, nil
}

// Discard abandons a partially filled batch and returns the number of
// dropped bits. Mixing or ready buffers cannot be discarded.
func (m *Mixer) Discard() (int, error) {
	switch m.state {
	case Idle:
		return 0, nil
	case Filling:
		dropped := m.filled
		m.state = Idle
		m.filled = 0
		return dropped, nil
	default:
		return 0, fmt.Errorf("%w: cannot discard mixer %s while %s", ErrInvalidState, m.name, m.state)
	}
}
