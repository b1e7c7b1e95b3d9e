package mibis

import "fmt"

// span is an open index interval of the mix buffer whose endpoints are
// already written.
type span struct {
	lo, hi int32
}

// queueCapacity returns the number of intervals that will ever be pushed while
// subdividing a buffer of the given size: the seed plus two per interior slot.
func queueCapacity(size int) int {
	return 2*size - 1
}

// subdivide walks the buffer in breadth-first subdivision order and calls
// place for every slot, in the order the batch bits are assigned to them. The
// queue is reused and must have a capacity of at least queueCapacity(size)
// for the walk to stay allocation free.
func subdivide(size int, queue []span, place func(bitIndex, slot int)) []span {
	last := size - 1
	place(0, 0)
	place(last, last)

	next := 1
	queue = append(queue[:0], span{lo: 0, hi: int32(last)})
	for head := 0; head < len(queue); head++ {
		s := queue[head]
		if s.hi-s.lo <= 1 {
			continue
		}
		mid := (s.lo + s.hi) / 2
		place(next, int(mid))
		next++
		queue = append(queue, span{lo: s.lo, hi: mid}, span{lo: mid, hi: s.hi})
	}
	return queue
}

// mixInto writes batch into slots. Both must have the same, valid length.
func mixInto(slots, batch []byte, queue []span) []span {
	return subdivide(len(slots), queue, func(bitIndex, slot int) {
		slots[slot] = batch[bitIndex]
	})
}

// Mix rearranges batch into a newly allocated mix buffer. Use a Mixer to
// reuse buffers across cycles.
func Mix(batch []byte) ([]byte, error) {
	if err := ValidateBatchSize(len(batch)); err != nil {
		return nil, err
	}
	slots := make([]byte, len(batch))
	mixInto(slots, batch, make([]span, 0, queueCapacity(len(batch))))
	return slots, nil
}

// Positions returns the subdivision order for a batch of the given size:
// positions[i] is the slot that batch bit i is written to.
func Positions(size int) ([]int, error) {
	if err := ValidateBatchSize(size); err != nil {
		return nil, err
	}
	positions := make([]int, size)
	subdivide(size, make([]span, 0, queueCapacity(size)), func(bitIndex, slot int) {
		positions[bitIndex] = slot
	})
	return positions, nil
}

// Unmix restores the original batch from a mix buffer.
func Unmix(slots []byte) ([]byte, error) {
	positions, err := Positions(len(slots))
	if err != nil {
		return nil, err
	}
	batch := make([]byte, len(slots))
	for bitIndex, slot := range positions {
		batch[bitIndex] = slots[slot]
	}
	return batch, nil
}

// Depth returns the subdivision level at which the slot is written. The
// endpoints are written before any subdivision and have depth 0.
func Depth(size, slot int) (int, error) {
	if err := ValidateBatchSize(size); err != nil {
		return 0, err
	}
	if slot < 0 || slot >= size {
		return 0, fmt.Errorf("slot %d out of range for buffer of %d slots", slot, size)
	}
	if slot == 0 || slot == size-1 {
		return 0, nil
	}

	// Slots written at depth d are odd multiples of (size-1)/2^d.
	width := (size - 1) / (slot & -slot)
	depth := 0
	for width > 1 {
		width >>= 1
		depth++
	}
	return depth, nil
}
