// Package pipeline schedules extracted bits through the MiBiS mixers and the
// XOR compressor and wires sample sources to output sinks.
//
// A Scheduler owns one (single mode) or two (dual mode) mixers. In dual mode
// one mixer receives new bits while the other one is mixed and drained, so
// extraction overlaps with conditioning. Both modes emit identical output
// for identical input; only the timing differs.
//
// The Scheduler can be driven cooperatively with Push and Flush, or
// concurrently with Run, where an extraction goroutine and a conditioning
// goroutine hand the mixers to each other over bounded channels.
package pipeline
