// Package mibis implements the MiBiS&XOR conditioning stages: "Mixing Bits in
// Steps" repositions a batch of extracted bits into a buffer by breadth-first
// binary subdivision, and the XOR compressor reduces a mixed buffer to output
// bits by combining adjacent slot pairs.
//
// A batch of n bits is mixed into a buffer of 2^(steps-1)+1 slots, where
// steps = floor(log2(n-1))+1. Only batch sizes of the form 2^k+1 fill the
// buffer exactly, so those are the only accepted sizes.
//
// Mixers own their buffers for their whole lifetime and walk through the
// states Idle, Filling, Mixing and Ready. They are not safe for concurrent
// use: ownership of a mixer is handed between pipeline stages instead.
package mibis
