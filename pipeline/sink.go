package pipeline

// Sink receives the output bit stream. The bits passed to WriteBits are only
// valid during the call. An error stops the pipeline.
type Sink interface {
	WriteBits(bits []byte) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(bits []byte) error

// WriteBits implements Sink.
func (fn SinkFunc) WriteBits(bits []byte) error {
	return fn(bits)
}
