package pipeline

import "errors"

// Errors.
var (
	ErrUnknownMixerMode = errors.New("unknown mixer mode")
	ErrSourceExhausted  = errors.New("sample source exhausted")
	ErrSourceFault      = errors.New("sample source failed")
	ErrSchedulerBusy    = errors.New("scheduler has buffers in flight")
)
