package core

import "errors"

var (
	// ErrStagingOverflow is returned when an upload does not fit the
	// fixed staging buffer.
	ErrStagingOverflow = errors.New("upload exceeds staging buffer capacity")
	// ErrTableFull is returned when a fixed-capacity registry has no
	// free slot left.
	ErrTableFull = errors.New("slot table is full")
	// ErrInvalidHandle is returned by accessors given an empty or stale
	// handle.
	ErrInvalidHandle = errors.New("invalid or stale handle")
	// ErrSlotOutOfRange is returned for uniform slot indices past the
	// end of the buffer.
	ErrSlotOutOfRange = errors.New("uniform slot out of range")
	// ErrSwapchainOutOfDate marks a recoverable acquire/present result.
	// It never escapes the frame scheduler.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrNotMapped is returned when a host write targets a buffer with
	// no mapped memory.
	ErrNotMapped = errors.New("buffer memory is not mapped")
)
