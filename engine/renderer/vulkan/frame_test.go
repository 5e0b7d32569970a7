package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextFrameIndexCycles(t *testing.T) {
	current := uint32(0)
	seen := []uint32{}
	for i := 0; i < 6; i++ {
		current = nextFrameIndex(current, 3)
		seen = append(seen, current)
	}
	assert.Equal(t, []uint32{1, 2, 0, 1, 2, 0}, seen)
}

func TestNextFrameIndexSingleFrame(t *testing.T) {
	assert.Equal(t, uint32(0), nextFrameIndex(0, 1))
}

func TestNextFrameIndexAdvances(t *testing.T) {
	// Every call moves to a different slot when more than one exists,
	// so two consecutive frames never share a fence.
	for frames := uint32(2); frames <= 4; frames++ {
		for current := uint32(0); current < frames; current++ {
			next := nextFrameIndex(current, frames)
			assert.NotEqual(t, current, next)
			assert.Less(t, next, frames)
		}
	}
}
