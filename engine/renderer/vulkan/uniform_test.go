package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, vk.DeviceSize(0), alignUp(vk.DeviceSize(0), vk.DeviceSize(64)))
	assert.Equal(t, vk.DeviceSize(64), alignUp(vk.DeviceSize(1), vk.DeviceSize(64)))
	assert.Equal(t, vk.DeviceSize(64), alignUp(vk.DeviceSize(64), vk.DeviceSize(64)))
	assert.Equal(t, vk.DeviceSize(128), alignUp(vk.DeviceSize(65), vk.DeviceSize(64)))
	// Alignment of zero leaves the size untouched.
	assert.Equal(t, vk.DeviceSize(17), alignUp(vk.DeviceSize(17), vk.DeviceSize(0)))
}

func TestAlignUpIsMinimal(t *testing.T) {
	for _, align := range []vk.DeviceSize{16, 64, 256} {
		for size := vk.DeviceSize(1); size <= 512; size++ {
			aligned := alignUp(size, align)
			assert.GreaterOrEqual(t, aligned, size)
			assert.Zero(t, aligned%align)
			assert.Less(t, aligned-size, align)
		}
	}
}

func TestUBOLayoutOffsets(t *testing.T) {
	layout := newUBOLayout(64, 256, 8)

	assert.Equal(t, vk.DeviceSize(256), layout.alignedSize)
	assert.Equal(t, vk.DeviceSize(2048), layout.totalSize())
	for slot := uint32(0); slot < 8; slot++ {
		assert.Equal(t, vk.DeviceSize(slot)*256, layout.offset(slot))
	}
}

// Slot addressing maxObjects*frame+object must never map two in-use
// pairs to the same slot while a frame's writes can still be read by
// the GPU.
func TestFrameObjectSlotAddressingIsInjective(t *testing.T) {
	const framesInFlight, maxObjects = 3, 7
	layout := newUBOLayout(64, 64, framesInFlight*maxObjects)

	seen := map[vk.DeviceSize]bool{}
	for frame := uint32(0); frame < framesInFlight; frame++ {
		for object := uint32(0); object < maxObjects; object++ {
			slot := maxObjects*frame + object
			offset := layout.offset(slot)
			assert.False(t, seen[offset], "offset %d reused", offset)
			seen[offset] = true
		}
	}
	assert.Len(t, seen, framesInFlight*maxObjects)
}
