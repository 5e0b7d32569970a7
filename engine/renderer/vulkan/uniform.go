package vulkan

import (
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/constraints"

	"github.com/fennelvane/ember/engine/core"
)

// alignUp rounds value up to the next multiple of align. align must be
// a power of two or any positive integer; zero align returns value
// unchanged.
func alignUp[T constraints.Integer](value, align T) T {
	if align <= 0 {
		return value
	}
	return ((value + align - 1) / align) * align
}

// uboLayout describes how fixed-size elements are spaced inside a
// dynamic uniform buffer. Each element occupies alignedSize bytes so
// every slot offset is a legal dynamic offset.
type uboLayout struct {
	elementSize vk.DeviceSize
	alignedSize vk.DeviceSize
	slotCount   uint32
}

func newUBOLayout(elementSize, minAlignment vk.DeviceSize, slotCount uint32) uboLayout {
	return uboLayout{
		elementSize: elementSize,
		alignedSize: alignUp(elementSize, minAlignment),
		slotCount:   slotCount,
	}
}

func (l uboLayout) offset(slot uint32) vk.DeviceSize {
	return vk.DeviceSize(slot) * l.alignedSize
}

func (l uboLayout) totalSize() vk.DeviceSize {
	return vk.DeviceSize(l.slotCount) * l.alignedSize
}

// DynamicUniformBuffer is a persistently mapped uniform buffer sliced
// into alignment-padded slots, bound once with per-draw dynamic
// offsets.
type DynamicUniformBuffer struct {
	buffer Buffer
	layout uboLayout
}

// NewDynamicUniformBuffer allocates slotCount slots of elementSize
// bytes each, padded to the device's minimum uniform alignment.
func NewDynamicUniformBuffer(alloc *Allocator, elementSize vk.DeviceSize, slotCount uint32) (*DynamicUniformBuffer, error) {
	layout := newUBOLayout(elementSize, alloc.ctx.Device.MinUniformAlignment, slotCount)
	buffer, err := alloc.CreateSharedBuffer(vk.BufferUsageUniformBufferBit, layout.totalSize())
	if err != nil {
		return nil, err
	}
	return &DynamicUniformBuffer{
		buffer: buffer,
		layout: layout,
	}, nil
}

func (u *DynamicUniformBuffer) Buffer() *Buffer {
	return &u.buffer
}

// AlignedSize is the stride between consecutive slots.
func (u *DynamicUniformBuffer) AlignedSize() vk.DeviceSize {
	return u.layout.alignedSize
}

func (u *DynamicUniformBuffer) SlotCount() uint32 {
	return u.layout.slotCount
}

// SlotOffset returns the byte offset of a slot, used as the dynamic
// offset at bind time.
func (u *DynamicUniformBuffer) SlotOffset(slot uint32) vk.DeviceSize {
	return u.layout.offset(slot)
}

// WriteSlot copies data into a slot. With flush the written range is
// made visible immediately; without it the caller is expected to issue
// one deferred Flush covering all writes of the frame.
func (u *DynamicUniformBuffer) WriteSlot(slot uint32, data []byte, flush bool) error {
	if slot >= u.layout.slotCount {
		core.LogError("uniform slot %d out of range (%d slots)", slot, u.layout.slotCount)
		return core.ErrSlotOutOfRange
	}
	if vk.DeviceSize(len(data)) > u.layout.elementSize {
		core.LogError("uniform write of %d bytes exceeds element size %d", len(data), u.layout.elementSize)
		return core.ErrSlotOutOfRange
	}
	offset := u.layout.offset(slot)
	if err := u.buffer.Write(offset, data); err != nil {
		return err
	}
	if flush {
		return u.buffer.Flush(offset, u.layout.alignedSize)
	}
	return nil
}

// Flush makes every pending slot write visible to the device in one
// call.
func (u *DynamicUniformBuffer) Flush() error {
	return u.buffer.Flush(0, vk.DeviceSize(vk.WholeSize))
}

func (u *DynamicUniformBuffer) Destroy() {
	u.buffer.Destroy()
}
