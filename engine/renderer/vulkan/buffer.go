package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Buffer owns a VkBuffer and its backing memory. Values are move-only:
// copying the struct and destroying both copies would double-free, so
// ownership transfers go through Move. The zero value is empty and
// Destroy on it is a no-op.
type Buffer struct {
	device vk.Device
	handle vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
	props  vk.MemoryPropertyFlags
	mapped unsafe.Pointer
}

func (b *Buffer) Handle() vk.Buffer {
	return b.handle
}

func (b *Buffer) Size() vk.DeviceSize {
	return b.size
}

func (b *Buffer) IsNil() bool {
	return b.handle == vk.NullBuffer
}

// HostVisible reports whether the backing memory can be mapped.
func (b *Buffer) HostVisible() bool {
	return b.props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0
}

// Mapped returns the persistent mapping, or nil when the buffer is not
// mapped.
func (b *Buffer) Mapped() unsafe.Pointer {
	return b.mapped
}

// Move transfers ownership to the returned value and empties the
// receiver, so destroying the source afterwards is a safe no-op.
func (b *Buffer) Move() Buffer {
	moved := *b
	*b = Buffer{}
	return moved
}

// Map establishes a persistent whole-buffer mapping. Idempotent.
func (b *Buffer) Map() error {
	if b.mapped != nil {
		return nil
	}
	if !b.HostVisible() {
		return core.ErrNotMapped
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.device, b.memory, 0, b.size, 0, &ptr); res != vk.Success {
		err := vkError("vkMapMemory", res)
		core.LogError(err.Error())
		return err
	}
	b.mapped = ptr
	return nil
}

func (b *Buffer) Unmap() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.memory)
		b.mapped = nil
	}
}

// Write copies data into the mapped memory at offset. The buffer must
// be mapped.
func (b *Buffer) Write(offset vk.DeviceSize, data []byte) error {
	if b.mapped == nil {
		return core.ErrNotMapped
	}
	dst := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
	return nil
}

// Flush makes host writes in [offset, offset+size) visible to the
// device. Pass vk.WholeSize to flush everything from offset on.
func (b *Buffer) Flush(offset, size vk.DeviceSize) error {
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.memory,
		Offset: offset,
		Size:   size,
	}}
	if res := vk.FlushMappedMemoryRanges(b.device, 1, ranges); res != vk.Success {
		return vkError("vkFlushMappedMemoryRanges", res)
	}
	return nil
}

// Destroy releases the buffer and its memory. Idempotent, and a no-op
// on empty values.
func (b *Buffer) Destroy() {
	if b.handle == vk.NullBuffer {
		return
	}
	b.Unmap()
	vk.DestroyBuffer(b.device, b.handle, nil)
	vk.FreeMemory(b.device, b.memory, nil)
	*b = Buffer{}
}
