package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Allocator creates device resources and runs uploads through a fixed
// staging buffer. It owns the staging memory and the transfer engine.
// Single control thread, one upload at a time.
type Allocator struct {
	ctx      *Context
	transfer TransferRunner
	staging  Buffer
}

func NewAllocator(ctx *Context, stagingBytes uint64) (*Allocator, error) {
	a := &Allocator{ctx: ctx}

	transfer, err := newSyncTransfer(ctx)
	if err != nil {
		return nil, err
	}
	a.transfer = transfer

	// The staging buffer stays mapped for its whole lifetime.
	staging, err := a.createRawBuffer(
		vk.DeviceSize(stagingBytes),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		transfer.Destroy()
		return nil, err
	}
	if err := staging.Map(); err != nil {
		staging.Destroy()
		transfer.Destroy()
		return nil, err
	}
	a.staging = staging

	core.LogInfo("allocator ready, staging capacity %d bytes", stagingBytes)
	return a, nil
}

// StagingCapacity returns the fixed size of the staging buffer. Single
// uploads larger than this fail with ErrStagingOverflow.
func (a *Allocator) StagingCapacity() vk.DeviceSize {
	return a.staging.Size()
}

// Destroy releases the staging buffer and the transfer engine. Buffers
// and images created through the allocator are owned by their callers.
func (a *Allocator) Destroy() {
	a.staging.Destroy()
	if a.transfer != nil {
		a.transfer.Destroy()
		a.transfer = nil
	}
}

// createRawBuffer allocates a buffer with the requested memory
// properties and records the properties of the memory type actually
// chosen.
func (a *Allocator) createRawBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (Buffer, error) {
	device := a.ctx.Device.LogicalDevice

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(device, &bufferCreateInfo, a.ctx.Allocator, &handle); res != vk.Success {
		err := vkError("vkCreateBuffer", res)
		core.LogError(err.Error())
		return Buffer{}, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryIndex := a.ctx.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryIndex < 0 {
		vk.DestroyBuffer(device, handle, a.ctx.Allocator)
		err := fmt.Errorf("no memory type for buffer (flags 0x%x)", memoryFlags)
		core.LogError(err.Error())
		return Buffer{}, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocateInfo, a.ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(device, handle, a.ctx.Allocator)
		err := vkError("vkAllocateMemory", res)
		core.LogError(err.Error())
		return Buffer{}, err
	}
	if res := vk.BindBufferMemory(device, handle, memory, 0); res != vk.Success {
		vk.DestroyBuffer(device, handle, a.ctx.Allocator)
		vk.FreeMemory(device, memory, a.ctx.Allocator)
		err := vkError("vkBindBufferMemory", res)
		core.LogError(err.Error())
		return Buffer{}, err
	}

	return Buffer{
		device: device,
		handle: handle,
		memory: memory,
		size:   size,
		props:  a.ctx.memoryPropertyFlags(memoryIndex),
	}, nil
}

// CreateBuffer allocates a buffer sized for data and fills it. With
// useStaging the buffer lands in device-local memory and data travels
// through the staging buffer, so len(data) must not exceed the staging
// capacity. Without staging the buffer is host-visible and written
// directly. If device-local memory happens to be host-visible, the
// direct path is taken regardless.
func (a *Allocator) CreateBuffer(usage vk.BufferUsageFlagBits, data []byte, useStaging bool) (Buffer, error) {
	size := vk.DeviceSize(len(data))
	if size == 0 {
		return Buffer{}, fmt.Errorf("refusing to create empty buffer")
	}
	if useStaging && size > a.StagingCapacity() {
		core.LogError("upload of %d bytes exceeds staging capacity %d", size, a.StagingCapacity())
		return Buffer{}, fmt.Errorf("buffer upload: %w", core.ErrStagingOverflow)
	}

	memoryFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	bufferUsage := vk.BufferUsageFlags(usage)
	if useStaging {
		memoryFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
		bufferUsage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}

	buffer, err := a.createRawBuffer(size, bufferUsage, memoryFlags)
	if err != nil {
		return Buffer{}, err
	}

	if buffer.HostVisible() {
		if err := a.writeDirect(&buffer, data); err != nil {
			buffer.Destroy()
			return Buffer{}, err
		}
		return buffer, nil
	}

	if err := a.copyThroughStaging(&buffer, data); err != nil {
		buffer.Destroy()
		return Buffer{}, err
	}
	return buffer, nil
}

// CreateSharedBuffer allocates a host-visible buffer with a persistent
// mapping, for memory the CPU rewrites every frame.
func (a *Allocator) CreateSharedBuffer(usage vk.BufferUsageFlagBits, size vk.DeviceSize) (Buffer, error) {
	buffer, err := a.createRawBuffer(
		size,
		vk.BufferUsageFlags(usage),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit),
	)
	if err != nil {
		return Buffer{}, err
	}
	if err := buffer.Map(); err != nil {
		buffer.Destroy()
		return Buffer{}, err
	}
	return buffer, nil
}

func (a *Allocator) writeDirect(buffer *Buffer, data []byte) error {
	if err := buffer.Map(); err != nil {
		return err
	}
	defer buffer.Unmap()
	if err := buffer.Write(0, data); err != nil {
		return err
	}
	if err := buffer.Flush(0, vk.DeviceSize(vk.WholeSize)); err != nil {
		core.LogError("flush after direct write failed: %s", err)
		return err
	}
	return nil
}

func (a *Allocator) fillStaging(data []byte) error {
	if err := a.staging.Write(0, data); err != nil {
		return err
	}
	return a.staging.Flush(0, vk.DeviceSize(vk.WholeSize))
}

func (a *Allocator) copyThroughStaging(buffer *Buffer, data []byte) error {
	if err := a.fillStaging(data); err != nil {
		return err
	}
	return a.transfer.Run(func(cb vk.CommandBuffer) {
		region := vk.BufferCopy{
			Size: vk.DeviceSize(len(data)),
		}
		vk.CmdCopyBuffer(cb, a.staging.handle, buffer.handle, 1, []vk.BufferCopy{region})
	})
}

// CreateImage allocates an uninitialized device-local 2D image.
func (a *Allocator) CreateImage(format vk.Format, usage vk.ImageUsageFlags, width, height uint32) (Image, error) {
	device := a.ctx.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(device, &imageCreateInfo, a.ctx.Allocator, &handle); res != vk.Success {
		err := vkError("vkCreateImage", res)
		core.LogError(err.Error())
		return Image{}, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryIndex := a.ctx.FindMemoryIndex(requirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		vk.DestroyImage(device, handle, a.ctx.Allocator)
		err := fmt.Errorf("no device-local memory type for image")
		core.LogError(err.Error())
		return Image{}, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocateInfo, a.ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(device, handle, a.ctx.Allocator)
		err := vkError("vkAllocateMemory", res)
		core.LogError(err.Error())
		return Image{}, err
	}
	if res := vk.BindImageMemory(device, handle, memory, 0); res != vk.Success {
		vk.DestroyImage(device, handle, a.ctx.Allocator)
		vk.FreeMemory(device, memory, a.ctx.Allocator)
		err := vkError("vkBindImageMemory", res)
		core.LogError(err.Error())
		return Image{}, err
	}

	return Image{
		device: device,
		handle: handle,
		memory: memory,
		format: format,
		width:  width,
		height: height,
	}, nil
}

// CreateImageRGBA uploads tightly packed RGBA pixels into a new
// device-local sampled image. The image ends in shader-read-only
// layout.
func (a *Allocator) CreateImageRGBA(width, height uint32, pixels []byte) (Image, error) {
	size := vk.DeviceSize(len(pixels))
	if size != vk.DeviceSize(width)*vk.DeviceSize(height)*4 {
		return Image{}, fmt.Errorf("pixel data does not match %dx%d RGBA", width, height)
	}
	if size > a.StagingCapacity() {
		core.LogError("image upload of %d bytes exceeds staging capacity %d", size, a.StagingCapacity())
		return Image{}, fmt.Errorf("image upload: %w", core.ErrStagingOverflow)
	}

	image, err := a.CreateImage(
		vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit|vk.ImageUsageTransferDstBit),
		width, height,
	)
	if err != nil {
		return Image{}, err
	}

	if err := a.fillStaging(pixels); err != nil {
		image.Destroy()
		return Image{}, err
	}

	err = a.transfer.Run(func(cb vk.CommandBuffer) {
		// Undefined to transfer-dst before the copy.
		toTransfer := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutTransferDstOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image.handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
		}
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width:  width,
				Height: height,
				Depth:  1,
			},
		}
		vk.CmdCopyBufferToImage(cb, a.staging.handle, image.handle,
			vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

		// Transfer-dst to shader-read-only for sampling.
		toShader := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image.handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
			SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
		}
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toShader})
	})
	if err != nil {
		image.Destroy()
		return Image{}, err
	}

	return image, nil
}
