package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// TransferRunner executes recorded transfer work and returns once the
// GPU finished it. The synchronous implementation below blocks the
// control thread for the duration of the copy; an asynchronous engine
// can replace it behind the same interface.
type TransferRunner interface {
	Run(record func(cb vk.CommandBuffer)) error
	Destroy()
}

// syncTransfer owns a dedicated command pool, one reusable command
// buffer and an unsignaled fence. Run submits one-shot work on the
// graphics queue and waits for the fence without timeout.
type syncTransfer struct {
	ctx    *Context
	pool   vk.CommandPool
	buffer vk.CommandBuffer
	fence  vk.Fence
}

func newSyncTransfer(ctx *Context) (*syncTransfer, error) {
	t := &syncTransfer{ctx: ctx}
	device := ctx.Device.LogicalDevice

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(ctx.Device.GraphicsQueueIndex),
	}
	if res := vk.CreateCommandPool(device, &poolCreateInfo, ctx.Allocator, &t.pool); res != vk.Success {
		err := vkError("vkCreateCommandPool", res)
		core.LogError(err.Error())
		return nil, err
	}

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        t.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(device, &allocInfo, buffers); res != vk.Success {
		err := vkError("vkAllocateCommandBuffers", res)
		core.LogError(err.Error())
		t.Destroy()
		return nil, err
	}
	t.buffer = buffers[0]

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if res := vk.CreateFence(device, &fenceCreateInfo, ctx.Allocator, &t.fence); res != vk.Success {
		err := vkError("vkCreateFence", res)
		core.LogError(err.Error())
		t.Destroy()
		return nil, err
	}

	return t, nil
}

// Run records one-shot work into the transfer command buffer, submits
// it and blocks until the fence signals. The fence and pool are reset
// afterwards so the next Run starts clean.
func (t *syncTransfer) Run(record func(cb vk.CommandBuffer)) error {
	device := t.ctx.Device.LogicalDevice

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(t.buffer, &beginInfo); res != vk.Success {
		err := vkError("vkBeginCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}

	record(t.buffer)

	if res := vk.EndCommandBuffer(t.buffer); res != vk.Success {
		err := vkError("vkEndCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{t.buffer},
	}
	if res := vk.QueueSubmit(t.ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, t.fence); res != vk.Success {
		err := vkError("vkQueueSubmit", res)
		core.LogError(err.Error())
		return err
	}

	// No timeout. Transfers either complete or the device is lost, and
	// a device loss is fatal anyway.
	if res := vk.WaitForFences(device, 1, []vk.Fence{t.fence}, vk.True, vk.MaxUint64); res != vk.Success {
		err := vkError("vkWaitForFences", res)
		core.LogError(err.Error())
		return err
	}

	if res := vk.ResetFences(device, 1, []vk.Fence{t.fence}); res != vk.Success {
		err := vkError("vkResetFences", res)
		core.LogError(err.Error())
		return err
	}
	if res := vk.ResetCommandPool(device, t.pool, 0); res != vk.Success {
		err := vkError("vkResetCommandPool", res)
		core.LogError(err.Error())
		return err
	}

	return nil
}

func (t *syncTransfer) Destroy() {
	device := t.ctx.Device.LogicalDevice
	if t.fence != vk.NullFence {
		vk.DestroyFence(device, t.fence, t.ctx.Allocator)
		t.fence = vk.NullFence
	}
	if t.pool != vk.NullCommandPool {
		// Frees the command buffer with it.
		vk.DestroyCommandPool(device, t.pool, t.ctx.Allocator)
		t.pool = vk.NullCommandPool
		t.buffer = nil
	}
}
