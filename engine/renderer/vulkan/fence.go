package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Fence wraps a VkFence. No signaled-state caching: Wait always asks
// the device, since the CPU cannot know when a submitted frame
// finishes.
type Fence struct {
	Handle vk.Fence
}

func NewFence(ctx *Context, createSignaled bool) (*Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if createSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(ctx.Device.LogicalDevice, &fenceCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		err := vkError("vkCreateFence", res)
		core.LogError(err.Error())
		return nil, err
	}
	return &Fence{Handle: handle}, nil
}

// Wait blocks until the fence signals. Pass vk.MaxUint64 for an
// unbounded wait.
func (f *Fence) Wait(ctx *Context, timeoutNS uint64) error {
	result := vk.WaitForFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNS)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
		return vkError("vkWaitForFences", result)
	default:
		err := vkError("vkWaitForFences", result)
		core.LogError(err.Error())
		return err
	}
}

func (f *Fence) Reset(ctx *Context) error {
	if res := vk.ResetFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		err := vkError("vkResetFences", res)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (f *Fence) Destroy(ctx *Context) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(ctx.Device.LogicalDevice, f.Handle, ctx.Allocator)
		f.Handle = vk.NullFence
	}
}
