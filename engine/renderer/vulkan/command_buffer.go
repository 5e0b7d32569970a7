package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

type CommandBufferState int

const (
	CommandBufferStateReady CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

// CommandBuffer wraps a primary command buffer with the state it is in,
// so misuse shows up as a state mismatch instead of a validation error.
type CommandBuffer struct {
	Handle vk.CommandBuffer
	State  CommandBufferState
}

func NewCommandBuffer(ctx *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(ctx.Device.LogicalDevice, &allocInfo, buffers); res != vk.Success {
		err := vkError("vkAllocateCommandBuffers", res)
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandBuffer{
		Handle: buffers[0],
		State:  CommandBufferStateReady,
	}, nil
}

func (cb *CommandBuffer) Free(ctx *Context, pool vk.CommandPool) {
	if cb.Handle != nil {
		vk.FreeCommandBuffers(ctx.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{cb.Handle})
		cb.Handle = nil
	}
	cb.State = CommandBufferStateNotAllocated
}

func (cb *CommandBuffer) Begin(singleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		err := vkError("vkBeginCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		err := vkError("vkEndCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

// Reset returns a previously submitted buffer to the ready state. The
// pool must have been created with the reset flag.
func (cb *CommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(cb.Handle, 0); res != vk.Success {
		err := vkError("vkResetCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateReady
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = CommandBufferStateSubmitted
}
