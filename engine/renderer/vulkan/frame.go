package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// FrameConfig carries the frame scheduler's budget and pipeline inputs.
type FrameConfig struct {
	FramesInFlight uint32
	PerFrameBytes  vk.DeviceSize
	MaxMaterials   uint32
	VertexSPIRV    []uint32
	FragmentSPIRV  []uint32
	VertexStride   uint32
	Attributes     []vk.VertexInputAttributeDescription
	ClearColor     [4]float32
}

// FrameContext is handed to the record callback while a frame's
// command buffer is inside the render pass.
type FrameContext struct {
	CommandBuffer vk.CommandBuffer
	FrameIndex    uint32
	ImageIndex    uint32
	Extent        vk.Extent2D

	scheduler *FrameScheduler
}

// PipelineLayout exposes the bound pipeline's layout for descriptor
// binds issued by the callback.
func (f *FrameContext) PipelineLayout() vk.PipelineLayout {
	return f.scheduler.Pipeline.Layout
}

// UpdatePerFrame rewrites this frame slot's per-frame uniforms (view
// and projection). The write lands in memory only this slot reads, so
// frames still in flight are untouched. A failed flush is logged and
// the frame continues with the data already in the mapped range.
func (f *FrameContext) UpdatePerFrame(data []byte) error {
	slot := &f.scheduler.slots[f.FrameIndex]
	if err := slot.perFrame.Write(0, data); err != nil {
		return err
	}
	if err := slot.perFrame.Flush(0, vk.DeviceSize(vk.WholeSize)); err != nil {
		core.LogError("per-frame uniform flush failed: %s", err)
	}
	return nil
}

// frameSlot is the per-frame ring entry: one command buffer, the
// sync pair, the in-flight fence and the slot's per-frame uniforms.
type frameSlot struct {
	commands       *CommandBuffer
	imageAvailable vk.Semaphore
	renderDone     vk.Semaphore
	inFlight       *Fence
	perFrame       Buffer
	perFrameSet    vk.DescriptorSet
}

// FrameScheduler drives the acquire, record, submit, present cycle
// across N frame slots and owns the presentation chain: swapchain,
// render pass, pipeline and descriptor machinery.
type FrameScheduler struct {
	ctx    *Context
	alloc  *Allocator
	config FrameConfig

	Swapchain  *Swapchain
	RenderPass *RenderPass
	Pipeline   *Pipeline
	Layouts    *DescriptorLayouts
	Pool       vk.DescriptorPool

	slots        []frameSlot
	currentFrame uint32
}

func nextFrameIndex(current, framesInFlight uint32) uint32 {
	return (current + 1) % framesInFlight
}

func NewFrameScheduler(ctx *Context, alloc *Allocator, config FrameConfig) (*FrameScheduler, error) {
	if config.FramesInFlight == 0 {
		return nil, fmt.Errorf("frames in flight must be at least 1")
	}
	s := &FrameScheduler{
		ctx:    ctx,
		alloc:  alloc,
		config: config,
	}

	swapchain, err := NewSwapchain(ctx, alloc, ctx.FramebufferWidth, ctx.FramebufferHeight, vk.NullSwapchain)
	if err != nil {
		return nil, err
	}
	s.Swapchain = swapchain

	renderPass, err := NewRenderPass(ctx, swapchain.ImageFormat.Format, config.ClearColor)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.RenderPass = renderPass

	if err := swapchain.CreateFramebuffers(ctx, renderPass.Handle); err != nil {
		s.Destroy()
		return nil, err
	}

	layouts, err := NewDescriptorLayouts(ctx)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.Layouts = layouts

	pool, err := NewDescriptorPool(ctx, config.FramesInFlight, config.MaxMaterials)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.Pool = pool

	pipeline, err := NewGraphicsPipeline(ctx, renderPass, PipelineConfig{
		VertexSPIRV:   config.VertexSPIRV,
		FragmentSPIRV: config.FragmentSPIRV,
		VertexStride:  config.VertexStride,
		Attributes:    config.Attributes,
		SetLayouts:    layouts.All(),
	})
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.Pipeline = pipeline

	if err := s.createSlots(); err != nil {
		s.Destroy()
		return nil, err
	}

	core.LogInfo("frame scheduler ready with %d frames in flight", config.FramesInFlight)
	return s, nil
}

func (s *FrameScheduler) createSlots() error {
	s.slots = make([]frameSlot, s.config.FramesInFlight)
	for i := range s.slots {
		slot := &s.slots[i]

		commands, err := NewCommandBuffer(s.ctx, s.ctx.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		slot.commands = commands

		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(s.ctx.Device.LogicalDevice, &semaphoreCreateInfo, s.ctx.Allocator, &slot.imageAvailable); res != vk.Success {
			return vkError("vkCreateSemaphore", res)
		}
		if res := vk.CreateSemaphore(s.ctx.Device.LogicalDevice, &semaphoreCreateInfo, s.ctx.Allocator, &slot.renderDone); res != vk.Success {
			return vkError("vkCreateSemaphore", res)
		}

		// Created signaled so the first wait on a never-submitted
		// frame does not deadlock.
		fence, err := NewFence(s.ctx, true)
		if err != nil {
			return err
		}
		slot.inFlight = fence

		perFrame, err := s.alloc.CreateSharedBuffer(vk.BufferUsageUniformBufferBit, s.config.PerFrameBytes)
		if err != nil {
			return err
		}
		slot.perFrame = perFrame.Move()

		set, err := AllocateDescriptorSet(s.ctx, s.Pool, s.Layouts.PerFrame)
		if err != nil {
			return err
		}
		slot.perFrameSet = set
		WriteBufferDescriptor(s.ctx, set, vk.DescriptorTypeUniformBuffer, slot.perFrame.Handle(), s.config.PerFrameBytes)
	}
	return nil
}

func (s *FrameScheduler) FramesInFlight() uint32 {
	return s.config.FramesInFlight
}

func (s *FrameScheduler) CurrentFrame() uint32 {
	return s.currentFrame
}

// Resized records the new drawable size. The swapchain itself is only
// rebuilt when acquire or present report it out of date.
func (s *FrameScheduler) Resized(width, height uint32) {
	s.ctx.FramebufferWidth = width
	s.ctx.FramebufferHeight = height
}

// DrawFrame runs one full frame: wait for the slot's fence, acquire an
// image, record through the callback inside the render pass, submit
// and present. Out-of-date swapchains are rebuilt and the frame is
// dropped without error; anything else that fails is fatal to the
// render loop.
func (s *FrameScheduler) DrawFrame(record func(*FrameContext) error) error {
	slot := &s.slots[s.currentFrame]

	// The slot's previous submission must be done before its command
	// buffer and uniform slots can be reused. Unbounded wait.
	if err := slot.inFlight.Wait(s.ctx, vk.MaxUint64); err != nil {
		return fmt.Errorf("frame fence wait: %w", err)
	}

	imageIndex, err := s.Swapchain.AcquireNextImage(s.ctx, vk.MaxUint64, slot.imageAvailable)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			// Nothing was submitted, the fence stays signaled for the
			// retry after the rebuild.
			return s.rebuildSwapchain()
		}
		return err
	}

	// Only now is the fence reset; resetting before a failed acquire
	// would deadlock the next wait.
	if err := slot.inFlight.Reset(s.ctx); err != nil {
		return err
	}

	if err := slot.commands.Reset(); err != nil {
		return err
	}
	if err := slot.commands.Begin(false); err != nil {
		return err
	}

	cb := slot.commands.Handle
	extent := s.Swapchain.Extent
	s.RenderPass.Begin(cb, s.Swapchain.Framebuffers[imageIndex], extent)
	s.Pipeline.Bind(cb)

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
	scissor := vk.Rect2D{Extent: extent}
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})

	vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, s.Pipeline.Layout,
		0, 1, []vk.DescriptorSet{slot.perFrameSet}, 0, nil)

	frameContext := &FrameContext{
		CommandBuffer: cb,
		FrameIndex:    s.currentFrame,
		ImageIndex:    imageIndex,
		Extent:        extent,
		scheduler:     s,
	}
	recordErr := record(frameContext)

	s.RenderPass.End(cb)
	if err := slot.commands.End(); err != nil {
		return err
	}
	if recordErr != nil {
		return fmt.Errorf("frame record callback: %w", recordErr)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.imageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.renderDone},
	}
	if res := vk.QueueSubmit(s.ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, slot.inFlight.Handle); res != vk.Success {
		err := vkError("vkQueueSubmit", res)
		core.LogError(err.Error())
		return err
	}
	slot.commands.UpdateSubmitted()

	err = s.Swapchain.Present(s.ctx, slot.renderDone, imageIndex)
	s.currentFrame = nextFrameIndex(s.currentFrame, s.config.FramesInFlight)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return s.rebuildSwapchain()
		}
		return err
	}

	return nil
}

// rebuildSwapchain recreates the presentation chain at the current
// framebuffer size, handing the retired swapchain to the driver as a
// recycling hint. The pipeline survives since viewport and scissor are
// dynamic.
func (s *FrameScheduler) rebuildSwapchain() error {
	s.ctx.Device.WaitIdle()

	retired := s.Swapchain.Retire(s.ctx)
	swapchain, err := NewSwapchain(s.ctx, s.alloc, s.ctx.FramebufferWidth, s.ctx.FramebufferHeight, retired)
	if retired != vk.NullSwapchain {
		vk.DestroySwapchain(s.ctx.Device.LogicalDevice, retired, s.ctx.Allocator)
	}
	if err != nil {
		return fmt.Errorf("swapchain rebuild: %w", err)
	}
	s.Swapchain = swapchain

	if err := s.Swapchain.CreateFramebuffers(s.ctx, s.RenderPass.Handle); err != nil {
		return fmt.Errorf("swapchain rebuild: %w", err)
	}

	core.LogDebug("swapchain rebuilt at %dx%d", s.Swapchain.Extent.Width, s.Swapchain.Extent.Height)
	return nil
}

// WaitIdle blocks until the device finished all in-flight frames.
func (s *FrameScheduler) WaitIdle() {
	s.ctx.Device.WaitIdle()
}

func (s *FrameScheduler) Destroy() {
	s.WaitIdle()

	for i := range s.slots {
		slot := &s.slots[i]
		slot.perFrame.Destroy()
		if slot.inFlight != nil {
			slot.inFlight.Destroy(s.ctx)
		}
		if slot.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(s.ctx.Device.LogicalDevice, slot.imageAvailable, s.ctx.Allocator)
			slot.imageAvailable = vk.NullSemaphore
		}
		if slot.renderDone != vk.NullSemaphore {
			vk.DestroySemaphore(s.ctx.Device.LogicalDevice, slot.renderDone, s.ctx.Allocator)
			slot.renderDone = vk.NullSemaphore
		}
		if slot.commands != nil {
			slot.commands.Free(s.ctx, s.ctx.Device.GraphicsCommandPool)
		}
	}
	s.slots = nil

	if s.Pipeline != nil {
		s.Pipeline.Destroy(s.ctx)
		s.Pipeline = nil
	}
	if s.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(s.ctx.Device.LogicalDevice, s.Pool, s.ctx.Allocator)
		s.Pool = vk.NullDescriptorPool
	}
	if s.Layouts != nil {
		s.Layouts.Destroy(s.ctx)
		s.Layouts = nil
	}
	if s.RenderPass != nil {
		s.RenderPass.Destroy(s.ctx)
		s.RenderPass = nil
	}
	if s.Swapchain != nil {
		s.Swapchain.Destroy(s.ctx)
		s.Swapchain = nil
	}
}
