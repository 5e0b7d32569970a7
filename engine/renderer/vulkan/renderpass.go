package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// RenderPass is the single color+depth pass every frame renders
// through. The color attachment is cleared to ClearColor and ends in
// present layout; the depth attachment clears to 1.0 and is not stored.
type RenderPass struct {
	Handle     vk.RenderPass
	ClearColor [4]float32
	ClearDepth float32
}

func NewRenderPass(ctx *Context, colorFormat vk.Format, clearColor [4]float32) (*RenderPass, error) {
	rp := &RenderPass{
		ClearColor: clearColor,
		ClearDepth: 1.0,
	}

	colorAttachment := vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	depthAttachment := vk.AttachmentDescription{
		Format:         ctx.Device.DepthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachmentReference := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorAttachmentReference,
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(ctx.Device.LogicalDevice, &renderpassCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		err := vkError("vkCreateRenderPass", res)
		core.LogError(err.Error())
		return nil, err
	}
	rp.Handle = handle
	return rp, nil
}

func (rp *RenderPass) Begin(commandBuffer vk.CommandBuffer, framebuffer vk.Framebuffer, extent vk.Extent2D) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(rp.ClearColor[:])
	clearValues[1].SetDepthStencil(rp.ClearDepth, 0)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 2,
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer, &beginInfo, vk.SubpassContentsInline)
}

func (rp *RenderPass) End(commandBuffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer)
}

func (rp *RenderPass) Destroy(ctx *Context) {
	if rp.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(ctx.Device.LogicalDevice, rp.Handle, ctx.Allocator)
		rp.Handle = vk.NullRenderPass
	}
}
