package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Pipeline is the one graphics pipeline the renderer draws with:
// position/normal/uv vertex input, depth test LESS, no culling,
// viewport and scissor dynamic so swapchain rebuilds never touch it.
type Pipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// PipelineConfig carries everything pipeline creation needs from the
// outside: compiled shader words, the vertex layout and the descriptor
// set layouts in set order.
type PipelineConfig struct {
	VertexSPIRV   []uint32
	FragmentSPIRV []uint32
	VertexStride  uint32
	Attributes    []vk.VertexInputAttributeDescription
	SetLayouts    []vk.DescriptorSetLayout
}

func NewGraphicsPipeline(ctx *Context, renderPass *RenderPass, config PipelineConfig) (*Pipeline, error) {
	device := ctx.Device.LogicalDevice

	vertModule, err := newShaderModule(ctx, config.VertexSPIRV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(device, vertModule, ctx.Allocator)

	fragModule, err := newShaderModule(ctx, config.FragmentSPIRV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(device, fragModule, ctx.Allocator)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  safeString("main"),
		},
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    config.VertexStride,
		InputRate: vk.VertexInputRateVertex,
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Actual viewport and scissor are set per frame.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLess,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: vk.False,
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(config.SetLayouts)),
		PSetLayouts:    config.SetLayouts,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(device, &pipelineLayoutCreateInfo, ctx.Allocator, &layout); res != vk.Success {
		err := vkError("vkCreatePipelineLayout", res)
		core.LogError(err.Error())
		return nil, err
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderPass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, ctx.Allocator, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(device, layout, ctx.Allocator)
		err := vkError("vkCreateGraphicsPipelines", res)
		core.LogError(err.Error())
		return nil, err
	}

	return &Pipeline{
		Handle: pipelines[0],
		Layout: layout,
	}, nil
}

func newShaderModule(ctx *Context, words []uint32) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words) * 4),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &module); res != vk.Success {
		err := vkError("vkCreateShaderModule", res)
		core.LogError(err.Error())
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (p *Pipeline) Bind(commandBuffer vk.CommandBuffer) {
	vk.CmdBindPipeline(commandBuffer, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *Pipeline) Destroy(ctx *Context) {
	device := ctx.Device.LogicalDevice
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(device, p.Handle, ctx.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.Layout, ctx.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
}
