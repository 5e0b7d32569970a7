package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// DescriptorLayouts holds the three set layouts the pipeline binds, in
// set order: 0 per-frame uniforms (vertex), 1 material sampler
// (fragment), 2 per-object dynamic uniforms (vertex).
type DescriptorLayouts struct {
	PerFrame  vk.DescriptorSetLayout
	Material  vk.DescriptorSetLayout
	PerObject vk.DescriptorSetLayout
}

func NewDescriptorLayouts(ctx *Context) (*DescriptorLayouts, error) {
	layouts := &DescriptorLayouts{}

	perFrame, err := createSetLayout(ctx, vk.DescriptorTypeUniformBuffer, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	layouts.PerFrame = perFrame

	material, err := createSetLayout(ctx, vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFragmentBit)
	if err != nil {
		layouts.Destroy(ctx)
		return nil, err
	}
	layouts.Material = material

	perObject, err := createSetLayout(ctx, vk.DescriptorTypeUniformBufferDynamic, vk.ShaderStageVertexBit)
	if err != nil {
		layouts.Destroy(ctx)
		return nil, err
	}
	layouts.PerObject = perObject

	return layouts, nil
}

// All returns the layouts in pipeline set order.
func (l *DescriptorLayouts) All() []vk.DescriptorSetLayout {
	return []vk.DescriptorSetLayout{l.PerFrame, l.Material, l.PerObject}
}

func (l *DescriptorLayouts) Destroy(ctx *Context) {
	device := ctx.Device.LogicalDevice
	for _, layout := range []*vk.DescriptorSetLayout{&l.PerFrame, &l.Material, &l.PerObject} {
		if *layout != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(device, *layout, ctx.Allocator)
			*layout = vk.NullDescriptorSetLayout
		}
	}
}

func createSetLayout(ctx *Context, descriptorType vk.DescriptorType, stage vk.ShaderStageFlagBits) (vk.DescriptorSetLayout, error) {
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  descriptorType,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(stage),
	}
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &layoutCreateInfo, ctx.Allocator, &layout); res != vk.Success {
		err := vkError("vkCreateDescriptorSetLayout", res)
		core.LogError(err.Error())
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

// NewDescriptorPool sizes one pool for everything the renderer
// allocates: one per-frame set per frame slot, one set per material
// and the single shared per-object dynamic set.
func NewDescriptorPool(ctx *Context, framesInFlight, maxMaterials uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: framesInFlight},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxMaterials},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 1},
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       framesInFlight + maxMaterials + 1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(ctx.Device.LogicalDevice, &poolCreateInfo, ctx.Allocator, &pool); res != vk.Success {
		err := vkError("vkCreateDescriptorPool", res)
		core.LogError(err.Error())
		return vk.NullDescriptorPool, err
	}
	return pool, nil
}

func AllocateDescriptorSet(ctx *Context, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(ctx.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		err := vkError("vkAllocateDescriptorSets", res)
		core.LogError(err.Error())
		return vk.NullDescriptorSet, err
	}
	return sets[0], nil
}

// WriteBufferDescriptor points a uniform descriptor at a buffer range.
// rangeSize is the bound range, which for dynamic uniforms is the
// per-slot size rather than the whole buffer.
func WriteBufferDescriptor(ctx *Context, set vk.DescriptorSet, descriptorType vk.DescriptorType, buffer vk.Buffer, rangeSize vk.DeviceSize) {
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer,
		Offset: 0,
		Range:  rangeSize,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// WriteImageDescriptor points a combined image sampler descriptor at a
// shader-read-only image view.
func WriteImageDescriptor(ctx *Context, set vk.DescriptorSet, view vk.ImageView, sampler vk.Sampler) {
	imageInfo := vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
