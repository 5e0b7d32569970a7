package renderer

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/assets"
	"github.com/fennelvane/ember/engine/containers"
	"github.com/fennelvane/ember/engine/core"
	"github.com/fennelvane/ember/engine/renderer/vulkan"
)

// Handle aliases keep call sites readable; they all address slot
// tables owned by the Renderer.
type (
	MeshHandle     = containers.Handle
	MaterialHandle = containers.Handle
	ObjectHandle   = containers.Handle
)

// Options carries everything the renderer needs from the application:
// budgets from config, compiled shaders and the platform's surface
// hookup.
type Options struct {
	AppName        string
	Debug          bool
	FramesInFlight uint32
	MaxObjects     uint32
	MaxMeshes      uint32
	MaxMaterials   uint32
	StagingBytes   uint64
	ClearColor     [4]float32

	VertexSPIRV   []uint32
	FragmentSPIRV []uint32

	Width  uint32
	Height uint32

	PlatformExtensions []string
	CreateSurface      func(instance vk.Instance) (vk.Surface, error)
}

// Renderer owns the GPU resources of the scene: meshes, materials and
// objects in slot tables, the per-object dynamic uniform buffer and
// the frame scheduler that draws them. All methods belong to the
// control thread.
type Renderer struct {
	ctx    *vulkan.Context
	alloc  *vulkan.Allocator
	frames *vulkan.FrameScheduler

	meshes    *containers.SlotTable[StaticMesh]
	materials *containers.SlotTable[Material]
	objects   *containers.SlotTable[SceneObject]

	objectUBO  *vulkan.DynamicUniformBuffer
	objectSet  vk.DescriptorSet
	maxObjects uint32
}

func New(opts Options) (*Renderer, error) {
	ctx, err := vulkan.NewContext(opts.AppName, opts.PlatformExtensions, opts.Debug)
	if err != nil {
		return nil, err
	}
	ctx.FramebufferWidth = opts.Width
	ctx.FramebufferHeight = opts.Height

	surface, err := opts.CreateSurface(ctx.Instance)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	ctx.Surface = surface

	if err := vulkan.DeviceCreate(ctx); err != nil {
		ctx.Destroy()
		return nil, err
	}

	alloc, err := vulkan.NewAllocator(ctx, opts.StagingBytes)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}

	r := &Renderer{
		ctx:        ctx,
		alloc:      alloc,
		meshes:     containers.NewSlotTable[StaticMesh](opts.MaxMeshes),
		materials:  containers.NewSlotTable[Material](opts.MaxMaterials),
		objects:    containers.NewSlotTable[SceneObject](opts.MaxObjects),
		maxObjects: opts.MaxObjects,
	}

	frames, err := vulkan.NewFrameScheduler(ctx, alloc, vulkan.FrameConfig{
		FramesInFlight: opts.FramesInFlight,
		PerFrameBytes:  vk.DeviceSize(unsafe.Sizeof(PerFrameData{})),
		MaxMaterials:   opts.MaxMaterials,
		VertexSPIRV:    opts.VertexSPIRV,
		FragmentSPIRV:  opts.FragmentSPIRV,
		VertexStride:   VertexStride,
		Attributes:     VertexAttributes(),
		ClearColor:     opts.ClearColor,
	})
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	r.frames = frames

	// One dynamic uniform slot per object per frame slot, so a frame
	// still in flight never sees the next frame's transforms.
	objectUBO, err := vulkan.NewDynamicUniformBuffer(alloc,
		vk.DeviceSize(unsafe.Sizeof(mgl32.Mat4{})), opts.FramesInFlight*opts.MaxObjects)
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	r.objectUBO = objectUBO

	objectSet, err := vulkan.AllocateDescriptorSet(ctx, frames.Pool, frames.Layouts.PerObject)
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	r.objectSet = objectSet
	vulkan.WriteBufferDescriptor(ctx, objectSet, vk.DescriptorTypeUniformBufferDynamic,
		objectUBO.Buffer().Handle(), objectUBO.AlignedSize())

	return r, nil
}

// CreateStaticMesh uploads geometry to device-local buffers through
// the staging path and registers it in the mesh table.
func (r *Renderer) CreateStaticMesh(geometry Geometry) (MeshHandle, error) {
	if len(geometry.Vertices) == 0 || len(geometry.Indices) == 0 {
		return containers.NilHandle, fmt.Errorf("mesh requires vertices and indices")
	}

	vertexBuffer, err := r.alloc.CreateBuffer(vk.BufferUsageVertexBufferBit, geometry.VertexBytes(), true)
	if err != nil {
		return containers.NilHandle, err
	}
	indexBuffer, err := r.alloc.CreateBuffer(vk.BufferUsageIndexBufferBit, geometry.IndexBytes(), true)
	if err != nil {
		vertexBuffer.Destroy()
		return containers.NilHandle, err
	}

	mesh := StaticMesh{
		vertexBuffer: vertexBuffer.Move(),
		indexBuffer:  indexBuffer.Move(),
		vertexCount:  uint32(len(geometry.Vertices)),
		indexCount:   uint32(len(geometry.Indices)),
	}
	handle, err := r.meshes.Insert(mesh)
	if err != nil {
		mesh.destroy()
		return containers.NilHandle, err
	}
	core.LogDebug("mesh %d uploaded: %d vertices, %d indices", handle.Index(), mesh.vertexCount, mesh.indexCount)
	return handle, nil
}

// DestroyStaticMesh waits for in-flight frames, then releases the
// mesh's buffers. Outstanding handles go stale.
func (r *Renderer) DestroyStaticMesh(h MeshHandle) bool {
	mesh, ok := r.meshes.Remove(h)
	if !ok {
		return false
	}
	r.frames.WaitIdle()
	mesh.destroy()
	return true
}

// CreateMaterial uploads an RGBA bitmap, builds a sampler with the
// given filtering and wrap mode and registers the material with its
// descriptor set.
func (r *Renderer) CreateMaterial(name string, bitmap *assets.Bitmap, filter vk.Filter, addressMode vk.SamplerAddressMode) (MaterialHandle, error) {
	texture, err := r.alloc.CreateImageRGBA(bitmap.Width, bitmap.Height, bitmap.Pixels)
	if err != nil {
		return containers.NilHandle, err
	}

	view, err := texture.CreateView(vk.ImageAspectColorBit)
	if err != nil {
		texture.Destroy()
		return containers.NilHandle, err
	}

	sampler, err := r.createSampler(filter, addressMode)
	if err != nil {
		view.Destroy()
		texture.Destroy()
		return containers.NilHandle, err
	}

	set, err := vulkan.AllocateDescriptorSet(r.ctx, r.frames.Pool, r.frames.Layouts.Material)
	if err != nil {
		vk.DestroySampler(r.ctx.Device.LogicalDevice, sampler, r.ctx.Allocator)
		view.Destroy()
		texture.Destroy()
		return containers.NilHandle, err
	}
	vulkan.WriteImageDescriptor(r.ctx, set, view.Handle(), sampler)

	material := Material{
		ID:      uuid.New(),
		Name:    name,
		texture: texture.Move(),
		view:    view.Move(),
		sampler: sampler,
		set:     set,
	}
	handle, err := r.materials.Insert(material)
	if err != nil {
		material.destroy(r.ctx, r.frames.Pool)
		return containers.NilHandle, err
	}
	core.LogDebug("material %q (%s) created at %dx%d", name, material.ID, bitmap.Width, bitmap.Height)
	return handle, nil
}

func (r *Renderer) createSampler(filter vk.Filter, addressMode vk.SamplerAddressMode) (vk.Sampler, error) {
	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter,
		MinFilter:        filter,
		AddressModeU:     addressMode,
		AddressModeV:     addressMode,
		AddressModeW:     addressMode,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    16,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
		MipmapMode:       vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(r.ctx.Device.LogicalDevice, &samplerCreateInfo, r.ctx.Allocator, &sampler); res != vk.Success {
		err := fmt.Errorf("vkCreateSampler failed")
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return sampler, nil
}

// DestroyMaterial waits for in-flight frames, then releases the
// material's texture, sampler and descriptor set.
func (r *Renderer) DestroyMaterial(h MaterialHandle) bool {
	material, ok := r.materials.Remove(h)
	if !ok {
		return false
	}
	r.frames.WaitIdle()
	material.destroy(r.ctx, r.frames.Pool)
	return true
}

// CreateSceneObject places a mesh/material pairing into the scene at
// the identity transform.
func (r *Renderer) CreateSceneObject(mesh MeshHandle, material MaterialHandle) (ObjectHandle, error) {
	if !r.meshes.Valid(mesh) {
		return containers.NilHandle, fmt.Errorf("scene object: %w", core.ErrInvalidHandle)
	}
	if !r.materials.Valid(material) {
		return containers.NilHandle, fmt.Errorf("scene object: %w", core.ErrInvalidHandle)
	}
	return r.objects.Insert(newSceneObject(mesh, material))
}

// DestroySceneObject removes the object from the scene. The mesh and
// material it referenced are untouched.
func (r *Renderer) DestroySceneObject(h ObjectHandle) bool {
	_, ok := r.objects.Remove(h)
	return ok
}

// WithObject runs fn against a live scene object, typically to update
// its transform. Returns false for stale or empty handles.
func (r *Renderer) WithObject(h ObjectHandle, fn func(*SceneObject)) bool {
	return r.objects.With(h, fn)
}

func (r *Renderer) ObjectCount() int {
	return r.objects.Len()
}

// Resized records the new drawable size for the next swapchain rebuild.
func (r *Renderer) Resized(width, height uint32) {
	r.frames.Resized(width, height)
}

// DrawFrame renders one frame of the scene under the given camera.
func (r *Renderer) DrawFrame(camera PerFrameData) error {
	return r.frames.DrawFrame(func(fc *vulkan.FrameContext) error {
		if err := fc.UpdatePerFrame(camera.Bytes()); err != nil {
			return err
		}
		r.drawObjects(fc)
		return nil
	})
}

// AspectRatio reports the current swapchain aspect for projection.
func (r *Renderer) AspectRatio() float32 {
	extent := r.frames.Swapchain.Extent
	if extent.Height == 0 {
		return 1
	}
	return float32(extent.Width) / float32(extent.Height)
}

type drawItem struct {
	material MaterialHandle
	mesh     *StaticMesh
	set      vk.DescriptorSet
	world    mgl32.Mat4
}

// sortDrawQueue orders items by material so descriptor set 1 is
// rebound once per batch instead of once per object. The sort is
// stable to keep same-material objects in creation order.
func sortDrawQueue(items []drawItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].material.Index() < items[j].material.Index()
	})
}

func (r *Renderer) drawObjects(fc *vulkan.FrameContext) {
	items := make([]drawItem, 0, r.objects.Len())
	r.objects.Range(func(_ ObjectHandle, obj *SceneObject) bool {
		item := drawItem{material: obj.Material, world: obj.World()}
		if !r.meshes.With(obj.Mesh, func(m *StaticMesh) { item.mesh = m }) {
			core.LogWarn("skipping object with stale mesh handle")
			return true
		}
		if !r.materials.With(obj.Material, func(m *Material) { item.set = m.set }) {
			core.LogWarn("skipping object with stale material handle")
			return true
		}
		items = append(items, item)
		return true
	})
	sortDrawQueue(items)

	cb := fc.CommandBuffer
	layout := fc.PipelineLayout()
	boundMaterial := containers.NilHandle

	for i := range items {
		item := &items[i]
		if item.material != boundMaterial {
			vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, layout,
				1, 1, []vk.DescriptorSet{item.set}, 0, nil)
			boundMaterial = item.material
		}

		// Slot addressing is injective across frames and objects, so
		// concurrent frames never share a uniform slot.
		slot := r.maxObjects*fc.FrameIndex + uint32(i)
		world := item.world
		if err := r.objectUBO.WriteSlot(slot, structBytes(&world), false); err != nil {
			core.LogError("per-object uniform write failed: %s", err)
			continue
		}

		vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, layout,
			2, 1, []vk.DescriptorSet{r.objectSet},
			1, []uint32{uint32(r.objectUBO.SlotOffset(slot))})

		vk.CmdBindVertexBuffers(cb, 0, 1,
			[]vk.Buffer{item.mesh.vertexBuffer.Handle()}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(cb, item.mesh.indexBuffer.Handle(), 0, vk.IndexTypeUint16)
		vk.CmdDrawIndexed(cb, item.mesh.indexCount, 1, 0, 0, 0)
	}

	// All slot writes for this frame flush together. A failed flush
	// leaves stale transforms for one frame; keep drawing.
	if err := r.objectUBO.Flush(); err != nil {
		core.LogError("per-object uniform flush failed: %s", err)
	}
}

// Shutdown releases every GPU resource. The renderer is unusable
// afterwards.
func (r *Renderer) Shutdown() {
	if r.ctx == nil {
		return
	}
	if r.ctx.Device != nil {
		r.ctx.Device.WaitIdle()
	}

	r.objects = nil
	if r.materials != nil {
		r.materials.Range(func(h MaterialHandle, m *Material) bool {
			m.destroy(r.ctx, r.frames.Pool)
			return true
		})
		r.materials = nil
	}
	if r.meshes != nil {
		r.meshes.Range(func(h MeshHandle, m *StaticMesh) bool {
			m.destroy()
			return true
		})
		r.meshes = nil
	}
	if r.objectUBO != nil {
		r.objectUBO.Destroy()
		r.objectUBO = nil
	}
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	if r.alloc != nil {
		r.alloc.Destroy()
		r.alloc = nil
	}
	r.ctx.Destroy()
	r.ctx = nil
	core.LogInfo("renderer shut down")
}

func structBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}
