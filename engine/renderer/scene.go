package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/renderer/vulkan"
)

// StaticMesh is uploaded geometry: device-local vertex and index
// buffers plus the counts needed to draw them.
type StaticMesh struct {
	vertexBuffer vulkan.Buffer
	indexBuffer  vulkan.Buffer
	vertexCount  uint32
	indexCount   uint32
}

func (m *StaticMesh) IndexCount() uint32 {
	return m.indexCount
}

func (m *StaticMesh) destroy() {
	m.vertexBuffer.Destroy()
	m.indexBuffer.Destroy()
}

// Material is a sampled texture bound as descriptor set 1. Each
// material owns its image, view, sampler and descriptor set.
type Material struct {
	ID      uuid.UUID
	Name    string
	texture vulkan.Image
	view    vulkan.ImageView
	sampler vk.Sampler
	set     vk.DescriptorSet
}

func (m *Material) destroy(ctx *vulkan.Context, pool vk.DescriptorPool) {
	if m.set != vk.NullDescriptorSet {
		vk.FreeDescriptorSets(ctx.Device.LogicalDevice, pool, 1, &m.set)
		m.set = vk.NullDescriptorSet
	}
	if m.sampler != vk.NullSampler {
		vk.DestroySampler(ctx.Device.LogicalDevice, m.sampler, ctx.Allocator)
		m.sampler = vk.NullSampler
	}
	m.view.Destroy()
	m.texture.Destroy()
}

// SceneObject pairs a mesh and a material with a transform. The world
// matrix is recomputed on every transform change, so reading it is
// always just a copy.
type SceneObject struct {
	Mesh     MeshHandle
	Material MaterialHandle

	translation mgl32.Vec3
	rotation    mgl32.Quat
	scale       mgl32.Vec3
	world       mgl32.Mat4
}

func newSceneObject(mesh MeshHandle, material MaterialHandle) SceneObject {
	o := SceneObject{
		Mesh:     mesh,
		Material: material,
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
	}
	o.recompute()
	return o
}

func (o *SceneObject) recompute() {
	translate := mgl32.Translate3D(o.translation.X(), o.translation.Y(), o.translation.Z())
	scale := mgl32.Scale3D(o.scale.X(), o.scale.Y(), o.scale.Z())
	o.world = translate.Mul4(o.rotation.Mat4()).Mul4(scale)
}

func (o *SceneObject) SetTranslation(t mgl32.Vec3) {
	o.translation = t
	o.recompute()
}

func (o *SceneObject) SetRotation(r mgl32.Quat) {
	o.rotation = r
	o.recompute()
}

func (o *SceneObject) SetScale(s mgl32.Vec3) {
	o.scale = s
	o.recompute()
}

// SetMesh and SetMaterial swap references only; the transform is
// untouched.
func (o *SceneObject) SetMesh(h MeshHandle)         { o.Mesh = h }
func (o *SceneObject) SetMaterial(h MaterialHandle) { o.Material = h }

func (o *SceneObject) Translation() mgl32.Vec3 { return o.translation }
func (o *SceneObject) Rotation() mgl32.Quat    { return o.rotation }
func (o *SceneObject) Scale() mgl32.Vec3       { return o.scale }

// World returns the cached composed transform.
func (o *SceneObject) World() mgl32.Mat4 {
	return o.world
}

// PerFrameData is the set 0 uniform block: camera view and projection.
type PerFrameData struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// Bytes reinterprets the struct for the uniform write.
func (d *PerFrameData) Bytes() []byte {
	return structBytes(d)
}
