package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

// Vertex matches the pipeline's vertex input: position, normal, uv,
// tightly packed at 32 bytes.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// VertexStride is the binding stride for the Vertex layout.
const VertexStride = uint32(unsafe.Sizeof(Vertex{}))

// VertexAttributes describes the Vertex fields for pipeline creation.
func VertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
	}
}

// Geometry is CPU-side mesh data ready for upload.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint16
}

// VertexBytes reinterprets the vertex slice as raw bytes for upload.
func (g *Geometry) VertexBytes() []byte {
	if len(g.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Vertices[0])), len(g.Vertices)*int(VertexStride))
}

// IndexBytes reinterprets the index slice as raw bytes for upload.
func (g *Geometry) IndexBytes() []byte {
	if len(g.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Indices[0])), len(g.Indices)*2)
}

// CubeGeometry returns a unit cube with per-face normals and uvs,
// four vertices and two triangles per face.
func CubeGeometry() Geometry {
	return Geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{1, 1, -1}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{-1, 1, -1}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-1, 1, 1}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{1, 1, 1}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{0, 1}},

			{Position: mgl32.Vec3{1, -1, 1}, Normal: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{1, 1, 1}, Normal: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-1, 1, 1}, Normal: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-1, -1, 1}, Normal: mgl32.Vec3{0, 0, 1}, UV: mgl32.Vec2{0, 1}},

			{Position: mgl32.Vec3{-1, -1, 1}, Normal: mgl32.Vec3{-1, 0, 0}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{-1, 1, 1}, Normal: mgl32.Vec3{-1, 0, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-1, 1, -1}, Normal: mgl32.Vec3{-1, 0, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-1, -1, -1}, Normal: mgl32.Vec3{-1, 0, 0}, UV: mgl32.Vec2{0, 1}},

			{Position: mgl32.Vec3{-1, -1, -1}, Normal: mgl32.Vec3{0, -1, 0}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{1, -1, -1}, Normal: mgl32.Vec3{0, -1, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{1, -1, 1}, Normal: mgl32.Vec3{0, -1, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-1, -1, 1}, Normal: mgl32.Vec3{0, -1, 0}, UV: mgl32.Vec2{0, 1}},

			{Position: mgl32.Vec3{1, -1, -1}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{1, 1, -1}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{1, 1, 1}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{1, -1, 1}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 1}},

			{Position: mgl32.Vec3{-1, -1, -1}, Normal: mgl32.Vec3{0, 0, -1}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{-1, 1, -1}, Normal: mgl32.Vec3{0, 0, -1}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{1, 1, -1}, Normal: mgl32.Vec3{0, 0, -1}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{1, -1, -1}, Normal: mgl32.Vec3{0, 0, -1}, UV: mgl32.Vec2{0, 1}},
		},
		Indices: []uint16{
			0, 1, 2, 0, 2, 3,
			4, 5, 6, 4, 6, 7,
			8, 9, 10, 8, 10, 11,
			12, 13, 14, 12, 14, 15,
			16, 17, 18, 16, 18, 19,
			20, 21, 22, 20, 22, 23,
		},
	}
}

// PlaneGeometry returns a unit quad in the XY plane as two triangles.
func PlaneGeometry() Geometry {
	return Geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-1, 1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{1, 1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{1, -1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-1, 1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{1, -1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-1, -1, 0}, Normal: mgl32.Vec3{1, 0, 0}, UV: mgl32.Vec2{0, 0}},
		},
		Indices: []uint16{0, 1, 2, 3, 4, 5},
	}
}
