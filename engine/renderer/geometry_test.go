package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(32), VertexStride)

	attrs := VertexAttributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, uint32(0), attrs[0].Offset)
	assert.Equal(t, uint32(12), attrs[1].Offset)
	assert.Equal(t, uint32(24), attrs[2].Offset)
}

func TestCubeGeometry(t *testing.T) {
	cube := CubeGeometry()
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)

	for _, idx := range cube.Indices {
		assert.Less(t, int(idx), len(cube.Vertices))
	}

	// Face normals are unit axis vectors.
	for _, v := range cube.Vertices {
		assert.InDelta(t, 1.0, float64(v.Normal.Len()), 1e-6)
	}
}

func TestGeometryBytes(t *testing.T) {
	plane := PlaneGeometry()

	vb := plane.VertexBytes()
	require.Len(t, vb, len(plane.Vertices)*int(VertexStride))

	// First vertex position starts the byte stream.
	x := math.Float32frombits(binary.LittleEndian.Uint32(vb[0:4]))
	assert.Equal(t, plane.Vertices[0].Position.X(), x)

	ib := plane.IndexBytes()
	require.Len(t, ib, len(plane.Indices)*2)
	assert.Equal(t, plane.Indices[1], binary.LittleEndian.Uint16(ib[2:4]))

	empty := Geometry{}
	assert.Nil(t, empty.VertexBytes())
	assert.Nil(t, empty.IndexBytes())
}
