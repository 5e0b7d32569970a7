package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSceneObjectStartsAtIdentity(t *testing.T) {
	obj := newSceneObject(MeshHandle{}, MaterialHandle{})
	assert.Equal(t, mgl32.Ident4(), obj.World())
}

func TestSceneObjectWorldTracksTransform(t *testing.T) {
	obj := newSceneObject(MeshHandle{}, MaterialHandle{})

	obj.SetTranslation(mgl32.Vec3{1, 2, 3})
	obj.SetScale(mgl32.Vec3{2, 2, 2})

	expected := mgl32.Translate3D(1, 2, 3).
		Mul4(mgl32.QuatIdent().Mat4()).
		Mul4(mgl32.Scale3D(2, 2, 2))
	assert.Equal(t, expected, obj.World())

	// Each setter recomputes immediately, no deferred dirty pass.
	rot := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	obj.SetRotation(rot)
	expected = mgl32.Translate3D(1, 2, 3).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.Equal(t, expected, obj.World())
}

func TestSceneObjectTransformOrder(t *testing.T) {
	// Scale applies before rotation before translation: a point on the
	// +X axis, scaled by 2 and rotated 90 degrees around Z, lands on +Y
	// before the translation moves it.
	obj := newSceneObject(MeshHandle{}, MaterialHandle{})
	obj.SetScale(mgl32.Vec3{2, 2, 2})
	obj.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	obj.SetTranslation(mgl32.Vec3{10, 0, 0})

	p := obj.World().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 10.0, p.X(), 1e-5)
	assert.InDelta(t, 2.0, p.Y(), 1e-5)
	assert.InDelta(t, 0.0, p.Z(), 1e-5)
}
