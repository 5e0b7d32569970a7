package testbed

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine"
	"github.com/fennelvane/ember/engine/assets"
	"github.com/fennelvane/ember/engine/config"
	"github.com/fennelvane/ember/engine/core"
	"github.com/fennelvane/ember/engine/renderer"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	renderer *renderer.Renderer

	width  uint32
	height uint32

	cubeMesh renderer.MeshHandle
	cubes    []renderer.ObjectHandle
	spin     float64
}

func NewTestGame(cfg *config.Config) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.ApplicationConfigFrom(cfg),
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnOnAssetChange = tg.OnAssetChange
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize(r *renderer.Renderer) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)
	state.renderer = r

	mesh, err := r.CreateStaticMesh(renderer.CubeGeometry())
	if err != nil {
		return err
	}
	state.cubeMesh = mesh

	stone, err := r.CreateMaterial("stone", checkerboard(128, 16,
		[4]byte{90, 90, 100, 255}, [4]byte{50, 50, 60, 255}),
		vk.FilterLinear, vk.SamplerAddressModeRepeat)
	if err != nil {
		return err
	}
	lava, err := r.CreateMaterial("lava", checkerboard(128, 16,
		[4]byte{230, 90, 20, 255}, [4]byte{120, 30, 10, 255}),
		vk.FilterNearest, vk.SamplerAddressModeRepeat)
	if err != nil {
		return err
	}

	// Three cubes, two sharing a material so draw batching has
	// something to batch.
	placements := []struct {
		material renderer.MaterialHandle
		position mgl32.Vec3
		scale    float32
	}{
		{stone, mgl32.Vec3{0, 0, 0}, 1.0},
		{lava, mgl32.Vec3{3, 0, -1}, 0.6},
		{stone, mgl32.Vec3{-3, 0, 1}, 0.8},
	}
	for _, p := range placements {
		obj, err := r.CreateSceneObject(mesh, p.material)
		if err != nil {
			return err
		}
		r.WithObject(obj, func(o *renderer.SceneObject) {
			o.SetTranslation(p.position)
			o.SetScale(mgl32.Vec3{p.scale, p.scale, p.scale})
		})
		state.cubes = append(state.cubes, obj)
	}

	return nil
}

func (g *TestGame) Update(deltaTime float64) (renderer.PerFrameData, error) {
	state := g.State.(*gameState)
	state.spin += 0.5 * deltaTime

	rotation := mgl32.QuatRotate(float32(state.spin), mgl32.Vec3{0, 1, 0})
	for _, cube := range state.cubes {
		if !state.renderer.WithObject(cube, func(o *renderer.SceneObject) {
			o.SetRotation(rotation)
		}) {
			return renderer.PerFrameData{}, fmt.Errorf("cube handle went stale")
		}
	}

	proj := mgl32.Perspective(float32(math.Pi)*0.25, state.renderer.AspectRatio(), 0.5, 50.0)
	// Vulkan clip space has Y pointing down.
	proj[5] *= -1

	return renderer.PerFrameData{
		View: mgl32.LookAtV(mgl32.Vec3{5, 5, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}),
		Proj: proj,
	}, nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) OnAssetChange(path string) {
	core.LogInfo("asset changed: %s", path)
}

func (g *TestGame) Shutdown() error {
	// GPU resources are torn down by the renderer.
	return nil
}

// checkerboard builds a procedural two-tone RGBA test texture.
func checkerboard(size, cell uint32, a, b [4]byte) *assets.Bitmap {
	pixels := make([]byte, size*size*4)
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			color := a
			if (x/cell+y/cell)%2 == 1 {
				color = b
			}
			copy(pixels[(y*size+x)*4:], color[:])
		}
	}
	return &assets.Bitmap{Width: size, Height: size, Pixels: pixels}
}
