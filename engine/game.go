package engine

import (
	"github.com/fennelvane/ember/engine/renderer"
)

// Game is the application callback surface. The engine owns the loop;
// the game fills in scene setup and per-frame state.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnOnAssetChange   OnAssetChange
	FnShutdown        Shutdown
}

// Initialize runs once after the renderer is up, before the first frame.
type Initialize func(r *renderer.Renderer) error

// Update advances game state and returns the camera for this frame.
type Update func(deltaTime float64) (renderer.PerFrameData, error)

type OnResize func(width uint32, height uint32) error

// OnAssetChange is called on the control thread with a path the asset
// watcher saw change. Optional.
type OnAssetChange func(path string)

type Shutdown func() error
