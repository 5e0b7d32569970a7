package engine

import (
	"fmt"
	"path/filepath"

	"github.com/fennelvane/ember/engine/assets"
	"github.com/fennelvane/ember/engine/core"
	"github.com/fennelvane/ember/engine/platform"
	"github.com/fennelvane/ember/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine owns the main loop: window events, one rendered frame per
// iteration, clock and metrics. Everything runs on the control thread;
// only the asset watcher has its own goroutine, and its findings are
// drained here.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	renderer     *renderer.Renderer
	watcher      *assets.Watcher
	width        uint32
	height       uint32
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     p,
		isRunning:    true,
		isSuspended:  false,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.gameInstance.ApplicationConfig

	if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
		return err
	}

	vertexSPIRV, err := assets.LoadSPIRV(filepath.Join(cfg.Renderer.ShaderDir, cfg.Renderer.VertexShader))
	if err != nil {
		return fmt.Errorf("vertex shader: %w", err)
	}
	fragmentSPIRV, err := assets.LoadSPIRV(filepath.Join(cfg.Renderer.ShaderDir, cfg.Renderer.FragmentShader))
	if err != nil {
		return fmt.Errorf("fragment shader: %w", err)
	}

	// The window may have opened at a different size than requested.
	fbWidth, fbHeight := e.platform.FramebufferSize()

	r, err := renderer.New(renderer.Options{
		AppName:            cfg.Name,
		Debug:              true,
		FramesInFlight:     cfg.Renderer.FramesInFlight,
		MaxObjects:         cfg.Renderer.MaxObjects,
		MaxMeshes:          cfg.Renderer.MaxMeshes,
		MaxMaterials:       cfg.Renderer.MaxMaterials,
		StagingBytes:       cfg.Renderer.StagingBytes,
		ClearColor:         [4]float32{0.02, 0.02, 0.05, 1.0},
		VertexSPIRV:        vertexSPIRV,
		FragmentSPIRV:      fragmentSPIRV,
		Width:              fbWidth,
		Height:             fbHeight,
		PlatformExtensions: e.platform.RequiredExtensions(),
		CreateSurface:      e.platform.CreateSurface,
	})
	if err != nil {
		return err
	}
	e.renderer = r
	e.platform.SetResizeCallback(e.onResized)

	if cfg.Renderer.AssetDir != "" {
		watcher, err := assets.NewWatcher(cfg.Renderer.AssetDir, 16)
		if err != nil {
			// Hot-reload is a convenience, not a requirement.
			core.LogWarn("asset watcher unavailable: %s", err)
		} else {
			e.watcher = watcher
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.renderer); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning = false
			break
		}

		if e.watcher != nil {
			for _, path := range e.watcher.Drain() {
				core.LogDebug("asset changed on disk: %s", path)
				if e.gameInstance.FnOnAssetChange != nil {
					e.gameInstance.FnOnAssetChange(path)
				}
			}
		}

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		camera, err := e.gameInstance.FnUpdate(delta)
		if err != nil {
			core.LogFatal("Game update failed, shutting down.")
			e.isRunning = false
			break
		}

		if err := e.renderer.DrawFrame(camera); err != nil {
			core.LogError("draw frame failed: %s", err)
			e.isRunning = false
			break
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)

		e.lastTime = currentTime
	}

	return nil
}

// RequestShutdown stops the loop after the current iteration. Safe to
// call from a signal handler goroutine.
func (e *Engine) RequestShutdown() {
	e.isRunning = false
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	fps, frameTime := e.metrics.Frame()
	core.LogInfo("shutting down (%.1f fps, avg frame %.2f ms)", fps, frameTime)

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if e.renderer != nil {
		// Renderer shutdown waits for the device before releasing
		// anything the GPU might still read.
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onResized(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}

	e.renderer.Resized(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
}
