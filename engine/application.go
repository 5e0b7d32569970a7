package engine

import (
	"github.com/fennelvane/ember/engine/config"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel string
	Renderer config.Renderer
}

// ApplicationConfigFrom maps a loaded config file onto the engine's
// startup parameters.
func ApplicationConfigFrom(cfg *config.Config) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.PosX,
		StartPosY:   cfg.Window.PosY,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Title,
		LogLevel:    cfg.LogLevel,
		Renderer:    cfg.Renderer,
	}
}
