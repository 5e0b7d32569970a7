package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// ResizeCallback receives the new framebuffer size in pixels.
type ResizeCallback func(width, height uint32)

type Platform struct {
	Window   *glfw.Window
	onResize ResizeCallback
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		err := fmt.Errorf("vulkan loader not found")
		core.LogError("%s", err)
		return err
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vulkan bindings: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// SetResizeCallback registers the receiver of framebuffer size changes.
// Callbacks fire on the control thread during PumpMessages.
func (p *Platform) SetResizeCallback(cb ResizeCallback) {
	p.onResize = cb
}

// RequiredExtensions returns the instance extensions the window system
// needs for surface creation.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates the presentation surface for instance.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("failed to create window surface: %s", err)
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// FramebufferSize returns the drawable size in pixels, which can differ
// from the window size on high-DPI displays.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) framebufferSizeCallback(_ *glfw.Window, width int, height int) {
	if p.onResize != nil {
		p.onResize(uint32(width), uint32(height))
	}
}
