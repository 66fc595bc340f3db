package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the glfw library and, in window mode, the window the
// frontend presents to.
type Platform struct {
	Window *glfw.Window

	framebufferWidth  uint32
	framebufferHeight uint32
	resized           bool
	startTime         float64
}

func New() *Platform {
	return &Platform{}
}

// Startup initializes glfw. When window is false no window is opened and the
// platform only serves the Vulkan loader.
func (p *Platform) Startup(applicationName string, width, height uint32, window bool) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}
	p.startTime = glfw.GetTime()

	if !window {
		core.LogDebug("Platform started without a window")
		return nil
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	w, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return errors.Wrap(err, "glfw create window")
	}
	p.Window = w

	fbWidth, fbHeight := w.GetFramebufferSize()
	p.framebufferWidth, p.framebufferHeight = uint32(fbWidth), uint32(fbHeight)

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.Show()

	core.LogDebug("Platform window %dx%d created", fbWidth, fbHeight)
	return nil
}

// GetInstanceProcAddr is glfw's vkGetInstanceProcAddr.
func (p *Platform) GetInstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// RequiredExtensions lists the instance extensions the window surface
// needs. It is empty without a window.
func (p *Platform) RequiredExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if p.Window == nil {
		return vk.NullSurface, errors.New("no window to create a surface for")
	}
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferSize is the drawable size of the window in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.framebufferWidth, p.framebufferHeight
}

// Resized reports whether the framebuffer changed size since the last call.
func (p *Platform) Resized() bool {
	r := p.resized
	p.resized = false
	return r
}

func (p *Platform) ShouldClose() bool {
	return p.Window != nil && p.Window.ShouldClose()
}

// Elapsed is the time in seconds since Startup.
func (p *Platform) Elapsed() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) PumpMessages() {
	if p.Window != nil {
		glfw.PollEvents()
	}
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.framebufferWidth, p.framebufferHeight = uint32(width), uint32(height)
	p.resized = true
}
