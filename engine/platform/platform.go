package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

// Key codes carried in EventContext.Data.U16[0] of key events.
var (
	KeyEscape = uint16(glfw.KeyEscape)
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
	bus    *core.EventBus
}

// New returns a platform that reports window events on bus.
func New(bus *core.EventBus) *Platform {
	return &Platform{
		Window: nil,
		bus:    bus,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

// InitVulkan points the Vulkan loader at the one glfw found.
func (p *Platform) InitVulkan() error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}
	return nil
}

// RequiredInstanceExtensions lists the instance extensions the window
// system needs for presentation.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events and reports whether the
// window is still open.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) FramebufferSize() (width, height int) {
	return p.Window.GetFramebufferSize()
}

// WaitEvents blocks until at least one window event arrives.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// RequestClose flags the window for closing, which ends the main loop and
// unblocks a renderer waiting for a usable framebuffer.
func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
	glfw.PostEmptyEvent()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyUnknown {
		return
	}
	data := core.EventContext{}
	data.Data.U16[0] = uint16(key)
	switch action {
	case glfw.Press:
		p.bus.Fire(core.EVENT_CODE_KEY_PRESSED, p, data)
	case glfw.Release:
		p.bus.Fire(core.EVENT_CODE_KEY_RELEASED, p, data)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	data := core.EventContext{}
	data.Data.U32[0] = uint32(width)
	data.Data.U32[1] = uint32(height)
	p.bus.Fire(core.EVENT_CODE_RESIZED, p, data)
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.bus.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
}
