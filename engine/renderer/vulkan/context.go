package vulkan

import (
	vk "github.com/goki/vulkan"
)

// MaxFramesInFlight bounds how many submissions may be unretired at once.
const MaxFramesInFlight = 2

type QueueFamilies struct {
	Graphics uint32
	Present  uint32
}

// Context is built once during bootstrap and handed by pointer to every
// component. Nothing in it changes after construction.
type Context struct {
	Driver Driver

	Surface       vk.Surface
	GraphicsQueue vk.Queue
	// May be the same queue as GraphicsQueue.
	PresentQueue  vk.Queue
	QueueFamilies QueueFamilies

	// Graphics command pool, created with the reset bit.
	CommandPool vk.CommandPool
}

// SharedQueues reports whether graphics and present use the same family.
func (c *Context) SharedQueues() bool {
	return c.QueueFamilies.Graphics == c.QueueFamilies.Present
}
