package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

// Fence caches the signaled state so waiting on an already retired
// submission never reaches the driver.
type Fence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *Context, createSignaled bool) (*Fence, error) {
	handle, res := context.Driver.CreateFence(createSignaled)
	if err := checkResult("create fence", res); err != nil {
		return nil, err
	}
	return &Fence{
		Handle: handle,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}, nil
}

func (f *Fence) Destroy(context *Context) {
	if f.Handle != nil {
		context.Driver.DestroyFence(f.Handle)
		f.Handle = nil
	}
	f.IsSignaled = false
}

func (f *Fence) Wait(context *Context, timeoutNs uint64) error {
	if f.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	res := context.Driver.WaitForFence(f.Handle, timeoutNs)
	switch res {
	case vk.Success:
		f.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	}
	return checkResult("wait for fence", res)
}

func (f *Fence) Reset(context *Context) error {
	if !f.IsSignaled {
		return nil
	}
	if err := checkResult("reset fence", context.Driver.ResetFence(f.Handle)); err != nil {
		return err
	}
	f.IsSignaled = false
	return nil
}
