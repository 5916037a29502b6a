package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/math"
)

// Scene is everything the recorded draw binds, plus the base transform of
// the mesh.
type Scene struct {
	Renderpass     *Renderpass
	Pipeline       vk.Pipeline
	PipelineLayout vk.PipelineLayout
	VertexBuffer   vk.Buffer
	IndexBuffer    vk.Buffer
	IndexCount     uint32
	Model          *math.Transform
}

// CommandRecorder owns one prerecorded command buffer per swapchain image.
// The buffers are recorded once per swapchain generation and replayed every
// frame.
type CommandRecorder struct {
	context *Context
	buffers []*CommandBuffer
}

func NewCommandRecorder(context *Context) *CommandRecorder {
	return &CommandRecorder{context: context}
}

// Record replaces any previous buffers with one buffer per image of
// resources. sets must hold one descriptor set per image.
func (r *CommandRecorder) Record(resources *SwapchainResources, sets []vk.DescriptorSet, scene *Scene) error {
	r.Free()

	buffers, err := AllocateCommandBuffers(r.context, r.context.CommandPool, resources.ImageCount())
	if err != nil {
		return err
	}
	r.buffers = buffers

	extent := resources.Extent
	for i, cb := range buffers {
		if err := cb.Begin(r.context, false, false, false); err != nil {
			r.Free()
			return err
		}

		scene.Renderpass.Begin(r.context, cb, resources.Framebuffers[i], extent)

		driver := r.context.Driver
		driver.CmdBindPipeline(cb.Handle, scene.Pipeline)
		driver.CmdSetViewport(cb.Handle, vk.Viewport{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		})
		driver.CmdSetScissor(cb.Handle, vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		})
		driver.CmdBindVertexBuffer(cb.Handle, scene.VertexBuffer)
		driver.CmdBindIndexBuffer(cb.Handle, scene.IndexBuffer)
		driver.CmdBindDescriptorSet(cb.Handle, scene.PipelineLayout, sets[i])
		driver.CmdDrawIndexed(cb.Handle, scene.IndexCount)

		scene.Renderpass.End(r.context, cb)

		if err := cb.End(r.context); err != nil {
			r.Free()
			return err
		}
	}
	return nil
}

func (r *CommandRecorder) Buffer(imageIndex uint32) *CommandBuffer {
	return r.buffers[imageIndex]
}

func (r *CommandRecorder) Len() int {
	return len(r.buffers)
}

// Free releases every recorded buffer. The device must not be using them.
func (r *CommandRecorder) Free() {
	for _, cb := range r.buffers {
		cb.Free(r.context, r.context.CommandPool)
	}
	r.buffers = nil
}
