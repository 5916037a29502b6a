package vulkan

import (
	vk "github.com/goki/vulkan"
)

// SurfaceSupport is what the presentation engine reports for the surface.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Driver is every device level call the frame loop makes. deviceDriver
// implements it on top of a logical device; tests provide their own.
type Driver interface {
	SurfaceSupport() (SurfaceSupport, vk.Result)

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	DestroySwapchain(swapchain vk.Swapchain)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(view vk.ImageView)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result)
	QueueSubmit(queue vk.Queue, submit vk.SubmitInfo, fence vk.Fence) vk.Result
	QueuePresent(queue vk.Queue, present *vk.PresentInfo) vk.Result
	QueueWaitIdle(queue vk.Queue) vk.Result
	DeviceWaitIdle() vk.Result

	CreateFence(signaled bool) (vk.Fence, vk.Result)
	WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result
	ResetFence(fence vk.Fence) vk.Result
	DestroyFence(fence vk.Fence)
	CreateSemaphore() (vk.Semaphore, vk.Result)
	DestroySemaphore(semaphore vk.Semaphore)

	AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result)
	FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer)
	BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result
	EndCommandBuffer(buffer vk.CommandBuffer) vk.Result

	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(buffer vk.CommandBuffer)
	CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline)
	CmdSetViewport(buffer vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(buffer vk.CommandBuffer, scissor vk.Rect2D)
	CmdBindVertexBuffer(buffer vk.CommandBuffer, vertexBuffer vk.Buffer)
	CmdBindIndexBuffer(buffer vk.CommandBuffer, indexBuffer vk.Buffer)
	CmdBindDescriptorSet(buffer vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet)
	CmdDrawIndexed(buffer vk.CommandBuffer, indexCount uint32)
	CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize)

	CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags) (vk.Buffer, vk.Result)
	// AllocateBufferMemory allocates memory with the given properties that
	// satisfies the buffer's requirements and binds it at offset 0.
	AllocateBufferMemory(buffer vk.Buffer, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, vk.Result)
	// WriteMemory maps host visible memory, copies data to offset 0 and unmaps.
	WriteMemory(memory vk.DeviceMemory, data []byte) vk.Result
	DestroyBuffer(buffer vk.Buffer)
	FreeMemory(memory vk.DeviceMemory)

	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
}
