package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

// deviceDriver issues the Driver calls against a logical device.
type deviceDriver struct {
	device         vk.Device
	physicalDevice vk.PhysicalDevice
	surface        vk.Surface
	memory         vk.PhysicalDeviceMemoryProperties
	allocator      *vk.AllocationCallbacks
}

func newDeviceDriver(device *VulkanDevice, surface vk.Surface) *deviceDriver {
	d := &deviceDriver{
		device:         device.LogicalDevice,
		physicalDevice: device.PhysicalDevice,
		surface:        surface,
	}
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memory)
	d.memory.Deref()
	return d
}

func (d *deviceDriver) SurfaceSupport() (SurfaceSupport, vk.Result) {
	return querySurfaceSupport(d.physicalDevice, d.surface)
}

func querySurfaceSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (SurfaceSupport, vk.Result) {
	support := SurfaceSupport{}

	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &caps); res != vk.Success {
		return support, res
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	support.Capabilities = caps

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return support, res
	}
	if formatCount > 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, support.Formats); res != vk.Success {
			return support, res
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		return support, res
	}
	if modeCount > 0 {
		support.PresentModes = make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, support.PresentModes); res != vk.Success {
			return support, res
		}
	}
	return support, vk.Success
}

func (d *deviceDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(d.device, info, d.allocator, &swapchain)
	return swapchain, res
}

func (d *deviceDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if res := vk.GetSwapchainImages(d.device, swapchain, &count, nil); res != vk.Success {
		return nil, res
	}
	images := make([]vk.Image, count)
	res := vk.GetSwapchainImages(d.device, swapchain, &count, images)
	return images[:count], res
}

func (d *deviceDriver) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.device, swapchain, d.allocator)
}

func (d *deviceDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	res := vk.CreateImageView(d.device, info, d.allocator, &view)
	return view, res
}

func (d *deviceDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, d.allocator)
}

func (d *deviceDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	var framebuffer vk.Framebuffer
	res := vk.CreateFramebuffer(d.device, info, d.allocator, &framebuffer)
	return framebuffer, res
}

func (d *deviceDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.device, framebuffer, d.allocator)
}

func (d *deviceDriver) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(d.device, swapchain, timeoutNs, semaphore, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (d *deviceDriver) QueueSubmit(queue vk.Queue, submit vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, fence)
}

func (d *deviceDriver) QueuePresent(queue vk.Queue, present *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, present)
}

func (d *deviceDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.QueueWaitIdle(queue)
}

func (d *deviceDriver) DeviceWaitIdle() vk.Result {
	return vk.DeviceWaitIdle(d.device)
}

func (d *deviceDriver) CreateFence(signaled bool) (vk.Fence, vk.Result) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	res := vk.CreateFence(d.device, &info, d.allocator, &fence)
	return fence, res
}

func (d *deviceDriver) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, timeoutNs)
}

func (d *deviceDriver) ResetFence(fence vk.Fence) vk.Result {
	return vk.ResetFences(d.device, 1, []vk.Fence{fence})
}

func (d *deviceDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.device, fence, d.allocator)
}

func (d *deviceDriver) CreateSemaphore() (vk.Semaphore, vk.Result) {
	var semaphore vk.Semaphore
	res := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, d.allocator, &semaphore)
	return semaphore, res
}

func (d *deviceDriver) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.device, semaphore, d.allocator)
}

func (d *deviceDriver) AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, count)
	res := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, buffers)
	return buffers, res
}

func (d *deviceDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, pool, uint32(len(buffers)), buffers)
}

func (d *deviceDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	return vk.BeginCommandBuffer(buffer, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	})
}

func (d *deviceDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(buffer)
}

func (d *deviceDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(buffer, info, vk.SubpassContentsInline)
}

func (d *deviceDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (d *deviceDriver) CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, pipeline)
}

func (d *deviceDriver) CmdSetViewport(buffer vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(buffer, 0, 1, []vk.Viewport{viewport})
}

func (d *deviceDriver) CmdSetScissor(buffer vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(buffer, 0, 1, []vk.Rect2D{scissor})
}

func (d *deviceDriver) CmdBindVertexBuffer(buffer vk.CommandBuffer, vertexBuffer vk.Buffer) {
	vk.CmdBindVertexBuffers(buffer, 0, 1, []vk.Buffer{vertexBuffer}, []vk.DeviceSize{0})
}

func (d *deviceDriver) CmdBindIndexBuffer(buffer vk.CommandBuffer, indexBuffer vk.Buffer) {
	vk.CmdBindIndexBuffer(buffer, indexBuffer, 0, vk.IndexTypeUint32)
}

func (d *deviceDriver) CmdBindDescriptorSet(buffer vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (d *deviceDriver) CmdDrawIndexed(buffer vk.CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(buffer, indexCount, 1, 0, 0, 0)
}

func (d *deviceDriver) CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize) {
	vk.CmdCopyBuffer(buffer, src, dst, 1, []vk.BufferCopy{{Size: size}})
}

func (d *deviceDriver) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags) (vk.Buffer, vk.Result) {
	var buffer vk.Buffer
	res := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       usage,
		Size:        size,
		SharingMode: vk.SharingModeExclusive,
	}, d.allocator, &buffer)
	return buffer, res
}

func (d *deviceDriver) AllocateBufferMemory(buffer vk.Buffer, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, vk.Result) {
	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &requirements)
	requirements.Deref()

	index := d.findMemoryIndex(requirements.MemoryTypeBits, properties)
	if index < 0 {
		core.LogWarn("Unable to find suitable memory type!")
		return vk.NullDeviceMemory, vk.ErrorOutOfDeviceMemory
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}, d.allocator, &memory); res != vk.Success {
		return vk.NullDeviceMemory, res
	}
	if res := vk.BindBufferMemory(d.device, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, d.allocator)
		return vk.NullDeviceMemory, res
	}
	return memory, vk.Success
}

func (d *deviceDriver) findMemoryIndex(typeFilter uint32, properties vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&properties == properties {
			return int32(i)
		}
	}
	return -1
}

func (d *deviceDriver) WriteMemory(memory vk.DeviceMemory, data []byte) vk.Result {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.device, memory, 0, vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return res
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.device, memory)
	return vk.Success
}

func (d *deviceDriver) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.device, buffer, d.allocator)
}

func (d *deviceDriver) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.device, memory, d.allocator)
}

func (d *deviceDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(d.device, info, d.allocator, &pool)
	return pool, res
}

func (d *deviceDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, pool, d.allocator)
}

func (d *deviceDriver) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	return set, res
}

func (d *deviceDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
}
