package vulkan

import (
	"fmt"
	"reflect"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// fakeDriver stands in for a device. Handles are opaque addresses outside
// the Go heap. It models fence and semaphore state closely enough to catch
// protocol violations, which are collected in violations instead of
// failing at the call site.
type fakeDriver struct {
	next uintptr
	live map[unsafe.Pointer]string

	support       SurfaceSupport
	supportResult vk.Result

	// Images handed out per swapchain, in creation order.
	swapchainImages map[vk.Swapchain][]vk.Image
	swapchainInfos  []vk.SwapchainCreateInfo
	nextImage       uint32

	// Scripted results, consumed front to back. Empty means success.
	acquireResults []vk.Result
	presentResults []vk.Result
	// Scripted image indices, consumed front to back. Empty means round
	// robin.
	acquireOrder []uint32
	// Semaphores signaled by successful acquires, in call order.
	acquired []vk.Semaphore
	// Per call failure injection, keyed by operation. The value is the
	// number of successful calls before the failure.
	failAfter map[string]int
	calls     map[string]int

	fences     map[vk.Fence]*fakeFence
	maxPending int

	semaphores map[vk.Semaphore]*fakeSemaphore

	// Recorded commands per command buffer.
	recorded map[vk.CommandBuffer][]string
	pipeline map[vk.CommandBuffer]vk.Pipeline

	poolSets map[vk.DescriptorPool][]vk.DescriptorSet
	writes   map[vk.DeviceMemory][]byte

	submits  []vk.SubmitInfo
	presents []uint32

	violations []string
}

type fakeFence struct {
	signaled bool
	pending  bool
	// Bumped on every submission so reuse of the fence by a later
	// submission is told apart from the one a semaphore waited in.
	generation uint64
}

type fakeSemaphore struct {
	signaled bool
	// Fence and fence generation of the submission that waits on this
	// semaphore.
	waitedBy  vk.Fence
	waitedGen uint64
}

// stillWaited reports whether the submission waiting on s has not retired.
func (d *fakeDriver) stillWaited(s *fakeSemaphore) bool {
	if s.waitedBy == nil {
		return false
	}
	f := d.fences[s.waitedBy]
	return f != nil && f.pending && f.generation == s.waitedGen
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		live: make(map[unsafe.Pointer]string),
		support: SurfaceSupport{
			Capabilities: vk.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  vk.Extent2D{Width: 1024, Height: 768},
				MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []vk.SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
		supportResult:   vk.Success,
		swapchainImages: make(map[vk.Swapchain][]vk.Image),
		failAfter:       make(map[string]int),
		calls:           make(map[string]int),
		fences:          make(map[vk.Fence]*fakeFence),
		semaphores:      make(map[vk.Semaphore]*fakeSemaphore),
		recorded:        make(map[vk.CommandBuffer][]string),
		pipeline:        make(map[vk.CommandBuffer]vk.Pipeline),
		poolSets:        make(map[vk.DescriptorPool][]vk.DescriptorSet),
		writes:          make(map[vk.DeviceMemory][]byte),
	}
}

func (d *fakeDriver) handle(kind string) unsafe.Pointer {
	d.next += 0x10
	p := unsafe.Add(unsafe.Pointer(nil), 0x10000+d.next)
	d.live[p] = kind
	return p
}

func (d *fakeDriver) release(p unsafe.Pointer, kind string) {
	if p == nil {
		return
	}
	got, ok := d.live[p]
	if !ok {
		d.violate("destroy of unknown or destroyed %s %p", kind, p)
		return
	}
	if got != kind {
		d.violate("destroy of %s %p as %s", got, p, kind)
	}
	delete(d.live, p)
}

func (d *fakeDriver) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// fail counts a call to op and reports whether it should fail.
func (d *fakeDriver) fail(op string) bool {
	d.calls[op]++
	limit, ok := d.failAfter[op]
	return ok && d.calls[op] > limit
}

// liveCount returns how many handles of kind exist.
func (d *fakeDriver) liveCount(kind string) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *fakeDriver) pendingFences() int {
	n := 0
	for _, f := range d.fences {
		if f.pending {
			n++
		}
	}
	return n
}

func (d *fakeDriver) newQueue() vk.Queue             { return vk.Queue(d.handle("queue")) }
func (d *fakeDriver) newCommandPool() vk.CommandPool { return vk.CommandPool(d.handle("commandpool")) }

func (d *fakeDriver) SurfaceSupport() (SurfaceSupport, vk.Result) {
	d.calls["SurfaceSupport"]++
	return d.support, d.supportResult
}

func (d *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	if d.fail("CreateSwapchain") {
		return nil, vk.ErrorInitializationFailed
	}
	d.swapchainInfos = append(d.swapchainInfos, *info)
	swapchain := vk.Swapchain(d.handle("swapchain"))
	images := make([]vk.Image, info.MinImageCount)
	for i := range images {
		// Images belong to the swapchain and are never destroyed directly.
		d.next += 0x10
		images[i] = vk.Image(unsafe.Add(unsafe.Pointer(nil), 0x10000+d.next))
	}
	d.swapchainImages[swapchain] = images
	d.nextImage = 0
	return swapchain, vk.Success
}

func (d *fakeDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	return d.swapchainImages[swapchain], vk.Success
}

func (d *fakeDriver) DestroySwapchain(swapchain vk.Swapchain) {
	d.release(unsafe.Pointer(swapchain), "swapchain")
	delete(d.swapchainImages, swapchain)
}

func (d *fakeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	if d.fail("CreateImageView") {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	return vk.ImageView(d.handle("imageview")), vk.Success
}

func (d *fakeDriver) DestroyImageView(view vk.ImageView) {
	d.release(unsafe.Pointer(view), "imageview")
}

func (d *fakeDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	if d.fail("CreateFramebuffer") {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	for _, view := range info.PAttachments {
		if _, ok := d.live[unsafe.Pointer(view)]; !ok {
			d.violate("framebuffer over destroyed view %p", view)
		}
	}
	return vk.Framebuffer(d.handle("framebuffer")), vk.Success
}

func (d *fakeDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	d.release(unsafe.Pointer(framebuffer), "framebuffer")
}

func (d *fakeDriver) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	d.calls["AcquireNextImage"]++
	if _, ok := d.live[unsafe.Pointer(swapchain)]; !ok {
		d.violate("acquire on destroyed swapchain %p", swapchain)
	}

	result := vk.Success
	if len(d.acquireResults) > 0 {
		result = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if result != vk.Success && result != vk.Suboptimal {
		return 0, result
	}

	s := d.semaphores[semaphore]
	switch {
	case s == nil:
		d.violate("acquire signals unknown semaphore %p", semaphore)
	case s.signaled:
		d.violate("acquire signals semaphore %p that is already signaled", semaphore)
	case d.stillWaited(s):
		d.violate("acquire signals semaphore %p still waited on by a pending submission", semaphore)
	default:
		s.signaled = true
		s.waitedBy = nil
	}
	d.acquired = append(d.acquired, semaphore)

	count := uint32(len(d.swapchainImages[swapchain]))
	index := d.nextImage % count
	d.nextImage++
	if len(d.acquireOrder) > 0 {
		index = d.acquireOrder[0] % count
		d.acquireOrder = d.acquireOrder[1:]
	}
	return index, result
}

func (d *fakeDriver) QueueSubmit(queue vk.Queue, submit vk.SubmitInfo, fence vk.Fence) vk.Result {
	if d.fail("QueueSubmit") {
		return vk.ErrorDeviceLost
	}
	d.submits = append(d.submits, submit)
	generation := uint64(0)
	if f := d.fences[fence]; f != nil {
		f.generation++
		generation = f.generation
	}
	for _, semaphore := range submit.PWaitSemaphores {
		s := d.semaphores[semaphore]
		if s == nil || !s.signaled {
			d.violate("submit waits on unsignaled semaphore %p", semaphore)
			continue
		}
		s.signaled = false
		s.waitedBy = fence
		s.waitedGen = generation
	}
	for _, semaphore := range submit.PSignalSemaphores {
		s := d.semaphores[semaphore]
		if s == nil || s.signaled {
			d.violate("submit signals semaphore %p that is unknown or signaled", semaphore)
			continue
		}
		s.signaled = true
	}
	if fence != vk.NullFence {
		f := d.fences[fence]
		if f == nil || f.signaled || f.pending {
			d.violate("submit with fence %p that is unknown or not reset", fence)
		} else {
			f.pending = true
		}
	}
	d.maxPending = max(d.maxPending, d.pendingFences())
	return vk.Success
}

func (d *fakeDriver) QueuePresent(queue vk.Queue, present *vk.PresentInfo) vk.Result {
	d.calls["QueuePresent"]++
	for _, semaphore := range present.PWaitSemaphores {
		s := d.semaphores[semaphore]
		if s == nil || !s.signaled {
			d.violate("present waits on unsignaled semaphore %p", semaphore)
			continue
		}
		s.signaled = false
	}
	d.presents = append(d.presents, present.PImageIndices...)
	if len(d.presentResults) > 0 {
		result := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return result
	}
	return vk.Success
}

func (d *fakeDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	d.calls["QueueWaitIdle"]++
	return vk.Success
}

func (d *fakeDriver) DeviceWaitIdle() vk.Result {
	if d.fail("DeviceWaitIdle") {
		return vk.ErrorDeviceLost
	}
	for _, f := range d.fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
	return vk.Success
}

func (d *fakeDriver) CreateFence(signaled bool) (vk.Fence, vk.Result) {
	if d.fail("CreateFence") {
		return nil, vk.ErrorOutOfHostMemory
	}
	fence := vk.Fence(d.handle("fence"))
	d.fences[fence] = &fakeFence{signaled: signaled}
	return fence, vk.Success
}

// WaitForFence retires a pending submission. A fence that is neither
// pending nor signaled would never signal, so it times out.
func (d *fakeDriver) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	d.calls["WaitForFence"]++
	f := d.fences[fence]
	switch {
	case f == nil:
		d.violate("wait on unknown fence %p", fence)
		return vk.ErrorDeviceLost
	case f.pending:
		f.pending = false
		f.signaled = true
	case !f.signaled:
		d.violate("wait on fence %p that will never signal", fence)
		return vk.Timeout
	}
	return vk.Success
}

func (d *fakeDriver) ResetFence(fence vk.Fence) vk.Result {
	d.calls["ResetFence"]++
	f := d.fences[fence]
	if f == nil || f.pending {
		d.violate("reset of fence %p that is unknown or pending", fence)
		return vk.ErrorDeviceLost
	}
	f.signaled = false
	return vk.Success
}

func (d *fakeDriver) DestroyFence(fence vk.Fence) {
	if f := d.fences[fence]; f != nil && f.pending {
		d.violate("destroy of pending fence %p", fence)
	}
	delete(d.fences, fence)
	d.release(unsafe.Pointer(fence), "fence")
}

func (d *fakeDriver) CreateSemaphore() (vk.Semaphore, vk.Result) {
	if d.fail("CreateSemaphore") {
		return nil, vk.ErrorOutOfHostMemory
	}
	semaphore := vk.Semaphore(d.handle("semaphore"))
	d.semaphores[semaphore] = &fakeSemaphore{}
	return semaphore, vk.Success
}

func (d *fakeDriver) DestroySemaphore(semaphore vk.Semaphore) {
	delete(d.semaphores, semaphore)
	d.release(unsafe.Pointer(semaphore), "semaphore")
}

func (d *fakeDriver) AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, vk.Result) {
	if d.fail("AllocateCommandBuffers") {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	buffers := make([]vk.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(d.handle("commandbuffer"))
	}
	return buffers, vk.Success
}

func (d *fakeDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	for _, cb := range buffers {
		delete(d.recorded, cb)
		delete(d.pipeline, cb)
		d.release(unsafe.Pointer(cb), "commandbuffer")
	}
}

func (d *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	if d.fail("BeginCommandBuffer") {
		return vk.ErrorOutOfHostMemory
	}
	d.recorded[buffer] = []string{"begin"}
	return vk.Success
}

func (d *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	d.record(buffer, "end")
	return vk.Success
}

func (d *fakeDriver) record(buffer vk.CommandBuffer, cmd string) {
	d.recorded[buffer] = append(d.recorded[buffer], cmd)
}

func (d *fakeDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	if _, ok := d.live[unsafe.Pointer(info.Framebuffer)]; !ok {
		d.violate("render pass begun on destroyed framebuffer %p", info.Framebuffer)
	}
	d.record(buffer, "beginRenderPass")
}

func (d *fakeDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	d.record(buffer, "endRenderPass")
}

func (d *fakeDriver) CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline) {
	d.pipeline[buffer] = pipeline
	d.record(buffer, "bindPipeline")
}

func (d *fakeDriver) CmdSetViewport(buffer vk.CommandBuffer, viewport vk.Viewport) {
	d.record(buffer, fmt.Sprintf("viewport %.0fx%.0f", viewport.Width, viewport.Height))
}

func (d *fakeDriver) CmdSetScissor(buffer vk.CommandBuffer, scissor vk.Rect2D) {
	d.record(buffer, fmt.Sprintf("scissor %dx%d", scissor.Extent.Width, scissor.Extent.Height))
}

func (d *fakeDriver) CmdBindVertexBuffer(buffer vk.CommandBuffer, vertexBuffer vk.Buffer) {
	d.record(buffer, "bindVertexBuffer")
}

func (d *fakeDriver) CmdBindIndexBuffer(buffer vk.CommandBuffer, indexBuffer vk.Buffer) {
	d.record(buffer, "bindIndexBuffer")
}

func (d *fakeDriver) CmdBindDescriptorSet(buffer vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet) {
	d.record(buffer, "bindDescriptorSet")
}

func (d *fakeDriver) CmdDrawIndexed(buffer vk.CommandBuffer, indexCount uint32) {
	d.record(buffer, fmt.Sprintf("drawIndexed %d", indexCount))
}

func (d *fakeDriver) CmdCopyBuffer(buffer vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize) {
	d.record(buffer, fmt.Sprintf("copyBuffer %d", size))
}

func (d *fakeDriver) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags) (vk.Buffer, vk.Result) {
	if d.fail("CreateBuffer") {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	return vk.Buffer(d.handle("buffer")), vk.Success
}

func (d *fakeDriver) AllocateBufferMemory(buffer vk.Buffer, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, vk.Result) {
	if d.fail("AllocateBufferMemory") {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	return vk.DeviceMemory(d.handle("memory")), vk.Success
}

func (d *fakeDriver) WriteMemory(memory vk.DeviceMemory, data []byte) vk.Result {
	d.writes[memory] = append([]byte(nil), data...)
	return vk.Success
}

func (d *fakeDriver) DestroyBuffer(buffer vk.Buffer) {
	d.release(unsafe.Pointer(buffer), "buffer")
}

func (d *fakeDriver) FreeMemory(memory vk.DeviceMemory) {
	delete(d.writes, memory)
	d.release(unsafe.Pointer(memory), "memory")
}

func (d *fakeDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	if d.fail("CreateDescriptorPool") {
		return nil, vk.ErrorOutOfHostMemory
	}
	return vk.DescriptorPool(d.handle("descriptorpool")), vk.Success
}

func (d *fakeDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	for _, set := range d.poolSets[pool] {
		d.release(unsafe.Pointer(set), "descriptorset")
	}
	delete(d.poolSets, pool)
	d.release(unsafe.Pointer(pool), "descriptorpool")
}

func (d *fakeDriver) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	if d.fail("AllocateDescriptorSet") {
		return nil, vk.ErrorOutOfPoolMemory
	}
	set := vk.DescriptorSet(d.handle("descriptorset"))
	d.poolSets[pool] = append(d.poolSets[pool], set)
	return set, vk.Success
}

func (d *fakeDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.calls["UpdateDescriptorSets"]++
}

var _ Driver = (*fakeDriver)(nil)

// addr returns the address a handle stands for. Handles point at empty
// structs, so testify's deep equality would call any two of them equal.
func addr(h any) uintptr {
	return reflect.ValueOf(h).Pointer()
}

func addrs[H any](hs []H) []uintptr {
	out := make([]uintptr, len(hs))
	for i, h := range hs {
		out[i] = addr(h)
	}
	return out
}

// fakeWindow reports a fixed framebuffer size. onWait runs on every
// WaitEvents call and may change the size or close the window.
type fakeWindow struct {
	width, height int
	closed        bool
	waits         int
	onWait        func(w *fakeWindow)
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
	if w.onWait != nil {
		w.onWait(w)
	}
}

func (w *fakeWindow) ShouldClose() bool {
	return w.closed
}

// newTestContext builds a context whose queues and pool are fake handles.
func newTestContext(d *fakeDriver) *Context {
	queue := d.newQueue()
	return &Context{
		Driver:        d,
		Surface:       vk.NullSurface,
		GraphicsQueue: queue,
		PresentQueue:  queue,
		CommandPool:   d.newCommandPool(),
	}
}

func newTestScene(d *fakeDriver) *Scene {
	return &Scene{
		Renderpass:     &Renderpass{Handle: vk.RenderPass(d.handle("renderpass"))},
		Pipeline:       vk.Pipeline(d.handle("pipeline")),
		PipelineLayout: vk.PipelineLayout(d.handle("pipelinelayout")),
		VertexBuffer:   vk.Buffer(d.handle("scenebuffer")),
		IndexBuffer:    vk.Buffer(d.handle("scenebuffer")),
		IndexCount:     36,
	}
}

// frameResourceKinds are the handles owned by swapchains, frame sync,
// uniforms and recorded commands.
var frameResourceKinds = []string{
	"swapchain", "imageview", "framebuffer", "fence", "semaphore",
	"commandbuffer", "buffer", "memory", "descriptorpool", "descriptorset",
}
