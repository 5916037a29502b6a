package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

type FrameStatus int

const (
	// The frame was submitted and presented.
	FramePresented FrameStatus = iota
	// The swapchain was out of date on acquire. Nothing was submitted.
	FrameSkipped
	// The frame was presented and the swapchain rebuilt afterwards.
	FrameRecreated
)

func (s FrameStatus) String() string {
	switch s {
	case FramePresented:
		return "presented"
	case FrameSkipped:
		return "skipped"
	case FrameRecreated:
		return "recreated"
	}
	return "unknown"
}

// Window is what the renderer needs from the platform while it waits for a
// minimized window to come back.
type Window interface {
	FramebufferSize() (width, height int)
	WaitEvents()
	ShouldClose() bool
}

const logEveryFrames = 100

// Renderer drives the per frame protocol: wait for the frame slot, acquire
// an image, update its uniforms, submit its prerecorded commands and
// present it, rebuilding the swapchain whenever the surface changes.
type Renderer struct {
	context *Context
	window  Window

	swapchain *Swapchain
	sync      *FrameSync
	recorder  *CommandRecorder
	uniforms  *UniformSets

	descriptorLayout vk.DescriptorSetLayout
	scene            *Scene

	clock          *core.Clock
	frame          uint32
	framesRendered uint64

	// Current generation of framebuffer size. If it does not match
	// lastSizeGeneration, the swapchain is rebuilt after the next present.
	sizeGeneration     uint64
	lastSizeGeneration uint64
}

func NewRenderer(context *Context, window Window, swapchain *Swapchain, descriptorLayout vk.DescriptorSetLayout, scene *Scene) *Renderer {
	return &Renderer{
		context:          context,
		window:           window,
		swapchain:        swapchain,
		recorder:         NewCommandRecorder(context),
		descriptorLayout: descriptorLayout,
		scene:            scene,
		clock:            core.NewClock(),
	}
}

// Initialize creates the first swapchain generation and everything sized
// by it.
func (r *Renderer) Initialize() error {
	if err := r.createSwapchain(r.swapchain.Create); err != nil {
		return err
	}
	resources := r.swapchain.Resources()

	sync, err := NewFrameSync(r.context, resources.ImageCount())
	if err != nil {
		return err
	}
	r.sync = sync

	if err := r.rebuildImageResources(resources); err != nil {
		return err
	}

	r.clock.Start()
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (r *Renderer) rebuildImageResources(resources *SwapchainResources) error {
	if r.uniforms != nil {
		r.uniforms.Destroy()
		r.uniforms = nil
	}
	uniforms, err := NewUniformSets(r.context, r.descriptorLayout, resources.ImageCount())
	if err != nil {
		return err
	}
	r.uniforms = uniforms
	return r.recorder.Record(resources, uniforms.Sets, r.scene)
}

// Resized records that the framebuffer changed size. The swapchain is
// rebuilt after the next present.
func (r *Renderer) Resized(width, height uint32) {
	r.sizeGeneration++
	core.LogDebug("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, r.sizeGeneration)
}

func (r *Renderer) resizePending() bool {
	return r.sizeGeneration != r.lastSizeGeneration
}

// DrawFrame runs one tick. Errors are fatal; staleness of the swapchain is
// handled here and reported through the returned status.
func (r *Renderer) DrawFrame() (FrameStatus, error) {
	acquireSemaphore, err := r.sync.BeginFrame(r.frame)
	if err != nil {
		return FrameSkipped, err
	}

	recreate := false
	imageIndex, err := r.swapchain.AcquireNextImage(acquireSemaphore)
	switch {
	case err == nil:
	case IsKind(err, KindOutOfDate):
		// Trigger swapchain recreation, then boot out of the render loop.
		if err := r.recreate(); err != nil {
			return FrameSkipped, err
		}
		return FrameSkipped, nil
	case IsKind(err, KindSuboptimal):
		// The image is still usable. Rebuild once it has been presented.
		recreate = true
	default:
		core.LogError("Failed to acquire swapchain image: %s", err)
		return FrameSkipped, err
	}

	pair := r.sync.BindImage(imageIndex)
	if err := r.sync.WaitImage(imageIndex, r.frame); err != nil {
		return FrameSkipped, err
	}

	r.clock.Update()
	frameUniforms := ComputeFrameUniforms(r.clock.Elapsed(), r.swapchain.Resources().Extent, r.scene.Model)
	if err := r.uniforms.Update(imageIndex, frameUniforms, ComputeLighting()); err != nil {
		return FrameSkipped, err
	}

	fence, err := r.sync.Retire(r.frame)
	if err != nil {
		return FrameSkipped, err
	}

	commandBuffer := r.recorder.Buffer(imageIndex)
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{pair.Acquire},
		// Each semaphore waits on the corresponding pipeline stage to complete.
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{pair.RenderComplete},
	}
	if err := checkResult("queue submit", r.context.Driver.QueueSubmit(r.context.GraphicsQueue, submitInfo, fence)); err != nil {
		return FrameSkipped, err
	}
	commandBuffer.UpdateSubmitted()

	err = r.swapchain.Present(r.context.PresentQueue, pair.RenderComplete, imageIndex)
	switch {
	case err == nil:
	case IsKind(err, KindOutOfDate), IsKind(err, KindSuboptimal):
		recreate = true
	default:
		core.LogError("Failed to present swap chain image: %s", err)
		return FrameSkipped, err
	}

	r.frame = r.sync.NextFrame(r.frame)
	r.framesRendered++
	if r.framesRendered%logEveryFrames == 0 {
		core.LogInfo("Rendered %d frames", r.framesRendered)
	}

	if recreate || r.resizePending() {
		if err := r.recreate(); err != nil {
			return FrameSkipped, err
		}
		return FrameRecreated, nil
	}
	return FramePresented, nil
}

// recreate waits until the framebuffer has a non-zero size, rebuilds the
// swapchain and everything recorded against it.
func (r *Renderer) recreate() error {
	generation := r.sizeGeneration

	if err := r.createSwapchain(r.swapchain.Recreate); err != nil {
		core.LogError("Failed to recreate swapchain: %s", err)
		return err
	}
	resources := r.swapchain.Resources()

	if err := r.sync.Resize(resources.ImageCount()); err != nil {
		return err
	}
	if err := r.rebuildImageResources(resources); err != nil {
		return err
	}

	// Sync the framebuffer size generation.
	r.lastSizeGeneration = generation
	return nil
}

// createSwapchain runs create with the current framebuffer size. The surface
// may still report a zero extent after the window reported a size, e.g. when
// it is minimized in between. That is not an error: wait for events and try
// again.
func (r *Renderer) createSwapchain(create func(width, height uint32) error) error {
	for {
		width, height, err := r.waitForFramebuffer()
		if err != nil {
			return err
		}
		err = create(width, height)
		if !IsKind(err, KindNotReady) {
			return err
		}
		core.LogDebug("Surface extent is zero, waiting for events")
		if r.window.ShouldClose() {
			return core.ErrWindowClosed
		}
		r.window.WaitEvents()
	}
}

// waitForFramebuffer blocks on window events while the window is minimized.
func (r *Renderer) waitForFramebuffer() (uint32, uint32, error) {
	width, height := r.window.FramebufferSize()
	for width <= 0 || height <= 0 {
		if r.window.ShouldClose() {
			return 0, 0, core.ErrWindowClosed
		}
		r.window.WaitEvents()
		width, height = r.window.FramebufferSize()
	}
	return uint32(width), uint32(height), nil
}

// ReplacePipeline swaps the bound pipeline and re-records every command
// buffer. On success the caller destroys the old pipeline. On failure the
// scene keeps the old pipeline and the caller still owns the new one.
func (r *Renderer) ReplacePipeline(pipeline vk.Pipeline) error {
	if err := checkResult("device wait idle", r.context.Driver.DeviceWaitIdle()); err != nil {
		return err
	}
	previous := r.scene.Pipeline
	r.scene.Pipeline = pipeline
	err := r.recorder.Record(r.swapchain.Resources(), r.uniforms.Sets, r.scene)
	if err == nil {
		return nil
	}

	r.scene.Pipeline = previous
	if rerr := r.recorder.Record(r.swapchain.Resources(), r.uniforms.Sets, r.scene); rerr != nil {
		core.LogError("Failed to re-record with the previous pipeline: %s", rerr)
	}
	return err
}

func (r *Renderer) InFlight() int {
	return r.sync.InFlight()
}

func (r *Renderer) FramesRendered() uint64 {
	return r.framesRendered
}

// Shutdown drains the device and releases everything the renderer owns in
// reverse creation order.
func (r *Renderer) Shutdown() {
	if res := r.context.Driver.DeviceWaitIdle(); res != vk.Success {
		core.LogWarn("device wait idle on shutdown: %s", VulkanResultString(res))
	}
	r.recorder.Free()
	if r.uniforms != nil {
		r.uniforms.Destroy()
		r.uniforms = nil
	}
	if r.sync != nil {
		r.sync.Destroy()
		r.sync = nil
	}
	r.swapchain.Destroy()
}
