package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rendererFixture struct {
	driver   *fakeDriver
	window   *fakeWindow
	scene    *Scene
	renderer *Renderer
}

func newRendererFixture(t *testing.T) *rendererFixture {
	t.Helper()
	d := newFakeDriver()
	ctx := newTestContext(d)
	w := &fakeWindow{width: 1024, height: 768}
	scene := newTestScene(d)
	sc := NewSwapchain(ctx, scene.Renderpass.Handle, vk.PresentModeMailbox)
	layout := vk.DescriptorSetLayout(d.handle("descriptorsetlayout"))

	r := NewRenderer(ctx, w, sc, layout, scene)
	require.NoError(t, r.Initialize())
	return &rendererFixture{driver: d, window: w, scene: scene, renderer: r}
}

func (f *rendererFixture) generation() uint64 {
	return f.renderer.swapchain.Resources().Generation
}

func (f *rendererFixture) drawFrames(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		status, err := f.renderer.DrawFrame()
		require.NoError(t, err)
		require.Equal(t, FramePresented, status)
	}
}

func TestRendererInitialize(t *testing.T) {
	f := newRendererFixture(t)
	res := f.renderer.swapchain.Resources()

	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, res.Extent)
	assert.Equal(t, uint32(3), res.ImageCount())
	assert.Equal(t, 3, f.driver.liveCount("commandbuffer"))
	assert.Equal(t, 3, f.driver.liveCount("descriptorset"))
	assert.Equal(t, 1, f.driver.calls["UpdateDescriptorSets"])
	assert.Zero(t, f.renderer.InFlight())
	assert.Empty(t, f.driver.violations)
}

func TestRendererDrawFrames(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 10)

	assert.Equal(t, uint64(10), f.renderer.FramesRendered())
	assert.Len(t, f.driver.submits, 10)
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, f.driver.presents)
	assert.LessOrEqual(t, f.driver.maxPending, MaxFramesInFlight)
	assert.Equal(t, MaxFramesInFlight, f.driver.maxPending)
	assert.LessOrEqual(t, f.renderer.InFlight(), MaxFramesInFlight)
	assert.Equal(t, uint64(1), f.generation())
	assert.Empty(t, f.driver.violations)
}

func TestRendererSubmitUsesImagePair(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 1)

	submit := f.driver.submits[0]
	pair := f.renderer.sync.Pair(0)
	assert.Equal(t, []uintptr{addr(pair.Acquire)}, addrs(submit.PWaitSemaphores))
	assert.Equal(t, []uintptr{addr(f.driver.acquired[0])}, addrs(submit.PWaitSemaphores), "waits on the semaphore the acquire signaled")
	assert.Equal(t, []uintptr{addr(pair.RenderComplete)}, addrs(submit.PSignalSemaphores))
	assert.Equal(t, []uintptr{addr(f.renderer.recorder.Buffer(0).Handle)}, addrs(submit.PCommandBuffers))
	assert.NotEqual(t, addr(f.renderer.sync.Pair(1).RenderComplete), addr(pair.RenderComplete))
	assert.Equal(t, COMMAND_BUFFER_STATE_SUBMITTED, f.renderer.recorder.Buffer(0).State)
}

func TestRendererWritesUniformsOfAcquiredImage(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 1)

	uniforms := f.renderer.uniforms
	assert.Len(t, f.driver.writes[uniforms.transforms[0].Memory], TransformBlockSize)
	assert.Len(t, f.driver.writes[uniforms.lighting[0].Memory], LightingBlockSize)
	_, written := f.driver.writes[uniforms.transforms[1].Memory]
	assert.False(t, written, "other images keep their uniforms")
}

func TestRendererOutOfDateOnAcquireSkipsFrame(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 2)

	f.driver.acquireResults = []vk.Result{vk.ErrorOutOfDate}
	resets := f.driver.calls["ResetFence"]

	status, err := f.renderer.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameSkipped, status)
	assert.Equal(t, uint64(2), f.generation())
	assert.Len(t, f.driver.submits, 2, "nothing is submitted for a skipped frame")
	assert.Equal(t, resets, f.driver.calls["ResetFence"], "the slot fence stays signaled")
	assert.Equal(t, uint64(2), f.renderer.FramesRendered())

	// The next ticks render normally and never wait on an unsignaled fence.
	f.drawFrames(t, 5)
	assert.Equal(t, uint64(2), f.generation())
	assert.Empty(t, f.driver.violations)
}

func TestRendererSuboptimalAcquirePresentsThenRecreates(t *testing.T) {
	f := newRendererFixture(t)
	f.driver.acquireResults = []vk.Result{vk.Suboptimal}

	status, err := f.renderer.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameRecreated, status)
	assert.Len(t, f.driver.presents, 1)
	assert.Equal(t, uint64(2), f.generation())

	f.drawFrames(t, 3)
	assert.Empty(t, f.driver.violations)
}

func TestRendererPresentResultsTriggerRecreate(t *testing.T) {
	for _, result := range []vk.Result{vk.ErrorOutOfDate, vk.Suboptimal} {
		t.Run(VulkanResultString(result), func(t *testing.T) {
			f := newRendererFixture(t)
			f.driver.presentResults = []vk.Result{result}

			status, err := f.renderer.DrawFrame()
			require.NoError(t, err)
			assert.Equal(t, FrameRecreated, status)
			assert.Equal(t, uint64(2), f.generation())
			assert.Equal(t, uint64(1), f.renderer.FramesRendered())

			f.drawFrames(t, 3)
			assert.Empty(t, f.driver.violations)
		})
	}
}

func TestRendererOutOfOrderAcquire(t *testing.T) {
	f := newRendererFixture(t)
	order := []uint32{0, 1, 0, 2, 2, 1, 1, 0, 2, 0, 1, 2}
	f.driver.acquireOrder = append([]uint32(nil), order...)

	f.drawFrames(t, len(order))
	assert.Equal(t, order, f.driver.presents)
	assert.LessOrEqual(t, f.driver.maxPending, MaxFramesInFlight)
	require.Len(t, f.driver.submits, len(order))
	for i, submit := range f.driver.submits {
		assert.Equal(t, []uintptr{addr(f.driver.acquired[i])}, addrs(submit.PWaitSemaphores), "frame %d", i)
		assert.Equal(t, []uintptr{addr(f.renderer.sync.Pair(order[i]).RenderComplete)}, addrs(submit.PSignalSemaphores), "frame %d", i)
	}
	assert.Empty(t, f.driver.violations)
}

func TestRendererResize(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 3)

	f.driver.support.Capabilities.CurrentExtent = vk.Extent2D{Width: 1280, Height: 720}
	f.window.width, f.window.height = 1280, 720
	f.renderer.Resized(1280, 720)

	status, err := f.renderer.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameRecreated, status)

	res := f.renderer.swapchain.Resources()
	assert.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, res.Extent)
	assert.Equal(t, uint64(2), res.Generation)
	assert.Equal(t, 1, f.driver.liveCount("swapchain"))
	assert.Equal(t, 3, f.driver.liveCount("framebuffer"))
	assert.Equal(t, 3, f.driver.liveCount("commandbuffer"))

	cb := f.renderer.recorder.Buffer(0).Handle
	assert.Contains(t, f.driver.recorded[cb], "viewport 1280x720")
	assert.Contains(t, f.driver.recorded[cb], "scissor 1280x720")

	// The resize is consumed by the recreation.
	f.drawFrames(t, 3)
	assert.Equal(t, uint64(2), f.generation())
	assert.Empty(t, f.driver.violations)
}

func TestRendererWaitsWhileMinimized(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 1)

	f.window.width, f.window.height = 0, 0
	f.window.onWait = func(w *fakeWindow) {
		if w.waits == 3 {
			w.width, w.height = 1024, 768
		}
	}
	f.renderer.Resized(0, 0)

	status, err := f.renderer.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameRecreated, status)
	assert.Equal(t, 3, f.window.waits)
	assert.Equal(t, uint64(2), f.generation())
	assert.Empty(t, f.driver.violations)
}

func TestRendererWindowClosedWhileMinimized(t *testing.T) {
	f := newRendererFixture(t)

	f.window.width, f.window.height = 0, 0
	f.window.onWait = func(w *fakeWindow) { w.closed = true }
	f.driver.acquireResults = []vk.Result{vk.ErrorOutOfDate}

	_, err := f.renderer.DrawFrame()
	assert.True(t, errors.Is(err, core.ErrWindowClosed))
	assert.Equal(t, 1, f.window.waits)
}

func TestRendererWaitsWhileSurfaceExtentIsZero(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 1)

	// The window still reports its size but the surface is already minimized.
	caps := &f.driver.support.Capabilities
	caps.CurrentExtent = vk.Extent2D{}
	f.window.onWait = func(w *fakeWindow) {
		if w.waits == 2 {
			caps.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
		}
	}
	f.driver.acquireResults = []vk.Result{vk.ErrorOutOfDate}

	status, err := f.renderer.DrawFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameSkipped, status)
	assert.Equal(t, 2, f.window.waits)
	require.NotNil(t, f.renderer.swapchain.Resources())
	assert.Equal(t, uint64(2), f.generation())
	assert.Equal(t, 1, f.driver.liveCount("swapchain"))
	assert.Equal(t, 3, f.driver.liveCount("framebuffer"))

	f.drawFrames(t, 3)
	assert.Empty(t, f.driver.violations)
}

func TestRendererWindowClosedWhileSurfaceExtentIsZero(t *testing.T) {
	f := newRendererFixture(t)
	f.driver.support.Capabilities.CurrentExtent = vk.Extent2D{}
	f.window.onWait = func(w *fakeWindow) { w.closed = true }
	f.driver.acquireResults = []vk.Result{vk.ErrorOutOfDate}

	_, err := f.renderer.DrawFrame()
	assert.True(t, errors.Is(err, core.ErrWindowClosed))
	assert.Equal(t, 1, f.window.waits)
}

func TestRendererInitializeWaitsForSurfaceExtent(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(d)
	d.support.Capabilities.CurrentExtent = vk.Extent2D{}
	w := &fakeWindow{width: 1024, height: 768}
	w.onWait = func(w *fakeWindow) {
		d.support.Capabilities.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
	}
	scene := newTestScene(d)
	r := NewRenderer(ctx, w, NewSwapchain(ctx, scene.Renderpass.Handle, vk.PresentModeFifo), nil, scene)

	require.NoError(t, r.Initialize())
	assert.Equal(t, 1, w.waits)
	assert.Equal(t, uint64(1), r.swapchain.Resources().Generation)
	r.Shutdown()
	assert.Empty(t, d.violations)
}

func TestRendererInitializeWindowClosed(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(d)
	w := &fakeWindow{closed: true}
	scene := newTestScene(d)
	r := NewRenderer(ctx, w, NewSwapchain(ctx, scene.Renderpass.Handle, vk.PresentModeFifo), nil, scene)

	err := r.Initialize()
	assert.True(t, errors.Is(err, core.ErrWindowClosed))
	assert.Zero(t, d.calls["CreateSwapchain"])
}

func TestRendererFatalErrors(t *testing.T) {
	f := newRendererFixture(t)
	f.driver.acquireResults = []vk.Result{vk.ErrorDeviceLost}

	status, err := f.renderer.DrawFrame()
	require.Error(t, err)
	assert.Equal(t, FrameSkipped, status)
	assert.True(t, IsKind(err, KindDeviceLost))
	assert.True(t, errors.Is(err, ErrDeviceLost))

	f.driver.presentResults = []vk.Result{vk.ErrorSurfaceLost}
	_, err = f.renderer.DrawFrame()
	assert.True(t, errors.Is(err, ErrSurfaceLost))
}

func TestRendererReplacePipeline(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 2)

	pipeline := vk.Pipeline(f.driver.handle("pipeline"))
	idle := f.driver.calls["DeviceWaitIdle"]
	require.NoError(t, f.renderer.ReplacePipeline(pipeline))

	assert.Equal(t, idle+1, f.driver.calls["DeviceWaitIdle"])
	assert.Equal(t, addr(pipeline), addr(f.scene.Pipeline))
	for i := 0; i < f.renderer.recorder.Len(); i++ {
		cb := f.renderer.recorder.Buffer(uint32(i)).Handle
		assert.Equal(t, addr(pipeline), addr(f.driver.pipeline[cb]))
	}
	assert.Equal(t, 3, f.driver.liveCount("commandbuffer"))

	f.drawFrames(t, 3)
	assert.Empty(t, f.driver.violations)
}

func TestRendererReplacePipelineFailureKeepsCurrent(t *testing.T) {
	t.Run("device wait idle", func(t *testing.T) {
		f := newRendererFixture(t)
		current := f.scene.Pipeline
		f.driver.failAfter["DeviceWaitIdle"] = f.driver.calls["DeviceWaitIdle"]

		err := f.renderer.ReplacePipeline(vk.Pipeline(f.driver.handle("pipeline")))
		assert.True(t, IsKind(err, KindDeviceLost))
		assert.Equal(t, addr(current), addr(f.scene.Pipeline))
		for i := 0; i < f.renderer.recorder.Len(); i++ {
			cb := f.renderer.recorder.Buffer(uint32(i)).Handle
			assert.Equal(t, addr(current), addr(f.driver.pipeline[cb]))
		}
	})

	t.Run("record", func(t *testing.T) {
		f := newRendererFixture(t)
		current := f.scene.Pipeline
		f.driver.failAfter["BeginCommandBuffer"] = f.driver.calls["BeginCommandBuffer"]

		err := f.renderer.ReplacePipeline(vk.Pipeline(f.driver.handle("pipeline")))
		require.Error(t, err)
		assert.Equal(t, addr(current), addr(f.scene.Pipeline))
		assert.Zero(t, f.driver.liveCount("commandbuffer"))
	})
}

func TestRendererShutdownReleasesEverything(t *testing.T) {
	f := newRendererFixture(t)
	f.drawFrames(t, 4)
	f.renderer.Resized(1024, 768)
	_, err := f.renderer.DrawFrame()
	require.NoError(t, err)

	f.renderer.Shutdown()
	for _, kind := range frameResourceKinds {
		assert.Zero(t, f.driver.liveCount(kind), kind)
	}
	assert.Empty(t, f.driver.violations)
}

func TestFrameStatusString(t *testing.T) {
	assert.Equal(t, "presented", FramePresented.String())
	assert.Equal(t, "skipped", FrameSkipped.String())
	assert.Equal(t, "recreated", FrameRecreated.String())
	assert.Equal(t, "unknown", FrameStatus(42).String())
}
