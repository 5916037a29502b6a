package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameSync(t *testing.T) {
	d := newFakeDriver()
	fs, err := NewFrameSync(newTestContext(d), 3)
	require.NoError(t, err)

	assert.Equal(t, MaxFramesInFlight, d.liveCount("fence"))
	// One acquire and one render complete semaphore per image plus the spare.
	assert.Equal(t, 2*3+1, d.liveCount("semaphore"))
	assert.Zero(t, fs.InFlight(), "fences start signaled")

	fs.Destroy()
	assert.Zero(t, d.liveCount("fence"))
	assert.Zero(t, d.liveCount("semaphore"))
	assert.Empty(t, d.violations)
}

func TestNewFrameSyncFailureReleasesEverything(t *testing.T) {
	d := newFakeDriver()
	d.failAfter["CreateSemaphore"] = 4
	_, err := NewFrameSync(newTestContext(d), 3)
	require.Error(t, err)

	assert.Zero(t, d.liveCount("fence"))
	assert.Zero(t, d.liveCount("semaphore"))
	assert.Empty(t, d.violations)
}

func TestFrameSyncBindImageRotatesSemaphores(t *testing.T) {
	d := newFakeDriver()
	fs, err := NewFrameSync(newTestContext(d), 2)
	require.NoError(t, err)
	defer fs.Destroy()

	spare, err := fs.BeginFrame(0)
	require.NoError(t, err)
	before := fs.Pair(1)
	other := fs.Pair(0)

	pair := fs.BindImage(1)
	assert.Equal(t, addr(spare), addr(pair.Acquire), "the acquired semaphore moves into the image's pair")
	assert.NotEqual(t, addr(before.Acquire), addr(pair.Acquire))
	assert.Equal(t, addr(before.RenderComplete), addr(pair.RenderComplete))
	assert.Equal(t, addr(pair.Acquire), addr(fs.Pair(1).Acquire))
	assert.Equal(t, addr(other.Acquire), addr(fs.Pair(0).Acquire), "other images keep their pair")

	next, err := fs.BeginFrame(1)
	require.NoError(t, err)
	assert.Equal(t, addr(before.Acquire), addr(next), "the pair's previous semaphore becomes the spare")
}

func TestFrameSyncRetireAndInFlight(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(d)
	fs, err := NewFrameSync(ctx, 3)
	require.NoError(t, err)
	defer fs.Destroy()

	for frame := uint32(0); frame < MaxFramesInFlight; frame++ {
		_, err := fs.BeginFrame(frame)
		require.NoError(t, err)
		fence, err := fs.Retire(frame)
		require.NoError(t, err)
		require.Equal(t, vk.Success, d.QueueSubmit(ctx.GraphicsQueue, vk.SubmitInfo{}, fence))
	}
	assert.Equal(t, MaxFramesInFlight, fs.InFlight())
	assert.Equal(t, MaxFramesInFlight, d.pendingFences())

	// Starting the slot again retires its previous submission.
	_, err = fs.BeginFrame(0)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.InFlight())
	assert.Equal(t, 1, d.pendingFences())
	assert.Empty(t, d.violations)
}

func TestFrameSyncWaitImage(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(d)
	fs, err := NewFrameSync(ctx, 3)
	require.NoError(t, err)
	defer fs.Destroy()

	// Frame 0 renders image 2 and stays in flight.
	require.NoError(t, fs.WaitImage(2, 0))
	fence, err := fs.Retire(0)
	require.NoError(t, err)
	require.Equal(t, vk.Success, d.QueueSubmit(ctx.GraphicsQueue, vk.SubmitInfo{}, fence))
	waits := d.calls["WaitForFence"]

	// Frame 1 gets image 2 back and has to wait for frame 0.
	require.NoError(t, fs.WaitImage(2, 1))
	assert.Equal(t, waits+1, d.calls["WaitForFence"])
	assert.Equal(t, 0, d.pendingFences())

	// Using the image from the same slot again does not wait.
	require.NoError(t, fs.WaitImage(2, 1))
	assert.Equal(t, waits+1, d.calls["WaitForFence"])
	assert.Empty(t, d.violations)
}

func TestFrameSyncResize(t *testing.T) {
	d := newFakeDriver()
	fs, err := NewFrameSync(newTestContext(d), 3)
	require.NoError(t, err)
	defer fs.Destroy()

	old := fs.Pair(0)
	require.NoError(t, fs.Resize(2))
	assert.Equal(t, 2*2+1, d.liveCount("semaphore"))
	for _, semaphore := range []vk.Semaphore{old.Acquire, old.RenderComplete} {
		_, ok := d.semaphores[semaphore]
		assert.False(t, ok, "semaphore %#x survived the resize", addr(semaphore))
	}
	assert.Equal(t, MaxFramesInFlight, d.liveCount("fence"), "fences survive a resize")
	assert.Empty(t, d.violations)
}

func TestFrameSyncNextFrame(t *testing.T) {
	fs := &FrameSync{}
	assert.Equal(t, uint32(1), fs.NextFrame(0))
	assert.Equal(t, uint32(0), fs.NextFrame(MaxFramesInFlight-1))
}
