package vulkan

import (
	vk "github.com/goki/vulkan"
)

type FrameSlot struct {
	Fence *Fence
}

// ImageSyncPair belongs to one swapchain image. Acquire is signaled by the
// acquire that returned the image, RenderComplete by the submission that
// rendered it.
type ImageSyncPair struct {
	Acquire        vk.Semaphore
	RenderComplete vk.Semaphore
}

// FrameSync owns the in-flight fences and the per-image semaphores.
//
// Acquire semaphores are bound to image indices, not to the frame counter.
// The image index is unknown until the acquire returns, so the acquire
// signals a spare semaphore which BindImage then exchanges with the one
// held by the image's pair. The semaphore that comes out of the pair was
// last waited on by the submission that rendered the image before, and
// WaitImage waits for that submission's fence before the spare can be
// handed to the next acquire.
type FrameSync struct {
	context *Context

	slots [MaxFramesInFlight]FrameSlot
	pairs []ImageSyncPair
	spare vk.Semaphore

	// Holds pointers to fences which exist and are owned elsewhere.
	imagesInFlight []*Fence
}

func NewFrameSync(context *Context, imageCount uint32) (*FrameSync, error) {
	fs := &FrameSync{context: context}

	stack := &ReleaseStack{}
	defer stack.Release()

	for i := range fs.slots {
		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		// This will prevent the application from waiting indefinitely for the first frame to render since it
		// cannot be rendered until a frame is "rendered" before it.
		fence, err := NewFence(context, true)
		if err != nil {
			return nil, err
		}
		fs.slots[i].Fence = Track(stack, fence, func(f *Fence) { f.Destroy(context) })
	}

	spare, err := fs.createSemaphore()
	if err != nil {
		return nil, err
	}
	fs.spare = Track(stack, spare, context.Driver.DestroySemaphore)

	if err := fs.Resize(imageCount); err != nil {
		return nil, err
	}

	stack.Disarm()
	return fs, nil
}

func (fs *FrameSync) createSemaphore() (vk.Semaphore, error) {
	semaphore, res := fs.context.Driver.CreateSemaphore()
	if err := checkResult("create semaphore", res); err != nil {
		return nil, err
	}
	return semaphore, nil
}

// Resize rebuilds the per-image pairs for a new image count. The device must
// be idle.
func (fs *FrameSync) Resize(imageCount uint32) error {
	fs.destroyPairs()

	stack := &ReleaseStack{}
	defer stack.Release()

	pairs := make([]ImageSyncPair, imageCount)
	for i := range pairs {
		acquire, err := fs.createSemaphore()
		if err != nil {
			return err
		}
		pairs[i].Acquire = Track(stack, acquire, fs.context.Driver.DestroySemaphore)

		renderComplete, err := fs.createSemaphore()
		if err != nil {
			return err
		}
		pairs[i].RenderComplete = Track(stack, renderComplete, fs.context.Driver.DestroySemaphore)
	}

	stack.Disarm()
	fs.pairs = pairs
	fs.imagesInFlight = make([]*Fence, imageCount)
	return nil
}

func (fs *FrameSync) slot(frame uint32) *FrameSlot {
	return &fs.slots[frame%MaxFramesInFlight]
}

// BeginFrame waits without timeout for the slot's previous submission and
// returns the semaphore the next acquire must signal.
func (fs *FrameSync) BeginFrame(frame uint32) (vk.Semaphore, error) {
	if err := fs.slot(frame).Fence.Wait(fs.context, vk.MaxUint64); err != nil {
		return nil, err
	}
	return fs.spare, nil
}

// BindImage moves the semaphore signaled by the last acquire into the pair
// of the image it returned.
func (fs *FrameSync) BindImage(imageIndex uint32) ImageSyncPair {
	pair := &fs.pairs[imageIndex]
	pair.Acquire, fs.spare = fs.spare, pair.Acquire
	return *pair
}

// WaitImage makes sure no other slot's submission still uses imageIndex and
// records the frame's slot as its new user.
func (fs *FrameSync) WaitImage(imageIndex uint32, frame uint32) error {
	current := fs.slot(frame).Fence
	if previous := fs.imagesInFlight[imageIndex]; previous != nil && previous != current {
		if err := previous.Wait(fs.context, vk.MaxUint64); err != nil {
			return err
		}
	}
	fs.imagesInFlight[imageIndex] = current
	return nil
}

// Retire resets the slot's fence right before it is handed to the submit.
func (fs *FrameSync) Retire(frame uint32) (vk.Fence, error) {
	fence := fs.slot(frame).Fence
	if err := fence.Reset(fs.context); err != nil {
		return nil, err
	}
	return fence.Handle, nil
}

func (fs *FrameSync) NextFrame(frame uint32) uint32 {
	return (frame + 1) % MaxFramesInFlight
}

// InFlight counts the slots whose submissions have not been observed as
// complete.
func (fs *FrameSync) InFlight() int {
	n := 0
	for _, s := range fs.slots {
		if s.Fence != nil && !s.Fence.IsSignaled {
			n++
		}
	}
	return n
}

func (fs *FrameSync) Pair(imageIndex uint32) ImageSyncPair {
	return fs.pairs[imageIndex]
}

func (fs *FrameSync) destroyPairs() {
	for _, pair := range fs.pairs {
		fs.context.Driver.DestroySemaphore(pair.Acquire)
		fs.context.Driver.DestroySemaphore(pair.RenderComplete)
	}
	fs.pairs = nil
	fs.imagesInFlight = nil
}

func (fs *FrameSync) Destroy() {
	fs.destroyPairs()
	if fs.spare != nil {
		fs.context.Driver.DestroySemaphore(fs.spare)
		fs.spare = nil
	}
	for i := range fs.slots {
		if fs.slots[i].Fence != nil {
			fs.slots[i].Fence.Destroy(fs.context)
			fs.slots[i].Fence = nil
		}
	}
}
