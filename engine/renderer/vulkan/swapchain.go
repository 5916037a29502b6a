package vulkan

import (
	"fmt"
	"strings"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/spaghettifunk/vkloop/engine/math"
)

// SwapchainResources is one generation of presentable images together with
// everything built on top of them. It is never modified after it has been
// published; recreation builds a replacement and swaps it in whole.
type SwapchainResources struct {
	ID          uuid.UUID
	Generation  uint64
	Handle      vk.Swapchain
	Format      vk.SurfaceFormat
	Extent      vk.Extent2D
	PresentMode vk.PresentMode

	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []vk.Framebuffer
}

func (r *SwapchainResources) ImageCount() uint32 {
	return uint32(len(r.Images))
}

type Swapchain struct {
	context       *Context
	renderPass    vk.RenderPass
	preferredMode vk.PresentMode

	current    atomic.Pointer[SwapchainResources]
	generation uint64
}

func NewSwapchain(context *Context, renderPass vk.RenderPass, preferredMode vk.PresentMode) *Swapchain {
	return &Swapchain{
		context:       context,
		renderPass:    renderPass,
		preferredMode: preferredMode,
	}
}

// ParsePresentMode maps a configuration name to a present mode.
func ParsePresentMode(name string) (vk.PresentMode, error) {
	switch strings.ToLower(name) {
	case "mailbox":
		return vk.PresentModeMailbox, nil
	case "fifo", "":
		return vk.PresentModeFifo, nil
	case "fifo_relaxed":
		return vk.PresentModeFifoRelaxed, nil
	case "immediate":
		return vk.PresentModeImmediate, nil
	}
	return vk.PresentModeFifo, fmt.Errorf("unknown present mode %q", name)
}

// ChooseSurfaceFormat prefers 8 bit BGRA sRGB with a non-linear sRGB color
// space anywhere in the list and otherwise takes the first format.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// ChoosePresentMode returns preferred when the surface supports it. FIFO
// is the fallback since every presentation engine must support it.
func ChoosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface leaves
// it to the application, in which case the framebuffer size is clamped to
// the supported range.
func ChooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != vk.MaxUint32 {
		return capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	min := capabilities.MinImageExtent
	max := capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  math.Clamp(width, min.Width, max.Width),
		Height: math.Clamp(height, min.Height, max.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum. A maximum of
// zero means there is no limit.
func ChooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// Resources returns the current generation or nil before Create.
func (s *Swapchain) Resources() *SwapchainResources {
	return s.current.Load()
}

func (s *Swapchain) Create(width, height uint32) error {
	support, res := s.context.Driver.SurfaceSupport()
	if res != vk.Success {
		return checkResult("query surface support", res)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		err := &Error{Op: "query surface support", Kind: KindSurfaceLost, Result: vk.ErrorSurfaceLost}
		core.LogError(err.Error())
		return err
	}

	format := ChooseSurfaceFormat(support.Formats)
	presentMode := ChoosePresentMode(support.PresentModes, s.preferredMode)
	extent := ChooseExtent(support.Capabilities, width, height)
	imageCount := ChooseImageCount(support.Capabilities)

	if extent.Width == 0 || extent.Height == 0 {
		return &Error{Op: "create swapchain", Kind: KindNotReady, Result: vk.NotReady}
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	if s.context.SharedQueues() {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			s.context.QueueFamilies.Graphics,
			s.context.QueueFamilies.Present,
		}
	}

	stack := &ReleaseStack{}
	defer stack.Release()

	driver := s.context.Driver
	handle, res := driver.CreateSwapchain(&swapchainCreateInfo)
	if err := checkResult("create swapchain", res); err != nil {
		return err
	}
	Track(stack, handle, driver.DestroySwapchain)

	images, res := driver.SwapchainImages(handle)
	if err := checkResult("get swapchain images", res); err != nil {
		return err
	}

	views := make([]vk.ImageView, len(images))
	for i, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		view, res := driver.CreateImageView(&viewInfo)
		if err := checkResult("create image view", res); err != nil {
			return err
		}
		views[i] = Track(stack, view, driver.DestroyImageView)
	}

	framebuffers := make([]vk.Framebuffer, len(views))
	for i, view := range views {
		framebuffer, err := FramebufferCreate(s.context, s.renderPass, extent, []vk.ImageView{view})
		if err != nil {
			return err
		}
		framebuffers[i] = Track(stack, framebuffer, driver.DestroyFramebuffer)
	}

	// Every handle now belongs to the arena.
	stack.Disarm()

	s.generation++
	resources := &SwapchainResources{
		ID:           uuid.New(),
		Generation:   s.generation,
		Handle:       handle,
		Format:       format,
		Extent:       extent,
		PresentMode:  presentMode,
		Images:       images,
		Views:        views,
		Framebuffers: framebuffers,
	}
	s.current.Store(resources)

	core.LogWith("swapchain", resources.ID, "generation", resources.Generation).Info(
		"Swapchain created successfully.",
		"width", extent.Width, "height", extent.Height, "images", len(images), "presentMode", presentMode,
	)
	return nil
}

// Recreate drains the device, tears the current generation down and
// creates the next one.
func (s *Swapchain) Recreate(width, height uint32) error {
	if err := checkResult("device wait idle", s.context.Driver.DeviceWaitIdle()); err != nil {
		return err
	}
	s.destroyResources(s.current.Swap(nil))
	return s.Create(width, height)
}

func (s *Swapchain) Destroy() {
	s.destroyResources(s.current.Swap(nil))
}

func (s *Swapchain) destroyResources(resources *SwapchainResources) {
	if resources == nil {
		return
	}
	driver := s.context.Driver
	for _, framebuffer := range resources.Framebuffers {
		driver.DestroyFramebuffer(framebuffer)
	}
	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range resources.Views {
		driver.DestroyImageView(view)
	}
	driver.DestroySwapchain(resources.Handle)
}

// AcquireNextImage blocks until the presentation engine hands out an image.
// A suboptimal acquire returns the index together with a KindSuboptimal error.
func (s *Swapchain) AcquireNextImage(semaphore vk.Semaphore) (uint32, error) {
	resources := s.current.Load()
	imageIndex, res := s.context.Driver.AcquireNextImage(resources.Handle, vk.MaxUint64, semaphore)
	if res == vk.Success {
		return imageIndex, nil
	}
	return imageIndex, newError("acquire next image", res)
}

// Present queues imageIndex for presentation once waitSemaphore is signaled.
func (s *Swapchain) Present(queue vk.Queue, waitSemaphore vk.Semaphore, imageIndex uint32) error {
	resources := s.current.Load()
	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{resources.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	if res := s.context.Driver.QueuePresent(queue, &presentInfo); res != vk.Success {
		return newError("queue present", res)
	}
	return nil
}
