package vulkan

import (
	vk "github.com/goki/vulkan"
)

// FramebufferCreate builds a single layer framebuffer over attachments.
func FramebufferCreate(context *Context, renderPass vk.RenderPass, extent vk.Extent2D, attachments []vk.ImageView) (vk.Framebuffer, error) {
	// Take a copy of the attachments so the caller may reuse its slice.
	views := make([]vk.ImageView, len(attachments))
	copy(views, attachments)

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	framebuffer, res := context.Driver.CreateFramebuffer(&framebufferCreateInfo)
	if err := checkResult("create framebuffer", res); err != nil {
		return nil, err
	}
	return framebuffer, nil
}
