package vulkan

import (
	vk "github.com/goki/vulkan"
)

type Renderpass struct {
	Handle     vk.RenderPass
	R, G, B, A float32
}

// RenderpassCreate builds a single subpass render pass with one color
// attachment in format, cleared on load and left ready for presentation.
func RenderpassCreate(device *VulkanDevice, format vk.Format, r, g, b, a float32) (*Renderpass, error) {
	outRenderpass := &Renderpass{R: r, G: g, B: b, A: a}

	// Color attachment
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	// The acquire semaphore is waited on at the color output stage, so the
	// layout transition has to wait for it there as well.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if err := checkResult("create render pass", vk.CreateRenderPass(device.LogicalDevice, &renderpassCreateInfo, nil, &pRenderPass)); err != nil {
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *Renderpass) Destroy(device *VulkanDevice) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(device.LogicalDevice, vr.Handle, nil)
		vr.Handle = nil
	}
}

// Begin starts the render pass on framebuffer, covering the whole extent.
func (vr *Renderpass) Begin(context *Context, commandBuffer *CommandBuffer, framebuffer vk.Framebuffer, extent vk.Extent2D) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor([]float32{vr.R, vr.G, vr.B, vr.A})

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}
	commandBuffer.BeginRenderPass(context, &beginInfo)
}

func (vr *Renderpass) End(context *Context, commandBuffer *CommandBuffer) {
	commandBuffer.EndRenderPass(context)
}
