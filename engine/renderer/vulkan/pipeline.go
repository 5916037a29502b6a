package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/spaghettifunk/vkloop/engine/math"
)

/**
 * @brief Holds a Vulkan pipeline. The layout is shared with the descriptor
 * sets and outlives any one pipeline, so it is owned by the caller.
 */
type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass to associate with the pipeline. */
	Renderpass *Renderpass
	/** @brief The layout the pipeline is created against. */
	PipelineLayout vk.PipelineLayout
	/** @brief The stride of the vertex data to be used (ex: sizeof(vertex_3d)) */
	Stride uint32
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	/** @brief The face cull mode. */
	CullMode vk.CullModeFlagBits
	/** @brief Indicates if this pipeline should use wireframe mode. */
	IsWireframe bool
}

// Vertex3DAttributes describes math.Vertex3D: position at location 0,
// normal at 1 and texture coordinate at 2.
func Vertex3DAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Binding: 0, Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Binding: 0, Location: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Binding: 0, Location: 2, Format: vk.FormatR32g32Sfloat, Offset: 24},
	}
}

// DefaultPipelineConfig is the configuration used for the scene: Vertex3D
// input, back face culling and filled polygons.
func DefaultPipelineConfig(renderpass *Renderpass, layout vk.PipelineLayout, stages []vk.PipelineShaderStageCreateInfo) *VulkanPipelineConfig {
	return &VulkanPipelineConfig{
		Renderpass:     renderpass,
		PipelineLayout: layout,
		Stride:         math.Vertex3DSize,
		Attributes:     Vertex3DAttributes(),
		Stages:         stages,
		CullMode:       vk.CullModeBackBit,
	}
}

// DescriptorSetLayoutCreate creates the scene layout: the transform block
// at binding 0 for the vertex stage and the lighting block at binding 1 for
// the fragment stage.
func DescriptorSetLayoutCreate(device vk.Device) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := checkResult("create descriptor set layout", vk.CreateDescriptorSetLayout(device, &layoutInfo, nil, &layout)); err != nil {
		return nil, err
	}
	return layout, nil
}

func PipelineLayoutCreate(device vk.Device, setLayouts []vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if err := checkResult("create pipeline layout", vk.CreatePipelineLayout(device, &pipelineLayoutCreateInfo, nil, &layout)); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

func NewGraphicsPipeline(device vk.Device, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if len(config.Stages) == 0 {
		return nil, fmt.Errorf("func NewGraphicsPipeline: at least one shader stage is required")
	}
	outPipeline := &VulkanPipeline{PipelineLayout: config.PipelineLayout}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.IsWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    config.Stride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}

	// Attributes
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              config.PipelineLayout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := checkResult("create graphics pipelines", vk.CreateGraphicsPipelines(
		device,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
		nil,
		pPipelines)); err != nil {
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

// Destroy releases the pipeline. The layout is left to its owner.
func (pipeline *VulkanPipeline) Destroy(device vk.Device) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(device, pipeline.Handle, nil)
		pipeline.Handle = vk.NullPipeline
	}
}
