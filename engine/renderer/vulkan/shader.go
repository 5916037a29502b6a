package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

// VulkanShaderStage is one compiled stage ready to be put in a pipeline.
type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderStage creates a shader module from SPIR-V words. The module is
// only needed until the pipeline using it has been created.
func NewShaderStage(device vk.Device, code []uint32, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType: vk.StructureTypeShaderModuleCreateInfo,
		// Size in bytes.
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}

	var module vk.ShaderModule
	if err := checkResult("create shader module", vk.CreateShaderModule(device, &createInfo, nil, &module)); err != nil {
		return nil, err
	}
	core.LogDebug("Shader module created for stage %d (%d words).", stage, len(code))

	return &VulkanShaderStage{
		Handle: module,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(device vk.Device) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(device, s.Handle, nil)
		s.Handle = vk.NullShaderModule
	}
}
