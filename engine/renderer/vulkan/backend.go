package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/assets/loaders"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/spaghettifunk/vkloop/engine/math"
)

// Platform is the window the backend renders into.
type Platform interface {
	Window
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// ShaderSource resolves compiled shaders by name, e.g. "shader.vert".
type ShaderSource interface {
	LoadShader(name string) (*loaders.Resource, error)
}

type BackendConfig struct {
	ApplicationName string
	Validation      bool
	PresentMode     vk.PresentMode
	ClearColor      [4]float32
}

var shaderStages = []struct {
	name  string
	stage vk.ShaderStageFlagBits
}{
	{name: "shader.vert", stage: vk.ShaderStageVertexBit},
	{name: "shader.frag", stage: vk.ShaderStageFragmentBit},
}

// VulkanRenderer owns every Vulkan object of the application, from the
// instance down to the per frame renderer.
type VulkanRenderer struct {
	platform Platform
	shaders  ShaderSource
	config   BackendConfig

	instance         *VulkanInstance
	device           *VulkanDevice
	context          *Context
	renderpass       *Renderpass
	descriptorLayout vk.DescriptorSetLayout
	pipelineLayout   vk.PipelineLayout
	pipeline         *VulkanPipeline
	mesh             *Mesh
	swapchain        *Swapchain
	renderer         *Renderer

	// Destroys everything above the renderer in reverse creation order.
	cleanup ReleaseStack
}

func New(platform Platform, shaders ShaderSource, config BackendConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: platform,
		shaders:  shaders,
		config:   config,
	}
}

// Initialize bootstraps Vulkan and uploads the mesh the frames will draw,
// placed by model. The platform's Vulkan loader must already be initialized.
func (vr *VulkanRenderer) Initialize(vertices []math.Vertex3D, indices []uint32, model *math.Transform) error {
	if err := vr.initialize(vertices, indices, model); err != nil {
		vr.cleanup.Release()
		return err
	}
	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) initialize(vertices []math.Vertex3D, indices []uint32, model *math.Transform) error {
	instance, err := InstanceCreate(vr.config.ApplicationName, vr.platform.RequiredInstanceExtensions(), vr.config.Validation)
	if err != nil {
		return err
	}
	vr.instance = Track(&vr.cleanup, instance, (*VulkanInstance).Destroy)

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateSurface(instance.Handle)
	if err != nil {
		return err
	}
	Track(&vr.cleanup, surface, instance.DestroySurface)
	core.LogDebug("Vulkan surface created.")

	device, err := DeviceCreate(instance.Handle, surface)
	if err != nil {
		return err
	}
	vr.device = Track(&vr.cleanup, device, (*VulkanDevice).Destroy)

	vr.context = &Context{
		Driver:        newDeviceDriver(device, surface),
		Surface:       surface,
		GraphicsQueue: device.GraphicsQueue,
		PresentQueue:  device.PresentQueue,
		QueueFamilies: QueueFamilies{
			Graphics: device.GraphicsQueueIndex,
			Present:  device.PresentQueueIndex,
		},
		CommandPool: device.GraphicsCommandPool,
	}

	// The render pass is created once, in the format every swapchain
	// generation of this surface will use.
	support, res := vr.context.Driver.SurfaceSupport()
	if err := checkResult("query surface support", res); err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return &Error{Op: "query surface support", Kind: KindSurfaceLost, Result: vk.ErrorSurfaceLost}
	}
	format := ChooseSurfaceFormat(support.Formats)
	c := vr.config.ClearColor
	renderpass, err := RenderpassCreate(device, format.Format, c[0], c[1], c[2], c[3])
	if err != nil {
		return err
	}
	vr.renderpass = Track(&vr.cleanup, renderpass, func(rp *Renderpass) { rp.Destroy(device) })

	descriptorLayout, err := DescriptorSetLayoutCreate(device.LogicalDevice)
	if err != nil {
		return err
	}
	vr.descriptorLayout = Track(&vr.cleanup, descriptorLayout, func(l vk.DescriptorSetLayout) {
		vk.DestroyDescriptorSetLayout(device.LogicalDevice, l, nil)
	})

	pipelineLayout, err := PipelineLayoutCreate(device.LogicalDevice, []vk.DescriptorSetLayout{descriptorLayout})
	if err != nil {
		return err
	}
	vr.pipelineLayout = Track(&vr.cleanup, pipelineLayout, func(l vk.PipelineLayout) {
		vk.DestroyPipelineLayout(device.LogicalDevice, l, nil)
	})

	pipeline, err := vr.createPipeline()
	if err != nil {
		return err
	}
	vr.pipeline = pipeline
	// The pipeline can be replaced by a shader reload, so release whichever
	// one is current.
	vr.cleanup.Push(func() {
		if vr.pipeline != nil {
			vr.pipeline.Destroy(device.LogicalDevice)
		}
	})

	mesh, err := MeshUpload(vr.context, vertices, indices)
	if err != nil {
		return err
	}
	vr.mesh = Track(&vr.cleanup, mesh, func(m *Mesh) { m.Destroy(vr.context) })

	vr.swapchain = NewSwapchain(vr.context, renderpass.Handle, vr.config.PresentMode)
	scene := &Scene{
		Renderpass:     renderpass,
		Pipeline:       pipeline.Handle,
		PipelineLayout: pipelineLayout,
		VertexBuffer:   mesh.VertexBuffer.Handle,
		IndexBuffer:    mesh.IndexBuffer.Handle,
		IndexCount:     mesh.IndexCount,
		Model:          model,
	}
	vr.renderer = NewRenderer(vr.context, vr.platform, vr.swapchain, descriptorLayout, scene)
	if err := vr.renderer.Initialize(); err != nil {
		vr.renderer.Shutdown()
		vr.renderer = nil
		return err
	}
	return nil
}

// createPipeline builds a pipeline from the current shader binaries. The
// shader modules are released as soon as the pipeline exists.
func (vr *VulkanRenderer) createPipeline() (*VulkanPipeline, error) {
	device := vr.device.LogicalDevice
	destroyStage := func(s *VulkanShaderStage) { s.Destroy(device) }

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(shaderStages))
	for _, s := range shaderStages {
		res, err := vr.shaders.LoadShader(s.name)
		if err != nil {
			err = fmt.Errorf("unable to read shader module %s: %w", s.name, err)
			core.LogError(err.Error())
			return nil, err
		}
		stage, err := NewShaderStage(device, res.Data, s.stage)
		if err != nil {
			return nil, err
		}
		module := NewResource(stage, destroyStage)
		defer module.Release()
		stages = append(stages, stage.ShaderStageCreateInfo)
	}
	return NewGraphicsPipeline(device, DefaultPipelineConfig(vr.renderpass, vr.pipelineLayout, stages))
}

// DrawFrame renders one frame. See Renderer.DrawFrame.
func (vr *VulkanRenderer) DrawFrame() (FrameStatus, error) {
	return vr.renderer.DrawFrame()
}

func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.renderer.Resized(width, height)
}

func (vr *VulkanRenderer) FramesRendered() uint64 {
	return vr.renderer.FramesRendered()
}

// ReloadShaders rebuilds the pipeline from the shader binaries on disk and
// re-records the command buffers. A shader that fails to load or compile
// into a pipeline leaves the current pipeline in place.
func (vr *VulkanRenderer) ReloadShaders() error {
	core.LogInfo("Reloading shaders...")
	pipeline, err := vr.createPipeline()
	if err != nil {
		core.LogWarn("Keeping the current pipeline: %s", err)
		return nil
	}

	if err := vr.renderer.ReplacePipeline(pipeline.Handle); err != nil {
		// The scene still references the current pipeline.
		pipeline.Destroy(vr.device.LogicalDevice)
		return err
	}
	previous := vr.pipeline
	vr.pipeline = pipeline
	previous.Destroy(vr.device.LogicalDevice)
	core.LogInfo("Shaders reloaded.")
	return nil
}

func (vr *VulkanRenderer) Shutdown() {
	core.LogInfo("Destroying Vulkan backend...")
	if vr.renderer != nil {
		vr.renderer.Shutdown()
		vr.renderer = nil
	}
	vr.cleanup.Release()
}
