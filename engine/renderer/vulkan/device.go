package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

// Complete reports whether both families were found.
func (q VulkanPhysicalDeviceQueueFamilyInfo) Complete() bool {
	return q.GraphicsFamilyIndex >= 0 && q.PresentFamilyIndex >= 0
}

var requiredDeviceExtensions = []string{vk.KhrSwapchainExtensionName}

const portabilitySubsetExtension = "VK_KHR_portability_subset"

// DeviceCreate selects a physical device able to render to and present on
// surface, then creates the logical device, its queues and the graphics
// command pool.
func DeviceCreate(instance vk.Instance, surface vk.Surface) (*VulkanDevice, error) {
	device, err := selectPhysicalDevice(instance, surface)
	if err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{device.GraphicsQueueIndex}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.PresentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return nil, err
	}
	extensionNames := append([]string{}, requiredDeviceExtensions...)
	if available[portabilitySubsetExtension] {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if err := checkResult("create device", vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, nil, &logicalDevice)); err != nil {
		return nil, err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(logicalDevice, device.GraphicsQueueIndex, 0, &graphicsQueue)
	vk.GetDeviceQueue(logicalDevice, device.PresentQueueIndex, 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := checkResult("create command pool", vk.CreateCommandPool(logicalDevice, &poolCreateInfo, nil, &pool)); err != nil {
		vk.DestroyDevice(logicalDevice, nil)
		return nil, err
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return device, nil
}

func (d *VulkanDevice) Destroy() {
	// Unset queues
	d.GraphicsQueue = nil
	d.PresentQueue = nil

	if d.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, nil)
		d.GraphicsCommandPool = nil
	}

	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, nil)
		d.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
}

func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*VulkanDevice, error) {
	var physicalDeviceCount uint32
	if err := checkResult("enumerate physical devices", vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil)); err != nil {
		return nil, err
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found")
		core.LogError(err.Error())
		return nil, err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := checkResult("enumerate physical devices", vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return nil, err
	}

	for _, physicalDevice := range physicalDevices {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		name := string(properties.DeviceName[:FindFirstZeroInByteArray(properties.DeviceName[:])])

		queueInfo, ok := physicalDeviceMeetsRequirements(physicalDevice, surface, name)
		if !ok {
			continue
		}

		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)

		return &VulkanDevice{
			PhysicalDevice:     physicalDevice,
			GraphicsQueueIndex: uint32(queueInfo.GraphicsFamilyIndex),
			PresentQueueIndex:  uint32(queueInfo.PresentFamilyIndex),
			Properties:         properties,
		}, nil
	}

	err := fmt.Errorf("no physical devices were found which meet the requirements")
	core.LogError(err.Error())
	return nil, err
}

// physicalDeviceMeetsRequirements accepts a device with a graphics family,
// a family that can present to surface, every required extension and at
// least one surface format and present mode.
func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, name string) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo, err := findQueueFamilies(device, surface)
	if err != nil || !queueInfo.Complete() {
		core.LogInfo("Device '%s' lacks graphics or present queues, skipping.", name)
		return queueInfo, false
	}
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)

	available, err := deviceExtensions(device)
	if err != nil {
		return queueInfo, false
	}
	for _, required := range requiredDeviceExtensions {
		if !available[required] {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return queueInfo, false
		}
	}

	support, res := querySurfaceSupport(device, surface)
	if res != vk.Success || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	core.LogInfo("Device meets queue requirements.")
	return queueInfo, true
}

// findQueueFamilies prefers a single family that does both graphics and
// present.
func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (VulkanPhysicalDeviceQueueFamilyInfo, error) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		graphics := queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		var supportsPresent vk.Bool32
		if err := checkResult("get surface support", vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent)); err != nil {
			return info, err
		}
		present := supportsPresent == vk.True

		if graphics && present {
			info.GraphicsFamilyIndex = int32(i)
			info.PresentFamilyIndex = int32(i)
			return info, nil
		}
		if graphics && info.GraphicsFamilyIndex < 0 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if present && info.PresentFamilyIndex < 0 {
			info.PresentFamilyIndex = int32(i)
		}
	}
	return info, nil
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if err := checkResult("enumerate device extensions", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if err := checkResult("enumerate device extensions", vk.EnumerateDeviceExtensionProperties(device, "", &count, properties)); err != nil {
			return nil, err
		}
	}
	names := make(map[string]bool, count)
	for i := range properties {
		properties[i].Deref()
		name := properties[i].ExtensionName[:]
		names[string(name[:FindFirstZeroInByteArray(name)])] = true
	}
	if runtime.GOOS == "darwin" && !names[portabilitySubsetExtension] {
		core.LogDebug("'%s' not reported by the device.", portabilitySubsetExtension)
	}
	return names, nil
}
