package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

type VulkanInstance struct {
	Handle         vk.Instance
	debugMessenger vk.DebugReportCallback
}

// InstanceCreate creates the instance with the window system extensions in
// requiredExtensions. With validation set, the Khronos validation layer is
// enabled and its reports are routed to the logger.
func InstanceCreate(appName string, requiredExtensions []string, validation bool) (*VulkanInstance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("vkloop"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, requiredExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	layers := []string{}
	if validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Validation layers enabled. Enumerating...")
		found, err := hasInstanceLayer(validationLayerName)
		if err != nil {
			return nil, err
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", validationLayerName)
			core.LogError(err.Error())
			return nil, err
		}
		layers = append(layers, validationLayerName)
		core.LogInfo("All required validation layers are present.")
	}

	core.LogDebug("Required extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var handle vk.Instance
	if err := checkResult("create instance", vk.CreateInstance(&createInfo, nil, &handle)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(handle); err != nil {
		core.LogError(err.Error())
		vk.DestroyInstance(handle, nil)
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")

	instance := &VulkanInstance{Handle: handle}
	if validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(handle, &debugCreateInfo, nil, &dbg); res != vk.Success {
			// Validation still runs, its messages just go to stdout.
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", VulkanResultString(res))
		} else {
			instance.debugMessenger = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return instance, nil
}

func hasInstanceLayer(name string) (bool, error) {
	var count uint32
	if err := checkResult("enumerate instance layers", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := checkResult("enumerate instance layers", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return false, err
	}
	for i := range layers {
		layers[i].Deref()
		layerName := layers[i].LayerName[:]
		if string(layerName[:FindFirstZeroInByteArray(layerName)]) == name {
			return true, nil
		}
	}
	return false, nil
}

// DestroySurface releases a surface created for this instance.
func (i *VulkanInstance) DestroySurface(surface vk.Surface) {
	if surface != vk.NullSurface {
		vk.DestroySurface(i.Handle, surface, nil)
	}
}

func (i *VulkanInstance) Destroy() {
	if i.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(i.Handle, i.debugMessenger, nil)
		i.debugMessenger = vk.NullDebugReportCallback
	}
	if i.Handle != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(i.Handle, nil)
		i.Handle = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
