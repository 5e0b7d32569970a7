package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Device holds the selected physical device, the logical device carved
// out of it, and the queue state the renderer works with.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	SwapchainSupport SwapchainSupportInfo

	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	GraphicsQueue      vk.Queue
	PresentQueue       vk.Queue

	GraphicsCommandPool vk.CommandPool

	DepthFormat vk.Format

	// Minimum offset alignment for uniform buffer bindings, read from
	// the device limits at selection time.
	MinUniformAlignment vk.DeviceSize
}

// SwapchainSupportInfo caches the surface capabilities queried during
// device selection and swapchain rebuilds.
type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// DeviceCreate selects a physical device, creates the logical device
// with its graphics and present queues, and the graphics command pool.
func DeviceCreate(ctx *Context) error {
	device, err := selectPhysicalDevice(ctx)
	if err != nil {
		return err
	}
	ctx.Device = device

	// Dedup queue indices; on most hardware graphics and present share
	// a family.
	indices := []int32{device.GraphicsQueueIndex}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, device.PresentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, familyIndex := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(familyIndex),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if devicePortabilityRequired(device.PhysicalDevice) {
		core.LogInfo("adding required extension 'VK_KHR_portability_subset'")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeStrings(extensionNames),
	}

	if res := vk.CreateDevice(
		device.PhysicalDevice,
		&deviceCreateInfo,
		ctx.Allocator,
		&device.LogicalDevice); res != vk.Success {
		err := vkError("vkCreateDevice", res)
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("logical device created")

	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(
		device.LogicalDevice,
		&poolCreateInfo,
		ctx.Allocator,
		&device.GraphicsCommandPool); res != vk.Success {
		err := vkError("vkCreateCommandPool", res)
		core.LogError(err.Error())
		return err
	}

	if !DeviceDetectDepthFormat(device) {
		err := fmt.Errorf("no supported depth format found")
		core.LogError(err.Error())
		return err
	}

	return nil
}

func DeviceDestroy(ctx *Context) {
	device := ctx.Device
	if device == nil {
		return
	}
	if device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, ctx.Allocator)
		device.GraphicsCommandPool = vk.NullCommandPool
	}
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, ctx.Allocator)
		device.LogicalDevice = nil
	}
	device.PhysicalDevice = nil
	device.GraphicsQueue = nil
	device.PresentQueue = nil
}

// WaitIdle blocks until the logical device finished all submitted work.
func (d *Device) WaitIdle() {
	if d.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.LogicalDevice)
	}
}

// DeviceQuerySwapchainSupport refreshes the cached surface
// capabilities. Called at selection time and before every swapchain
// rebuild, since the capabilities carry the current surface extent.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *SwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return vkError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	supportInfo.Capabilities.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return vkError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if presentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return vkError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}

	return nil
}

// DeviceDetectDepthFormat picks the first depth format the device
// supports as a depth/stencil attachment.
func DeviceDetectDepthFormat(device *Device) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlagBits(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures)&flags) == flags ||
			(vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags) == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func devicePortabilityRequired(physicalDevice vk.PhysicalDevice) bool {
	var availableExtensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	if availableExtensionCount == 0 {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		if nullTerminated(availableExtensions[i].ExtensionName[:]) == "VK_KHR_portability_subset" {
			return true
		}
	}
	return false
}

// selectPhysicalDevice walks the available devices and returns the
// first one with graphics+present queues, swapchain support and the
// required features.
func selectPhysicalDevice(ctx *Context) (*Device, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return nil, vkError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return nil, vkError("vkEnumeratePhysicalDevices", res)
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		if features.SamplerAnisotropy != vk.True {
			core.LogDebug("device %s has no sampler anisotropy, skipping", nullTerminated(properties.DeviceName[:]))
			continue
		}

		graphicsIndex, presentIndex, ok := findQueueFamilies(physicalDevice, ctx.Surface)
		if !ok {
			continue
		}

		var support SwapchainSupportInfo
		if err := DeviceQuerySwapchainSupport(physicalDevice, ctx.Surface, &support); err != nil {
			core.LogWarn("swapchain support query failed: %s", err)
			continue
		}
		if len(support.Formats) < 1 || len(support.PresentModes) < 1 {
			continue
		}

		core.LogInfo("selected device: %s", nullTerminated(properties.DeviceName[:]))
		core.LogInfo("driver version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.DriverVersion)),
			vk.Version.Minor(vk.Version(properties.DriverVersion)),
			vk.Version.Patch(vk.Version(properties.DriverVersion)))

		return &Device{
			PhysicalDevice:      physicalDevice,
			SwapchainSupport:    support,
			GraphicsQueueIndex:  graphicsIndex,
			PresentQueueIndex:   presentIndex,
			MinUniformAlignment: vk.DeviceSize(properties.Limits.MinUniformBufferOffsetAlignment),
		}, nil
	}

	return nil, fmt.Errorf("no physical device meets the renderer requirements")
}

func findQueueFamilies(physicalDevice vk.PhysicalDevice, surface vk.Surface) (graphics, present int32, ok bool) {
	graphics, present = -1, -1

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, queueFamilies)

	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()

		if graphics == -1 && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			graphics = int32(i)
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(physicalDevice, i, surface, &supportsPresent); res != vk.Success {
			continue
		}
		if supportsPresent == vk.True {
			// Prefer a family that does both.
			if present == -1 || int32(i) == graphics {
				present = int32(i)
			}
		}
	}

	return graphics, present, graphics >= 0 && present >= 0
}
