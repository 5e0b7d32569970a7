package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Context bundles the instance-level state every GPU component needs.
// It is created once at startup and owned by the control thread.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface
	Device    *Device

	// Drawable size in pixels, updated on resize.
	FramebufferWidth  uint32
	FramebufferHeight uint32

	debug          bool
	debugMessenger vk.DebugReportCallback
}

// NewContext creates the Vulkan instance and, in debug mode, the report
// callback. platformExtensions come from the window system; the surface
// and device are attached by the caller afterwards.
func NewContext(appName string, platformExtensions []string, debug bool) (*Context, error) {
	ctx := &Context{debug: debug}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(appName),
		PEngineName:        safeString("Ember"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := append([]string{}, platformExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}
	if debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = safeStrings(requiredExtensions)

	var requiredLayers []string
	if debug {
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(requiredLayers); err != nil {
			core.LogError(err.Error())
			return nil, err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = safeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance); res != vk.Success {
		err := vkError("vkCreateInstance", res)
		core.LogError(err.Error())
		return nil, err
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("Vulkan instance created")

	if debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, ctx.Allocator, &dbg); res != vk.Success {
			err := vkError("vkCreateDebugReportCallbackEXT", res)
			core.LogError(err.Error())
			return nil, err
		}
		ctx.debugMessenger = dbg
	}

	return ctx, nil
}

func checkValidationLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return vkError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return vkError("vkEnumerateInstanceLayerProperties", res)
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if name == nullTerminated(available[i].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

// FindMemoryIndex returns the index of a memory type matching the
// filter and property flags, or -1 when none qualifies.
func (c *Context) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("unable to find suitable memory type")
	return -1
}

// memoryPropertyFlags returns the property flags of a memory type by
// index, so callers can tell whether an allocation ended up
// host-visible.
func (c *Context) memoryPropertyFlags(memoryIndex int32) vk.MemoryPropertyFlags {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()
	if memoryIndex < 0 || uint32(memoryIndex) >= memoryProperties.MemoryTypeCount {
		return 0
	}
	memoryProperties.MemoryTypes[memoryIndex].Deref()
	return memoryProperties.MemoryTypes[memoryIndex].PropertyFlags
}

// Destroy tears the context down in reverse creation order. The device
// must already be idle.
func (c *Context) Destroy() {
	if c.Device != nil {
		DeviceDestroy(c)
		c.Device = nil
	}
	if c.Surface != vk.NullSurface {
		vk.DestroySurface(c.Instance, c.Surface, c.Allocator)
		c.Surface = vk.NullSurface
	}
	if c.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(c.Instance, c.debugMessenger, c.Allocator)
		c.debugMessenger = vk.NullDebugReportCallback
	}
	if c.Instance != nil {
		vk.DestroyInstance(c.Instance, c.Allocator)
		c.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
