package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/constraints"

	"github.com/fennelvane/ember/engine/core"
)

func clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Swapchain owns the presentable images, their views, the shared depth
// attachment and one framebuffer per image.
type Swapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	DepthImage Image
	DepthView  ImageView

	Framebuffers []vk.Framebuffer
}

// NewSwapchain creates a swapchain for the current surface state. A
// retired swapchain may be passed as oldSwapchain so the driver can
// recycle its images; the caller destroys the retired handle after
// this returns. Framebuffers are attached separately once the render
// pass exists.
func NewSwapchain(ctx *Context, alloc *Allocator, width, height uint32, oldSwapchain vk.Swapchain) (*Swapchain, error) {
	device := ctx.Device

	// The capabilities carry the current surface extent, refresh them.
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, ctx.Surface, &device.SwapchainSupport); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	support := &device.SwapchainSupport

	swapchain := &Swapchain{}

	// Preferred format, first supported otherwise.
	found := false
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		swapchain.ImageFormat = support.Formats[0]
	}

	// Mailbox when available, FIFO is always supported.
	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	extent.Width = clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = clamp(extent.Height, minExtent.Height, maxExtent.Height)
	swapchain.Extent = extent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		err := vkError("vkCreateSwapchainKHR", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = handle

	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		swapchain.Destroy(ctx)
		err := vkError("vkGetSwapchainImagesKHR", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		swapchain.Destroy(ctx)
		err := vkError("vkGetSwapchainImagesKHR", res)
		core.LogError(err.Error())
		return nil, err
	}

	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	for i := range swapchain.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(device.LogicalDevice, &viewInfo, ctx.Allocator, &swapchain.Views[i]); res != vk.Success {
			swapchain.Destroy(ctx)
			err := vkError("vkCreateImageView", res)
			core.LogError(err.Error())
			return nil, err
		}
	}

	depthImage, err := alloc.CreateImage(
		device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		extent.Width, extent.Height,
	)
	if err != nil {
		swapchain.Destroy(ctx)
		return nil, err
	}
	swapchain.DepthImage = depthImage.Move()

	depthView, err := swapchain.DepthImage.CreateView(vk.ImageAspectDepthBit)
	if err != nil {
		swapchain.Destroy(ctx)
		return nil, err
	}
	swapchain.DepthView = depthView.Move()

	core.LogInfo("swapchain created, %d images at %dx%d", swapchain.ImageCount, extent.Width, extent.Height)
	return swapchain, nil
}

// CreateFramebuffers attaches one framebuffer per swapchain image to
// the render pass. Called after creation and after every rebuild.
func (s *Swapchain) CreateFramebuffers(ctx *Context, renderPass vk.RenderPass) error {
	s.Framebuffers = make([]vk.Framebuffer, s.ImageCount)
	for i := range s.Framebuffers {
		attachments := []vk.ImageView{s.Views[i], s.DepthView.Handle()}
		framebufferCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.Extent.Width,
			Height:          s.Extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(ctx.Device.LogicalDevice, &framebufferCreateInfo, ctx.Allocator, &s.Framebuffers[i]); res != vk.Success {
			err := vkError("vkCreateFramebuffer", res)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

// AcquireNextImage returns the index of the next presentable image.
// ErrSwapchainOutOfDate signals that the caller must rebuild; no image
// was acquired and the semaphore is not signaled in that case.
// Suboptimal still delivers a usable image and is handled at present
// time.
func (s *Swapchain) AcquireNextImage(ctx *Context, timeoutNS uint64, imageAvailable vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(ctx.Device.LogicalDevice, s.Handle, timeoutNS, imageAvailable, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	default:
		err := vkError("vkAcquireNextImageKHR", result)
		core.LogError(err.Error())
		return 0, err
	}
}

// Present hands the image back to the presentation engine. Both
// out-of-date and suboptimal results map to ErrSwapchainOutOfDate so
// the scheduler rebuilds before the next frame.
func (s *Swapchain) Present(ctx *Context, renderDone vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderDone},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.QueuePresent(ctx.Device.PresentQueue, &presentInfo)
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainOutOfDate
	default:
		err := vkError("vkQueuePresentKHR", result)
		core.LogError(err.Error())
		return err
	}
}

// DestroyFramebuffers releases the per-image framebuffers only, for
// rebuilds where the render pass survives.
func (s *Swapchain) DestroyFramebuffers(ctx *Context) {
	for _, fb := range s.Framebuffers {
		if fb != vk.NullFramebuffer {
			vk.DestroyFramebuffer(ctx.Device.LogicalDevice, fb, ctx.Allocator)
		}
	}
	s.Framebuffers = nil
}

// Destroy releases everything owned by the swapchain including its
// handle. Only the views are destroyed explicitly, the images belong
// to the swapchain itself.
func (s *Swapchain) Destroy(ctx *Context) {
	s.DestroyFramebuffers(ctx)
	s.DepthView.Destroy()
	s.DepthImage.Destroy()
	for _, view := range s.Views {
		if view != vk.NullImageView {
			vk.DestroyImageView(ctx.Device.LogicalDevice, view, ctx.Allocator)
		}
	}
	s.Views = nil
	s.Images = nil
	if s.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(ctx.Device.LogicalDevice, s.Handle, ctx.Allocator)
		s.Handle = vk.NullSwapchain
	}
}

// Retire releases everything except the swapchain handle, which is
// kept alive so a rebuild can pass it as OldSwapchain. The caller
// destroys the returned handle once the new swapchain exists.
func (s *Swapchain) Retire(ctx *Context) vk.Swapchain {
	s.DestroyFramebuffers(ctx)
	s.DepthView.Destroy()
	s.DepthImage.Destroy()
	for _, view := range s.Views {
		if view != vk.NullImageView {
			vk.DestroyImageView(ctx.Device.LogicalDevice, view, ctx.Allocator)
		}
	}
	s.Views = nil
	s.Images = nil
	handle := s.Handle
	s.Handle = vk.NullSwapchain
	return handle
}
