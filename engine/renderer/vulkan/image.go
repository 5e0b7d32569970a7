package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/fennelvane/ember/engine/core"
)

// Image owns a VkImage and its backing memory. Move-only, same
// ownership rules as Buffer.
type Image struct {
	device vk.Device
	handle vk.Image
	memory vk.DeviceMemory
	format vk.Format
	width  uint32
	height uint32
}

func (i *Image) Handle() vk.Image {
	return i.handle
}

func (i *Image) Format() vk.Format {
	return i.format
}

func (i *Image) Extent() (uint32, uint32) {
	return i.width, i.height
}

func (i *Image) IsNil() bool {
	return i.handle == vk.NullImage
}

// Move transfers ownership to the returned value and empties the
// receiver.
func (i *Image) Move() Image {
	moved := *i
	*i = Image{}
	return moved
}

// Destroy releases the image and its memory. Idempotent, no-op on
// empty values.
func (i *Image) Destroy() {
	if i.handle == vk.NullImage {
		return
	}
	vk.DestroyImage(i.device, i.handle, nil)
	vk.FreeMemory(i.device, i.memory, nil)
	*i = Image{}
}

// CreateView makes a 2D view over the whole image.
func (i *Image) CreateView(aspect vk.ImageAspectFlagBits) (ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.handle,
		ViewType: vk.ImageViewType2d,
		Format:   i.format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(i.device, &viewCreateInfo, nil, &view); res != vk.Success {
		err := vkError("vkCreateImageView", res)
		core.LogError(err.Error())
		return ImageView{}, err
	}
	return ImageView{device: i.device, handle: view}, nil
}

// ImageView owns a VkImageView. Move-only like its image.
type ImageView struct {
	device vk.Device
	handle vk.ImageView
}

func (v *ImageView) Handle() vk.ImageView {
	return v.handle
}

func (v *ImageView) IsNil() bool {
	return v.handle == vk.NullImageView
}

func (v *ImageView) Move() ImageView {
	moved := *v
	*v = ImageView{}
	return moved
}

func (v *ImageView) Destroy() {
	if v.handle == vk.NullImageView {
		return
	}
	vk.DestroyImageView(v.device, v.handle, nil)
	*v = ImageView{}
}
