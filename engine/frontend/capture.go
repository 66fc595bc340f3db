package frontend

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

// captureBytesPerPixel matches vulkan.RenderTargetFormat.
const captureBytesPerPixel = 4

// pixelsToImage wraps tightly packed RGBA8 rows.
func pixelsToImage(data []byte, width, height uint32) (*image.RGBA, error) {
	stride := int(width) * captureBytesPerPixel
	if len(data) != stride*int(height) {
		return nil, errors.Newf("%d bytes do not hold a %dx%d RGBA image", len(data), width, height)
	}
	return &image.RGBA{
		Pix:    data,
		Stride: stride,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}, nil
}

// encodeImage picks the encoder from the file extension.
func encodeImage(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return errors.Newf("unsupported capture format %q", ext)
}

func writeImage(path string, img image.Image) (err error) {
	ext := filepath.Ext(path)
	// Reject the format before creating the file.
	if err := encodeImage(io.Discard, ext, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return encodeImage(file, ext, img)
}

// Capture copies the image the core published last into host memory and
// writes it to path.
func (f *Frontend) Capture(path string) error {
	if f.image == nil {
		return errors.New("no image to capture, the core has not rendered yet")
	}
	if err := f.vkDevice.WaitIdle(); err != nil {
		return err
	}

	info := f.image.CreateInfo
	size := vk.DeviceSize(f.width * f.height * captureBytesPerPixel)
	readback, err := vulkan.CreateBuffer(f.vkDevice, nil, size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	if err != nil {
		return errors.Wrap(err, "create readback buffer")
	}
	defer readback.Destroy()

	cb, err := vulkan.NewVulkanCommandBuffer(f.vkDevice, f.queueFamily)
	if err != nil {
		return err
	}
	defer cb.Free(f.vkDevice)

	if err := cb.Begin(f.vkDevice, true, false, false); err != nil {
		return err
	}
	f.vkDevice.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		[]vk.ImageMemoryBarrier{transferBarrier(info.Image,
			vk.AccessFlags(vk.AccessShaderReadBit), vk.AccessFlags(vk.AccessTransferReadBit),
			f.image.ImageLayout, vk.ImageLayoutTransferSrcOptimal)})
	f.vkDevice.CmdCopyImageToBuffer(cb.Handle, info.Image, vk.ImageLayoutTransferSrcOptimal, readback.Handle,
		[]vk.BufferImageCopy{{
			ImageSubresource: colorLayers(),
			ImageExtent:      vk.Extent3D{Width: f.width, Height: f.height, Depth: 1},
		}})
	f.vkDevice.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		[]vk.ImageMemoryBarrier{transferBarrier(info.Image,
			vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.ImageLayoutTransferSrcOptimal, f.image.ImageLayout)})
	if err := cb.End(f.vkDevice); err != nil {
		return err
	}

	fence, err := vulkan.NewFence(f.vkDevice, false)
	if err != nil {
		return err
	}
	defer fence.Destroy(f.vkDevice)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	err = f.locks.SafeQueueCall(f.queueFamily, func() error {
		return f.vkDevice.QueueSubmit(f.queue, []vk.SubmitInfo{submitInfo}, fence.Handle)
	})
	if err != nil {
		return err
	}
	if err := fence.Wait(f.vkDevice, fenceTimeoutNs); err != nil {
		return err
	}

	pixels, err := f.vkDevice.ReadMemory(readback.Memory, 0, size)
	if err != nil {
		return err
	}
	img, err := pixelsToImage(pixels, f.width, f.height)
	if err != nil {
		return err
	}
	if err := writeImage(path, img); err != nil {
		return err
	}
	core.LogInfo("Captured %dx%d frame to %s", f.width, f.height, path)
	return nil
}
