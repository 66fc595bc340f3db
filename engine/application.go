package engine

import (
	"github.com/spaghettifunk/volcano/engine/libretro"
)

const (
	LibraryName    = "volcano"
	LibraryVersion = "0.1.0"

	// TargetFPS and SampleRate are reported to the frontend. The core
	// produces no audio.
	TargetFPS  = 60.0
	SampleRate = 44100.0
)

func (c *Core) SystemInfo() libretro.SystemInfo {
	return libretro.SystemInfo{
		LibraryName:    LibraryName,
		LibraryVersion: LibraryVersion,
		// The core runs without content.
		ValidExtensions: "",
		NeedFullpath:    false,
		BlockExtract:    false,
	}
}

// SystemAVInfo reports the render target size as both base and maximum
// geometry.
func (c *Core) SystemAVInfo() libretro.SystemAVInfo {
	width, height := c.config.Renderer.Width, c.config.Renderer.Height
	return libretro.SystemAVInfo{
		Geometry: libretro.GameGeometry{
			BaseWidth:   width,
			BaseHeight:  height,
			MaxWidth:    width,
			MaxHeight:   height,
			AspectRatio: float32(width) / float32(height),
		},
		Timing: libretro.SystemTiming{
			FPS:        TargetFPS,
			SampleRate: SampleRate,
		},
	}
}

// HWRenderCallback is what the core asks the frontend for: a Vulkan 1.0
// context without depth or stencil.
func (c *Core) HWRenderCallback() libretro.HWRenderCallback {
	return libretro.HWRenderCallback{
		ContextType:  libretro.HWContextVulkan,
		VersionMajor: 1,
		VersionMinor: 0,
		Depth:        false,
		Stencil:      false,
	}
}
