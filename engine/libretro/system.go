package libretro

// APIVersion is RETRO_API_VERSION.
const APIVersion uint32 = 1

type Region uint32

const (
	RegionNTSC Region = iota
	RegionPAL
)

type HWContextType uint32

// Subset of retro_hw_context_type.
const (
	HWContextNone   HWContextType = 0
	HWContextVulkan HWContextType = 6
)

// SystemInfo mirrors retro_system_info.
type SystemInfo struct {
	LibraryName     string
	LibraryVersion  string
	ValidExtensions string
	NeedFullpath    bool
	BlockExtract    bool
}

type GameGeometry struct {
	BaseWidth   uint32
	BaseHeight  uint32
	MaxWidth    uint32
	MaxHeight   uint32
	AspectRatio float32
}

type SystemTiming struct {
	FPS        float64
	SampleRate float64
}

// SystemAVInfo mirrors retro_system_av_info.
type SystemAVInfo struct {
	Geometry GameGeometry
	Timing   SystemTiming
}

// HWRenderCallback is the subset of retro_hw_render_callback a Vulkan core
// fills in when it asks the frontend for a hardware context.
type HWRenderCallback struct {
	ContextType  HWContextType
	VersionMajor uint32
	VersionMinor uint32
	Depth        bool
	Stencil      bool
}

// GameInfo mirrors retro_game_info.
type GameInfo struct {
	Path string
	Data []byte
	Meta string
}
