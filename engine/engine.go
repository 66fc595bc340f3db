package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/assets"
	"github.com/spaghettifunk/volcano/engine/config"
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/libretro"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Core is created but Init has not run, or Deinit has
	CoreStageUninitialized Stage = iota
	// Init is building the renderer
	CoreStageInitializing
	// Renderer is ready and frames can be rendered
	CoreStageInitialized
	// At least one frame was rendered since Init
	CoreStageRunning
	// Deinit is tearing the renderer down
	CoreStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case CoreStageUninitialized:
		return "uninitialized"
	case CoreStageInitializing:
		return "initializing"
	case CoreStageInitialized:
		return "initialized"
	case CoreStageRunning:
		return "running"
	case CoreStageShuttingDown:
		return "shutting down"
	}
	return "unknown"
}

type Option func(*Core)

// WithRendererOptions forwards options to the renderer the core creates.
func WithRendererOptions(opts ...vulkan.Option) Option {
	return func(c *Core) {
		c.rendererOptions = append(c.rendererOptions, opts...)
	}
}

// Core maps the libretro lifecycle onto the renderer. All methods except
// Watch must be called from the goroutine that renders.
type Core struct {
	currentStage    Stage
	config          *config.Config
	assetManager    *assets.AssetManager
	renderer        *vulkan.Renderer
	rendererOptions []vulkan.Option
	game            *Game
}

// New indexes the asset directory and prepares a renderer. No GPU object is
// created before Init.
func New(cfg *config.Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !core.SetLogLevel(cfg.Log.Level) {
		core.LogWarn("unknown log level %q, keeping the current one", cfg.Log.Level)
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := am.Initialize(cfg.Assets.Dir); err != nil {
		_ = am.Close()
		core.LogError(err.Error())
		return nil, err
	}

	c := &Core{
		currentStage: CoreStageUninitialized,
		config:       cfg,
		assetManager: am,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.renderer = vulkan.NewRenderer(cfg.Renderer, c.rendererOptions...)
	return c, nil
}

// Init builds the renderer against the frontend's device and uploads the
// configured meshes. On failure nothing is left allocated and the error is
// marked with core.ErrInitializationFailed.
func (c *Core) Init(hw libretro.HWRenderInterface) error {
	if c.currentStage != CoreStageUninitialized {
		return core.InitializationFailed(errors.Newf("core is %s", c.currentStage), "core")
	}
	c.currentStage = CoreStageInitializing
	core.LogDebug("Core initialization begun")

	vertexShader, err := c.assetManager.LoadShader(c.config.Assets.VertexShader)
	if err != nil {
		c.currentStage = CoreStageUninitialized
		core.LogError("failed to load vertex shader: %s", err)
		return core.InitializationFailed(err, "vertex shader")
	}
	fragmentShader, err := c.assetManager.LoadShader(c.config.Assets.FragmentShader)
	if err != nil {
		c.currentStage = CoreStageUninitialized
		core.LogError("failed to load fragment shader: %s", err)
		return core.InitializationFailed(err, "fragment shader")
	}

	if err := c.renderer.Init(hw, vertexShader, fragmentShader); err != nil {
		c.currentStage = CoreStageUninitialized
		return err
	}

	if err := c.loadMeshes(); err != nil {
		c.renderer.Destroy()
		c.currentStage = CoreStageUninitialized
		return core.InitializationFailed(err, "meshes")
	}

	c.currentStage = CoreStageInitialized
	core.LogInfo("Core initialized with %d meshes", len(c.renderer.Meshes()))
	return nil
}

func (c *Core) loadMeshes() error {
	if c.config.Assets.BuiltinCube {
		if _, err := c.renderer.AddMesh(metadata.GenerateCube("cube", 1.0)); err != nil {
			return err
		}
	}
	for _, name := range c.config.Assets.Meshes {
		data, err := c.assetManager.LoadMesh(name)
		if err != nil {
			core.LogError("failed to load mesh %s: %s", name, err)
			return err
		}
		if _, err := c.renderer.AddMesh(data); err != nil {
			return err
		}
	}
	return nil
}

// Render appends meshes delivered by the asset watcher, then renders one
// frame.
func (c *Core) Render() error {
	if c.currentStage != CoreStageInitialized && c.currentStage != CoreStageRunning {
		return errors.Wrapf(core.ErrNotInitialized, "core is %s", c.currentStage)
	}
	c.drainMeshes()
	if err := c.renderer.Render(); err != nil {
		return err
	}
	c.currentStage = CoreStageRunning
	return nil
}

func (c *Core) drainMeshes() {
	for {
		select {
		case data := <-c.assetManager.Meshes():
			if _, err := c.renderer.AddMesh(data); err != nil {
				core.LogWarn("dropping mesh %q: %s", data.Name, err)
			}
		default:
			return
		}
	}
}

// Watch runs the asset watcher until ctx is done when watching is enabled,
// otherwise it just waits for ctx.
func (c *Core) Watch(ctx context.Context) error {
	if !c.config.Assets.Watch {
		<-ctx.Done()
		return nil
	}
	core.LogInfo("Watching %s for new meshes", c.config.Assets.Dir)
	return c.assetManager.Watch(ctx)
}

// Deinit destroys every GPU object. The core can be initialized again.
func (c *Core) Deinit() {
	if c.currentStage == CoreStageUninitialized {
		return
	}
	c.currentStage = CoreStageShuttingDown
	c.renderer.Destroy()
	c.currentStage = CoreStageUninitialized
	core.LogDebug("Core deinitialized")
}

// Close deinitializes the core and stops watching the asset directory.
func (c *Core) Close() error {
	c.Deinit()
	return c.assetManager.Close()
}

// Reset keeps every GPU object and the animation phase; the core has no
// other emulated state.
func (c *Core) Reset() {
	core.LogDebug("Core reset")
}

func (c *Core) Stage() Stage {
	return c.currentStage
}

func (c *Core) Renderer() *vulkan.Renderer {
	return c.renderer
}

func (c *Core) APIVersion() uint32 {
	return libretro.APIVersion
}

func (c *Core) Region() libretro.Region {
	return libretro.RegionNTSC
}

// SerializeSize is zero: there is no state worth saving.
func (c *Core) SerializeSize() int {
	return 0
}

func (c *Core) Serialize(data []byte) error {
	return errors.Wrap(core.ErrUnsupported, "serialize")
}

func (c *Core) Unserialize(data []byte) error {
	return errors.Wrap(core.ErrUnsupported, "unserialize")
}
