/*
Development frontend for the volcano core: it owns the Vulkan device,
drives the core frame by frame and either shows the frames in a window or
captures the last one to an image file.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/volcano/engine"
	"github.com/spaghettifunk/volcano/engine/config"
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/frontend"
	"github.com/spaghettifunk/volcano/engine/platform"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	frames := flag.Uint64("frames", 0, "frames to render before exiting, overrides the configuration")
	capture := flag.String("capture", "", "write the last frame to this .png, .bmp or .tiff file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("%s", err)
	}
	if *frames > 0 {
		cfg.Frontend.Frames = *frames
	}
	if *capture != "" {
		cfg.Frontend.Capture = *capture
	}

	if err := run(cfg); err != nil {
		core.LogFatal("%s", err)
	}
}

func run(cfg *config.Config) error {
	if !core.SetLogLevel(cfg.Log.Level) {
		core.LogWarn("unknown log level %q", cfg.Log.Level)
	}

	p := platform.New()
	if err := p.Startup(engine.LibraryName, cfg.Renderer.Width, cfg.Renderer.Height, cfg.Frontend.Window); err != nil {
		return err
	}
	defer p.Shutdown()

	fe, err := frontend.New(cfg, p)
	if err != nil {
		return err
	}
	defer fe.Close()

	c, err := engine.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.LoadGame(nil); err != nil {
		return err
	}
	defer c.UnloadGame()
	if err := c.Init(fe); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Watch(ctx)
	})

	loopErr := frameLoop(ctx, cfg, p, fe, c)
	cancel()
	if err := g.Wait(); err != nil && loopErr == nil {
		loopErr = err
	}
	if loopErr != nil {
		return loopErr
	}

	if cfg.Frontend.Capture != "" {
		return fe.Capture(cfg.Frontend.Capture)
	}
	return nil
}

// frameLoop runs on the main goroutine because glfw requires it.
func frameLoop(ctx context.Context, cfg *config.Config, p *platform.Platform, fe *frontend.Frontend, c *engine.Core) error {
	clock := core.NewClock()
	metrics := core.NewMetrics()
	clock.Start()
	lastTime := clock.Elapsed()

	for ctx.Err() == nil && !p.ShouldClose() {
		if cfg.Frontend.Frames > 0 && fe.Frames() >= cfg.Frontend.Frames {
			break
		}
		p.PumpMessages()

		if err := c.Render(); err != nil {
			return err
		}
		if err := fe.Present(); err != nil {
			return err
		}

		clock.Update()
		currentTime := clock.Elapsed()
		if metrics.Update(currentTime - lastTime) {
			core.LogInfo("%.0f fps, %.3f ms per frame, %d frames", metrics.FPS(), metrics.FrameTime(), metrics.Frames())
		}
		lastTime = currentTime
	}
	core.LogInfo("Rendered %d frames in %.2fs", fe.Frames(), p.Elapsed())
	return nil
}
