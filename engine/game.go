package engine

import (
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/libretro"
)

// Game is the content the frontend loaded. The core does not read it.
type Game struct {
	Path string
	Size int
}

// LoadGame accepts any content, including none.
func (c *Core) LoadGame(info *libretro.GameInfo) error {
	c.game = &Game{}
	if info != nil {
		c.game.Path = info.Path
		c.game.Size = len(info.Data)
	}
	core.LogDebug("game loaded: %q (%d bytes)", c.game.Path, c.game.Size)
	return nil
}

func (c *Core) UnloadGame() {
	if c.game != nil {
		core.LogDebug("game unloaded: %q", c.game.Path)
	}
	c.game = nil
}

// GameLoaded reports whether LoadGame ran without a matching UnloadGame.
func (c *Core) GameLoaded() bool {
	return c.game != nil
}
