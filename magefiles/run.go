//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Opens the viewer window with volcano.toml.
func (Run) Viewer() error {
	mg.Deps(Build.Viewer)
	fmt.Println("Run viewer...")
	_, err := executeCmd(filepath.Join(binaryDir, viewer), withArgs("-config", "volcano.toml"), withStream())
	return err
}

// Renders a few frames without a window and writes the last one to frame.png.
func (Run) Capture() error {
	mg.Deps(Build.Viewer)
	_, err := executeCmd(filepath.Join(binaryDir, viewer),
		withArgs("-config", "volcano.toml", "-frames", "120", "-capture", "frame.png"), withStream())
	return err
}
