//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir = "assets/shaders"
	binaryDir = "bin"
	viewer    = "volcano"
)

type Build mg.Namespace

// Compiles every GLSL shader under assets/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the development frontend into bin/.
func (Build) Viewer() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join(binaryDir, viewer), "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, pattern := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	for _, src := range sources {
		name := filepath.Base(src)
		if _, err := executeCmd("glslc", withArgs(name, "-o", name+".spv"), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}
