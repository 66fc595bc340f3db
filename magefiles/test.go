//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the GPU-free unit tests with the race detector.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./engine/..."), withStream())
	return err
}
