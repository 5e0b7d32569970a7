//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL shaders to SPIR-V under shaders/bin.
func (Build) Shaders() error {
	if err := os.MkdirAll("shaders/bin", 0o755); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("shaders/object.vert", "-o", "shaders/bin/object.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("shaders/object.frag", "-o", "shaders/bin/object.frag.spv"), withStream()); err != nil {
		return err
	}
	return nil
}
