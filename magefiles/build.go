//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderSources = []string{"shader.vert", "shader.frag"}

// Compiles the GLSL shaders to SPIR-V next to their sources.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and builds the binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/vkloop", "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	for _, src := range shaderSources {
		if _, err := executeCmd("glslc", withArgs("shaders/"+src, "-o", "shaders/"+src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}
