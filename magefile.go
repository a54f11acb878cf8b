//go:build mage

package main

import (
	"context"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/goplus/trajbuild/internal/pipeline"
	"github.com/magefile/mage/mg"
)

var Default = Generate

// Generate builds TrajoptLib and the bridge described by trajbuild.yaml,
// then writes the cgo link file.
func Generate(ctx context.Context) error {
	cfg, err := config.Load(".")
	if err != nil {
		return mg.Fatal(1, err)
	}
	if _, err := pipeline.Run(ctx, cfg, pipeline.DefaultOptions()); err != nil {
		return mg.Fatal(failure.ExitStatus(err), err)
	}
	return nil
}
