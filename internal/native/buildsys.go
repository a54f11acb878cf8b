package native

import "context"

// BuildSystem captures the lifecycle of an external project's build.
// Implementations hold their configuration; the methods only run it.
type BuildSystem interface {
	Configure(ctx context.Context) error
	Build(ctx context.Context) error
	Install(ctx context.Context) error

	// Where installed headers and libraries land.
	OutputDir() string
}
