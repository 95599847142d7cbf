package config

import (
	"context"
	"io"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads every configuration file found under paths and merges them
	// into one format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Writer serializes a model back into a format-specific representation.
type Writer interface {
	Write(ctx context.Context, w io.Writer, m *Model) error
}
