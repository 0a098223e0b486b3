package config

import (
	"context"
	"errors"
)

// ErrNoFiles is returned when none of the given paths contain a description.
var ErrNoFiles = errors.New("no graph description files found")

// Loader is the interface for a format-specific graph description loader.
type Loader interface {
	// Load reads every matching file under the given paths, translates them
	// into the format-agnostic model and merges the result.
	Load(ctx context.Context, paths ...string) (*Model, error)

	// Extensions lists the file extensions the loader reads, dot included.
	Extensions() []string
}
