package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vk/tickflow/internal/config"
	"github.com/vk/tickflow/internal/ctxlog"
	"github.com/vk/tickflow/internal/hcl"
	"github.com/vk/tickflow/internal/yamlconfig"
)

// loaders lists every supported description format.
func loaders() []config.Loader {
	return []config.Loader{hcl.NewLoader(), yamlconfig.NewLoader()}
}

// loadModel reads the description at path. A file is handed to the loader
// owning its extension; a directory is read by every loader and the results
// are merged.
func loadModel(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph description: %w", err)
	}

	if !info.IsDir() {
		ext := filepath.Ext(path)
		for _, l := range loaders() {
			if slices.Contains(l.Extensions(), ext) {
				return l.Load(ctx, path)
			}
		}
		return nil, fmt.Errorf("unsupported graph description %s: unknown extension %q", path, ext)
	}

	model := &config.Model{}
	found := false
	for _, l := range loaders() {
		part, err := l.Load(ctx, path)
		if errors.Is(err, config.ErrNoFiles) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		if err := model.Merge(part); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("%w in %s", config.ErrNoFiles, path)
	}
	logger.Debug("Graph description loaded.", "nodes", len(model.Nodes), "connections", len(model.Connections), "observers", len(model.Observers))
	return model, nil
}
