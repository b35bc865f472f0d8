package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kitchenlog/internal/config"
	"kitchenlog/internal/engine"
	"kitchenlog/internal/metrics"
	"kitchenlog/internal/store"
)

// Options select where the CLI and server read their inputs from.
type Options struct {
	Workspace string
	// DataPath is the snapshot file to seed the store with. Empty means
	// <workspace>/kitchens.yml when it exists, otherwise an empty store.
	DataPath string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// DefaultDataPath returns the snapshot path used when none is given.
func DefaultDataPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "kitchens.yml")
}

// Load resolves the workspace config and seeds a store from the snapshot file,
// returning an engine over it.
func Load(opts Options) (engine.Engine, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return engine.Engine{}, fmt.Errorf("load config: %w", err)
	}
	st := store.New()
	path := opts.DataPath
	explicit := path != ""
	if !explicit {
		path = DefaultDataPath(opts.Workspace)
	}
	snap, err := store.LoadSnapshot(path, cfg)
	switch {
	case err == nil:
		st.Seed(snap)
	case os.IsNotExist(err) && !explicit:
	default:
		return engine.Engine{}, fmt.Errorf("load data %s: %w", path, err)
	}
	e := engine.New(st, cfg)
	if opts.Logger != nil {
		e.Logger = opts.Logger
	}
	e.Metrics = opts.Metrics
	return e, nil
}
