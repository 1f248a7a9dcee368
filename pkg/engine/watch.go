// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"time"

	"github.com/composit/composit/internal/watch"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	Options
	// Debounce is the quiet period before a reload. Zero selects
	// watch.DefaultDebounce.
	Debounce time.Duration
}

// Watch rebuilds the Engine every time the catalog file or the explicit
// configuration file changes, passing each result to onReload. A failed
// reload is reported through onReload with a nil Engine; the previous Engine
// stays valid. Watch blocks until ctx is canceled and returns nil then.
func Watch(ctx context.Context, opts WatchOptions, onReload func(*Engine, error)) error {
	if opts.CatalogFile == "" {
		return ErrNoCatalog
	}
	files := []string{opts.CatalogFile}
	if opts.ConfigFile != "" {
		files = append(files, opts.ConfigFile)
	}

	logger := opts.Logger
	w, err := watch.New(watch.Config{
		Files:    files,
		Debounce: opts.Debounce,
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			e, err := New(ctx, opts.Options)
			if e != nil {
				e.logger.Info("engine reloaded", "files", changed)
			}
			onReload(e, err)
			return err
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
