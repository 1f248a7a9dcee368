// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/composit/composit/internal/logging"
)

func TestWatch_ReloadsOnCatalogChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(travelCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	type reload struct {
		e   *Engine
		err error
	}
	reloads := make(chan reload, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- Watch(ctx, WatchOptions{
			Options: Options{
				CatalogFile: catalogPath,
				ConfigDir:   dir,
				Logger:      logging.Discard(),
			},
			Debounce: 50 * time.Millisecond,
		}, func(e *Engine, err error) {
			select {
			case reloads <- reload{e, err}:
			default:
			}
		})
	}()

	waitReload := func() reload {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			if err := os.WriteFile(catalogPath, []byte(travelCatalog), 0o644); err != nil {
				t.Fatal(err)
			}
			select {
			case r := <-reloads:
				return r
			case <-time.After(200 * time.Millisecond):
			case <-deadline:
				t.Fatal("timed out waiting for reload")
			}
		}
	}

	r := waitReload()
	if r.err != nil {
		t.Fatalf("reload: %v", r.err)
	}
	if got := len(r.e.Operations()); got != 3 {
		t.Errorf("operations = %d, want 3", got)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatch_RequiresCatalog(t *testing.T) {
	t.Parallel()
	err := Watch(context.Background(), WatchOptions{}, func(*Engine, error) {})
	if !errors.Is(err, ErrNoCatalog) {
		t.Errorf("err = %v, want ErrNoCatalog", err)
	}
}
