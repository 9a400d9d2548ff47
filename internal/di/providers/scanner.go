package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/media/images"
	"github.com/homeflixapp/homeflix-server/internal/probe"
	"github.com/homeflixapp/homeflix-server/internal/scanner"
	"github.com/homeflixapp/homeflix-server/internal/watcher"
)

// ProvideScanner provides the library scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	prober := do.MustInvoke[*probe.Prober](i)
	posters := do.MustInvoke[*images.Generator](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	return scanner.New(
		storeHandle.Store, prober, posters, searchHandle.Index,
		sseHandle.Manager, log.Logger), nil
}

// FileWatcherHandle wraps the file watcher with shutdown capability.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Close()
}

// ProvideFileWatcher watches library roots and indexes files as they settle.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)

	if !cfg.Library.WatchEnabled {
		log.Info("File watching disabled by configuration")
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(watcher.DefaultSettleDelay, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	libs, err := storeHandle.ListLibraries(ctx)
	if err != nil {
		cancel()
		w.Close()
		return nil, err
	}
	for _, lib := range libs {
		if err := w.Add(lib.Path); err != nil {
			log.Warn("Failed to watch library root", "path", lib.Path, "error", err)
			continue
		}
		log.Info("Watching library root", "library_id", lib.ID, "path", lib.Path)
	}

	go w.Start(ctx)

	go func() {
		for {
			select {
			case event, ok := <-w.Events():
				if !ok {
					return
				}
				handleWatchEvent(ctx, event, storeHandle, fileScanner, log)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("File watcher started", "roots", len(libs))

	return &FileWatcherHandle{Watcher: w, cancel: cancel}, nil
}

func handleWatchEvent(ctx context.Context, event watcher.Event, storeHandle *StoreHandle, fileScanner *scanner.Scanner, log *logger.Logger) {
	switch event.Type {
	case watcher.EventAdded:
		if !scanner.IsVideoFile(event.Path) {
			return
		}
		lib, err := libraryForPath(ctx, storeHandle, event.Path)
		if err != nil {
			log.Warn("No library owns watched path", "path", event.Path, "error", err)
			return
		}
		if _, err := fileScanner.ScanFile(ctx, event.Path, lib); err != nil {
			log.Warn("Failed to index watched file", "path", event.Path, "error", err)
		}
	case watcher.EventRemoved:
		if err := fileScanner.RemoveFile(ctx, event.Path); err != nil {
			log.Warn("Failed to remove watched file", "path", event.Path, "error", err)
		}
	}
}

// libraryForPath finds the library whose root contains path.
func libraryForPath(ctx context.Context, storeHandle *StoreHandle, path string) (*domain.Library, error) {
	libs, err := storeHandle.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	for _, lib := range libs {
		root := filepath.Clean(lib.Path) + string(filepath.Separator)
		if strings.HasPrefix(filepath.Clean(path), root) {
			return lib, nil
		}
	}
	return nil, fmt.Errorf("no library root contains %s", path)
}
