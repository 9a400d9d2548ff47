package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/homeflixapp/homeflix-server/internal/config"
	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/logger"
	"github.com/homeflixapp/homeflix-server/internal/search"
	"github.com/homeflixapp/homeflix-server/internal/store/sqlite"
)

// SearchIndexHandle wraps the bleve index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the title search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(cfg.SearchIndexPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Search index ready", "path", cfg.SearchIndexPath())

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index from the catalog. The
// index comes up empty after a mapping change discards the on-disk files.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	count, err := searchHandle.DocCount()
	if err != nil {
		log.Warn("Failed to read search index size", "error", err)
		return
	}
	if count > 0 {
		return
	}

	ctx := context.Background()
	var all []*domain.MediaItem
	for page := 1; ; page++ {
		items, total, err := storeHandle.ListMediaItems(ctx, sqlite.MediaItemFilter{Page: page, Limit: 500})
		if err != nil {
			log.Warn("Failed to load catalog for search reindex", "error", err)
			return
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
	}
	if len(all) == 0 {
		return
	}

	if err := searchHandle.Rebuild(all); err != nil {
		log.Warn("Search reindex failed", "error", err)
	}
}
