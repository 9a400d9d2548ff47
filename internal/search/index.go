// Package search maintains a bleve full-text index over catalog titles.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/homeflixapp/homeflix-server/internal/domain"
)

// mappingVersion is bumped whenever the document mapping changes; a stale
// on-disk index is discarded and rebuilt from the catalog.
const mappingVersion = "1"

// MediaDocument is the indexed shape of a media item.
type MediaDocument struct {
	ID        string `json:"id"`
	LibraryID string `json:"library_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Index wraps a bleve index over media items.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// NewIndex opens the index at path, creating or rebuilding it as needed.
func NewIndex(path string, logger *slog.Logger) (*Index, error) {
	versionFile := path + ".version"

	if _, err := os.Stat(path); err == nil {
		version, _ := os.ReadFile(versionFile)
		if string(version) != mappingVersion {
			logger.Info("Search index mapping changed, rebuilding", "path", path)
			os.RemoveAll(path)
			os.Remove(versionFile)
		}
	}

	index, err := bleve.Open(path)
	if err != nil {
		if err != bleve.ErrorIndexPathDoesNotExist {
			logger.Warn("Failed to open search index, recreating", "error", err)
			os.RemoveAll(path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		index, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
		if err := os.WriteFile(versionFile, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("Failed to write index version file", "error", err)
		}
	}

	return &Index{index: index, path: path, logger: logger}, nil
}

func buildMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("title", titleField)

	keywordField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("library_id", keywordField)
	docMapping.AddFieldMappingsAt("type", keywordField)

	yearField := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("year", yearField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Close closes the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// DocCount returns the number of indexed documents.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// IndexMediaItem adds or updates one item in the index.
func (i *Index) IndexMediaItem(item *domain.MediaItem) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	doc := MediaDocument{
		ID:        item.ID,
		LibraryID: item.LibraryID,
		Type:      string(item.Type),
		Title:     item.Title,
		Year:      item.Year,
	}
	if err := i.index.Index(item.ID, doc); err != nil {
		return fmt.Errorf("index media item %s: %w", item.ID, err)
	}
	return nil
}

// RemoveMediaItem drops one item from the index.
func (i *Index) RemoveMediaItem(itemID string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := i.index.Delete(itemID); err != nil {
		return fmt.Errorf("remove media item %s from index: %w", itemID, err)
	}
	return nil
}

// Rebuild reindexes the given items in batches, replacing current contents.
func (i *Index) Rebuild(items []*domain.MediaItem) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	const batchSize = 500
	batch := i.index.NewBatch()
	for n, item := range items {
		doc := MediaDocument{
			ID:        item.ID,
			LibraryID: item.LibraryID,
			Type:      string(item.Type),
			Title:     item.Title,
			Year:      item.Year,
		}
		if err := batch.Index(item.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", item.ID, err)
		}
		if (n+1)%batchSize == 0 {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("apply index batch: %w", err)
			}
			batch = i.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("apply final index batch: %w", err)
		}
	}

	i.logger.Info("Search index rebuilt", "documents", len(items))
	return nil
}

// Search runs a fuzzy-or-prefix match over titles.
func (i *Index) Search(queryString string, limit int) ([]Hit, uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 25
	}

	match := bleve.NewMatchQuery(queryString)
	match.SetField("title")
	match.SetFuzziness(1)

	prefix := bleve.NewPrefixQuery(queryString)
	prefix.SetField("title")

	query := bleve.NewDisjunctionQuery(match, prefix)
	request := bleve.NewSearchRequestOptions(query, limit, 0, false)
	request.Fields = []string{"title"}

	result, err := i.index.Search(request)
	if err != nil {
		return nil, 0, fmt.Errorf("search %q: %w", queryString, err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		title, _ := hit.Fields["title"].(string)
		hits = append(hits, Hit{ID: hit.ID, Title: title, Score: hit.Score})
	}
	return hits, result.Total, nil
}
