package images

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/homeflixapp/homeflix-server/internal/domain"
	"github.com/homeflixapp/homeflix-server/internal/errors"
	"github.com/homeflixapp/homeflix-server/internal/id"
)

// Catalog is the slice of the store the generator needs.
type Catalog interface {
	GetImageByKind(ctx context.Context, itemID string, kind domain.ImageKind) (*domain.Image, error)
	CreateImage(ctx context.Context, img *domain.Image) error
}

// Generator captures poster frames with ffmpeg.
type Generator struct {
	catalog    Catalog
	storage    *Storage
	ffmpegPath string
	width      int
	logger     *slog.Logger
}

// NewGenerator creates a poster generator.
func NewGenerator(catalog Catalog, storage *Storage, ffmpegPath string, width int, logger *slog.Logger) *Generator {
	return &Generator{
		catalog:    catalog,
		storage:    storage,
		ffmpegPath: ffmpegPath,
		width:      width,
		logger:     logger,
	}
}

// GeneratePoster captures a single frame as the item's poster. It is
// idempotent: when a poster row already exists nothing happens, so an item
// ends up with at most one poster. On capture failure no row is written and
// a later call may retry.
func (g *Generator) GeneratePoster(ctx context.Context, mediaItemID, filePath string, durationSeconds float64) error {
	_, err := g.catalog.GetImageByKind(ctx, mediaItemID, domain.ImageKindPoster)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("check existing poster: %w", err)
	}

	timestamp := captureTimestamp(durationSeconds)
	outputPath := g.storage.Path(mediaItemID)

	if err := g.captureFrame(ctx, filePath, outputPath, timestamp); err != nil {
		return err
	}

	img := &domain.Image{
		ID:          id.MustGenerate(id.PrefixImage),
		MediaItemID: mediaItemID,
		Kind:        domain.ImageKindPoster,
		Path:        outputPath,
		SizeClass:   "medium",
	}

	// A missing placeholder hash is cosmetic; keep the poster either way.
	if hash, err := ComputeBlurHash(outputPath); err != nil {
		g.logger.Warn("Failed to compute poster blurhash",
			"media_item_id", mediaItemID, "error", err)
	} else {
		img.BlurHash = hash
	}

	if err := g.catalog.CreateImage(ctx, img); err != nil {
		return fmt.Errorf("save poster row: %w", err)
	}

	g.logger.Debug("Generated poster",
		"media_item_id", mediaItemID, "timestamp", timestamp)
	return nil
}

// captureTimestamp picks the seek point: 10% in, at least 10 seconds, and
// never past the file for short clips.
func captureTimestamp(durationSeconds float64) float64 {
	timestamp := durationSeconds * 0.1
	if timestamp < 10 {
		timestamp = 10
	}
	if timestamp > durationSeconds {
		timestamp = durationSeconds / 2
	}
	return timestamp
}

func (g *Generator) captureFrame(ctx context.Context, inputPath, outputPath string, timestamp float64) error {
	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", g.width),
		outputPath,
	}

	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg frame capture: %w (output: %s)", err, output)
	}
	return nil
}
