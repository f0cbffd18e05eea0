// Package detect runs the detection pipeline: decode a pair of uploaded
// images, compute and cluster their differences, persist the playable assets
// and hand the result to the difference cache for game creation.
package detect

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pixelhunt/pixelhunt/cache"
	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/metrics/prometheus"
	"github.com/pixelhunt/pixelhunt/raster"
	"github.com/pixelhunt/pixelhunt/storage"
)

// DefaultRadius is the difference expansion radius in pixels.
const DefaultRadius = 5

var tracer = otel.Tracer("pixelhunt/detect")

// ErrUnknownJob is returned when confirming or cancelling a job ID that has
// no pending detection result.
var ErrUnknownJob = errors.New("unknown detection job")

// Result is the outcome of one detection job, returned to the uploader for
// review before the game is confirmed.
type Result struct {
	JobID                string `json:"jobId"`
	DifferentPixelsCount int    `json:"differentPixelsCount"`
	NumberOfDifferences  int    `json:"numberOfDifferences"`
	Difficulty           string `json:"difficulty"`
	Image1URL            string `json:"image1Url"`
	Image2URL            string `json:"image2Url"`
	DifferenceImageURL   string `json:"differenceImageUrl"`
	ThumbnailURL         string `json:"thumbnailUrl"`
}

// assetURLs lists every asset a result owns, for cleanup.
func (r *Result) assetURLs() []string {
	return []string{r.Image1URL, r.Image2URL, r.DifferenceImageURL, r.ThumbnailURL}
}

// Config wires an Engine to its collaborators.
type Config struct {
	Cache       cache.Store
	Assets      storage.AssetStore
	Differences storage.DifferenceStore
	Catalog     storage.CatalogStore

	// Radius is the difference expansion radius. Defaults to DefaultRadius.
	Radius int

	// Thresholds is the difficulty policy. Zero value means defaults.
	Thresholds diff.Thresholds
}

// Engine runs detection jobs and tracks their results until they are
// confirmed into the catalog or cancelled.
type Engine struct {
	cache      cache.Store
	assets     storage.AssetStore
	diffs      storage.DifferenceStore
	catalog    storage.CatalogStore
	radius     int
	thresholds diff.Thresholds

	mu      sync.Mutex
	pending map[string]*Result
}

// NewEngine creates a detection engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Radius == 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.Thresholds == (diff.Thresholds{}) {
		cfg.Thresholds = diff.DefaultThresholds()
	}
	return &Engine{
		cache:      cfg.Cache,
		assets:     cfg.Assets,
		diffs:      cfg.Differences,
		catalog:    cfg.Catalog,
		radius:     cfg.Radius,
		thresholds: cfg.Thresholds,
		pending:    make(map[string]*Result),
	}
}

// Run executes one detection job on a pair of base64-encoded images. On
// success the playable assets are persisted, the result is cached for game
// creation and returned for review. Identical images report zero counts
// without producing a job; a nonzero region count outside the playable range
// fails with diff.ErrRegionCount and leaves nothing behind.
func (e *Engine) Run(ctx context.Context, originalB64, modifiedB64 string) (*Result, error) {
	start := time.Now()
	result, err := e.run(ctx, originalB64, modifiedB64)
	switch {
	case err == nil:
		prometheus.RecordDetection(prometheus.StatusSuccess, time.Since(start).Seconds())
	case errors.Is(err, diff.ErrRegionCount):
		prometheus.RecordDetection(prometheus.StatusRejected, time.Since(start).Seconds())
	default:
		prometheus.RecordDetection(prometheus.StatusError, time.Since(start).Seconds())
	}
	return result, err
}

func (e *Engine) run(ctx context.Context, originalB64, modifiedB64 string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "detection.run",
		trace.WithAttributes(attribute.Int("radius", e.radius)))
	defer span.End()

	var original, modified *raster.Raster

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := decodeUpload(originalB64)
		if err != nil {
			return fmt.Errorf("original image: %w", err)
		}
		original = r
		return nil
	})
	g.Go(func() error {
		r, err := decodeUpload(modifiedB64)
		if err != nil {
			return fmt.Errorf("modified image: %w", err)
		}
		modified = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	marked := diff.Diff(original, modified, e.radius)
	groups := diff.Cluster(marked)
	span.SetAttributes(
		attribute.Int("marked_pixels", len(marked)),
		attribute.Int("regions", len(groups)),
	)

	if len(groups) == 0 {
		// Identical images are a valid detection outcome, just not a
		// playable one: report the zero counts and leave nothing behind.
		logger.Info("no differences detected")
		return &Result{}, nil
	}

	difficulty, err := e.thresholds.Classify(len(marked), len(groups))
	if err != nil {
		logger.Warn("detection rejected", "regions", len(groups), "pixels", len(marked))
		return nil, err
	}

	jobID := uuid.NewString()
	ctx = logger.WithJobID(ctx, jobID)
	info := diff.NewInfo(jobID, groups)

	result, err := e.saveAssets(ctx, jobID, original, modified, marked)
	if err != nil {
		return nil, err
	}
	result.DifferentPixelsCount = len(marked)
	result.NumberOfDifferences = len(groups)
	result.Difficulty = difficulty

	if err := e.diffs.SaveDifferences(ctx, jobID, info); err != nil {
		e.cleanup(ctx, jobID, result)
		return nil, err
	}
	if err := e.cache.Store(ctx, jobID, info); err != nil {
		e.cleanup(ctx, jobID, result)
		return nil, err
	}

	e.mu.Lock()
	e.pending[jobID] = result
	e.mu.Unlock()

	logger.DetectionJob(jobID, len(marked), len(groups), difficulty)
	return result, nil
}

// saveAssets persists the four playable images and returns a result holding
// their URLs. Any failure removes the assets already written.
func (e *Engine) saveAssets(ctx context.Context, jobID string, original, modified *raster.Raster, marked diff.PixelSet) (*Result, error) {
	difference := diff.Render(marked)

	thumbnail, err := raster.EncodeThumbnailPNG(original)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	result := &Result{JobID: jobID}
	saved := make([]string, 0, 4)
	for _, asset := range []struct {
		name string
		data []byte
		dest *string
	}{
		{jobID + "-original.bmp", raster.Encode(original), &result.Image1URL},
		{jobID + "-modified.bmp", raster.Encode(modified), &result.Image2URL},
		{jobID + "-difference.bmp", raster.Encode(difference), &result.DifferenceImageURL},
		{jobID + "-thumbnail.png", thumbnail, &result.ThumbnailURL},
	} {
		url, err := e.assets.SaveAsset(ctx, asset.name, asset.data)
		if err != nil {
			if cleanupErr := e.assets.DeleteAssets(ctx, saved...); cleanupErr != nil {
				logger.ErrorContext(ctx, "asset cleanup failed", "error", cleanupErr)
			}
			return nil, err
		}
		saved = append(saved, url)
		*asset.dest = url
	}

	return result, nil
}

// Confirm turns a pending detection result into a catalog game under the
// given display name.
func (e *Engine) Confirm(ctx context.Context, jobID, name string) (storage.Game, error) {
	e.mu.Lock()
	result, ok := e.pending[jobID]
	if ok {
		delete(e.pending, jobID)
	}
	e.mu.Unlock()

	if !ok {
		return storage.Game{}, ErrUnknownJob
	}

	game := storage.Game{
		ID:            jobID,
		Name:          name,
		Difficulty:    result.Difficulty,
		RegionCount:   result.NumberOfDifferences,
		OriginalURL:   result.Image1URL,
		ModifiedURL:   result.Image2URL,
		DifferenceURL: result.DifferenceImageURL,
		ThumbnailURL:  result.ThumbnailURL,
		CreatedAt:     time.Now().UTC(),
	}

	games, err := e.catalog.LoadCatalog(ctx)
	if err != nil {
		e.restorePending(jobID, result)
		return storage.Game{}, err
	}
	if err := e.catalog.SaveCatalog(ctx, append(games, game)); err != nil {
		e.restorePending(jobID, result)
		return storage.Game{}, err
	}

	logger.InfoContext(ctx, "game confirmed", "job_id", jobID, "name", name)
	return game, nil
}

// Cancel discards a pending detection result and every artifact it produced.
func (e *Engine) Cancel(ctx context.Context, jobID string) error {
	e.mu.Lock()
	result, ok := e.pending[jobID]
	if ok {
		delete(e.pending, jobID)
	}
	e.mu.Unlock()

	if !ok {
		return ErrUnknownJob
	}

	e.cleanup(ctx, jobID, result)
	logger.InfoContext(ctx, "detection cancelled", "job_id", jobID)
	return nil
}

// Pending returns the result of a not-yet-confirmed job, if any.
func (e *Engine) Pending(jobID string) (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.pending[jobID]
	return r, ok
}

func (e *Engine) restorePending(jobID string, result *Result) {
	e.mu.Lock()
	e.pending[jobID] = result
	e.mu.Unlock()
}

// cleanup removes every artifact of a job: assets, persisted differences and
// the cached entry. Each step is idempotent so partial failures only log.
func (e *Engine) cleanup(ctx context.Context, jobID string, result *Result) {
	if err := e.assets.DeleteAssets(ctx, result.assetURLs()...); err != nil {
		logger.ErrorContext(ctx, "asset cleanup failed", "job_id", jobID, "error", err)
	}
	if err := e.diffs.DeleteDifferences(ctx, jobID); err != nil {
		logger.ErrorContext(ctx, "difference cleanup failed", "job_id", jobID, "error", err)
	}
	if _, err := e.cache.Take(ctx, jobID); err != nil && !errors.Is(err, cache.ErrNotFound) {
		logger.ErrorContext(ctx, "cache cleanup failed", "job_id", jobID, "error", err)
	}
}

// decodeUpload turns a base64 upload into a raster, distinguishing transport
// corruption from image format violations.
func decodeUpload(encoded string) (*raster.Raster, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return raster.Decode(data)
}
