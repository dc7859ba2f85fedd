package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/disintegration/imaging"
	"gorm.io/gorm"

	"github.com/eliabeart/gallerybackend/cache"
	"github.com/eliabeart/gallerybackend/media"
	"github.com/eliabeart/gallerybackend/models"
	"github.com/eliabeart/gallerybackend/repository"
	"github.com/hibiken/asynq"
)

// ImageFileExtension is appended to the logical image name when persisting
// the full-resolution file
const ImageFileExtension = ".jpg"

// Invalidator is the slice of the cache surface the pipeline needs after a
// successful insert
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// IngestProcessor executes ingestion jobs on the worker side: decode,
// persist, fingerprint, record. It runs on a pool decoupled from the HTTP
// request that enqueued the job.
type IngestProcessor struct {
	Images  repository.ImageRepositoryInterface
	Storage media.Store
	Cache   Invalidator
}

func NewIngestProcessor(images repository.ImageRepositoryInterface, storage media.Store, invalidator Invalidator) *IngestProcessor {
	return &IngestProcessor{Images: images, Storage: storage, Cache: invalidator}
}

// ProcessTask handles one ingestion job. Either a complete Image row is
// inserted with hash and dimensions populated, or nothing is written: a
// decode failure or missing source aborts before any file or row exists,
// and an insert failure rolls back the file written by this job.
func (p *IngestProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload IngestImagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ingest: invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	// a row may already exist if the same name was enqueued twice during a
	// resync/upload race; the job becomes a no-op rather than an overwrite
	if _, err := p.Images.GetByNameAndAlbumID(payload.ImageName, payload.AlbumID); err == nil {
		log.Printf("ingest: image %s already recorded in album %d, skipping", payload.ImageName, payload.AlbumID)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ingest: existence check for %s in album %d failed: %w", payload.ImageName, payload.AlbumID, err)
	}

	data, err := p.sourceBytes(payload)
	if err != nil {
		return fmt.Errorf("ingest: %w: %w", err, asynq.SkipRetry)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("ingest: failed to decode image %s for album %d: %w: %w", payload.ImageName, payload.AlbumID, err, asynq.SkipRetry)
	}
	bounds := img.Bounds()

	// resync sources already sit in the album directory; only relayed
	// uploads need the full-resolution file persisted
	wroteFile := false
	filename := payload.ImageName + ImageFileExtension
	if len(payload.Data) > 0 {
		if _, err := p.Storage.Save(payload.AlbumName, filename, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("ingest: failed to persist %s/%s: %w", payload.AlbumName, filename, err)
		}
		wroteFile = true
	}

	hash, err := media.PerceptualHash(img)
	if err != nil {
		p.discard(payload.AlbumName, filename, wroteFile)
		return fmt.Errorf("ingest: failed to fingerprint %s/%s: %w: %w", payload.AlbumName, payload.ImageName, err, asynq.SkipRetry)
	}

	image := models.Image{
		Name:           payload.ImageName,
		Description:    "",
		PerceptualHash: hash,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		AlbumID:        payload.AlbumID,
	}

	if meta, err := media.ExtractCaptureMetadata(bytes.NewReader(data)); err == nil && meta != nil {
		image.TakenAt = meta.TakenAt
		image.CameraMake = meta.CameraMake
		image.CameraModel = meta.CameraModel
	}

	if err := p.Images.Create(&image); err != nil {
		p.discard(payload.AlbumName, filename, wroteFile)
		return fmt.Errorf("ingest: failed to record %s in album %d: %w", payload.ImageName, payload.AlbumID, err)
	}

	if p.Cache != nil {
		p.Cache.Invalidate(ctx, cache.AlbumImagesKey(payload.AlbumID))
	}

	log.Printf("ingest: recorded %s in album %d (%dx%d)", payload.ImageName, payload.AlbumID, image.Width, image.Height)
	return nil
}

// sourceBytes resolves the job's image bytes from either the relayed upload
// data or the referenced on-disk file
func (p *IngestProcessor) sourceBytes(payload IngestImagePayload) ([]byte, error) {
	if len(payload.Data) > 0 {
		return payload.Data, nil
	}
	if payload.SourcePath == "" {
		return nil, fmt.Errorf("job for %s/%s has neither data nor source path", payload.AlbumName, payload.ImageName)
	}
	data, err := os.ReadFile(payload.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("source file missing for %s/%s: %w", payload.AlbumName, payload.ImageName, err)
	}
	return data, nil
}

// discard removes a file written earlier in this job so a failed task leaves
// no half-ingested state behind
func (p *IngestProcessor) discard(albumName, filename string, wroteFile bool) {
	if !wroteFile {
		return
	}
	if err := p.Storage.Delete(albumName, filename); err != nil {
		log.Printf("ingest: failed to remove %s/%s after aborted job: %v", albumName, filename, err)
	}
}
