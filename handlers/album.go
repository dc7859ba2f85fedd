package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/eliabeart/gallerybackend/cache"
	"github.com/eliabeart/gallerybackend/media"
	"github.com/eliabeart/gallerybackend/models"
	"github.com/eliabeart/gallerybackend/repository"
	"github.com/eliabeart/gallerybackend/workers"
)

type AlbumHandler struct {
	AlbumRepo repository.AlbumRepositoryInterface
	ImageRepo repository.ImageRepositoryInterface
	Cache     *cache.Store
	Enqueuer  *workers.Enqueuer
	Status    *workers.StatusTracker
	Storage   media.Store
}

func albumIDParam(r *http.Request) (uint, error) {
	idStr := chi.URLParam(r, "album_id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ListPublicAlbums returns the cached public album listing with albums still
// mid-ingestion suppressed, so clients never see a half-populated album
func (ah *AlbumHandler) ListPublicAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := ah.Cache.GetPublicAlbums(r.Context())
	if err != nil {
		log.Printf("Error listing public albums: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve albums"})
		return
	}

	inFlight := ah.Status.InFlightAlbumIDs()
	visible := make([]models.Album, 0, len(albums))
	for _, album := range albums {
		if _, converging := inFlight[album.ID]; converging {
			continue
		}
		visible = append(visible, album)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"albums": visible})
}

// CreateAlbum creates the album row and its on-disk directory. Any .jpg
// files already sitting in the directory are enqueued for ingestion, with
// the first (natural order) becoming the cover.
func (ah *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    bool   `json:"is_public"`
		Passcode    string `json:"passcode"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: name"})
		return
	}
	// the album name becomes its directory name, so it must be a clean path segment
	if strings.ContainsAny(req.Name, "/\\?%*:|\"<>") || req.Name == "." || req.Name == ".." {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album name. Use filesystem-safe characters."})
		return
	}

	album := models.Album{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Passcode:    req.Passcode,
	}
	if err := ah.AlbumRepo.Create(&album); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Album name already exists"})
		} else {
			log.Printf("Error creating album '%s': %v", req.Name, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create album"})
		}
		return
	}

	if _, err := ah.Storage.EnsureAlbumDir(album.Name); err != nil {
		log.Printf("Error ensuring directory for album '%s': %v", album.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create album directory"})
		return
	}

	queued := ah.enqueueDirectoryImages(&album, nil)

	ah.Cache.Invalidate(r.Context(), cache.PublicAlbumsKey)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"album":         album,
		"queued_images": queued,
	})
}

// GetAlbum returns the cached single-album view
func (ah *AlbumHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}

	view, err := ah.Cache.GetAlbum(r.Context(), albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error getting album %d: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve album"})
		}
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteAlbum removes the album row and all its image rows, then drops the
// affected cache keys. The on-disk directory is left for the operator.
func (ah *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}

	if err := ah.AlbumRepo.Delete(albumID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error deleting album %d: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete album"})
		}
		return
	}

	ah.Cache.Invalidate(r.Context(),
		cache.AlbumKey(albumID),
		cache.AlbumImagesKey(albumID),
		cache.PublicAlbumsKey,
	)

	writeJSON(w, http.StatusNoContent, nil)
}

// SetCoverImage points the album cover at one of its images. The image must
// already have a metadata row; the reference is checked here, at write time.
func (ah *AlbumHandler) SetCoverImage(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}
	imageName := chi.URLParam(r, "image_name")

	if _, err := ah.ImageRepo.GetByNameAndAlbumID(imageName, albumID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Image not found in album"})
		} else {
			log.Printf("Error checking cover image %s for album %d: %v", imageName, albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify cover image"})
		}
		return
	}

	if err := ah.AlbumRepo.SetCoverImage(albumID, imageName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error setting cover image for album %d: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to set cover image"})
		}
		return
	}

	ah.Cache.Invalidate(r.Context(), cache.AlbumKey(albumID), cache.PublicAlbumsKey)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Cover image updated"})
}

// ResyncAlbum reconciles the album directory with the metadata store: files
// without a row are enqueued for ingestion, rows without a file are deleted
// outright. The diff is not transactional against concurrent uploads; that
// race is accepted rather than locked around.
func (ah *AlbumHandler) ResyncAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}

	album, err := ah.AlbumRepo.GetByID(albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error fetching album %d for resync: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch album"})
		}
		return
	}

	rows, err := ah.ImageRepo.ListByAlbumID(album.ID)
	if err != nil {
		log.Printf("Error listing images for album %d resync: %v", album.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list album images"})
		return
	}
	recorded := make(map[string]bool, len(rows))
	for _, row := range rows {
		recorded[row.Name] = true
	}

	queued := ah.enqueueDirectoryImages(album, recorded)

	onDisk := make(map[string]bool)
	if files, err := ah.Storage.List(album.Name); err == nil {
		for _, f := range files {
			if media.IsRasterImage(f) {
				onDisk[media.ImageBaseName(f)] = true
			}
		}
	} else {
		log.Printf("Error listing directory for album %d resync: %v", album.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list album directory"})
		return
	}

	var orphaned []string
	for _, row := range rows {
		if !onDisk[row.Name] {
			orphaned = append(orphaned, row.Name)
		}
	}
	removed, err := ah.ImageRepo.DeleteByNamesAndAlbumID(orphaned, album.ID)
	if err != nil {
		log.Printf("Error removing orphaned rows for album %d: %v", album.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to remove orphaned images"})
		return
	}

	ah.Cache.Invalidate(r.Context(), cache.AlbumImagesKey(album.ID), cache.PublicAlbumsKey)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":       "Album resync started",
		"queued_images": queued,
		"removed_rows":  removed,
	})
}

// enqueueDirectoryImages scans the album directory and enqueues an ingestion
// job for every raster image not present in skip. It also resets the cover
// to the first file in natural order. Returns the names queued.
func (ah *AlbumHandler) enqueueDirectoryImages(album *models.Album, skip map[string]bool) []string {
	files, err := ah.Storage.List(album.Name)
	if err != nil {
		log.Printf("Error listing directory for album '%s': %v", album.Name, err)
		return nil
	}

	var queued []string
	var firstName string
	for _, file := range files {
		if !media.IsRasterImage(file) {
			continue
		}
		name := media.ImageBaseName(file)
		if firstName == "" {
			firstName = name
		}
		if skip[name] {
			continue
		}

		sourcePath, err := ah.Storage.FullPath(album.Name, file)
		if err != nil {
			log.Printf("Error resolving path for %s/%s: %v", album.Name, file, err)
			continue
		}
		if _, err := ah.Enqueuer.EnqueueIngest(workers.IngestImagePayload{
			AlbumID:    album.ID,
			AlbumName:  album.Name,
			ImageName:  name,
			SourcePath: sourcePath,
		}); err != nil {
			log.Printf("Error enqueueing ingest for %s/%s: %v", album.Name, name, err)
			continue
		}
		queued = append(queued, name)
	}

	if firstName != "" {
		if err := ah.AlbumRepo.SetCoverImage(album.ID, firstName); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error setting cover for album %d during scan: %v", album.ID, err)
		} else {
			album.CoverImageName = &firstName
			album.UpdatedAt = time.Now().Unix()
		}
	}

	return queued
}
