package handlers

import (
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/eliabeart/gallerybackend/cache"
	"github.com/eliabeart/gallerybackend/media"
	"github.com/eliabeart/gallerybackend/repository"
	"github.com/eliabeart/gallerybackend/workers"
)

// uploads relayed through the job transport are capped to keep payloads
// inside what the queue comfortably carries
const maxUploadBytes = 32 << 20

type ImageHandler struct {
	AlbumRepo repository.AlbumRepositoryInterface
	ImageRepo repository.ImageRepositoryInterface
	Cache     *cache.Store
	Enqueuer  *workers.Enqueuer
	Storage   media.Store
}

// ListAlbumImages returns the cached image listing for an album
func (ih *ImageHandler) ListAlbumImages(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}

	if _, err := ih.Cache.GetAlbum(r.Context(), albumID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error validating album %d: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve album"})
		}
		return
	}

	images, err := ih.Cache.GetAlbumImages(r.Context(), albumID)
	if err != nil {
		log.Printf("Error listing images for album %d: %v", albumID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve images"})
		return
	}
	if len(images) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No images found in album"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// GetImageFile serves the full-resolution image file from the album directory
func (ih *ImageHandler) GetImageFile(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}
	imageName := chi.URLParam(r, "image_name")

	album, err := ih.Cache.GetAlbum(r.Context(), albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error validating album %d: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve album"})
		}
		return
	}

	if _, err := ih.ImageRepo.GetByNameAndAlbumID(imageName, albumID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Image not found"})
		} else {
			log.Printf("Error fetching image %s in album %d: %v", imageName, albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve image"})
		}
		return
	}

	fullPath, err := ih.Storage.FullPath(album.Name, imageName+workers.ImageFileExtension)
	if err != nil {
		log.Printf("Error resolving image path %s/%s: %v", album.Name, imageName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to resolve image path"})
		return
	}
	if !ih.Storage.Exists(album.Name, imageName+workers.ImageFileExtension) {
		// row exists but the file is still converging or was removed
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Image file not found"})
		return
	}

	http.ServeFile(w, r, fullPath)
}

// GetRandomImage returns one image picked from a random public album
func (ih *ImageHandler) GetRandomImage(w http.ResponseWriter, r *http.Request) {
	albums, err := ih.Cache.GetPublicAlbums(r.Context())
	if err != nil {
		log.Printf("Error listing public albums for random image: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve albums"})
		return
	}
	if len(albums) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No albums found"})
		return
	}

	album := albums[rand.Intn(len(albums))]
	images, err := ih.Cache.GetAlbumImages(r.Context(), album.ID)
	if err != nil {
		log.Printf("Error listing images of album %d for random image: %v", album.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve images"})
		return
	}
	if len(images) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No images found"})
		return
	}

	writeJSON(w, http.StatusOK, images[rand.Intn(len(images))])
}

// UploadImage accepts a multipart image upload and relays it to the
// ingestion pipeline. The request returns 202 as soon as the job is queued;
// the image becomes visible once the worker records its metadata row.
func (ih *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}

	album, err := ih.AlbumRepo.GetByID(albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error fetching album %d for upload: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch album"})
		}
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'file' field"})
		return
	}
	defer file.Close()

	if !media.IsRasterImage(header.Filename) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported file type"})
		return
	}

	imageName := strings.TrimSpace(r.FormValue("name"))
	if imageName == "" {
		imageName = media.ImageBaseName(header.Filename)
	}
	if imageName == "" || strings.ContainsAny(imageName, "/\\?%*:|\"<>") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid image name"})
		return
	}

	// duplicate names are rejected before enqueue, never silently overwritten
	if _, err := ih.ImageRepo.GetByNameAndAlbumID(imageName, album.ID); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Image name already exists in album"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error checking image %s in album %d: %v", imageName, album.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to verify image name"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read upload"})
		return
	}
	if len(data) > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Upload too large"})
		return
	}

	taskID, err := ih.Enqueuer.EnqueueIngest(workers.IngestImagePayload{
		AlbumID:   album.ID,
		AlbumName: album.Name,
		ImageName: imageName,
		Data:      data,
	})
	if err != nil {
		log.Printf("Error enqueueing upload for %s/%s: %v", album.Name, imageName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to queue image for processing"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Image accepted for processing",
		"task_id": taskID,
		"name":    imageName,
	})
}

// DeleteImage removes the image row and its file, then drops the album's
// image-list cache entry
func (ih *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	albumID, err := albumIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid album ID"})
		return
	}
	imageName := chi.URLParam(r, "image_name")

	album, err := ih.AlbumRepo.GetByID(albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Album not found"})
		} else {
			log.Printf("Error fetching album %d for image delete: %v", albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch album"})
		}
		return
	}

	image, err := ih.ImageRepo.GetByNameAndAlbumID(imageName, albumID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Image not found"})
		} else {
			log.Printf("Error fetching image %s in album %d: %v", imageName, albumID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve image"})
		}
		return
	}

	if err := ih.ImageRepo.Delete(image.ID); err != nil {
		log.Printf("Error deleting image %d: %v", image.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete image"})
		return
	}
	if err := ih.Storage.Delete(album.Name, imageName+workers.ImageFileExtension); err != nil {
		log.Printf("Error deleting image file %s/%s: %v", album.Name, imageName, err)
	}

	ih.Cache.Invalidate(r.Context(), cache.AlbumImagesKey(albumID))

	writeJSON(w, http.StatusNoContent, nil)
}
