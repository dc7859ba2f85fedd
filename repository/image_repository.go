package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eliabeart/gallerybackend/models"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// Create inserts a fully populated image record. The unique index on
// (album_id, name) rejects a second insert for the same pair, so this is
// the final defence against racing ingest jobs.
func (r *ImageRepository) Create(image *models.Image) error {
	now := time.Now().Unix()
	if image.CreatedAt == 0 {
		image.CreatedAt = now
	}
	if image.UpdatedAt == 0 {
		image.UpdatedAt = now
	}

	err := r.DB.Create(image).Error
	if err != nil {
		return fmt.Errorf("failed to create image %s in album %d: %w", image.Name, image.AlbumID, err)
	}
	return nil
}

// GetByID retrieves an image by its ID
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.First(&image, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// GetByNameAndAlbumID retrieves an image by its name within a specific album
func (r *ImageRepository) GetByNameAndAlbumID(name string, albumID uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.Where("name = ? AND album_id = ?", name, albumID).First(&image).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image %s in album %d: %w", name, albumID, err)
	}
	return &image, nil
}

// ListByAlbumID retrieves all images belonging to an album, ordered by name
func (r *ImageRepository) ListByAlbumID(albumID uint) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.Where("album_id = ?", albumID).Order("name ASC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for album %d: %w", albumID, err)
	}
	return images, nil
}

// Delete removes an image by its ID
func (r *ImageRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Image{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete image ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByNamesAndAlbumID removes the named images from an album, returning
// the number of rows removed. Used by resync for rows no longer backed by a
// file on disk.
func (r *ImageRepository) DeleteByNamesAndAlbumID(names []string, albumID uint) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	result := r.DB.Where("name IN ? AND album_id = ?", names, albumID).Delete(&models.Image{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete images %v from album %d: %w", names, albumID, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteAllByAlbumID removes every image row owned by an album
func (r *ImageRepository) DeleteAllByAlbumID(albumID uint) (int64, error) {
	result := r.DB.Where("album_id = ?", albumID).Delete(&models.Image{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete images for album %d: %w", albumID, result.Error)
	}
	return result.RowsAffected, nil
}
