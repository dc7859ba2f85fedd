package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eliabeart/gallerybackend/models"
)

// AlbumRepository handles database operations for Album entities
type AlbumRepository struct {
	DB *gorm.DB
}

// NewAlbumRepository creates a new instance of AlbumRepository
func NewAlbumRepository(db *gorm.DB) *AlbumRepository {
	return &AlbumRepository{DB: db}
}

// Create creates a new album record in the database
func (r *AlbumRepository) Create(album *models.Album) error {
	now := time.Now().Unix()
	if album.CreatedAt == 0 {
		album.CreatedAt = now
	}
	if album.UpdatedAt == 0 {
		album.UpdatedAt = now
	}

	err := r.DB.Create(album).Error
	if err != nil {
		return fmt.Errorf("failed to create album %s: %w", album.Name, err)
	}
	return nil
}

// ListAll retrieves every album, ordered by name
func (r *AlbumRepository) ListAll() ([]models.Album, error) {
	var albums []models.Album
	err := r.DB.Order("name ASC").Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, nil
}

// ListPublic retrieves all albums flagged public, ordered by name
func (r *AlbumRepository) ListPublic() ([]models.Album, error) {
	var albums []models.Album
	err := r.DB.Where("is_public = ?", true).Order("name ASC").Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list public albums: %w", err)
	}
	return albums, nil
}

// GetByID retrieves an album by its ID
func (r *AlbumRepository) GetByID(id uint) (*models.Album, error) {
	var album models.Album
	err := r.DB.First(&album, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by ID %d: %w", id, err)
	}
	return &album, nil
}

// GetByName retrieves an album by its unique name
func (r *AlbumRepository) GetByName(name string) (*models.Album, error) {
	var album models.Album
	err := r.DB.Where("name = ?", name).First(&album).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get album by name %s: %w", name, err)
	}
	return &album, nil
}

// SetCoverImage points the album's cover at one of its images by name.
// The image must exist in the album; callers verify that before updating.
func (r *AlbumRepository) SetCoverImage(albumID uint, imageName string) error {
	now := time.Now().Unix()
	result := r.DB.Model(&models.Album{}).Where("id = ?", albumID).Updates(map[string]interface{}{
		"cover_image_name": imageName,
		"updated_at":       now,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to set cover image for album ID %d: %w", albumID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an album by its ID. Image rows owned by the album are
// removed first; directory cleanup on disk is the caller's responsibility.
func (r *AlbumRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("album_id = ?", id).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("failed to delete images for album ID %d: %w", id, err)
		}
		result := tx.Delete(&models.Album{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete album ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
