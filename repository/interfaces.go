package repository

import (
	"github.com/eliabeart/gallerybackend/models"
)

// AlbumRepositoryInterface defines the methods for album data operations
type AlbumRepositoryInterface interface {
	Create(album *models.Album) error
	ListAll() ([]models.Album, error)
	ListPublic() ([]models.Album, error)
	GetByID(id uint) (*models.Album, error)
	GetByName(name string) (*models.Album, error)
	SetCoverImage(albumID uint, imageName string) error
	Delete(id uint) error
}

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	Create(image *models.Image) error
	GetByID(id uint) (*models.Image, error)
	GetByNameAndAlbumID(name string, albumID uint) (*models.Image, error)
	ListByAlbumID(albumID uint) ([]models.Image, error)
	Delete(id uint) error
	DeleteByNamesAndAlbumID(names []string, albumID uint) (int64, error)
	DeleteAllByAlbumID(albumID uint) (int64, error)
}

// UserRepositoryInterface defines the methods for user data operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
}
