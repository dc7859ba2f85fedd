package models

// Album represents a named collection of images in the database using GORM.
// It corresponds to the 'albums' table. Name doubles as the directory name
// under the images base path, so it must be a valid path segment.
type Album struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string  `gorm:"not null;unique" json:"name"`
	Description    string  `gorm:"" json:"description"`
	IsPublic       bool    `gorm:"not null;default:false" json:"is_public"`
	Passcode       string  `gorm:"" json:"-"`
	CoverImageName *string `gorm:"" json:"cover_image_name,omitempty"` // Nullable, names one of the album's images
	CreatedAt      int64   `gorm:"not null" json:"created_at"`         // Unix timestamp
	UpdatedAt      int64   `gorm:"not null" json:"updated_at"`         // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Album) TableName() string {
	return "albums"
}
