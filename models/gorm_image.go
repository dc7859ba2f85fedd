package models

// Image represents an image record in the database using GORM.
// It corresponds to the 'images' table. Name is unique within an album,
// not globally; the composite index backs that constraint so racing
// ingestion jobs cannot insert the same (album, name) pair twice.
type Image struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string `gorm:"not null;uniqueIndex:idx_album_image_name" json:"name"`
	Description    string `gorm:"" json:"description"`
	PerceptualHash string `gorm:"" json:"perceptual_hash"` // empty until the ingest job completes
	Width          int    `gorm:"" json:"width"`
	Height         int    `gorm:"" json:"height"`
	AlbumID        uint   `gorm:"not null;index;uniqueIndex:idx_album_image_name" json:"album_id"`

	// capture metadata, extracted from EXIF when present
	TakenAt     *int64  `gorm:"index" json:"taken_at,omitempty"`  // Nullable, Unix timestamp
	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`    // Nullable
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`   // Nullable

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
