package media

import (
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMetadata holds the EXIF fields recorded alongside an ingested image
type CaptureMetadata struct {
	TakenAt     *int64  `json:"taken_at,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimRight(val, "\x00")
	if val == "" {
		return nil
	}
	return &val
}

// ExtractCaptureMetadata reads EXIF data from an image byte stream. Files
// without EXIF data are common; a nil result with nil error means no
// metadata was found, never a failed ingestion.
func ExtractCaptureMetadata(r io.Reader) (*CaptureMetadata, error) {
	exifData, err := exif.Decode(r)
	if err != nil {
		// most non-camera files simply lack EXIF blocks
		return nil, nil
	}

	meta := &CaptureMetadata{
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}

	if taken, err := exifData.DateTime(); err == nil {
		unix := taken.Unix()
		meta.TakenAt = &unix
	}

	if meta.TakenAt == nil && meta.CameraMake == nil && meta.CameraModel == nil {
		return nil, nil
	}
	return meta, nil
}
