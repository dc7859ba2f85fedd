package media

import (
	"encoding/hex"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// reduction bound used before computing the fingerprint; the reduced
	// image is thrown away, only the hash is stored
	hashWorkingSize = 32

	// fingerprint grid components
	HashXComponents = 8
	HashYComponents = 8
)

// PerceptualHash computes a compact gradient-based fingerprint of an image.
// The image is reduced to a bounded working size, converted to grayscale,
// then sampled on a fixed grid: one bit per horizontal neighbour pair on an
// (x+1)×y grid plus one bit per vertical pair on an x×(y+1) grid. Two
// visually similar images produce fingerprints with a small Hamming
// distance; the hash is not meant to be cryptographic.
func PerceptualHash(img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	working := imaging.Fit(img, hashWorkingSize, hashWorkingSize, imaging.Lanczos)
	gray := imaging.Grayscale(working)

	bits := make([]bool, 0, 2*HashXComponents*HashYComponents)

	// horizontal gradients
	hGrid := imaging.Resize(gray, HashXComponents+1, HashYComponents, imaging.Lanczos)
	for y := 0; y < HashYComponents; y++ {
		for x := 0; x < HashXComponents; x++ {
			bits = append(bits, luma(hGrid, x, y) < luma(hGrid, x+1, y))
		}
	}

	// vertical gradients
	vGrid := imaging.Resize(gray, HashXComponents, HashYComponents+1, imaging.Lanczos)
	for y := 0; y < HashYComponents; y++ {
		for x := 0; x < HashXComponents; x++ {
			bits = append(bits, luma(vGrid, x, y) < luma(vGrid, x, y+1))
		}
	}

	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << uint(7-i%8)
		}
	}
	return hex.EncodeToString(packed), nil
}

func luma(img *image.NRGBA, x, y int) uint32 {
	r, g, b, _ := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
	// grayscale input, but keep the weighting in case of colour drift
	return (299*r + 587*g + 114*b) / 1000
}
