package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

// Store defines the interface for reading and writing image files grouped
// into album-named directories
type Store interface {
	// Save writes data to <album>/<filename>, overwriting any existing file,
	// and returns the absolute path written
	Save(albumName, filename string, data io.Reader) (string, error)
	// Open returns a reader for an image file
	Open(albumName, filename string) (io.ReadCloser, error)
	// List returns the filenames present in an album directory in natural order
	List(albumName string) ([]string, error)
	// Delete removes an image file; deleting a missing file is not an error
	Delete(albumName, filename string) error
	// Exists reports whether the file is present on disk
	Exists(albumName, filename string) bool
	// EnsureAlbumDir creates the album directory if needed and returns its path
	EnsureAlbumDir(albumName string) (string, error)
	// FullPath resolves the absolute path of a file inside an album directory
	FullPath(albumName, filename string) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem.
// Every album owns one directory directly under basePath.
type LocalStorage struct {
	basePath string // absolute path to IMAGES_BASE_PATH
}

// NewLocalStorage creates a new local filesystem store rooted at basePath
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{basePath: absBasePath}, nil
}

// FullPath calculates the absolute path and performs security checks so an
// album or file name can never escape the base directory
func (ls *LocalStorage) FullPath(albumName, filename string) (string, error) {
	joined := filepath.Join(ls.basePath, filepath.Clean(albumName))
	if filename != "" {
		joined = filepath.Join(joined, filepath.Clean(filename))
	}

	absPath, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s/%s': %w", albumName, filename, err)
	}

	if !strings.HasPrefix(absPath, ls.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s/%s'", albumName, filename)
	}
	return absPath, nil
}

// EnsureAlbumDir creates the directory for the album if it doesn't exist
func (ls *LocalStorage) EnsureAlbumDir(albumName string) (string, error) {
	dirPath, err := ls.FullPath(albumName, "")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure album directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Save writes data to the album directory, overwriting an existing file of
// the same name. Uniqueness is enforced earlier, at enqueue time.
func (ls *LocalStorage) Save(albumName, filename string, data io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalStorage.Save")
	}
	if _, err := ls.EnsureAlbumDir(albumName); err != nil {
		return "", err
	}

	fullSavePath, err := ls.FullPath(albumName, filename)
	if err != nil {
		return "", err
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	log.Printf("media.store: Saved asset to %s", fullSavePath)
	return fullSavePath, nil
}

// Open returns a reader for an image file in an album directory
func (ls *LocalStorage) Open(albumName, filename string) (io.ReadCloser, error) {
	fullPath, err := ls.FullPath(albumName, filename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset not found at '%s/%s': %w", albumName, filename, err)
		}
		return nil, fmt.Errorf("failed to open asset '%s/%s': %w", albumName, filename, err)
	}
	return file, nil
}

// List returns the regular files in the album directory, naturally sorted so
// IMG_2 precedes IMG_10 regardless of zero padding
func (ls *LocalStorage) List(albumName string) ([]string, error) {
	dirPath, err := ls.FullPath(albumName, "")
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read album directory '%s': %w", dirPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)
	return names, nil
}

// Delete removes an image file. Missing files are treated as already deleted.
func (ls *LocalStorage) Delete(albumName, filename string) error {
	fullPath, err := ls.FullPath(albumName, filename)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s/%s': %w", albumName, filename, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted asset %s", fullPath)
	}
	return nil
}

// Exists reports whether the file is present in the album directory
func (ls *LocalStorage) Exists(albumName, filename string) bool {
	fullPath, err := ls.FullPath(albumName, filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}
