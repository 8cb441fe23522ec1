package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const defaultScannedImagesDir = "./data/scanned_images"

var errInvalidImageName = errors.New("invalid image name")

// ImageStorageService keeps the card photos sent to /api/cards/scan so a
// stored ScanRecord can point back at the image it was resolved from.
type ImageStorageService struct {
	storageDir string
}

// NewImageStorageService creates the storage directory if needed.
func NewImageStorageService(storageDir string) *ImageStorageService {
	if storageDir == "" {
		storageDir = defaultScannedImagesDir
	}

	if err := os.MkdirAll(storageDir, 0755); err != nil {
		// will fail on actual writes
		warnLog("could not create scanned images directory: %v", err)
	}

	return &ImageStorageService{storageDir: storageDir}
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// ImageExtension maps a mime type to a file extension, defaulting to .jpg.
func ImageExtension(mimeType string) string {
	if ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(mimeType))]; ok {
		return ext
	}
	return ".jpg"
}

// SaveImage writes a scanned photo under a fresh uuid name and returns that
// name.
func (s *ImageStorageService) SaveImage(imageData []byte, mimeType string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	filename := uuid.New().String() + ImageExtension(mimeType)
	if err := os.WriteFile(filepath.Join(s.storageDir, filename), imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	debugLog("Stored scanned image %s (%d bytes)", filename, len(imageData))
	return filename, nil
}

// pathFor resolves a stored name. Names are flat, so anything with a
// directory component is rejected.
func (s *ImageStorageService) pathFor(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q", errInvalidImageName, filename)
	}
	return filepath.Join(s.storageDir, filename), nil
}

// DeleteImage removes a stored photo. Deleting a missing file is not an
// error.
func (s *ImageStorageService) DeleteImage(filename string) error {
	path, err := s.pathFor(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

func (s *ImageStorageService) GetStorageDir() string {
	return s.storageDir
}
