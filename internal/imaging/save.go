package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Save writes img to path, creating parent directories on demand. The format
// follows the file extension; JPEG output uses the given quality.
func Save(img image.Image, path string, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}
