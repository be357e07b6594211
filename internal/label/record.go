package label

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/facebox/internal/geom"
	jsoniter "github.com/json-iterator/go"
)

// Class values of a record.
const (
	ClassAbsent  = 0
	ClassPresent = 1
)

// Record is the immutable label of one source image.
type Record struct {
	ImagePath string
	// LabelPath is empty for negative records.
	LabelPath string
	Class     int
	Box       geom.Box
}

// Negative returns the record of an image without a face.
func Negative(imagePath string) Record {
	return Record{ImagePath: imagePath, Class: ClassAbsent, Box: geom.Degenerate()}
}

// File is the on-disk label written next to every augmented image.
type File struct {
	BBox       geom.Box `json:"bbox"`
	Class      int      `json:"class"`
	ImageFname string   `json:"image_fname"`
}

// LabelPath maps an image path to its annotation path: every path segment
// named "images" becomes "labels" and imageExt is replaced with labelExt.
func LabelPath(imagePath, imageExt, labelExt string) string {
	dir, base := filepath.Split(imagePath)

	parts := strings.Split(filepath.ToSlash(dir), "/")
	for i, p := range parts {
		if p == "images" {
			parts[i] = "labels"
		}
	}
	dir = filepath.FromSlash(strings.Join(parts, "/"))

	if strings.HasSuffix(base, imageExt) {
		base = strings.TrimSuffix(base, imageExt) + labelExt
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + labelExt
	}
	return dir + base
}

// WriteFile stores a label file, creating its directory on demand.
func WriteFile(path string, lf File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create label directory: %w", err)
	}
	data, err := json.Marshal(lf)
	if err != nil {
		return fmt.Errorf("failed to encode label: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a label file. The bbox may be a flat [x0,y0,x1,y1] list or a
// list holding one such list. A missing file yields class 0 with a zero box.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return File{Class: ClassAbsent}, nil
	}
	if err != nil {
		return File{}, err
	}

	var raw struct {
		BBox       jsoniter.RawMessage `json:"bbox"`
		Class      int                 `json:"class"`
		ImageFname string              `json:"image_fname"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return File{}, fmt.Errorf("failed to decode label %s: %w", path, err)
	}

	lf := File{Class: raw.Class, ImageFname: raw.ImageFname}
	if len(raw.BBox) == 0 {
		return lf, nil
	}

	var flat []float64
	if err := json.Unmarshal(raw.BBox, &flat); err != nil {
		var nested [][]float64
		if err := json.Unmarshal(raw.BBox, &nested); err != nil || len(nested) == 0 {
			return File{}, fmt.Errorf("label %s: unsupported bbox %s", path, raw.BBox)
		}
		flat = nested[0]
	}
	if len(flat) == 0 {
		return lf, nil
	}
	box, err := geom.FromSlice(flat)
	if err != nil {
		return File{}, fmt.Errorf("label %s: %w", path, err)
	}
	lf.BBox = box
	return lf, nil
}
