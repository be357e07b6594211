package label

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ironsheep/facebox/internal/geom"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedAnnotation reports an annotation that is present but cannot be
// turned into a single box.
var ErrMalformedAnnotation = errors.New("malformed annotation")

// Point is a pixel coordinate as stored in an annotation file.
type Point struct {
	X float64
	Y float64
}

// Shape is one drawn polygon.
type Shape struct {
	Label     string      `json:"label"`
	Points    [][]float64 `json:"points"`
	ShapeType string      `json:"shape_type,omitempty"`
}

// Annotation is the decoded annotation document. The imageData field of the
// file has no counterpart here and is skipped by the decoder.
type Annotation struct {
	Shapes      []Shape `json:"shapes"`
	ImagePath   string  `json:"imagePath,omitempty"`
	ImageWidth  int     `json:"imageWidth,omitempty"`
	ImageHeight int     `json:"imageHeight,omitempty"`
}

// ParseAnnotation decodes an annotation document from r.
func ParseAnnotation(r io.Reader) (*Annotation, error) {
	var a Annotation
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnnotation, err)
	}
	return &a, nil
}

// ReadAnnotation opens and decodes the annotation file at path.
func ReadAnnotation(path string) (*Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAnnotation(f)
}

// WriteAnnotation stores a in the annotation format read by ReadAnnotation,
// creating the directory on demand.
func WriteAnnotation(path string, a *Annotation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create annotation directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Rectangle returns an annotation holding a single rectangle shape with
// the given pixel corners.
func Rectangle(name string, p, q Point, imagePath string, w, h int) *Annotation {
	return &Annotation{
		Shapes: []Shape{{
			Label:     name,
			Points:    [][]float64{{p.X, p.Y}, {q.X, q.Y}},
			ShapeType: "rectangle",
		}},
		ImagePath:   imagePath,
		ImageWidth:  w,
		ImageHeight: h,
	}
}

// Corners returns the two corner points of the single annotated shape.
func (a *Annotation) Corners() (Point, Point, error) {
	if len(a.Shapes) != 1 {
		return Point{}, Point{}, fmt.Errorf("%w: want exactly one shape, got %d",
			ErrMalformedAnnotation, len(a.Shapes))
	}
	pts := a.Shapes[0].Points
	if len(pts) != 2 {
		return Point{}, Point{}, fmt.Errorf("%w: want exactly two points, got %d",
			ErrMalformedAnnotation, len(pts))
	}
	for i, p := range pts {
		if len(p) != 2 {
			return Point{}, Point{}, fmt.Errorf("%w: point %d has %d coordinates",
				ErrMalformedAnnotation, i, len(p))
		}
	}
	return Point{X: pts[0][0], Y: pts[0][1]}, Point{X: pts[1][0], Y: pts[1][1]}, nil
}

// NormalizeCorners converts two opposite corners of a w x h image into a
// canonical box in normalized coordinates. Coordinates outside the image are
// clamped to the frame, so the result always satisfies
// 0 <= X0 <= X1 <= 1 and 0 <= Y0 <= Y1 <= 1.
func NormalizeCorners(p, q Point, w, h int) (geom.Box, error) {
	if w <= 0 || h <= 0 {
		return geom.Box{}, fmt.Errorf("%w: image size %dx%d", ErrMalformedAnnotation, w, h)
	}
	box := geom.FromCorners(p.X, p.Y, q.X, q.Y)
	fw, fh := float64(w), float64(h)
	return geom.Box{
		X0: box.X0 / fw,
		Y0: box.Y0 / fh,
		X1: box.X1 / fw,
		Y1: box.Y1 / fh,
	}.Clip(0, 1), nil
}

// NormalizeAnnotation extracts the single shape of a and normalizes it
// against a w x h image.
func NormalizeAnnotation(a *Annotation, w, h int) (geom.Box, error) {
	p, q, err := a.Corners()
	if err != nil {
		return geom.Box{}, err
	}
	return NormalizeCorners(p, q, w, h)
}
