package suggest

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/ironsheep/facebox/internal/geom"
)

// Face is one detection in the pixel frame of the scanned image.
type Face struct {
	Box   geom.Box
	Score float64
}

// Detector finds faces in an image.
type Detector interface {
	Detect(img image.Image) []Face
}

// Cascade detects faces with a pigo pixel-intensity cascade.
type Cascade struct {
	// MinSize and MaxSize bound the detection window in pixels. A MaxSize
	// of zero uses the larger image side.
	MinSize int
	MaxSize int
	// ShiftFactor is the window step as a fraction of its size.
	ShiftFactor float64
	// ScaleFactor grows the window between passes.
	ScaleFactor float64
	// ClusterIoU merges overlapping detections.
	ClusterIoU float64
	// Angle rotates the window, in turns (0..1).
	Angle float64

	classifier *pigo.Pigo
}

// NewCascade unpacks a cascade file's contents.
func NewCascade(data []byte) (*Cascade, error) {
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}
	return &Cascade{
		MinSize:     60,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ClusterIoU:  0.2,
		classifier:  classifier,
	}, nil
}

// LoadCascade reads and unpacks the cascade file at path.
func LoadCascade(path string) (*Cascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade: %w", err)
	}
	return NewCascade(data)
}

// Detect runs the cascade over img and returns the clustered detections.
func (c *Cascade) Detect(img image.Image) []Face {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()

	maxSize := c.MaxSize
	if maxSize <= 0 {
		maxSize = max(cols, rows)
	}
	params := pigo.CascadeParams{
		MinSize:     c.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: c.ShiftFactor,
		ScaleFactor: c.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(params, c.Angle)
	dets = c.classifier.ClusterDetections(dets, c.ClusterIoU)

	faces := make([]Face, 0, len(dets))
	for _, d := range dets {
		faces = append(faces, Face{
			Box:   detectionBox(d, cols, rows),
			Score: float64(d.Q),
		})
	}
	return faces
}

// detectionBox converts a centre and window size into a pixel box clipped
// to the image.
func detectionBox(d pigo.Detection, cols, rows int) geom.Box {
	half := float64(d.Scale) / 2
	box := geom.Box{
		X0: float64(d.Col) - half,
		Y0: float64(d.Row) - half,
		X1: float64(d.Col) + half,
		Y1: float64(d.Row) + half,
	}
	return geom.Box{
		X0: clamp(box.X0, float64(cols)),
		Y0: clamp(box.Y0, float64(rows)),
		X1: clamp(box.X1, float64(cols)),
		Y1: clamp(box.Y1, float64(rows)),
	}
}

func clamp(v, hi float64) float64 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// Best returns the highest scoring face at or above minScore.
func Best(faces []Face, minScore float64) (Face, bool) {
	var best Face
	found := false
	for _, f := range faces {
		if f.Score < minScore || f.Box.Empty() {
			continue
		}
		if !found || f.Score > best.Score {
			best, found = f, true
		}
	}
	return best, found
}
