package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/facebox/internal/augment"
	"github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/label"
)

// DefaultQuality is the JPEG quality of written images.
const DefaultQuality = 95

// Written describes the files produced for one sample.
type Written struct {
	Partition Partition
	ImagePath string
	LabelPath string
}

// Materializer writes augmented samples under Root and keeps a running
// Summary.
type Materializer struct {
	Root     string
	LabelExt string
	Quality  int

	summary Summary
}

// NewMaterializer returns a materializer writing under root.
func NewMaterializer(root string) *Materializer {
	return &Materializer{
		Root:     root,
		LabelExt: ".json",
		Quality:  DefaultQuality,
		summary:  Summary{},
	}
}

// DerivedName returns the output file name of augmentation index of
// sourcePath: the base name with "--<index>" inserted before its final
// extension.
func DerivedName(sourcePath string, index int) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s--%d%s", strings.TrimSuffix(base, ext), index, ext)
}

// Write stores res as augmentation index of sourcePath in partition p.
// The summary is only updated once both files are on disk.
func (m *Materializer) Write(sourcePath string, index int, res augment.Result, p Partition) (Written, error) {
	name := DerivedName(sourcePath, index)
	imagePath := filepath.Join(m.Root, string(p), "images", name)
	labelPath := filepath.Join(m.Root, string(p), "labels",
		strings.TrimSuffix(name, filepath.Ext(name))+m.LabelExt)

	if err := imaging.Save(res.Image, imagePath, m.Quality); err != nil {
		return Written{}, err
	}

	lf := label.File{BBox: res.Box, Class: res.Class, ImageFname: imagePath}
	if err := label.WriteFile(labelPath, lf); err != nil {
		return Written{}, err
	}

	m.summary.Add(p, res.Class)
	return Written{Partition: p, ImagePath: imagePath, LabelPath: labelPath}, nil
}

// Summary returns a copy of the counts so far.
func (m *Materializer) Summary() Summary {
	return m.summary.Clone()
}
