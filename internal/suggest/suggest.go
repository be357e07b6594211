package suggest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/label"
	"github.com/ironsheep/facebox/internal/logging"
)

// DefaultMinScore is the cascade score a detection needs to be drafted.
const DefaultMinScore = 5.0

// ErrNoCascade is returned when no cascade file is configured.
var ErrNoCascade = errors.New("no cascade file configured")

// ShapeLabel names the drafted rectangle.
const ShapeLabel = "face"

// Result counts what a run did with each image.
type Result struct {
	Scanned  int      `json:"scanned"`
	Written  []string `json:"written"`
	Labeled  int      `json:"already_labeled"`
	NoFace   int      `json:"no_face"`
	Failures int      `json:"failures"`
}

// Suggester drafts annotations for the unlabeled images under Root.
type Suggester struct {
	Root     string
	ImageExt string
	LabelExt string
	MinScore float64
	// Overwrite replaces annotations that already exist.
	Overwrite bool

	detector Detector
	log      logrus.FieldLogger
}

// New returns a suggester using d.
func New(root string, d Detector, log logrus.FieldLogger) *Suggester {
	return &Suggester{
		Root:     root,
		ImageExt: ".jpg",
		LabelExt: ".json",
		MinScore: DefaultMinScore,
		detector: d,
		log:      logging.OrDiscard(log),
	}
}

// Run scans Root in lexical order. Unreadable images are logged and
// counted; cancelling ctx stops between images.
func (s *Suggester) Run(ctx context.Context) (*Result, error) {
	paths, err := s.images()
	if err != nil {
		return nil, err
	}

	res := &Result{Written: []string{}}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		labelPath := label.LabelPath(p, s.ImageExt, s.LabelExt)
		if !s.Overwrite {
			if _, err := os.Stat(labelPath); err == nil {
				res.Labeled++
				continue
			}
		}

		log := s.log.WithField("image", p)
		wrote, err := s.draft(p, labelPath)
		switch {
		case err != nil:
			res.Failures++
			log.WithError(err).Warn("skipping image")
		case wrote:
			res.Written = append(res.Written, labelPath)
			log.WithField("label", labelPath).Debug("drafted annotation")
		default:
			res.NoFace++
			log.Debug("no confident face")
		}
	}

	s.log.WithFields(logging.Fields{
		"scanned": res.Scanned,
		"written": len(res.Written),
		"no_face": res.NoFace,
	}).Info("suggestions complete")
	return res, nil
}

func (s *Suggester) draft(imagePath, labelPath string) (bool, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return false, err
	}
	face, ok := Best(s.detector.Detect(img), s.MinScore)
	if !ok {
		return false, nil
	}

	b := img.Bounds()
	a := label.Rectangle(ShapeLabel,
		label.Point{X: face.Box.X0, Y: face.Box.Y0},
		label.Point{X: face.Box.X1, Y: face.Box.Y1},
		relativeImagePath(labelPath, imagePath), b.Dx(), b.Dy())
	if err := label.WriteAnnotation(labelPath, a); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Suggester) images() ([]string, error) {
	if _, err := os.Stat(s.Root); err != nil {
		return nil, fmt.Errorf("images directory: %w", err)
	}
	var paths []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "labels" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), s.ImageExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// relativeImagePath is the image path as seen from the annotation's
// directory, which is how annotation tools store it.
func relativeImagePath(labelPath, imagePath string) string {
	rel, err := filepath.Rel(filepath.Dir(labelPath), imagePath)
	if err != nil {
		return filepath.Base(imagePath)
	}
	return filepath.ToSlash(rel)
}
