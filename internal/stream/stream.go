// Package stream runs the detector over a sequence of frames.
//
// Frames come from a FrameSource and annotated frames go to a RenderSink.
// Both are small interfaces so that capture devices and display windows can
// be plugged in without touching the filter itself; directory-backed
// implementations are provided.
package stream

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	fbimaging "github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/logging"
	"github.com/ironsheep/facebox/internal/model"
	"github.com/sirupsen/logrus"
)

// DefaultThreshold is the presence score above which a box is drawn.
const DefaultThreshold = 0.85

// FrameSource yields frames until ok is false.
type FrameSource interface {
	Read() (frame image.Image, ok bool)
}

// RenderSink displays or stores a frame.
type RenderSink interface {
	Show(frame image.Image) error
}

// Predictor scores a preprocessed [N,3,224,224] batch. *model.DetectionModel
// satisfies it.
type Predictor interface {
	Predict(x *model.Tensor) ([]model.Output, error)
}

// Filter crops a frame to the model input, predicts, and draws the box
// when the face is present.
type Filter struct {
	Model     Predictor
	Threshold float64
	BoxColor  color.Color
	TextColor color.Color
}

// NewFilter returns a filter with the default threshold and colours.
func NewFilter(p Predictor) *Filter {
	return &Filter{
		Model:     p,
		Threshold: DefaultThreshold,
		BoxColor:  fbimaging.PredictedColor,
		TextColor: color.White,
	}
}

// Apply returns the annotated 224x224 frame and the raw prediction.
func (f *Filter) Apply(frame image.Image) (*image.NRGBA, model.Output, error) {
	crop := fbimaging.ModelInput(frame)

	outs, err := f.Model.Predict(model.FromImage(crop))
	if err != nil {
		return nil, model.Output{}, err
	}
	if len(outs) != 1 {
		return nil, model.Output{}, fmt.Errorf("%w: %d outputs for one frame", model.ErrShape, len(outs))
	}
	out := outs[0]

	b := crop.Bounds()
	if out.Present(f.Threshold) {
		fbimaging.DrawBox(crop, out.DecodeRect(b.Dx(), b.Dy()), f.BoxColor, 2)
	}
	fbimaging.DrawLabel(crop, 2, 2, fmt.Sprintf("%.2f", out.Presence), f.TextColor, color.Black)
	return crop, out, nil
}

// Loop filters frames from src into sink until src is exhausted or ctx is
// done. It returns the number of frames shown. Prediction and sink errors
// stop the loop.
func Loop(ctx context.Context, src FrameSource, f *Filter, sink RenderSink, log logrus.FieldLogger) (int, error) {
	log = logging.OrDiscard(log)

	shown := 0
	for {
		if err := ctx.Err(); err != nil {
			return shown, err
		}
		frame, ok := src.Read()
		if !ok {
			return shown, nil
		}

		out, pred, err := f.Apply(frame)
		if err != nil {
			return shown, fmt.Errorf("frame %d: %w", shown, err)
		}
		if err := sink.Show(out); err != nil {
			return shown, fmt.Errorf("show frame %d: %w", shown, err)
		}
		shown++

		log.WithFields(logging.Fields{
			"frame":    shown,
			"presence": pred.Presence,
			"present":  pred.Present(f.Threshold),
		}).Debug("frame filtered")
	}
}

// DirSource reads the images of a directory in name order. Files that fail
// to decode are logged and skipped.
type DirSource struct {
	paths []string
	next  int
	log   logrus.FieldLogger
}

// NewDirSource lists the files in dir ending in ext (case-insensitive).
func NewDirSource(dir, ext string, log logrus.FieldLogger) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return &DirSource{paths: paths, log: logging.OrDiscard(log)}, nil
}

// Len returns the number of frames listed.
func (s *DirSource) Len() int { return len(s.paths) }

// Read implements FrameSource.
func (s *DirSource) Read() (image.Image, bool) {
	for s.next < len(s.paths) {
		p := s.paths[s.next]
		s.next++
		img, err := fbimaging.Open(p)
		if err != nil {
			s.log.WithError(err).WithField("image", p).Warn("skipping unreadable frame")
			continue
		}
		return img, true
	}
	return nil, false
}

// DirSink writes each shown frame to Dir as frame-00000.jpg, frame-00001.jpg
// and so on.
type DirSink struct {
	Dir     string
	Prefix  string
	Quality int

	n int
}

// NewDirSink returns a sink writing JPEGs into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir, Prefix: "frame", Quality: 95}
}

// Show implements RenderSink.
func (s *DirSink) Show(frame image.Image) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%05d.jpg", s.Prefix, s.n))
	if err := fbimaging.Save(frame, path, s.Quality); err != nil {
		return err
	}
	s.n++
	return nil
}

// Written returns the number of frames written.
func (s *DirSink) Written() int { return s.n }

// MemorySink keeps shown frames in memory.
type MemorySink struct {
	Frames []*image.NRGBA
}

// Show implements RenderSink.
func (s *MemorySink) Show(frame image.Image) error {
	s.Frames = append(s.Frames, imaging.Clone(frame))
	return nil
}
