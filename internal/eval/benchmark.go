package eval

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/facebox/internal/geom"
	fbimaging "github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/label"
	"github.com/ironsheep/facebox/internal/logging"
	"github.com/ironsheep/facebox/internal/model"
	"github.com/ironsheep/facebox/internal/stream"
	"github.com/sirupsen/logrus"
)

// Loader restores a predictor from a checkpoint path.
type Loader func(checkpoint string) (stream.Predictor, error)

// Sample is the comparison for one validation image.
type Sample struct {
	ImagePath string       `json:"image"`
	Truth     label.File   `json:"truth"`
	Predicted model.Output `json:"predicted"`
	Overlap   Overlap      `json:"overlap"`
	Correct   bool         `json:"correct"`
}

// Report summarizes one checkpoint.
type Report struct {
	Checkpoint string   `json:"checkpoint"`
	Samples    []Sample `json:"samples"`
	// MeanIoU averages the overlap of images that contain a face.
	MeanIoU float64 `json:"mean_iou"`
	// Accuracy is the share of images whose presence decision matches.
	Accuracy float64 `json:"accuracy"`
	ZeroArea int     `json:"zero_area"`

	Strip *image.NRGBA `json:"-"`
}

// Benchmark evaluates checkpoints on a random subset of a validation
// directory.
type Benchmark struct {
	ValidateDir string
	ImageExt    string
	LabelExt    string
	// Samples is how many images are drawn per checkpoint.
	Samples   int
	Threshold float64
	Seed      int64

	Load Loader
	// Sink receives the side-by-side strip of each checkpoint; may be nil.
	Sink stream.RenderSink

	log logrus.FieldLogger
}

// NewBenchmark returns a benchmark with the default sample size and
// threshold.
func NewBenchmark(validateDir string, load Loader, log logrus.FieldLogger) *Benchmark {
	return &Benchmark{
		ValidateDir: validateDir,
		ImageExt:    ".jpg",
		LabelExt:    ".json",
		Samples:     10,
		Threshold:   stream.DefaultThreshold,
		Seed:        420,
		Load:        load,
		log:         logging.OrDiscard(log),
	}
}

// Run evaluates every checkpoint in order. One generator seeded with Seed
// drives the image selection of all checkpoints. Loading and prediction
// errors are fatal.
func (b *Benchmark) Run(ctx context.Context, checkpoints []string) ([]Report, error) {
	examples, err := b.examples()
	if err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(b.Seed))

	reports := make([]Report, 0, len(checkpoints))
	for _, ckpt := range checkpoints {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		log := b.log.WithField("checkpoint", ckpt)
		log.Info("loading model")
		p, err := b.Load(ckpt)
		if err != nil {
			return reports, fmt.Errorf("load %s: %w", ckpt, err)
		}

		picked := append([]string(nil), examples...)
		rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		if len(picked) > b.Samples {
			picked = picked[:b.Samples]
		}

		r, err := b.evaluate(p, picked)
		if err != nil {
			return reports, fmt.Errorf("evaluate %s: %w", ckpt, err)
		}
		r.Checkpoint = ckpt

		if b.Sink != nil && r.Strip != nil {
			if err := b.Sink.Show(r.Strip); err != nil {
				return reports, fmt.Errorf("render %s: %w", ckpt, err)
			}
		}

		log.WithFields(logging.Fields{
			"samples":   len(r.Samples),
			"mean_iou":  r.MeanIoU,
			"accuracy":  r.Accuracy,
			"zero_area": r.ZeroArea,
		}).Info("checkpoint evaluated")
		reports = append(reports, r)
	}
	return reports, nil
}

func (b *Benchmark) examples() ([]string, error) {
	entries, err := os.ReadDir(b.ValidateDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), b.ImageExt) {
			paths = append(paths, filepath.Join(b.ValidateDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (b *Benchmark) evaluate(p stream.Predictor, paths []string) (Report, error) {
	var (
		r        Report
		tiles    []image.Image
		faces    int
		iouSum   float64
		corrects int
	)

	for _, path := range paths {
		truth, err := label.ReadFile(label.LabelPath(path, b.ImageExt, b.LabelExt))
		if err != nil {
			return r, err
		}

		img, err := fbimaging.Open(path)
		if err != nil {
			return r, err
		}
		crop := fbimaging.ModelInput(img)

		outs, err := p.Predict(model.FromImage(crop))
		if err != nil {
			return r, err
		}
		if len(outs) != 1 {
			return r, fmt.Errorf("%w: %d outputs for one image", model.ErrShape, len(outs))
		}
		pred := outs[0]

		ov, err := IoU(truth.BBox, pred.Box)
		if err != nil {
			return r, err
		}

		s := Sample{
			ImagePath: path,
			Truth:     truth,
			Predicted: pred,
			Overlap:   ov,
			Correct:   pred.Present(b.Threshold) == (truth.Class == label.ClassPresent),
		}
		r.Samples = append(r.Samples, s)

		if ov.ZeroArea {
			r.ZeroArea++
		}
		if s.Correct {
			corrects++
		}
		if truth.Class == label.ClassPresent {
			faces++
			iouSum += ov.Value
		}

		tiles = append(tiles, renderTile(crop, truth.BBox, pred.Box))
	}

	if n := len(r.Samples); n > 0 {
		r.Accuracy = float64(corrects) / float64(n)
		r.Strip = fbimaging.HConcat(tiles...)
	}
	if faces > 0 {
		r.MeanIoU = iouSum / float64(faces)
	}
	return r, nil
}

// renderTile draws the truth box in green and the prediction in yellow on a
// copy of crop.
func renderTile(crop *image.NRGBA, truth, pred geom.Box) image.Image {
	tile := imaging.Clone(crop)
	w, h := tile.Bounds().Dx(), tile.Bounds().Dy()
	fbimaging.DrawBox(tile, pixelRect(truth, w, h), fbimaging.TruthColor, 2)
	fbimaging.DrawBox(tile, pixelRect(pred, w, h), fbimaging.PredictedColor, 2)
	return tile
}

func pixelRect(b geom.Box, w, h int) image.Rectangle {
	p := b.Scale(float64(w), float64(h))
	return image.Rect(int(p.X0), int(p.Y0), int(p.X1), int(p.Y1))
}
