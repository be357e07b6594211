package augment

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/facebox/internal/geom"
	"github.com/ironsheep/facebox/internal/label"
)

// ErrAugmentation is returned when a pipeline leaves a sample with more than
// one box or label, or with a box/label count mismatch.
var ErrAugmentation = errors.New("augmentation produced invalid sample")

// DefaultCropSize is the side of the square crop used by NewEngine when no
// size is given.
const DefaultCropSize = 1000

// Result is one augmented sample. Box is normalized to Image, and is the
// degenerate box whenever Class is label.ClassAbsent.
type Result struct {
	Image *image.NRGBA
	Box   geom.Box
	Class int
}

// Engine runs an ordered list of transforms.
type Engine struct {
	transforms []Transform
	rand       Rand
}

// NewEngine returns the standard training pipeline producing crop x crop
// images.
func NewEngine(crop int, rnd Rand) *Engine {
	if crop <= 0 {
		crop = DefaultCropSize
	}
	return NewEngineWith(rnd,
		SmallestMaxSize{Size: crop},
		RandomCrop{Width: crop, Height: crop},
		Maybe{P: 0.5, T: HorizontalFlip{}},
		Maybe{P: 0.5, T: VerticalFlip{}},
		Maybe{P: 0.2, T: BrightnessContrast{BrightnessLimit: 0.2, ContrastLimit: 0.2}},
		Maybe{P: 0.2, T: Gamma{Low: 80, High: 120}},
		Maybe{P: 0.2, T: RGBShift{Limit: 20}},
	)
}

// NewEngineWith returns an engine running transforms in order.
func NewEngineWith(rnd Rand, transforms ...Transform) *Engine {
	return &Engine{transforms: transforms, rand: rnd}
}

// Augment transforms img together with its normalized box and class. The
// source image is never modified. Images of class absent enter the pipeline
// with the degenerate box and always leave as class absent.
func (e *Engine) Augment(img *image.NRGBA, box geom.Box, class int) (Result, error) {
	if img == nil {
		return Result{}, fmt.Errorf("augment: nil image")
	}

	s := &Sample{
		Image:  img,
		Boxes:  []geom.Box{box.Canon()},
		Labels: []int{class},
	}
	for _, t := range e.transforms {
		if err := t.Apply(s, e.rand); err != nil {
			return Result{}, fmt.Errorf("augment: %T: %w", t, err)
		}
	}

	if len(s.Boxes) > 1 || len(s.Labels) > 1 || len(s.Boxes) != len(s.Labels) {
		return Result{}, fmt.Errorf("%w: %d boxes, %d labels", ErrAugmentation, len(s.Boxes), len(s.Labels))
	}

	res := Result{Image: s.Image, Box: geom.Degenerate(), Class: label.ClassAbsent}
	if len(s.Labels) == 1 && s.Labels[0] == label.ClassPresent {
		res.Class = label.ClassPresent
		res.Box = s.Boxes[0]
	}
	return res, nil
}
