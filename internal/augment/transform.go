package augment

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"github.com/ironsheep/facebox/internal/geom"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Rand is the random source consumed by transforms. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Sample is the state threaded through a pipeline. Boxes are normalized to
// the current image and Labels[i] is the class of Boxes[i].
type Sample struct {
	Image  *image.NRGBA
	Boxes  []geom.Box
	Labels []int
}

// Transform rewrites a sample in place.
type Transform interface {
	Apply(s *Sample, rnd Rand) error
}

// Maybe applies T with probability P.
type Maybe struct {
	P float64
	T Transform
}

func (m Maybe) Apply(s *Sample, rnd Rand) error {
	if rnd.Float64() < m.P {
		return m.T.Apply(s, rnd)
	}
	return nil
}

// SmallestMaxSize resizes the image so its shorter side equals Size. The
// aspect ratio is kept, so normalized boxes do not change.
type SmallestMaxSize struct {
	Size int
}

func (t SmallestMaxSize) Apply(s *Sample, _ Rand) error {
	b := s.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return fmt.Errorf("cannot resize empty image")
	}
	scale := float64(t.Size) / float64(min(w, h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	s.Image = imaging.Resize(s.Image, nw, nh, imaging.Linear)
	return nil
}

// Crop keeps the W x H window whose top-left corner is (X, Y).
type Crop struct {
	X, Y, W, H int
}

func (t Crop) Apply(s *Sample, _ Rand) error {
	b := s.Image.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if t.X < 0 || t.Y < 0 || t.X+t.W > iw || t.Y+t.H > ih {
		return fmt.Errorf("crop window %dx%d at (%d,%d) exceeds %dx%d image", t.W, t.H, t.X, t.Y, iw, ih)
	}

	s.Image = imaging.Crop(s.Image, image.Rect(t.X, t.Y, t.X+t.W, t.Y+t.H).Add(b.Min))

	fw, fh := float64(iw), float64(ih)
	cw, ch := float64(t.W), float64(t.H)
	ox, oy := float64(t.X), float64(t.Y)

	boxes := s.Boxes[:0]
	labels := s.Labels[:0]
	for i, box := range s.Boxes {
		moved := geom.Box{
			X0: (box.X0*fw - ox) / cw,
			Y0: (box.Y0*fh - oy) / ch,
			X1: (box.X1*fw - ox) / cw,
			Y1: (box.Y1*fh - oy) / ch,
		}.Clip(0, 1)
		if moved.Empty() {
			continue
		}
		boxes = append(boxes, moved)
		labels = append(labels, s.Labels[i])
	}
	s.Boxes, s.Labels = boxes, labels
	return nil
}

// RandomCrop keeps a Width x Height window at a uniformly drawn offset.
type RandomCrop struct {
	Width, Height int
}

func (t RandomCrop) Apply(s *Sample, rnd Rand) error {
	b := s.Image.Bounds()
	if b.Dx() < t.Width || b.Dy() < t.Height {
		return fmt.Errorf("crop size %dx%d larger than image %dx%d", t.Width, t.Height, b.Dx(), b.Dy())
	}
	hStart := rnd.Float64()
	wStart := rnd.Float64()
	y := int(float64(b.Dy()-t.Height) * hStart)
	x := int(float64(b.Dx()-t.Width) * wStart)
	return Crop{X: x, Y: y, W: t.Width, H: t.Height}.Apply(s, rnd)
}

// HorizontalFlip mirrors the image left to right.
type HorizontalFlip struct{}

func (HorizontalFlip) Apply(s *Sample, _ Rand) error {
	s.Image = imaging.FlipH(s.Image)
	for i, b := range s.Boxes {
		s.Boxes[i] = geom.Box{X0: 1 - b.X1, Y0: b.Y0, X1: 1 - b.X0, Y1: b.Y1}
	}
	return nil
}

// VerticalFlip mirrors the image top to bottom.
type VerticalFlip struct{}

func (VerticalFlip) Apply(s *Sample, _ Rand) error {
	s.Image = imaging.FlipV(s.Image)
	for i, b := range s.Boxes {
		s.Boxes[i] = geom.Box{X0: b.X0, Y0: 1 - b.Y1, X1: b.X1, Y1: 1 - b.Y0}
	}
	return nil
}

// BrightnessContrast shifts brightness and contrast by amounts drawn from
// [-BrightnessLimit, BrightnessLimit] and [-ContrastLimit, ContrastLimit].
type BrightnessContrast struct {
	BrightnessLimit float64
	ContrastLimit   float64
}

func (t BrightnessContrast) Apply(s *Sample, rnd Rand) error {
	brightness := uniform(rnd, -t.BrightnessLimit, t.BrightnessLimit)
	contrast := uniform(rnd, -t.ContrastLimit, t.ContrastLimit)
	out := adjust.Brightness(s.Image, brightness)
	out = adjust.Contrast(out, contrast)
	s.Image = imaging.Clone(out)
	return nil
}

// Gamma applies a gamma drawn from [Low, High] percent.
type Gamma struct {
	Low, High float64
}

func (t Gamma) Apply(s *Sample, rnd Rand) error {
	g := uniform(rnd, t.Low, t.High) / 100
	s.Image = imaging.Clone(adjust.Gamma(s.Image, g))
	return nil
}

// RGBShift adds an independent offset, drawn from [-Limit, Limit] on the
// 0-255 scale, to each colour channel.
type RGBShift struct {
	Limit float64
}

func (t RGBShift) Apply(s *Sample, rnd Rand) error {
	dr := uniform(rnd, -t.Limit, t.Limit) / 255
	dg := uniform(rnd, -t.Limit, t.Limit) / 255
	db := uniform(rnd, -t.Limit, t.Limit) / 255

	out := adjust.Apply(s.Image, func(c color.RGBA) color.RGBA {
		shifted := colorful.Color{
			R: float64(c.R)/255 + dr,
			G: float64(c.G)/255 + dg,
			B: float64(c.B)/255 + db,
		}.Clamped()
		r, g, b := shifted.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: c.A}
	})
	s.Image = imaging.Clone(out)
	return nil
}

func uniform(rnd Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}
