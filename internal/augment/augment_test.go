package augment

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ironsheep/facebox/internal/geom"
	"github.com/ironsheep/facebox/internal/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 255, A: 255}

// fixedRand replays a fixed sequence of draws.
type fixedRand struct {
	vals []float64
	i    int
}

func (f *fixedRand) Float64() float64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}

// markedImage returns a black w x h image with r filled red.
func markedImage(w, h int, r image.Rectangle) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{A: 255})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}

// redBounds returns the bounding rectangle of the red pixels in img.
func redBounds(img *image.NRGBA) image.Rectangle {
	var out image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y) == red {
				out = out.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return out
}

func TestCropAndFlipsMoveBoxWithPixels(t *testing.T) {
	// 256x128 image, face at pixels (64,16)-(96,64).
	src := markedImage(256, 128, image.Rect(64, 16, 96, 64))
	box := geom.Box{X0: 0.25, Y0: 0.125, X1: 0.375, Y1: 0.5}

	tests := []struct {
		name       string
		transforms []Transform
		wantBox    geom.Box
		wantPixels image.Rectangle
	}{
		{
			name:       "crop",
			transforms: []Transform{Crop{X: 32, Y: 0, W: 128, H: 128}},
			wantBox:    geom.Box{X0: 0.25, Y0: 0.125, X1: 0.5, Y1: 0.5},
			wantPixels: image.Rect(32, 16, 64, 64),
		},
		{
			name:       "crop then horizontal flip",
			transforms: []Transform{Crop{X: 32, Y: 0, W: 128, H: 128}, HorizontalFlip{}},
			wantBox:    geom.Box{X0: 0.5, Y0: 0.125, X1: 0.75, Y1: 0.5},
			wantPixels: image.Rect(64, 16, 96, 64),
		},
		{
			name:       "crop then both flips",
			transforms: []Transform{Crop{X: 32, Y: 0, W: 128, H: 128}, HorizontalFlip{}, VerticalFlip{}},
			wantBox:    geom.Box{X0: 0.5, Y0: 0.5, X1: 0.75, Y1: 0.875},
			wantPixels: image.Rect(64, 64, 96, 112),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngineWith(rand.New(rand.NewSource(1)), tt.transforms...)
			res, err := e.Augment(src, box, label.ClassPresent)
			require.NoError(t, err)

			assert.Equal(t, label.ClassPresent, res.Class)
			assert.Equal(t, tt.wantBox, res.Box)
			assert.Equal(t, tt.wantPixels, redBounds(res.Image))

			// The box scaled to pixels covers exactly the marked region.
			px := res.Box.Scale(float64(res.Image.Bounds().Dx()), float64(res.Image.Bounds().Dy()))
			assert.Equal(t, tt.wantPixels, image.Rect(int(px.X0), int(px.Y0), int(px.X1), int(px.Y1)))
		})
	}

	assert.Equal(t, image.Rect(64, 16, 96, 64), redBounds(src), "source image must not change")
}

func TestRandomCropOffsets(t *testing.T) {
	src := markedImage(300, 200, image.Rect(0, 0, 1, 1))
	s := &Sample{Image: src, Boxes: []geom.Box{geom.Degenerate()}, Labels: []int{0}}

	// First draw positions the rows, second the columns.
	rnd := &fixedRand{vals: []float64{0.5, 0.25}}
	require.NoError(t, RandomCrop{Width: 100, Height: 100}.Apply(s, rnd))

	assert.Equal(t, 100, s.Image.Bounds().Dx())
	assert.Equal(t, 100, s.Image.Bounds().Dy())
	assert.Equal(t, 2, rnd.i)
}

func TestRandomCropTooSmall(t *testing.T) {
	s := &Sample{Image: imaging.New(50, 50, color.Black)}
	err := RandomCrop{Width: 100, Height: 100}.Apply(s, &fixedRand{vals: []float64{0}})
	assert.Error(t, err)
}

func TestCropDropsBoxOutsideWindow(t *testing.T) {
	src := markedImage(256, 128, image.Rect(200, 16, 240, 64))
	box := geom.Box{X0: 200.0 / 256, Y0: 0.125, X1: 240.0 / 256, Y1: 0.5}

	e := NewEngineWith(nil, Crop{X: 0, Y: 0, W: 128, H: 128})
	res, err := e.Augment(src, box, label.ClassPresent)
	require.NoError(t, err)

	assert.Equal(t, label.ClassAbsent, res.Class)
	assert.Equal(t, geom.Degenerate(), res.Box)
}

func TestCropClipsPartialBox(t *testing.T) {
	src := imaging.New(256, 128, color.Black)
	box := geom.Box{X0: 0.375, Y0: 0.25, X1: 0.625, Y1: 0.75} // pixels 96..160

	e := NewEngineWith(nil, Crop{X: 0, Y: 0, W: 128, H: 128})
	res, err := e.Augment(src, box, label.ClassPresent)
	require.NoError(t, err)

	assert.Equal(t, label.ClassPresent, res.Class)
	assert.Equal(t, geom.Box{X0: 0.75, Y0: 0.25, X1: 1, Y1: 0.75}, res.Box)
}

func TestNegativeStaysNegative(t *testing.T) {
	src := imaging.New(1200, 1000, color.Black)
	e := NewEngine(1000, rand.New(rand.NewSource(420)))

	for i := 0; i < 20; i++ {
		res, err := e.Augment(src, geom.Degenerate(), label.ClassAbsent)
		require.NoError(t, err)
		assert.Equal(t, label.ClassAbsent, res.Class)
		assert.Equal(t, geom.Degenerate(), res.Box)
	}
}

func TestDefaultPipeline(t *testing.T) {
	src := markedImage(400, 300, image.Rect(100, 100, 200, 200))
	box := geom.Box{X0: 0.25, Y0: 1.0 / 3, X1: 0.5, Y1: 2.0 / 3}
	e := NewEngine(200, rand.New(rand.NewSource(420)))

	present := 0
	for i := 0; i < 50; i++ {
		res, err := e.Augment(src, box, label.ClassPresent)
		require.NoError(t, err)

		assert.Equal(t, 200, res.Image.Bounds().Dx())
		assert.Equal(t, 200, res.Image.Bounds().Dy())
		assert.True(t, res.Box.Normalized(), "box %v not normalized", res.Box)
		if res.Class == label.ClassPresent {
			present++
			assert.False(t, res.Box.Empty())
		} else {
			assert.Equal(t, geom.Degenerate(), res.Box)
		}
	}
	assert.Greater(t, present, 0)
}

func TestDefaultPipelineDeterministic(t *testing.T) {
	src := markedImage(400, 300, image.Rect(100, 100, 200, 200))
	box := geom.Box{X0: 0.25, Y0: 1.0 / 3, X1: 0.5, Y1: 2.0 / 3}

	run := func() []Result {
		e := NewEngine(200, rand.New(rand.NewSource(7)))
		var out []Result
		for i := 0; i < 5; i++ {
			res, err := e.Augment(src, box, label.ClassPresent)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		assert.Equal(t, a[i].Box, b[i].Box)
		assert.Equal(t, a[i].Class, b[i].Class)
		assert.Equal(t, a[i].Image.Pix, b[i].Image.Pix)
	}
}

func TestSmallestMaxSize(t *testing.T) {
	tests := []struct {
		w, h, size   int
		wantW, wantH int
	}{
		{400, 300, 150, 200, 150},
		{300, 600, 100, 100, 200},
		{100, 100, 250, 250, 250},
	}
	for _, tt := range tests {
		s := &Sample{Image: imaging.New(tt.w, tt.h, color.Black)}
		require.NoError(t, SmallestMaxSize{Size: tt.size}.Apply(s, nil))
		assert.Equal(t, tt.wantW, s.Image.Bounds().Dx())
		assert.Equal(t, tt.wantH, s.Image.Bounds().Dy())
	}
}

func TestPhotometricKeepsGeometry(t *testing.T) {
	src := imaging.New(32, 16, color.NRGBA{R: 120, G: 130, B: 140, A: 255})
	box := geom.Box{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4}

	transforms := []Transform{
		BrightnessContrast{BrightnessLimit: 0.2, ContrastLimit: 0.2},
		Gamma{Low: 80, High: 120},
		RGBShift{Limit: 20},
	}
	for _, tr := range transforms {
		e := NewEngineWith(&fixedRand{vals: []float64{0.9, 0.1, 0.7}}, tr)
		res, err := e.Augment(src, box, label.ClassPresent)
		require.NoError(t, err)
		assert.Equal(t, box, res.Box)
		assert.Equal(t, src.Bounds().Size(), res.Image.Bounds().Size())
	}
}

func TestRGBShiftClamps(t *testing.T) {
	src := imaging.New(4, 4, color.NRGBA{R: 250, G: 5, B: 128, A: 255})
	s := &Sample{Image: src}
	// Draws of 1 and 0 give +Limit and -Limit.
	require.NoError(t, RGBShift{Limit: 20}.Apply(s, &fixedRand{vals: []float64{1, 0, 1}}))

	c := s.Image.NRGBAAt(0, 0)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(0), c.G)
	assert.InDelta(t, 148, int(c.B), 1)
}

func TestMaybe(t *testing.T) {
	src := markedImage(4, 2, image.Rect(0, 0, 1, 1))

	s := &Sample{Image: src, Boxes: []geom.Box{{X0: 0, Y0: 0, X1: 0.25, Y1: 0.5}}, Labels: []int{1}}
	require.NoError(t, Maybe{P: 0.5, T: HorizontalFlip{}}.Apply(s, &fixedRand{vals: []float64{0.7}}))
	assert.Equal(t, geom.Box{X0: 0, Y0: 0, X1: 0.25, Y1: 0.5}, s.Boxes[0])

	require.NoError(t, Maybe{P: 0.5, T: HorizontalFlip{}}.Apply(s, &fixedRand{vals: []float64{0.2}}))
	assert.Equal(t, geom.Box{X0: 0.75, Y0: 0, X1: 1, Y1: 0.5}, s.Boxes[0])
}

// duplicate appends a second copy of the first box.
type duplicate struct{}

func (duplicate) Apply(s *Sample, _ Rand) error {
	s.Boxes = append(s.Boxes, s.Boxes[0])
	s.Labels = append(s.Labels, s.Labels[0])
	return nil
}

func TestAugmentRejectsMultipleBoxes(t *testing.T) {
	e := NewEngineWith(nil, duplicate{})
	_, err := e.Augment(imaging.New(8, 8, color.Black), geom.Box{X1: 0.5, Y1: 0.5}, label.ClassPresent)
	assert.ErrorIs(t, err, ErrAugmentation)
}

func TestAugmentNilImage(t *testing.T) {
	_, err := NewEngineWith(nil).Augment(nil, geom.Degenerate(), 0)
	assert.Error(t, err)
}
