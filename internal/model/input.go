package model

import (
	"image"

	"github.com/disintegration/imaging"
	fbimaging "github.com/ironsheep/facebox/internal/imaging"
)

// ImageNet channel statistics used to normalize inputs.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// Prepare resizes img so its shorter side is 256 and crops the 224x224
// centre.
func Prepare(img image.Image) *image.NRGBA {
	return fbimaging.ModelInput(img)
}

// FromImage converts img to a [1,3,H,W] tensor scaled to [0,1] and
// normalized per channel.
func FromImage(img image.Image) *Tensor {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	t := NewTensor(1, 3, h, w)
	plane := w * h
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				t.Data[c*plane+y*w+x] = (float32(px[c])/255 - Mean[c]) / Std[c]
			}
		}
	}
	return t
}
