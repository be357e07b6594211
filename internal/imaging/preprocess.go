package imaging

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Model input geometry: the shortest side is resized to ResizeSide, then the
// centre CropSide x CropSide square is kept.
const (
	ResizeSide = 256
	CropSide   = 224
)

// ShrinkCrop resizes img so its shortest side equals side (preserving aspect
// ratio) and returns the centred crop x crop square.
func ShrinkCrop(img image.Image, side, crop int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var resized image.Image
	if w <= h {
		resized = resize.Resize(uint(side), 0, img, resize.Bilinear)
	} else {
		resized = resize.Resize(0, uint(side), img, resize.Bilinear)
	}
	return imaging.CropCenter(resized, crop, crop)
}

// ModelInput applies the standard ShrinkCrop(256, 224) used for inference.
func ModelInput(img image.Image) *image.NRGBA {
	return ShrinkCrop(img, ResizeSide, CropSide)
}
