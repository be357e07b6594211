package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colours used for rendered boxes.
var (
	TruthColor     = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	PredictedColor = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
)

// ParseColor parses a hex colour like "#00FF00".
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawBox draws the outline of the pixel rectangle r onto dst with the given
// line thickness. Corners may be given in any order; the outline is clipped
// to the image.
func DrawBox(dst draw.Image, r image.Rectangle, c color.Color, thickness int) {
	r = r.Canon()
	if thickness < 1 {
		thickness = 1
	}
	bounds := dst.Bounds()

	set := func(x, y int) {
		if image.Pt(x, y).In(bounds) {
			dst.Set(x, y, c)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			set(x, r.Min.Y+t)
			set(x, r.Max.Y-t)
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			set(r.Min.X+t, y)
			set(r.Max.X-t, y)
		}
	}
}

// DrawLabel draws text with a tiny 3x5 pixel font at (x, y). Only digits,
// '.', ',' and '-' are supported; other runes leave a gap.
func DrawLabel(img draw.Image, x, y int, text string, fg, bg color.Color) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'.': {"000", "000", "000", "000", "010"},
		'-': {"000", "000", "111", "000", "000"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if p := image.Pt(x+dx, y+dy); p.In(bounds) {
				img.Set(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if p := image.Pt(cx+col, y+row); p.In(bounds) {
					img.Set(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}

// HConcat places images side by side, top-aligned, on a black canvas.
func HConcat(images ...image.Image) *image.NRGBA {
	width, height := 0, 0
	for _, img := range images {
		b := img.Bounds()
		width += b.Dx()
		if b.Dy() > height {
			height = b.Dy()
		}
	}

	dst := imaging.New(width, height, color.Black)
	x := 0
	for _, img := range images {
		dst = imaging.Paste(dst, img, image.Pt(x, 0))
		x += img.Bounds().Dx()
	}
	return dst
}
