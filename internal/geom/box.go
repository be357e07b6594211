// Package geom holds the axis-aligned box type shared by the label pipeline,
// the augmentation engine, the detection model and the evaluator.
//
// # Coordinate Frames
//
// A Box carries four coordinates in one frame, either pixels or normalized
// [0,1] image coordinates. The type does not record which frame is in use;
// callers must never mix frames within one computation. Origin is the
// top-left corner, X grows rightward and Y grows downward.
//
// # Canonical Form
//
// Raw annotations may store opposite corners in any order. Canon returns the
// box with X0 <= X1 and Y0 <= Y1, and every geometric helper in this package
// canonicalizes its inputs before computing anything.
package geom

import (
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DegenerateEpsilon is the side length of the placeholder box attached to
// images without a face. It keeps the area non-zero so that ratios computed
// downstream never divide by zero.
const DegenerateEpsilon = 1e-7

// Box is an axis-aligned rectangle given by two opposite corners.
type Box struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

// Degenerate returns the fixed near-zero box used for negative samples.
func Degenerate() Box {
	return Box{X0: 0, Y0: 0, X1: DegenerateEpsilon, Y1: DegenerateEpsilon}
}

// FromCorners builds a canonical box from two opposite corner points given in
// any order.
func FromCorners(px, py, qx, qy float64) Box {
	return Box{X0: px, Y0: py, X1: qx, Y1: qy}.Canon()
}

// Canon returns b with its corners sorted so that X0 <= X1 and Y0 <= Y1.
func (b Box) Canon() Box {
	return Box{
		X0: math.Min(b.X0, b.X1),
		Y0: math.Min(b.Y0, b.Y1),
		X1: math.Max(b.X0, b.X1),
		Y1: math.Max(b.Y0, b.Y1),
	}
}

// Width is X1-X0 of the canonical box.
func (b Box) Width() float64 {
	c := b.Canon()
	return c.X1 - c.X0
}

// Height is Y1-Y0 of the canonical box.
func (b Box) Height() float64 {
	c := b.Canon()
	return c.Y1 - c.Y0
}

// Area returns the area of the canonical box.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Empty reports whether the box covers no area.
func (b Box) Empty() bool {
	return b.Area() <= 0
}

// Normalized reports whether the box is canonical and lies inside [0,1]².
func (b Box) Normalized() bool {
	return b.X0 >= 0 && b.Y0 >= 0 && b.X1 <= 1 && b.Y1 <= 1 && b.X0 <= b.X1 && b.Y0 <= b.Y1
}

// Clip canonicalizes b and limits every coordinate to [lo,hi].
func (b Box) Clip(lo, hi float64) Box {
	c := b.Canon()
	return Box{
		X0: clamp(c.X0, lo, hi),
		Y0: clamp(c.Y0, lo, hi),
		X1: clamp(c.X1, lo, hi),
		Y1: clamp(c.Y1, lo, hi),
	}
}

// Scale multiplies the x coordinates by sx and the y coordinates by sy. It is
// used to move between the normalized and pixel frames.
func (b Box) Scale(sx, sy float64) Box {
	return Box{X0: b.X0 * sx, Y0: b.Y0 * sy, X1: b.X1 * sx, Y1: b.Y1 * sy}
}

// Intersect returns the overlap of the canonical forms of b and o and whether
// the rectangles meet at all. Boxes that only touch yield a zero-area overlap.
func (b Box) Intersect(o Box) (Box, bool) {
	a, c := b.Canon(), o.Canon()
	in := Box{
		X0: math.Max(a.X0, c.X0),
		Y0: math.Max(a.Y0, c.Y0),
		X1: math.Min(a.X1, c.X1),
		Y1: math.Min(a.Y1, c.Y1),
	}
	if in.X1 < in.X0 || in.Y1 < in.Y0 {
		return Box{}, false
	}
	return in, true
}

// Slice returns the coordinates as [x0, y0, x1, y1].
func (b Box) Slice() []float64 {
	return []float64{b.X0, b.Y0, b.X1, b.Y1}
}

// FromSlice builds a box from a four-element slice.
func FromSlice(v []float64) (Box, error) {
	if len(v) != 4 {
		return Box{}, fmt.Errorf("box needs 4 coordinates, got %d", len(v))
	}
	return Box{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, nil
}

// String formats the box as (x0,y0)-(x1,y1).
func (b Box) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", b.X0, b.Y0, b.X1, b.Y1)
}

// MarshalJSON encodes the box as the array [x0, y0, x1, y1].
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	box, err := FromSlice(v)
	if err != nil {
		return err
	}
	*b = box
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
