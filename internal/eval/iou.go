// Package eval scores detector predictions against ground truth.
package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/facebox/internal/geom"
)

// ErrIoUOutOfRange signals an IoU outside [0,1]. It indicates a bug in the
// computation, never a property of the inputs.
var ErrIoUOutOfRange = errors.New("iou out of range")

// Overlap is the result of comparing two boxes.
type Overlap struct {
	Value        float64
	Intersection float64
	Union        float64
	// ZeroArea is set when either box has no area. Value is then 0.
	ZeroArea bool
}

// IoU returns the intersection over union of a and b, which must share a
// coordinate frame. Corners may be given in any order.
func IoU(a, b geom.Box) (Overlap, error) {
	a, b = a.Canon(), b.Canon()
	areaA, areaB := a.Area(), b.Area()
	if areaA <= 0 || areaB <= 0 {
		return Overlap{ZeroArea: true}, nil
	}

	in, ok := a.Intersect(b)
	if !ok {
		return Overlap{Union: areaA + areaB}, nil
	}

	inter := in.Area()
	union := areaA + areaB - inter
	v := inter / union
	if math.IsNaN(v) || v < 0 || v > 1 {
		return Overlap{}, fmt.Errorf("%w: %v for %v and %v", ErrIoUOutOfRange, v, a, b)
	}
	return Overlap{Value: v, Intersection: inter, Union: union}, nil
}
