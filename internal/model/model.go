package model

import (
	"fmt"
	"image"

	"github.com/ironsheep/facebox/internal/geom"
)

// Backbone extracts a feature map from a preprocessed [N,3,224,224] input.
type Backbone interface {
	Features(x *Tensor) (*Tensor, error)
}

// Head maps a backbone feature map to per-sample outputs.
type Head interface {
	Forward(features *Tensor) (*Tensor, error)
}

// BackboneFunc adapts a function to Backbone.
type BackboneFunc func(x *Tensor) (*Tensor, error)

func (f BackboneFunc) Features(x *Tensor) (*Tensor, error) { return f(x) }

// Output is the prediction for one image.
type Output struct {
	// Presence is the probability that the face is in the frame.
	Presence float64
	// Box is normalized to the model input.
	Box geom.Box
}

// Present reports whether Presence exceeds threshold.
func (o Output) Present(threshold float64) bool {
	return o.Presence > threshold
}

// Decode scales the box to a w x h pixel frame.
func (o Output) Decode(w, h int) geom.Box {
	return o.Box.Scale(float64(w), float64(h))
}

// DecodeRect returns the pixel box as an integer rectangle, truncating each
// coordinate.
func (o Output) DecodeRect(w, h int) image.Rectangle {
	b := o.Decode(w, h)
	return image.Rect(int(b.X0), int(b.Y0), int(b.X1), int(b.Y1))
}

// DetectionModel is a shared backbone feeding a presence head and a
// locator head.
type DetectionModel struct {
	Backbone Backbone
	Presence Head
	Locator  Head
}

// New assembles a model.
func New(backbone Backbone, presence, locator Head) *DetectionModel {
	return &DetectionModel{Backbone: backbone, Presence: presence, Locator: locator}
}

// Predict runs the model on a batch. The backbone is evaluated once and both
// heads receive the same feature map.
func (m *DetectionModel) Predict(x *Tensor) ([]Output, error) {
	features, err := m.Backbone.Features(x)
	if err != nil {
		return nil, fmt.Errorf("backbone: %w", err)
	}

	presence, err := m.Presence.Forward(features)
	if err != nil {
		return nil, fmt.Errorf("presence head: %w", err)
	}
	boxes, err := m.Locator.Forward(features)
	if err != nil {
		return nil, fmt.Errorf("locator head: %w", err)
	}

	n := x.Batch()
	if presence.Len() != n {
		return nil, fmt.Errorf("%w: presence head produced shape %v for batch of %d", ErrShape, presence.Shape, n)
	}
	if boxes.Len() != 4*n {
		return nil, fmt.Errorf("%w: locator head produced shape %v for batch of %d", ErrShape, boxes.Shape, n)
	}

	out := make([]Output, n)
	for i := range out {
		b := boxes.Data[4*i : 4*i+4]
		out[i] = Output{
			Presence: float64(presence.Data[i]),
			Box: geom.Box{
				X0: float64(b[0]),
				Y0: float64(b[1]),
				X1: float64(b[2]),
				Y1: float64(b[3]),
			},
		}
	}
	return out, nil
}

// PredictImage preprocesses img and predicts a single output.
func (m *DetectionModel) PredictImage(img image.Image) (Output, error) {
	out, err := m.Predict(FromImage(Prepare(img)))
	if err != nil {
		return Output{}, err
	}
	return out[0], nil
}
