package model

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Param is one named parameter array of a checkpoint.
type Param struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Checkpoint holds model parameters keyed by layer name.
type Checkpoint struct {
	ModelStateDict map[string]Param `json:"model_state_dict"`
}

// ReadCheckpoint decodes a checkpoint.
func ReadCheckpoint(r io.Reader) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if c.ModelStateDict == nil {
		return nil, fmt.Errorf("%w: model_state_dict", ErrMissingParameter)
	}
	for k, p := range c.ModelStateDict {
		if volume(p.Shape) != len(p.Data) {
			return nil, fmt.Errorf("%w: %s has %d values for shape %v", ErrShape, k, len(p.Data), p.Shape)
		}
	}
	return &c, nil
}

// LoadCheckpoint reads a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	c, err := ReadCheckpoint(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Param returns the parameter stored under key.
func (c *Checkpoint) Param(key string) (Param, error) {
	p, ok := c.ModelStateDict[key]
	if !ok {
		return Param{}, fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}
	return p, nil
}

// Has reports whether key is present.
func (c *Checkpoint) Has(key string) bool {
	_, ok := c.ModelStateDict[key]
	return ok
}

// Dense builds the linear layer stored under prefix.weight and prefix.bias.
func (c *Checkpoint) Dense(prefix string) (*Dense, error) {
	w, err := c.Param(prefix + ".weight")
	if err != nil {
		return nil, err
	}
	b, err := c.Param(prefix + ".bias")
	if err != nil {
		return nil, err
	}
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("%w: %s.weight has shape %v, want 2 dimensions", ErrShape, prefix, w.Shape)
	}
	return NewDense(w.Shape[1], w.Shape[0], w.Data, b.Data)
}

// Conv2d builds the convolution stored under prefix with the given padding.
func (c *Checkpoint) Conv2d(prefix string, padding int) (*Conv2d, error) {
	w, err := c.Param(prefix + ".weight")
	if err != nil {
		return nil, err
	}
	b, err := c.Param(prefix + ".bias")
	if err != nil {
		return nil, err
	}
	if len(w.Shape) != 4 || w.Shape[2] != w.Shape[3] {
		return nil, fmt.Errorf("%w: %s.weight has shape %v, want [out,in,k,k]", ErrShape, prefix, w.Shape)
	}
	return NewConv2d(w.Shape[1], w.Shape[0], w.Shape[2], padding, w.Data, b.Data)
}

// PresenceHead builds MaxPool(7), Flatten, face.2, ReLU, face.4, Sigmoid.
func (c *Checkpoint) PresenceHead() (Sequential, error) {
	hidden, err := c.Dense("face.2")
	if err != nil {
		return nil, err
	}
	out, err := c.Dense("face.4")
	if err != nil {
		return nil, err
	}
	if out.Out != 1 {
		return nil, fmt.Errorf("%w: presence head has %d outputs, want 1", ErrShape, out.Out)
	}
	return Sequential{MaxPool2d{Kernel: 7}, Flatten{}, hidden, ReLU{}, out, Sigmoid{}}, nil
}

// LocatorHead builds Flatten, then loc.1, loc.3, loc.5 each followed by
// ReLU, then loc.7 and Sigmoid.
func (c *Checkpoint) LocatorHead() (Sequential, error) {
	head := Sequential{Flatten{}}
	keys := []string{"loc.1", "loc.3", "loc.5", "loc.7"}
	for i, k := range keys {
		d, err := c.Dense(k)
		if err != nil {
			return nil, err
		}
		head = append(head, d)
		if i < len(keys)-1 {
			head = append(head, ReLU{})
		} else if d.Out != 4 {
			return nil, fmt.Errorf("%w: locator head has %d outputs, want 4", ErrShape, d.Out)
		}
	}
	return append(head, Sigmoid{}), nil
}

// Load assembles a model from the checkpoint at path. A nil backbone is
// replaced by the pure-Go VGG16 feature extractor built from the
// checkpoint's vgg16.features parameters.
func Load(path string, backbone Backbone) (*DetectionModel, error) {
	c, err := LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return FromCheckpoint(c, backbone)
}

// FromCheckpoint assembles a model from c; see Load.
func FromCheckpoint(c *Checkpoint, backbone Backbone) (*DetectionModel, error) {
	presence, err := c.PresenceHead()
	if err != nil {
		return nil, err
	}
	locator, err := c.LocatorHead()
	if err != nil {
		return nil, err
	}
	if backbone == nil {
		features, err := c.Features(VGG16Features, "vgg16.features")
		if err != nil {
			return nil, err
		}
		backbone = features
	}
	return New(backbone, presence, locator), nil
}
