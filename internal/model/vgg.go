package model

import "fmt"

// Pool marks a 2x2 max pool in a feature configuration.
const Pool = -1

// VGG16Features is the layer configuration of VGG16's feature extractor:
// output channels of each 3x3 convolution, with Pool between stages.
var VGG16Features = []int{64, 64, Pool, 128, 128, Pool, 256, 256, 256, Pool, 512, 512, 512, Pool, 512, 512, 512, Pool}

// FeatureStack is a convolutional backbone evaluated in Go.
type FeatureStack struct {
	Layers Sequential
}

// Features implements Backbone.
func (f *FeatureStack) Features(x *Tensor) (*Tensor, error) {
	return f.Layers.Forward(x)
}

// Features builds a backbone from cfg, reading convolutions from
// prefix.<index>. Indices follow the sequential numbering of the training
// code, where every convolution is followed by a ReLU.
func (c *Checkpoint) Features(cfg []int, prefix string) (*FeatureStack, error) {
	var layers Sequential
	idx := 0
	for _, v := range cfg {
		if v == Pool {
			layers = append(layers, MaxPool2d{Kernel: 2})
			idx++
			continue
		}
		conv, err := c.Conv2d(fmt.Sprintf("%s.%d", prefix, idx), 1)
		if err != nil {
			return nil, err
		}
		if conv.Out != v {
			return nil, fmt.Errorf("%w: %s.%d has %d channels, want %d", ErrShape, prefix, idx, conv.Out, v)
		}
		layers = append(layers, conv, ReLU{})
		idx += 2
	}
	return &FeatureStack{Layers: layers}, nil
}
