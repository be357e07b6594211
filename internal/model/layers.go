package model

import (
	"fmt"
	"math"
)

// Layer is one step of a feed-forward network. Forward must not modify its
// input.
type Layer interface {
	Forward(x *Tensor) (*Tensor, error)
}

// Sequential runs layers in order.
type Sequential []Layer

// Forward implements Layer.
func (s Sequential) Forward(x *Tensor) (*Tensor, error) {
	var err error
	for i, l := range s {
		if x, err = l.Forward(x); err != nil {
			return nil, fmt.Errorf("layer %d (%T): %w", i, l, err)
		}
	}
	return x, nil
}

// Dense is a fully connected layer. Weight is Out x In, row-major.
type Dense struct {
	In, Out int
	Weight  []float32
	Bias    []float32
}

// NewDense validates the parameter sizes of a dense layer.
func NewDense(in, out int, weight, bias []float32) (*Dense, error) {
	if len(weight) != in*out {
		return nil, fmt.Errorf("%w: dense weight has %d values, want %dx%d", ErrShape, len(weight), out, in)
	}
	if len(bias) != out {
		return nil, fmt.Errorf("%w: dense bias has %d values, want %d", ErrShape, len(bias), out)
	}
	return &Dense{In: in, Out: out, Weight: weight, Bias: bias}, nil
}

// Forward maps [N, In] (or any [N, ...] with In trailing values) to [N, Out].
func (d *Dense) Forward(x *Tensor) (*Tensor, error) {
	n := x.Batch()
	if n == 0 || x.Len() != n*d.In {
		return nil, fmt.Errorf("%w: dense expects %d features per sample, got shape %v", ErrShape, d.In, x.Shape)
	}

	out := NewTensor(n, d.Out)
	for b := 0; b < n; b++ {
		row := x.Data[b*d.In : (b+1)*d.In]
		for o := 0; o < d.Out; o++ {
			w := d.Weight[o*d.In : (o+1)*d.In]
			sum := float64(d.Bias[o])
			for i, v := range row {
				sum += float64(w[i]) * float64(v)
			}
			out.Data[b*d.Out+o] = float32(sum)
		}
	}
	return out, nil
}

// ReLU clamps negative values to zero.
type ReLU struct{}

func (ReLU) Forward(x *Tensor) (*Tensor, error) {
	out := x.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return out, nil
}

// Sigmoid squashes values into (0,1).
type Sigmoid struct{}

func (Sigmoid) Forward(x *Tensor) (*Tensor, error) {
	out := x.Clone()
	for i, v := range out.Data {
		out.Data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
	return out, nil
}

// Flatten reshapes [N, ...] to [N, prod(...)].
type Flatten struct{}

func (Flatten) Forward(x *Tensor) (*Tensor, error) {
	n := x.Batch()
	if n == 0 {
		return nil, fmt.Errorf("%w: cannot flatten shape %v", ErrShape, x.Shape)
	}
	return &Tensor{Shape: []int{n, x.Len() / n}, Data: append([]float32(nil), x.Data...)}, nil
}

// MaxPool2d pools [N, C, H, W] with a square window and stride Kernel.
type MaxPool2d struct {
	Kernel int
}

func (p MaxPool2d) Forward(x *Tensor) (*Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("%w: max pool expects NCHW, got %v", ErrShape, x.Shape)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	k := p.Kernel
	oh, ow := h/k, w/k
	if oh == 0 || ow == 0 {
		return nil, fmt.Errorf("%w: %dx%d input smaller than %d pool", ErrShape, h, w, k)
	}

	out := NewTensor(n, c, oh, ow)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			plane := x.Data[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
			dst := out.Data[(b*c+ch)*oh*ow : (b*c+ch+1)*oh*ow]
			for y := 0; y < oh; y++ {
				for xx := 0; xx < ow; xx++ {
					m := float32(math.Inf(-1))
					for dy := 0; dy < k; dy++ {
						for dx := 0; dx < k; dx++ {
							if v := plane[(y*k+dy)*w+xx*k+dx]; v > m {
								m = v
							}
						}
					}
					dst[y*ow+xx] = m
				}
			}
		}
	}
	return out, nil
}

// Conv2d is a stride-1 square convolution with zero padding. Weight is
// [Out, In, Kernel, Kernel].
type Conv2d struct {
	In, Out int
	Kernel  int
	Padding int
	Weight  []float32
	Bias    []float32
}

// NewConv2d validates the parameter sizes of a convolution.
func NewConv2d(in, out, kernel, padding int, weight, bias []float32) (*Conv2d, error) {
	if len(weight) != out*in*kernel*kernel {
		return nil, fmt.Errorf("%w: conv weight has %d values, want %dx%dx%dx%d", ErrShape, len(weight), out, in, kernel, kernel)
	}
	if len(bias) != out {
		return nil, fmt.Errorf("%w: conv bias has %d values, want %d", ErrShape, len(bias), out)
	}
	return &Conv2d{In: in, Out: out, Kernel: kernel, Padding: padding, Weight: weight, Bias: bias}, nil
}

func (c *Conv2d) Forward(x *Tensor) (*Tensor, error) {
	if len(x.Shape) != 4 || x.Shape[1] != c.In {
		return nil, fmt.Errorf("%w: conv expects [N,%d,H,W], got %v", ErrShape, c.In, x.Shape)
	}
	n, h, w := x.Shape[0], x.Shape[2], x.Shape[3]
	k, pad := c.Kernel, c.Padding
	oh, ow := h+2*pad-k+1, w+2*pad-k+1
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("%w: %dx%d input smaller than %d kernel", ErrShape, h, w, k)
	}

	out := NewTensor(n, c.Out, oh, ow)
	for b := 0; b < n; b++ {
		in := x.Data[b*c.In*h*w : (b+1)*c.In*h*w]
		for o := 0; o < c.Out; o++ {
			dst := out.Data[(b*c.Out+o)*oh*ow : (b*c.Out+o+1)*oh*ow]
			for i := range dst {
				dst[i] = c.Bias[o]
			}
			for ic := 0; ic < c.In; ic++ {
				plane := in[ic*h*w : (ic+1)*h*w]
				kern := c.Weight[(o*c.In+ic)*k*k : (o*c.In+ic+1)*k*k]
				for ky := 0; ky < k; ky++ {
					for kx := 0; kx < k; kx++ {
						wv := kern[ky*k+kx]
						if wv == 0 {
							continue
						}
						for y := 0; y < oh; y++ {
							sy := y + ky - pad
							if sy < 0 || sy >= h {
								continue
							}
							for xx := 0; xx < ow; xx++ {
								sx := xx + kx - pad
								if sx < 0 || sx >= w {
									continue
								}
								dst[y*ow+xx] += wv * plane[sy*w+sx]
							}
						}
					}
				}
			}
		}
	}
	return out, nil
}
