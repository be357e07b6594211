// Package onnx runs the VGG16 feature extractor through ONNX Runtime.
//
// The model file must take one [1,3,224,224] float input and produce one
// [1,512,7,7] float output, as exported from torchvision's
// vgg16().features.
package onnx

import (
	"fmt"
	"sync"

	"github.com/ironsheep/facebox/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

// Feature map geometry of the exported extractor.
const (
	InputSide = 224
	Channels  = 512
	GridSide  = 7
)

// Backbone implements model.Backbone with an ONNX Runtime session.
type Backbone struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var _ model.Backbone = (*Backbone)(nil)

// Open initializes the runtime from the shared library at libPath (if not
// already initialized) and loads modelPath.
func Open(libPath, modelPath string) (*Backbone, error) {
	if !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inName, outName, err := ioNames(modelPath)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, InputSide, InputSide), make([]float32, 3*InputSide*InputSide))
	if err != nil {
		return nil, fmt.Errorf("allocate input: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, Channels, GridSide, GridSide))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inName}, []string{outName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &Backbone{session: session, input: input, output: output}, nil
}

// Features runs the extractor once per sample of x and returns the stacked
// [N,512,7,7] feature map.
func (b *Backbone) Features(x *model.Tensor) (*model.Tensor, error) {
	if err := checkInput(x.Shape); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := x.Batch()
	per := 3 * InputSide * InputSide
	featLen := Channels * GridSide * GridSide
	out := model.NewTensor(n, Channels, GridSide, GridSide)
	for i := 0; i < n; i++ {
		copy(b.input.GetData(), x.Data[i*per:(i+1)*per])
		if err := b.session.Run(); err != nil {
			return nil, fmt.Errorf("run backbone: %w", err)
		}
		copy(out.Data[i*featLen:(i+1)*featLen], b.output.GetData())
	}
	return out, nil
}

// Close releases the session and its tensors.
func (b *Backbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var first error
	for _, d := range []interface{ Destroy() error }{b.session, b.input, b.output} {
		if err := d.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func ioNames(modelPath string) (string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return "", "", fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return "", "", fmt.Errorf("%w: expected 1 input and 1 output, got %d and %d",
			model.ErrShape, len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return "", "", fmt.Errorf("%w: expected 4D input, got %dD", model.ErrShape, len(inputs[0].Dimensions))
	}
	return inputs[0].Name, outputs[0].Name, nil
}

func checkInput(shape []int) error {
	if len(shape) != 4 || shape[0] < 1 || shape[1] != 3 || shape[2] != InputSide || shape[3] != InputSide {
		return fmt.Errorf("%w: backbone expects [N,3,%d,%d], got %v", model.ErrShape, InputSide, InputSide, shape)
	}
	return nil
}
