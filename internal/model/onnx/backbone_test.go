package onnx

import (
	"errors"
	"os"
	"testing"

	"github.com/ironsheep/facebox/internal/model"
)

func TestCheckInput(t *testing.T) {
	tests := []struct {
		shape []int
		ok    bool
	}{
		{[]int{1, 3, 224, 224}, true},
		{[]int{4, 3, 224, 224}, true},
		{[]int{0, 3, 224, 224}, false},
		{[]int{1, 1, 224, 224}, false},
		{[]int{1, 3, 256, 256}, false},
		{[]int{3, 224, 224}, false},
	}
	for _, tt := range tests {
		err := checkInput(tt.shape)
		if tt.ok && err != nil {
			t.Errorf("checkInput(%v) = %v", tt.shape, err)
		}
		if !tt.ok && !errors.Is(err, model.ErrShape) {
			t.Errorf("checkInput(%v) = %v, want ErrShape", tt.shape, err)
		}
	}
}

// TestBackboneFeatures needs the ONNX Runtime library and an exported
// extractor; it is skipped otherwise.
func TestBackboneFeatures(t *testing.T) {
	lib := os.Getenv("FACEBOX_ONNX_LIBRARY")
	path := os.Getenv("FACEBOX_BACKBONE")
	if lib == "" || path == "" {
		t.Skip("FACEBOX_ONNX_LIBRARY and FACEBOX_BACKBONE not set")
	}

	b, err := Open(lib, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	out, err := b.Features(model.NewTensor(2, 3, InputSide, InputSide))
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	want := []int{2, Channels, GridSide, GridSide}
	for i := range want {
		if out.Shape[i] != want[i] {
			t.Fatalf("shape = %v, want %v", out.Shape, want)
		}
	}
}
