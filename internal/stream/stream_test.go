package stream

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	fbimaging "github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/geom"
	"github.com/ironsheep/facebox/internal/model"
)

// fixedPredictor returns the same output for every input.
type fixedPredictor struct {
	out   model.Output
	err   error
	calls int
	shape []int
}

func (p *fixedPredictor) Predict(x *model.Tensor) ([]model.Output, error) {
	p.calls++
	p.shape = x.Shape
	if p.err != nil {
		return nil, p.err
	}
	return []model.Output{p.out}, nil
}

// sliceSource replays frames from memory.
type sliceSource struct {
	frames []image.Image
}

func (s *sliceSource) Read() (image.Image, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, true
}

func grey(w, h int) image.Image {
	return imaging.New(w, h, color.NRGBA{R: 60, G: 60, B: 60, A: 255})
}

func TestFilterDrawsWhenPresent(t *testing.T) {
	p := &fixedPredictor{out: model.Output{
		Presence: 0.9,
		Box:      geom.Box{X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75},
	}}
	f := NewFilter(p)

	out, pred, err := f.Apply(grey(640, 480))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(224, 224) {
		t.Fatalf("frame size = %v, want 224x224", got)
	}
	if pred.Presence != 0.9 {
		t.Errorf("presence = %v", pred.Presence)
	}
	if len(p.shape) != 4 || p.shape[2] != 224 || p.shape[3] != 224 {
		t.Errorf("model input shape = %v", p.shape)
	}
	if got := out.NRGBAAt(56, 120); got != fbimaging.PredictedColor {
		t.Errorf("box edge pixel = %v, want %v", got, fbimaging.PredictedColor)
	}
}

func TestFilterSkipsBoxBelowThreshold(t *testing.T) {
	p := &fixedPredictor{out: model.Output{
		Presence: 0.85,
		Box:      geom.Box{X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.75},
	}}
	out, _, err := NewFilter(p).Apply(grey(300, 300))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.NRGBAAt(56, 120); got == fbimaging.PredictedColor {
		t.Error("box drawn at presence equal to threshold")
	}
}

func TestLoopRunsUntilExhausted(t *testing.T) {
	p := &fixedPredictor{out: model.Output{Presence: 0.1}}
	src := &sliceSource{frames: []image.Image{grey(300, 260), grey(260, 300), grey(224, 224)}}
	sink := &MemorySink{}

	n, err := Loop(context.Background(), src, NewFilter(p), sink, nil)
	if err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if n != 3 || len(sink.Frames) != 3 || p.calls != 3 {
		t.Errorf("shown=%d sink=%d calls=%d, want 3 each", n, len(sink.Frames), p.calls)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{frames: []image.Image{grey(300, 300)}}
	n, err := Loop(ctx, src, NewFilter(&fixedPredictor{}), &MemorySink{}, nil)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("Loop = %d, %v; want 0, context.Canceled", n, err)
	}
}

func TestLoopPropagatesModelError(t *testing.T) {
	boom := errors.New("boom")
	src := &sliceSource{frames: []image.Image{grey(300, 300)}}
	_, err := Loop(context.Background(), src, NewFilter(&fixedPredictor{err: boom}), &MemorySink{}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestDirSourceAndSink(t *testing.T) {
	in := t.TempDir()
	for _, name := range []string{"b.jpg", "a.jpg", "c.JPG"} {
		if err := fbimaging.Save(grey(240, 240), filepath.Join(in, name), 90); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(in, "broken.jpg"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(in, ".jpg", nil)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	if src.Len() != 4 {
		t.Fatalf("Len = %d, want 4", src.Len())
	}

	out := filepath.Join(t.TempDir(), "out")
	sink := NewDirSink(out)
	n, err := Loop(context.Background(), src, NewFilter(&fixedPredictor{}), sink, nil)
	if err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if n != 3 || sink.Written() != 3 {
		t.Fatalf("shown=%d written=%d, want 3", n, sink.Written())
	}
	for _, name := range []string{"frame-00000.jpg", "frame-00001.jpg", "frame-00002.jpg"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestNewDirSourceMissing(t *testing.T) {
	if _, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), ".jpg", nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
