package server

import (
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/facebox/internal/config"
	"github.com/ironsheep/facebox/internal/geom"
	"github.com/ironsheep/facebox/internal/label"
)

// createTestImageFile writes a solid JPEG and returns its path.
func createTestImageFile(t *testing.T, path string, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// labeledDir builds <dir>/images/face.jpg with an annotation and
// <dir>/images/empty.jpg without one.
func labeledDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	createTestImageFile(t, filepath.Join(dir, "images", "face.jpg"), 200, 200, color.RGBA{128, 128, 128, 255})
	createTestImageFile(t, filepath.Join(dir, "images", "empty.jpg"), 120, 100, color.RGBA{20, 20, 20, 255})

	ann := `{"shapes":[{"label":"face","points":[[110,120],[10,20]]}],"imageData":"xyz"}`
	if err := os.MkdirAll(filepath.Join(dir, "labels"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "labels", "face.json"), []byte(ann), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil || out == nil {
		return resp
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	text := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("decode %s result %q: %v", name, text, err)
	}
	return resp
}

func TestHandleToolsCall_BoxNormalize(t *testing.T) {
	s := newTestServer(t)

	var got struct {
		BBox geom.Box `json:"bbox"`
	}
	resp := callTool(t, s, "box_normalize", map[string]interface{}{
		"p": []float64{110, 120}, "q": []float64{10, 20}, "width": 200, "height": 200,
	}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	want := geom.Box{X0: 0.05, Y0: 0.10, X1: 0.55, Y1: 0.60}
	if math.Abs(got.BBox.X0-want.X0) > 1e-12 || math.Abs(got.BBox.Y0-want.Y0) > 1e-12 ||
		math.Abs(got.BBox.X1-want.X1) > 1e-12 || math.Abs(got.BBox.Y1-want.Y1) > 1e-12 {
		t.Errorf("bbox = %v, want %v", got.BBox, want)
	}
}

func TestHandleToolsCall_BoxNormalizeZeroSize(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "box_normalize", map[string]interface{}{
		"p": []float64{1, 1}, "q": []float64{2, 2}, "width": 0, "height": 10,
	}, nil)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("expected tool error, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_BoxIoU(t *testing.T) {
	s := newTestServer(t)

	var got struct {
		IoU          float64 `json:"iou"`
		Intersection float64 `json:"intersection"`
		Union        float64 `json:"union"`
		ZeroArea     bool    `json:"zero_area"`
	}
	resp := callTool(t, s, "box_iou", map[string]interface{}{
		"a": []float64{0, 0, 10, 10},
		"b": []float64{15, 15, 5, 5},
	}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if math.Abs(got.IoU-25.0/175) > 1e-12 || got.Intersection != 25 || got.Union != 175 || got.ZeroArea {
		t.Errorf("got %+v", got)
	}
}

func TestHandleToolsCall_BoxIoUBadBox(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "box_iou", map[string]interface{}{
		"a": []float64{0, 0, 10},
		"b": []float64{0, 0, 1, 1},
	}, nil)
	if resp.Error == nil {
		t.Error("expected error for three-value box")
	}
}

func TestHandleToolsCall_LabelRead(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "labels", "x--0.json")
	want := label.File{BBox: geom.Box{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4}, Class: 1, ImageFname: "x--0.jpg"}
	if err := label.WriteFile(path, want); err != nil {
		t.Fatal(err)
	}

	var got label.File
	resp := callTool(t, s, "label_read", map[string]interface{}{"path": path}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHandleToolsCall_LabelCollect(t *testing.T) {
	s := newTestServer(t)
	dir := labeledDir(t)

	var got struct {
		Count   int `json:"count"`
		Faces   int `json:"faces"`
		Records []struct {
			Image string   `json:"image"`
			Class int      `json:"class"`
			BBox  geom.Box `json:"bbox"`
		} `json:"records"`
	}
	resp := callTool(t, s, "label_collect", map[string]interface{}{"root": filepath.Join(dir, "images")}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if got.Count != 2 || got.Faces != 1 || len(got.Records) != 2 {
		t.Fatalf("got %+v", got)
	}
	// Records are sorted by path: empty.jpg before face.jpg.
	if filepath.Base(got.Records[0].Image) != "empty.jpg" || got.Records[0].Class != 0 {
		t.Errorf("first record = %+v", got.Records[0])
	}
	if got.Records[0].BBox != geom.Degenerate() {
		t.Errorf("negative bbox = %v, want degenerate", got.Records[0].BBox)
	}
	if filepath.Base(got.Records[1].Image) != "face.jpg" || got.Records[1].Class != 1 {
		t.Errorf("second record = %+v", got.Records[1])
	}
}

func TestHandleToolsCall_LabelCollectMissingRoot(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "label_collect", map[string]interface{}{"root": filepath.Join(t.TempDir(), "nope")}, nil)
	if resp.Error == nil {
		t.Error("expected error for missing root")
	}
}

func TestHandleToolsCall_LabelSuggestNeedsCascade(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "label_suggest", map[string]interface{}{"images_dir": t.TempDir()}, nil)
	if resp.Error == nil {
		t.Fatal("expected error without a cascade")
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "no cascade") {
		t.Errorf("error data: got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_LabelSuggestMissingCascade(t *testing.T) {
	s := newTestServer(t)
	args := map[string]interface{}{
		"images_dir": t.TempDir(),
		"cascade":    filepath.Join(t.TempDir(), "facefinder"),
	}
	if resp := callTool(t, s, "label_suggest", args, nil); resp.Error == nil {
		t.Error("expected error for missing cascade file")
	}
}

func TestHandleToolsCall_DatasetSplit(t *testing.T) {
	dir := labeledDir(t)
	cfg := config.Default()
	cfg.CropSize = 64
	s := New(cfg, nil)

	out := filepath.Join(dir, "augmented-data")
	var got struct {
		RunID   string         `json:"run_id"`
		Sources int            `json:"sources"`
		Summary map[string]int `json:"summary"`
	}
	resp := callTool(t, s, "dataset_split", map[string]interface{}{
		"images_dir":    filepath.Join(dir, "images"),
		"output_dir":    out,
		"augmentations": 3,
	}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	if got.RunID == "" || got.Sources != 2 || got.Summary["total"] != 6 {
		t.Errorf("got %+v", got)
	}
	if _, err := os.Stat(filepath.Join(out, "summary.json")); err != nil {
		t.Errorf("summary.json not written: %v", err)
	}
}

func TestHandleToolsCall_DatasetSplitInvalidConfig(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "dataset_split", map[string]interface{}{"augmentations": -2}, nil)
	if resp.Error == nil {
		t.Error("expected validation error")
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, filepath.Join(t.TempDir(), "a.jpg"), 200, 150, color.RGBA{0, 255, 0, 255})

	var got struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": path}, &got)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if got.Width != 200 || got.Height != 150 {
		t.Errorf("got %dx%d, want 200x150", got.Width, got.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": "/nonexistent/image.jpg"}, nil)

	if resp.Error == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{}, nil)

	if resp.Error == nil {
		t.Fatal("Expected error for invalid tool")
	}
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"box_normalize", "box_iou", "label_read", "image_dimensions"} {
		t.Run(name, func(t *testing.T) {
			resp := callTool(t, s, name, nil, nil)
			if resp.Error == nil {
				t.Error("Expected error for missing arguments")
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  []byte(`{invalid json}`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.executeTool("unknown_tool", []byte(`{}`)); err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.executeTool("box_iou", []byte(`{invalid}`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
