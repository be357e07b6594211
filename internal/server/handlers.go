package server

import (
	"fmt"
	"math/rand"

	"github.com/ironsheep/facebox/internal/dataset"
	"github.com/ironsheep/facebox/internal/eval"
	"github.com/ironsheep/facebox/internal/geom"
	"github.com/ironsheep/facebox/internal/label"
	"github.com/ironsheep/facebox/internal/suggest"
	jsoniter "github.com/json-iterator/go"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "box_iou", "dataset_split").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Box geometry
	case "box_normalize":
		return s.handleBoxNormalize(args)
	case "box_iou":
		return s.handleBoxIoU(args)

	// Labels
	case "label_read":
		return s.handleLabelRead(args)
	case "label_collect":
		return s.handleLabelCollect(args)
	case "label_suggest":
		return s.handleLabelSuggest(args)

	// Dataset
	case "dataset_split":
		return s.handleDatasetSplit(args)

	// Images
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("missing arguments")
	}
	return json.Unmarshal(args, v)
}

// === Box Handlers ===

type boxNormalizeArgs struct {
	P      [2]float64 `json:"p"`
	Q      [2]float64 `json:"q"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
}

type boxResult struct {
	BBox geom.Box `json:"bbox"`
}

func (s *Server) handleBoxNormalize(args jsoniter.RawMessage) (interface{}, error) {
	var a boxNormalizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	b, err := label.NormalizeCorners(
		label.Point{X: a.P[0], Y: a.P[1]},
		label.Point{X: a.Q[0], Y: a.Q[1]},
		a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	return boxResult{BBox: b}, nil
}

type boxIoUArgs struct {
	A geom.Box `json:"a"`
	B geom.Box `json:"b"`
}

type iouResult struct {
	IoU          float64 `json:"iou"`
	Intersection float64 `json:"intersection"`
	Union        float64 `json:"union"`
	ZeroArea     bool    `json:"zero_area"`
}

func (s *Server) handleBoxIoU(args jsoniter.RawMessage) (interface{}, error) {
	var a boxIoUArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ov, err := eval.IoU(a.A, a.B)
	if err != nil {
		return nil, err
	}
	return iouResult{IoU: ov.Value, Intersection: ov.Intersection, Union: ov.Union, ZeroArea: ov.ZeroArea}, nil
}

// === Label Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLabelRead(args jsoniter.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return label.ReadFile(a.Path)
}

type labelCollectArgs struct {
	Root            string   `json:"root"`
	Patterns        []string `json:"patterns"`
	NegativePattern string   `json:"negative_pattern"`
	NegativeSample  int      `json:"negative_sample"`
	Seed            *int64   `json:"seed"`
}

type recordResult struct {
	Image string   `json:"image"`
	Label string   `json:"label,omitempty"`
	Class int      `json:"class"`
	BBox  geom.Box `json:"bbox"`
}

type collectResult struct {
	Count   int            `json:"count"`
	Faces   int            `json:"faces"`
	Records []recordResult `json:"records"`
}

func (s *Server) handleLabelCollect(args jsoniter.RawMessage) (interface{}, error) {
	a := labelCollectArgs{
		Root:            s.cfg.ImagesDir,
		Patterns:        s.cfg.Patterns,
		NegativePattern: s.cfg.NegativePattern,
		NegativeSample:  s.cfg.NegativeSample,
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	seed := s.cfg.Seed
	if a.Seed != nil {
		seed = *a.Seed
	}

	c := label.NewCollector(a.Root, s.cache, rand.New(rand.NewSource(seed)), s.log)
	c.Patterns = a.Patterns
	c.NegativePattern = a.NegativePattern
	c.NegativeSample = a.NegativeSample
	if s.cfg.ImageExt != "" {
		c.ImageExt = s.cfg.ImageExt
	}
	if s.cfg.LabelExt != "" {
		c.LabelExt = s.cfg.LabelExt
	}

	records, err := c.Collect()
	if err != nil {
		return nil, err
	}

	res := collectResult{Count: len(records), Records: make([]recordResult, 0, len(records))}
	for _, r := range records {
		res.Faces += r.Class
		res.Records = append(res.Records, recordResult{
			Image: r.ImagePath,
			Label: r.LabelPath,
			Class: r.Class,
			BBox:  r.Box,
		})
	}
	return res, nil
}

// === Dataset Handlers ===

type datasetSplitArgs struct {
	ImagesDir     string `json:"images_dir"`
	OutputDir     string `json:"output_dir"`
	Augmentations int    `json:"augmentations"`
	CropSize      int    `json:"crop_size"`
	Seed          *int64 `json:"seed"`
}

type labelSuggestArgs struct {
	ImagesDir string   `json:"images_dir"`
	Cascade   string   `json:"cascade"`
	MinScore  *float64 `json:"min_score"`
	Overwrite bool     `json:"overwrite"`
}

func (s *Server) handleLabelSuggest(args jsoniter.RawMessage) (interface{}, error) {
	a := labelSuggestArgs{ImagesDir: s.cfg.ImagesDir, Cascade: s.cfg.CascadePath}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	if a.Cascade == "" {
		return nil, suggest.ErrNoCascade
	}

	detector, err := suggest.LoadCascade(a.Cascade)
	if err != nil {
		return nil, err
	}
	sg := suggest.New(a.ImagesDir, detector, s.log)
	sg.Overwrite = a.Overwrite
	if a.MinScore != nil {
		sg.MinScore = *a.MinScore
	}
	if s.cfg.ImageExt != "" {
		sg.ImageExt = s.cfg.ImageExt
	}
	if s.cfg.LabelExt != "" {
		sg.LabelExt = s.cfg.LabelExt
	}
	return sg.Run(s.ctx)
}

func (s *Server) handleDatasetSplit(args jsoniter.RawMessage) (interface{}, error) {
	var a datasetSplitArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}

	cfg := s.cfg
	if a.ImagesDir != "" {
		cfg.ImagesDir = a.ImagesDir
	}
	if a.OutputDir != "" {
		cfg.OutputDir = a.OutputDir
	}
	if a.Augmentations != 0 {
		cfg.Augmentations = a.Augmentations
	}
	if a.CropSize != 0 {
		cfg.CropSize = a.CropSize
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return dataset.NewSplitter(dataset.OptionsFromConfig(cfg), s.log).Run(s.ctx)
}

// === Image Handlers ===

func (s *Server) handleImageDimensions(args jsoniter.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.cache.Dimensions(a.Path)
}
