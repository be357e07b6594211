package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func boxSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "number"},
		"minItems":    4,
		"maxItems":    4,
	}
}

func pointSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "number"},
		"minItems":    2,
		"maxItems":    2,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Box geometry
		{
			Name:        "box_normalize",
			Description: "Convert two opposite corners of an annotation, in pixels and in any order, into a canonical box normalized to [0,1] by the image size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"p":      pointSchema("First corner [x, y] in pixels"),
					"q":      pointSchema("Opposite corner [x, y] in pixels"),
					"width":  map[string]interface{}{"type": "integer", "description": "Image width in pixels"},
					"height": map[string]interface{}{"type": "integer", "description": "Image height in pixels"},
				},
				"required": []string{"p", "q", "width", "height"},
			},
		},
		{
			Name:        "box_iou",
			Description: "Intersection over union of two boxes given in the same coordinate frame. Corners may be in any order. Boxes without area report zero_area and an IoU of 0.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"a": boxSchema("First box [x0, y0, x1, y1]"),
					"b": boxSchema("Second box [x0, y0, x1, y1]"),
				},
				"required": []string{"a", "b"},
			},
		},

		// Labels
		{
			Name:        "label_read",
			Description: "Read a generated label file ({bbox, class, image_fname}). A missing file reads as class 0.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the label JSON file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "label_collect",
			Description: "Pair every image under a directory with its optional annotation and return one record per image with class and normalized box. Images without a usable annotation are class 0.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"root": map[string]interface{}{
						"type":        "string",
						"description": "Image directory. Defaults to the configured images directory",
					},
					"patterns": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Optional glob patterns relative to root selecting images",
					},
					"negative_pattern": map[string]interface{}{
						"type":        "string",
						"description": "Optional glob pattern of unlabeled images to sample from",
					},
					"negative_sample": map[string]interface{}{
						"type":        "integer",
						"description": "Number of unlabeled images to add. Default 0",
						"default":     0,
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Seed for negative sampling. Defaults to the configured seed",
					},
				},
			},
		},
		{
			Name:        "label_suggest",
			Description: "Draft a single face rectangle annotation for every image under a directory that has none yet, using a pigo cascade face detector. Images without a confident detection are left unlabeled.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"images_dir": map[string]interface{}{
						"type":        "string",
						"description": "Image directory. Defaults to the configured images directory",
					},
					"cascade": map[string]interface{}{
						"type":        "string",
						"description": "Path to the cascade file. Defaults to FACEBOX_CASCADE",
					},
					"min_score": map[string]interface{}{
						"type":        "number",
						"description": "Lowest detection score to draft. Default 5",
						"default":     5.0,
					},
					"overwrite": map[string]interface{}{
						"type":        "boolean",
						"description": "Replace existing annotations. Default false",
						"default":     false,
					},
				},
			},
		},

		// Dataset
		{
			Name:        "dataset_split",
			Description: "Augment every labeled image N times and write the samples into train, validation and test partitions. Returns the run report with per-partition counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"images_dir": map[string]interface{}{
						"type":        "string",
						"description": "Source image directory",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Destination root for the partitions",
					},
					"augmentations": map[string]interface{}{
						"type":        "integer",
						"description": "Augmentations per source image. Default 1",
						"default":     1,
					},
					"crop_size": map[string]interface{}{
						"type":        "integer",
						"description": "Side of the square output images. Default 1000",
						"default":     1000,
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Random seed. Default 420",
						"default":     420,
					},
				},
			},
		},

		// Images
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
