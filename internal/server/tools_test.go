package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"box_normalize",
		"box_iou",
		"label_read",
		"label_collect",
		"label_suggest",
		"dataset_split",
		"image_dimensions",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("tool count: got %d, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Name == "" {
				t.Error("Tool name is empty")
			}
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}

			schemaType, ok := tool.InputSchema["type"]
			if !ok {
				t.Error("InputSchema missing 'type' field")
			}
			if schemaType != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", schemaType)
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// Every required field must be declared.
			if required, ok := tool.InputSchema["required"]; ok {
				for _, r := range required.([]string) {
					if _, ok := props[r]; !ok {
						t.Errorf("required field %q has no property", r)
					}
				}
			}
		})
	}
}

func TestToolDefinitions_Required(t *testing.T) {
	tests := map[string][]string{
		"box_normalize":    {"p", "q", "width", "height"},
		"box_iou":          {"a", "b"},
		"label_read":       {"path"},
		"image_dimensions": {"path"},
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			required, ok := toolMap[name].InputSchema["required"].([]string)
			if !ok {
				t.Fatal("'required' should be a string slice")
			}
			if len(required) != len(want) {
				t.Fatalf("required = %v, want %v", required, want)
			}
			for i := range want {
				if required[i] != want[i] {
					t.Errorf("required[%d] = %s, want %s", i, required[i], want[i])
				}
			}
		})
	}
}

func TestToolDefinitions_OptionalArguments(t *testing.T) {
	// Tools that fall back to the server configuration have no required fields.
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "label_collect" && tool.Name != "dataset_split" {
			continue
		}
		if _, ok := tool.InputSchema["required"]; ok {
			t.Errorf("%s should not require arguments", tool.Name)
		}
	}
}

func TestToolDefinitions_BoxSchema(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "box_iou" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, key := range []string{"a", "b"} {
			p := props[key].(map[string]interface{})
			if p["type"] != "array" || p["minItems"] != 4 || p["maxItems"] != 4 {
				t.Errorf("%s schema = %v, want array of 4", key, p)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
	}

	resp := s.handleToolsList(req)

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}

	expected := GetToolDefinitions()
	if len(toolsList) != len(expected) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(expected))
	}
}
