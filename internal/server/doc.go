// Package server implements an MCP (Model Context Protocol) server exposing
// the facebox label and dataset tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Box geometry:
//   - box_normalize: Pixel corners to a normalized canonical box
//   - box_iou: Intersection over union of two boxes
//
// Labels:
//   - label_read: Read a generated label file
//   - label_collect: Label every image of a directory
//   - label_suggest: Draft annotations with a cascade face detector
//
// Dataset:
//   - dataset_split: Augment and partition a labeled directory
//
// Images:
//   - image_dimensions: Get width and height
//
// Arguments left out fall back to the configuration the server was created
// with.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Diagnostics go to the injected logger, never to stdout.
//
// # Usage
//
//	srv := server.New(cfg, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
