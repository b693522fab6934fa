// Package server implements the MCP (Model Context Protocol) server for the
// photo studio.
//
// The server exposes one studio.Session to an MCP client. Every user
// interaction of the studio (uploading, selecting, adjusting, editing,
// removing backgrounds, zooming, cropping and downloading) is a tool.
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
// Session:
//   - studio_upload: Replace the image set with files on disk
//   - studio_state: Snapshot of images, request states and errors
//   - studio_select: Change the active image
//   - studio_example_prompts: Suggested edit instructions
//
// Adjustments:
//   - studio_adjust: Set brightness/contrast and preview the effect
//   - studio_reset_adjustments: Back to 100/100
//
// Model requests:
//   - studio_set_consistency: Toggle identity preservation
//   - studio_generate: Edit the active image from a prompt
//   - studio_remove_background: Remove the active image's background
//   - studio_clear_error: Dismiss the error message
//   - studio_download: Save a variant to the export directory
//
// Viewport:
//   - viewport_wheel, viewport_zoom, viewport_pointer, viewport_reset,
//     viewport_state: Zoom and pan of the displayed variant
//
// Crop:
//   - crop_open, crop_set_aspect, crop_set_selection, crop_export,
//     crop_close: Interactive crop with PNG export
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC errors with code -32000. The message
// data contains the error text, which for request failures is the same text
// the session records as its user-visible error.
//
// # Example Usage
//
// Request:
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"studio_generate","arguments":{"prompt":"add sunglasses"}}}
//
// Response:
//
//	{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{\"kind\":\"edit\",...}"}]}}
package server
