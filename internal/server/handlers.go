package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
	"github.com/ironsheep/photo-edit-mcp/internal/studio"
	"github.com/ironsheep/photo-edit-mcp/internal/viewport"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "studio_upload", "crop_export").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
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
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		slog.Debug("Tool failed", "tool", params.Name, "err", err)
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Session
	case "studio_upload":
		return s.handleUpload(ctx, args)
	case "studio_state":
		return s.session.Snapshot(), nil
	case "studio_select":
		return s.handleSelect(args)
	case "studio_example_prompts":
		return map[string]interface{}{"prompts": studio.ExamplePrompts}, nil

	// Adjustments
	case "studio_adjust":
		return s.handleAdjust(args)
	case "studio_reset_adjustments":
		s.session.ResetAdjustment()
		return s.preview()

	// Model requests
	case "studio_set_consistency":
		return s.handleSetConsistency(args)
	case "studio_generate":
		return s.handleGenerate(ctx, args)
	case "studio_remove_background":
		out, err := s.session.RemoveBackground(ctx)
		if err != nil {
			return nil, err
		}
		return s.outputResult(out), nil
	case "studio_clear_error":
		s.session.ClearError()
		return s.session.Snapshot(), nil
	case "studio_download":
		return s.handleDownload(args)

	// Viewport
	case "viewport_wheel":
		return s.handleViewportWheel(args)
	case "viewport_zoom":
		return s.handleViewportZoom(args)
	case "viewport_pointer":
		return s.handleViewportPointer(args)
	case "viewport_reset":
		return s.handleViewport(args, (*viewport.Viewport).Reset)
	case "viewport_state":
		return s.handleViewport(args, nil)

	// Crop
	case "crop_open":
		return s.handleCropOpen(args)
	case "crop_set_aspect":
		return s.handleCropSetAspect(args)
	case "crop_set_selection":
		return s.handleCropSetSelection(args)
	case "crop_export":
		return s.handleCropExport(args)
	case "crop_close":
		s.session.CloseCrop()
		return map[string]interface{}{"closed": true}, nil

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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs tolerates missing arguments for tools whose parameters are
// all optional.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Session Handlers ===

type uploadArgs struct {
	Paths []string `json:"paths"`
}

func (s *Server) handleUpload(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a uploadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, fmt.Errorf("paths must not be empty")
	}

	uploads := make([]imaging.Upload, 0, len(a.Paths))
	for _, p := range a.Paths {
		u, err := imaging.ReadUpload(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", p, err)
		}
		uploads = append(uploads, u)
	}

	if err := s.session.Upload(ctx, uploads); err != nil {
		return nil, fmt.Errorf("failed to read the image file: %w", err)
	}
	return s.session.Snapshot(), nil
}

type selectArgs struct {
	Index int `json:"index"`
}

func (s *Server) handleSelect(args json.RawMessage) (interface{}, error) {
	var a selectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.session.Select(a.Index); err != nil {
		return nil, err
	}
	return s.session.Snapshot(), nil
}

// === Adjustment Handlers ===

type adjustArgs struct {
	Brightness *float64 `json:"brightness"`
	Contrast   *float64 `json:"contrast"`
}

func (s *Server) handleAdjust(args json.RawMessage) (interface{}, error) {
	var a adjustArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	adj := s.session.Adjustment()
	if a.Brightness != nil {
		adj.Brightness = *a.Brightness
	}
	if a.Contrast != nil {
		adj.Contrast = *a.Contrast
	}
	if err := s.session.SetAdjustment(adj); err != nil {
		return nil, err
	}

	return s.preview()
}

func (s *Server) preview() (interface{}, error) {
	preview, err := s.session.PreviewAdjustment()
	if errors.Is(err, studio.ErrNoImage) {
		// Sliders work before an upload; there is just nothing to preview.
		return map[string]interface{}{"adjustment": s.session.Adjustment()}, nil
	}
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// === Model Request Handlers ===

type consistencyArgs struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetConsistency(args json.RawMessage) (interface{}, error) {
	var a consistencyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	s.session.SetMaintainConsistency(a.Enabled)
	return map[string]interface{}{"maintain_consistency": a.Enabled}, nil
}

type generateArgs struct {
	Prompt              string `json:"prompt"`
	MaintainConsistency *bool  `json:"maintain_consistency"`
}

func (s *Server) handleGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a generateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MaintainConsistency != nil {
		s.session.SetMaintainConsistency(*a.MaintainConsistency)
	}

	out, err := s.session.Generate(ctx, a.Prompt)
	if err != nil {
		return nil, err
	}
	return s.outputResult(out), nil
}

// outputResult describes a finished model request and the image it belongs to.
func (s *Server) outputResult(out *studio.Output) map[string]interface{} {
	return map[string]interface{}{
		"kind":      out.Kind,
		"variant":   out.Kind.Variant(),
		"index":     out.Index,
		"mime_type": out.Bitmap.MimeType,
		"bytes":     len(out.Bitmap.Data),
	}
}

type downloadArgs struct {
	Index   *int   `json:"index"`
	Variant string `json:"variant"`
}

func (a downloadArgs) index() int {
	if a.Index == nil {
		return -1
	}
	return *a.Index
}

func (s *Server) handleDownload(args json.RawMessage) (interface{}, error) {
	var a downloadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}

	d, err := s.session.Download(a.index(), v)
	if err != nil {
		return nil, err
	}
	return s.save(d)
}

func (s *Server) save(d *studio.Download) (map[string]interface{}, error) {
	path, err := s.exports.Save(d.Name, d.Bitmap.Data)
	if err != nil {
		return nil, err
	}
	slog.Info("Exported file", "path", path, "bytes", len(d.Bitmap.Data))
	return map[string]interface{}{
		"path":      path,
		"name":      d.Name,
		"mime_type": d.Bitmap.MimeType,
		"bytes":     len(d.Bitmap.Data),
	}, nil
}

// === Viewport Handlers ===

type viewportArgs struct {
	Variant string  `json:"variant"`
	DeltaY  float64 `json:"delta_y"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

func (s *Server) handleViewport(args json.RawMessage, fn func(*viewport.Viewport)) (interface{}, error) {
	var a viewportArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}
	return s.session.View(v, fn)
}

func (s *Server) handleViewportWheel(args json.RawMessage) (interface{}, error) {
	var a viewportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}
	return s.session.View(v, func(vp *viewport.Viewport) {
		vp.Wheel(a.DeltaY, viewport.Point{X: a.X, Y: a.Y})
	})
}

type zoomArgs struct {
	Variant   string `json:"variant"`
	Direction string `json:"direction"`
}

func (s *Server) handleViewportZoom(args json.RawMessage) (interface{}, error) {
	var a zoomArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}

	var fn func(*viewport.Viewport)
	switch a.Direction {
	case "in":
		fn = (*viewport.Viewport).ZoomIn
	case "out":
		fn = (*viewport.Viewport).ZoomOut
	default:
		return nil, fmt.Errorf("invalid direction: %s (use 'in' or 'out')", a.Direction)
	}
	return s.session.View(v, fn)
}

type pointerArgs struct {
	Variant string  `json:"variant"`
	Action  string  `json:"action"`
	Button  int     `json:"button"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

func (s *Server) handleViewportPointer(args json.RawMessage) (interface{}, error) {
	var a pointerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}

	pos := viewport.Point{X: a.X, Y: a.Y}
	var fn func(*viewport.Viewport)
	switch a.Action {
	case "down":
		fn = func(vp *viewport.Viewport) { vp.PointerDown(a.Button, pos) }
	case "move":
		fn = func(vp *viewport.Viewport) { vp.PointerMove(pos) }
	case "up":
		fn = (*viewport.Viewport).PointerUp
	case "leave":
		fn = (*viewport.Viewport).PointerLeave
	default:
		return nil, fmt.Errorf("invalid action: %s (use down, move, up or leave)", a.Action)
	}
	return s.session.View(v, fn)
}

// === Crop Handlers ===

type cropOpenArgs struct {
	Index         *int    `json:"index"`
	Variant       string  `json:"variant"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	Aspect        string  `json:"aspect"`
}

func (s *Server) handleCropOpen(args json.RawMessage) (interface{}, error) {
	var a cropOpenArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	v, err := studio.ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}
	aspect, err := imaging.ParseAspect(a.Aspect)
	if err != nil {
		return nil, err
	}

	index := -1
	if a.Index != nil {
		index = *a.Index
	}
	display := imaging.Size{Width: a.DisplayWidth, Height: a.DisplayHeight}
	return s.session.OpenCrop(index, v, display, aspect)
}

type cropAspectArgs struct {
	Aspect string `json:"aspect"`
}

func (s *Server) handleCropSetAspect(args json.RawMessage) (interface{}, error) {
	var a cropAspectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	aspect, err := imaging.ParseAspect(a.Aspect)
	if err != nil {
		return nil, err
	}
	return s.session.SetCropAspect(aspect)
}

func (s *Server) handleCropSetSelection(args json.RawMessage) (interface{}, error) {
	var r imaging.Rect
	if err := json.Unmarshal(args, &r); err != nil {
		return nil, err
	}
	return s.session.SetCropSelection(r)
}

type cropExportArgs struct {
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

func (s *Server) handleCropExport(args json.RawMessage) (interface{}, error) {
	var a cropExportArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	d, err := s.session.ExportCrop(a.DevicePixelRatio)
	if errors.Is(err, imaging.ErrEmptySelection) {
		// The Crop & Download action is inert for an empty selection.
		return map[string]interface{}{"exported": false, "reason": err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	result, err := s.save(d)
	if err != nil {
		return nil, err
	}
	result["exported"] = true
	return result, nil
}
