package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        values,
		"description": description,
	}
}

func object(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var variantProp = enumProp("Which bitmap of the image: original, edited or bg_removed. Default original",
	"original", "edited", "bg_removed")

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session
		{
			Name:        "studio_upload",
			Description: "Upload one or more image files. Replaces the current image set only if every file decodes; the first image becomes active and adjustments, outputs and errors are reset.",
			InputSchema: object(map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Absolute paths to PNG, JPEG, GIF, WEBP, BMP or TIFF files",
				},
			}, "paths"),
		},
		{
			Name:        "studio_state",
			Description: "Return the session state: images, active index, adjustments, per-image request states and the current error.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "studio_select",
			Description: "Make the image at index active. Resets zoom and pan; adjustments are kept.",
			InputSchema: object(map[string]interface{}{
				"index": prop("integer", "0-based index into the uploaded images"),
			}, "index"),
		},
		{
			Name:        "studio_example_prompts",
			Description: "List example edit instructions.",
			InputSchema: object(map[string]interface{}{}),
		},

		// Adjustments
		{
			Name:        "studio_adjust",
			Description: "Set brightness and/or contrast (percent, 0-200, 100 = unchanged). They are applied to the active image before it is sent to the model. Returns a tone summary before and after.",
			InputSchema: object(map[string]interface{}{
				"brightness": prop("number", "Brightness percent (0-200)"),
				"contrast":   prop("number", "Contrast percent (0-200)"),
			}),
		},
		{
			Name:        "studio_reset_adjustments",
			Description: "Reset brightness and contrast to 100.",
			InputSchema: object(map[string]interface{}{}),
		},

		// Model requests
		{
			Name:        "studio_set_consistency",
			Description: "Toggle 'maintain character consistency', which asks the model to preserve the subject's face and identity.",
			InputSchema: object(map[string]interface{}{
				"enabled": prop("boolean", "Whether the consistency instruction is prepended"),
			}, "enabled"),
		},
		{
			Name:        "studio_generate",
			Description: "Edit the active image with a natural-language instruction. The result is stored as the image's edited variant.",
			InputSchema: object(map[string]interface{}{
				"prompt":               prop("string", "Instruction describing the edit"),
				"maintain_consistency": prop("boolean", "Optional: set the consistency toggle before generating"),
			}, "prompt"),
		},
		{
			Name:        "studio_remove_background",
			Description: "Remove the background of the active image. The result is stored as the image's bg_removed variant.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "studio_clear_error",
			Description: "Dismiss the current error message.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "studio_download",
			Description: "Save the original, edited or background-removed bitmap to the export directory.",
			InputSchema: object(map[string]interface{}{
				"index":   prop("integer", "Image index. Default: active image"),
				"variant": variantProp,
			}),
		},

		// Viewport
		{
			Name:        "viewport_wheel",
			Description: "Scroll-zoom the view anchored at the pointer. Scale changes by -0.01 x delta_y, clamped to 0.5-5.",
			InputSchema: object(map[string]interface{}{
				"variant": variantProp,
				"delta_y": prop("number", "Wheel delta; negative zooms in"),
				"x":       prop("number", "Pointer X relative to the view"),
				"y":       prop("number", "Pointer Y relative to the view"),
			}, "delta_y"),
		},
		{
			Name:        "viewport_zoom",
			Description: "Zoom the view in or out by a factor of 1.2.",
			InputSchema: object(map[string]interface{}{
				"variant":   variantProp,
				"direction": enumProp("Zoom direction", "in", "out"),
			}, "direction"),
		},
		{
			Name:        "viewport_pointer",
			Description: "Send a pointer event. Dragging with the primary button pans while zoomed in.",
			InputSchema: object(map[string]interface{}{
				"variant": variantProp,
				"action":  enumProp("Pointer action", "down", "move", "up", "leave"),
				"button":  prop("integer", "Button index for 'down' (0 = primary)"),
				"x":       prop("number", "Pointer X relative to the view"),
				"y":       prop("number", "Pointer Y relative to the view"),
			}, "action"),
		},
		{
			Name:        "viewport_reset",
			Description: "Reset zoom to 100% and clear the pan offset.",
			InputSchema: object(map[string]interface{}{
				"variant": variantProp,
			}),
		},
		{
			Name:        "viewport_state",
			Description: "Return the view's scale, offset and control availability.",
			InputSchema: object(map[string]interface{}{
				"variant": variantProp,
			}),
		},

		// Crop
		{
			Name:        "crop_open",
			Description: "Open a crop over an image as it is displayed. Starts with a centered selection covering 90% of the image.",
			InputSchema: object(map[string]interface{}{
				"index":          prop("integer", "Image index. Default: active image"),
				"variant":        variantProp,
				"display_width":  prop("number", "Displayed width of the image. Default: natural width"),
				"display_height": prop("number", "Displayed height of the image. Default: natural height"),
				"aspect":         prop("string", "Aspect constraint: free, 1:1, 16:9, 9:16 or any W:H. Default free"),
			}),
		},
		{
			Name:        "crop_set_aspect",
			Description: "Change the aspect constraint of the open crop; the selection is re-centered.",
			InputSchema: object(map[string]interface{}{
				"aspect": prop("string", "free, 1:1, 16:9, 9:16 or any W:H"),
			}, "aspect"),
		},
		{
			Name:        "crop_set_selection",
			Description: "Set the crop selection in display coordinates.",
			InputSchema: object(map[string]interface{}{
				"x":      prop("number", "Left edge"),
				"y":      prop("number", "Top edge"),
				"width":  prop("number", "Width"),
				"height": prop("number", "Height"),
			}, "x", "y", "width", "height"),
		},
		{
			Name:        "crop_export",
			Description: "Crop & Download: save exactly the selected region as PNG at device pixel density. Does nothing for an empty selection.",
			InputSchema: object(map[string]interface{}{
				"device_pixel_ratio": prop("number", "Output density. Default from configuration"),
			}),
		},
		{
			Name:        "crop_close",
			Description: "Close the crop without exporting.",
			InputSchema: object(map[string]interface{}{}),
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
