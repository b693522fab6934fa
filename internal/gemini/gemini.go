package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/ironsheep/photo-edit-mcp/internal/providers"
	"google.golang.org/api/option"
)

// DefaultModel is the image-capable model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image-preview"

// Gemini is a provider for Google Gemini image editing
type Gemini struct {
	apiKey string
	model  string
}

// New returns a new Gemini provider
func New(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{apiKey: apiKey, model: model}
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// EditImage sends the image and the instruction as one message and collects
// every image and text part of the first candidate.
func (g *Gemini) EditImage(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)

	slog.Debug("Sending image edit request", "model", g.model, "mime_type", req.MimeType, "bytes", len(req.Image))
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.MimeType, Data: req.Image},
		genai.Text(req.Prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	result := collect(resp)
	if !result.HasImage() && result.Text == "" {
		return nil, providers.ErrEmptyResponse
	}
	return result, nil
}

func collect(resp *genai.GenerateContentResponse) *providers.Response {
	result := &providers.Response{}
	if resp == nil || len(resp.Candidates) == 0 {
		return result
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return result
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			result.Image = p.Data
			result.MimeType = p.MIMEType
		case genai.Text:
			text.WriteString(string(p))
		}
	}
	result.Text = text.String()
	return result
}
