package llm

import (
	"context"
	"strings"
)

// Message represents a single conversation turn sent to the provider.
type Message struct {
	Role    string         `json:"role"` // "user" or "assistant"
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents different types of content in a message
type ContentBlock interface {
	Type() string
}

// TextBlock represents text content
type TextBlock struct {
	Text string `json:"text"`
}

func (t TextBlock) Type() string { return "text" }

// ImageBlock represents inline image content
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

func (i ImageBlock) Type() string { return "image" }

// ImageSource represents encoded image data
type ImageSource struct {
	Type      string `json:"type"`       // "base64"
	MediaType string `json:"media_type"` // "image/png", "image/jpeg", etc.
	Data      string `json:"data"`       // base64 encoded image data
}

// ImageSourceFromDataURL decodes a "data:<media>;base64,<payload>" string,
// the form captured photos are stored in. Reports false for anything else.
func ImageSourceFromDataURL(s string) (*ImageSource, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, false
	}
	mediaType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok || mediaType == "" || payload == "" {
		return nil, false
	}
	return &ImageSource{Type: "base64", MediaType: mediaType, Data: payload}, true
}

// GenerateRequest is a single-shot generation request. Prompt is required;
// Image carries an optional inline payload (sketch-to-image mode).
type GenerateRequest struct {
	Prompt string       `json:"prompt"`
	Image  *ImageSource `json:"image,omitempty"`
}

// GenerateResult is the provider's single-shot response. Text or Image is
// populated depending on the bound model; both empty means no usable payload.
type GenerateResult struct {
	Text  string       `json:"text,omitempty"`
	Image *ImageSource `json:"image,omitempty"`
}

// ApiHandler is the contract every provider handler satisfies. A handler is
// bound to one model at construction time.
type ApiHandler interface {
	// CreateMessage sends the conversation and returns a streaming response.
	CreateMessage(ctx context.Context, systemPrompt string, messages []Message) (ApiStream, error)

	// GenerateContent performs a single-shot generation call.
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// ApiHandlerOptions represents configuration options for API handlers
type ApiHandlerOptions struct {
	APIKey  string `json:"apiKey"`
	ModelID string `json:"modelId"`
}
