package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/heartguard/heartguard/internal/llm"
	"google.golang.org/genai"
)

// GeminiHandler implements the ApiHandler interface using the official
// Google Generative AI SDK. One handler is bound to one model ID; the
// application holds separate handlers for the chat and image models.
type GeminiHandler struct {
	options llm.ApiHandlerOptions
	client  *genai.Client
	logger  *log.Logger
}

// NewGeminiHandler creates a new Gemini handler using the official Google SDK
func NewGeminiHandler(options llm.ApiHandlerOptions) *GeminiHandler {
	return &GeminiHandler{
		options: options,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "gemini"}),
		// Client is created lazily on first use with the API key
	}
}

func (h *GeminiHandler) ensureClient(ctx context.Context) error {
	if h.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  h.options.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	h.client = client
	return nil
}

// convertMessages converts conversation messages to Gemini contents. Image
// blocks with an undecodable payload are dropped with a warning; the rest of
// the message survives.
func (h *GeminiHandler) convertMessages(messages []llm.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		var parts []*genai.Part
		for _, block := range msg.Content {
			switch b := block.(type) {
			case llm.TextBlock:
				parts = append(parts, &genai.Part{Text: b.Text})
			case llm.ImageBlock:
				data, err := base64.StdEncoding.DecodeString(b.Source.Data)
				if err != nil {
					h.logger.Warn("dropping undecodable image block", "error", err)
					continue
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{
						MIMEType: b.Source.MediaType,
						Data:     data,
					},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// CreateMessage sends the conversation to Gemini and returns a streaming response
func (h *GeminiHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	if err := h.ensureClient(ctx); err != nil {
		return nil, err
	}

	contents := h.convertMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.7)),
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	iter := h.client.Models.GenerateContentStream(ctx, h.options.ModelID, contents, config)

	responseChan := make(chan llm.ApiStreamChunk, 100)

	go func() {
		defer close(responseChan)

		for result, err := range iter {
			if err != nil {
				responseChan <- llm.ApiStreamErrorChunk{Err: err}
				return
			}

			if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
				for _, part := range result.Candidates[0].Content.Parts {
					if part.Text != "" {
						responseChan <- llm.ApiStreamTextChunk{Text: part.Text}
					}
				}
			}

			if result.UsageMetadata != nil {
				responseChan <- llm.ApiStreamUsageChunk{
					InputTokens:  int(result.UsageMetadata.PromptTokenCount),
					OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
				}
			}
		}
	}()

	return responseChan, nil
}

// GenerateContent performs a single-shot generation call. The first inline
// image part wins when the bound model returns one; otherwise all text parts
// are concatenated.
func (h *GeminiHandler) GenerateContent(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	if err := h.ensureClient(ctx); err != nil {
		return nil, err
	}

	var parts []*genai.Part
	if req.Image != nil {
		data, err := base64.StdEncoding.DecodeString(req.Image.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline image: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MediaType,
				Data:     data,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := h.client.Models.GenerateContent(ctx, h.options.ModelID, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	result := &llm.GenerateResult{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && result.Image == nil {
				result.Image = &llm.ImageSource{
					Type:      "base64",
					MediaType: part.InlineData.MIMEType,
					Data:      base64.StdEncoding.EncodeToString(part.InlineData.Data),
				}
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.Text == "" && result.Image == nil {
		return nil, fmt.Errorf("no usable payload in response")
	}
	return result, nil
}
