// Package markdown renders assistant replies for the terminal. Replies are
// markdown by convention; stories additionally get their parsed structure
// laid out with a title line and a numbered takeaway list.
package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/heartguard/heartguard/internal/narrative"
)

// RendererConfig holds configuration for markdown rendering.
type RendererConfig struct {
	Width    int
	WordWrap bool
}

// DefaultConfig returns a default renderer configuration.
func DefaultConfig() *RendererConfig {
	return &RendererConfig{
		Width:    80,
		WordWrap: true,
	}
}

// ChatConfig returns a configuration sized for chat messages.
func ChatConfig() *RendererConfig {
	return &RendererConfig{
		Width:    100,
		WordWrap: true,
	}
}

// Renderer wraps glamour with chat-oriented pre and post processing.
type Renderer struct {
	glamourRenderer *glamour.TermRenderer
	config          *RendererConfig
}

// NewRenderer creates a new markdown renderer with the given configuration.
func NewRenderer(config *RendererConfig) (*Renderer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	glamourRenderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(config.Width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create glamour renderer: %w", err)
	}

	return &Renderer{
		glamourRenderer: glamourRenderer,
		config:          config,
	}, nil
}

// NewChatRenderer creates a renderer sized for chat messages.
func NewChatRenderer() (*Renderer, error) {
	return NewRenderer(ChatConfig())
}

// Render renders markdown content to styled terminal output.
func (r *Renderer) Render(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}

	processed := r.preprocessMarkdown(markdown)

	rendered, err := r.glamourRenderer.Render(processed)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return r.postprocessOutput(rendered), nil
}

// RenderNarrative lays out a parsed story: title heading, body, then the
// takeaways as a numbered list under the original label.
func (r *Renderer) RenderNarrative(n narrative.Narrative) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	b.WriteString(n.Body)
	b.WriteString("\n\n**故事里的小道理：**\n\n")
	for i, t := range n.Takeaways {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return r.Render(b.String())
}

// preprocessMarkdown trims trailing whitespace without disturbing fenced
// code blocks.
func (r *Renderer) preprocessMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var processed []string

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			processed = append(processed, line)
		} else if strings.TrimSpace(line) == "" {
			processed = append(processed, "")
		} else {
			processed = append(processed, strings.TrimRight(line, " \t"))
		}
	}

	return strings.Join(processed, "\n")
}

// postprocessOutput collapses runs of blank lines to at most one.
func (r *Renderer) postprocessOutput(rendered string) string {
	lines := strings.Split(rendered, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, line)
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
