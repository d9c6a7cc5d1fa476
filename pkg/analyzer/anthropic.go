package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// AnthropicAnalyzer implements the Analyzer interface for Claude models.
type AnthropicAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicAnalyzer creates a new Anthropic analyzer.
func NewAnthropicAnalyzer(apiKey, model string) (*AnthropicAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAnalyzer{client: client, model: model}, nil
}

// Name returns the analyzer identifier.
func (a *AnthropicAnalyzer) Name() string {
	return "anthropic"
}

// Analyze sends the image and takeover prompt to Claude.
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, img []byte, mimeType string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	encoded := base64.StdEncoding.EncodeToString(img)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(AnalysisPrompt(hint)),
			),
		},
	})
	if err != nil {
		return nil, diagnosis.Usage{}, wrapAnthropicError(err)
	}

	text, usage := anthropicResponse(resp)
	rep, perr := ParseReport(text)
	if perr != nil {
		log.Printf("anthropic: diagnosis reply not parseable, keeping raw text: %v", perr)
		rep = UnstructuredReport(text)
	}
	return rep, usage, nil
}

// Chat sends a text prompt to Claude and returns the reply.
func (a *AnthropicAnalyzer) Chat(ctx context.Context, prompt string) (string, diagnosis.Usage, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", diagnosis.Usage{}, wrapAnthropicError(err)
	}

	text, usage := anthropicResponse(resp)
	return text, usage, nil
}

func anthropicResponse(resp *anthropic.Message) (string, diagnosis.Usage) {
	var content string
	var usage diagnosis.Usage
	if resp == nil {
		return "", usage
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	usage = diagnosis.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}.Normalize()
	return content, usage
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return upstreamError(apiErr.StatusCode, fmt.Errorf("anthropic API error: %w", err))
	}
	return &UpstreamError{Err: fmt.Errorf("anthropic API error: %w", err)}
}

var _ Analyzer = (*AnthropicAnalyzer)(nil)
