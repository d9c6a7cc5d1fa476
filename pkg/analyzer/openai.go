package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAnalyzer implements the Analyzer interface for OpenAI models.
type OpenAIAnalyzer struct {
	client openai.Client
	model  string
}

// NewOpenAIAnalyzer creates a new OpenAI analyzer.
func NewOpenAIAnalyzer(apiKey, model string) (*OpenAIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAnalyzer{client: client, model: model}, nil
}

// Name returns the analyzer identifier.
func (a *OpenAIAnalyzer) Name() string {
	return "openai"
}

// Analyze sends the image and takeover prompt as a vision chat completion.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, img []byte, mimeType string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img))

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(AnalysisPrompt(hint)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		MaxCompletionTokens: openai.Int(1024),
	})
	if err != nil {
		return nil, diagnosis.Usage{}, wrapOpenAIError(err)
	}

	text, usage, err := openAIResponse(resp)
	if err != nil {
		return nil, usage, err
	}

	rep, perr := ParseReport(text)
	if perr != nil {
		log.Printf("openai: diagnosis reply not parseable, keeping raw text: %v", perr)
		rep = UnstructuredReport(text)
	}
	return rep, usage, nil
}

// Chat sends a text prompt to OpenAI and returns the reply.
func (a *OpenAIAnalyzer) Chat(ctx context.Context, prompt string) (string, diagnosis.Usage, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(1024),
	})
	if err != nil {
		return "", diagnosis.Usage{}, wrapOpenAIError(err)
	}
	return openAIResponse(resp)
}

func openAIResponse(resp *openai.ChatCompletion) (string, diagnosis.Usage, error) {
	var usage diagnosis.Usage
	if resp != nil {
		usage = diagnosis.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		}.Normalize()
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", usage, &UpstreamError{Err: fmt.Errorf("openai returned no choices")}
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return upstreamError(apiErr.StatusCode, fmt.Errorf("openai API error: %w", err))
	}
	return &UpstreamError{Err: fmt.Errorf("openai API error: %w", err)}
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)
