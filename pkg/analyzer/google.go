package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
	"google.golang.org/genai"
)

// GoogleAnalyzer implements the Analyzer interface for Gemini models. This is
// the backend the original deployment ran takeovers against.
type GoogleAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGoogleAnalyzer creates a new Google Gemini analyzer.
func NewGoogleAnalyzer(apiKey, model string) (*GoogleAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAnalyzer{client: client, model: model}, nil
}

// Name returns the analyzer identifier.
func (a *GoogleAnalyzer) Name() string {
	return "google"
}

// Analyze sends the image and takeover prompt to Gemini and parses the
// structured diagnosis.
func (a *GoogleAnalyzer) Analyze(ctx context.Context, img []byte, mimeType string, hint Hint) (*diagnosis.Report, diagnosis.Usage, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(AnalysisPrompt(hint)),
		genai.NewPartFromBytes(img, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, diagnosis.Usage{}, wrapGoogleError(err)
	}

	text, usage, err := googleResponse(resp)
	if err != nil {
		return nil, usage, err
	}

	rep, perr := ParseReport(text)
	if perr != nil {
		log.Printf("google: diagnosis reply not parseable, keeping raw text: %v", perr)
		rep = UnstructuredReport(text)
	}
	return rep, usage, nil
}

// Chat sends a text prompt to Gemini and returns the reply.
func (a *GoogleAnalyzer) Chat(ctx context.Context, prompt string) (string, diagnosis.Usage, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopK:            genai.Ptr[float32](40),
		TopP:            genai.Ptr[float32](0.95),
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return "", diagnosis.Usage{}, wrapGoogleError(err)
	}
	return googleResponse(resp)
}

// googleResponse extracts reply text and billing-accurate usage.
func googleResponse(resp *genai.GenerateContentResponse) (string, diagnosis.Usage, error) {
	var usage diagnosis.Usage
	if resp != nil && resp.UsageMetadata != nil {
		usage = diagnosis.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}.Normalize()
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", usage, &UpstreamError{Err: fmt.Errorf("google returned no candidates")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}
	return content, usage, nil
}

func wrapGoogleError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return upstreamError(apiErr.Code, fmt.Errorf("google API error: %w", err))
	}
	return &UpstreamError{Err: fmt.Errorf("google API error: %w", err)}
}

var _ Analyzer = (*GoogleAnalyzer)(nil)
