package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Provider interface using Google Gemini.
type Gemini struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	expectedTitle string
}

// NewGemini creates a new Gemini extraction provider.
func NewGemini(ctx context.Context, apiKey, modelName, expectedTitle string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:        client,
		model:         client.GenerativeModel(modelName),
		expectedTitle: expectedTitle,
	}, nil
}

// Extract sends the receipt text with the extraction prompt and returns the
// model's raw response text. The caller is responsible for validation.
func (g *Gemini) Extract(ctx context.Context, receiptText string) (string, error) {
	prompt := fmt.Sprintf(extractionPrompt, g.expectedTitle, receiptText)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	return responseText(resp)
}

// responseText collects the text parts of the first candidate. Content is nil
// when the model blocks the response (safety filters), so it must be checked
// before touching Parts.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return text.String(), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
