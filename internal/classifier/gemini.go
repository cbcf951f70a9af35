package classifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

// GeminiClient calls the Gemini API with a JSON response schema.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures GeminiClient. BaseURL overrides the API endpoint
// and is empty in production.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	HTTPTimeout time.Duration
}

// NewGeminiClient builds a client for the Gemini developer API.
// HTTPTimeout bounds a single call at the transport level; it is the only
// thing that ends a call the caller has already stopped waiting for.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing classifier api key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		break
	}
	return sb.String(), nil
}

func resultSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"archetype":           str,
			"description":         str,
			"traits":              {Type: genai.TypeArray, Items: str},
			"contextWhyItMatters": str,
			"stats": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"growthFocus":     num,
					"riskTolerance":   {Type: genai.TypeString, Enum: []string{"Low", "Medium", "High"}},
					"dataDrivenScore": num,
				},
			},
			"similarityPercentage": num,
		},
		Required: []string{"archetype", "description", "traits", "contextWhyItMatters", "stats", "similarityPercentage"},
	}
}
