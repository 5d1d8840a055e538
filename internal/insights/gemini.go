package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"example.com/smartroutine/internal/domain"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator asks a Gemini model for findings using a JSON response schema.
type GeminiGenerator struct {
	models contentGenerator
	model  string
}

// NewGeminiGenerator connects to the Gemini API with apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiGenerator(client.Models, model), nil
}

func newGeminiGenerator(models contentGenerator, model string) *GeminiGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{models: models, model: model}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Findings, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("%w: render prompt: %v", domain.ErrGeneration, err)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}
	return decodeFindings(resp.Text())
}

type findingsEnvelope struct {
	Insights *Findings `json:"insights"`
}

func decodeFindings(text string) (*Findings, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}
	var envelope findingsEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGeneration, err)
	}
	if envelope.Insights == nil {
		return nil, fmt.Errorf("%w: response has no insights", domain.ErrGeneration)
	}
	if err := envelope.Insights.Validate(); err != nil {
		return nil, err
	}
	return envelope.Insights, nil
}

func responseSchema() *genai.Schema {
	item := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeObject,
			Description: description,
			Properties: map[string]*genai.Schema{
				"title":       {Type: genai.TypeString, Description: "The title of the insight."},
				"description": {Type: genai.TypeString, Description: "The detailed description of the insight provided."},
			},
			Required: []string{"title", "description"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"insights": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"consistency": item("Insight about the user's consistency in performing activities."),
					"focus":       item("Insight about the user's study/work focus patterns."),
					"rest":        item("Insight about the user's rest and break patterns."),
				},
				Required: []string{"consistency", "focus", "rest"},
			},
		},
		Required: []string{"insights"},
	}
}
