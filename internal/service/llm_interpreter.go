package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rentsearch/internal/config"
	"rentsearch/internal/model"
	"rentsearch/internal/utils"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const interpretPrompt = `You are a rental search assistant. Parse the user's natural language query into structured filters.

Extract the following information if present:
- location: neighbourhood, city or landmark the user wants to live in or near (string)
- max_price: maximum monthly rent (number)
- bedrooms: number of bedrooms (integer, "2BHK" = 2, "studio" = 0)
- bathrooms: number of bathrooms (integer)
- amenities: array of requested amenities (e.g., ["parking", "gym", "balcony"])
- free_text: the remaining descriptive words after removing the location and price phrases (string)

Important rules:
- Respond ONLY with valid JSON
- If a field is not mentioned, omit it
- For prices: "20k" = 20000, "$1,800" = 1800
- Only the upper bound of a price range is used
- Keep words like "furnished", "quiet" or "2BHK" in free_text

Examples:
Query: "2BHK furnished near Jersey City under $2000"
Response: {"location": "Jersey City", "max_price": 2000, "bedrooms": 2, "free_text": "2BHK furnished"}

Query: "pet friendly studio with parking in Hoboken"
Response: {"location": "Hoboken", "bedrooms": 0, "amenities": ["pet friendly", "parking"], "free_text": "pet friendly studio with parking"}

Query: "3 bed 2 bath house for 25k"
Response: {"max_price": 25000, "bedrooms": 3, "bathrooms": 2, "free_text": "3 bed 2 bath house"}`

const maxRooms = 20

// interpretResponse is the JSON shape the model is asked to produce
type interpretResponse struct {
	Location  *string  `json:"location,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	Bedrooms  *int     `json:"bedrooms,omitempty"`
	Bathrooms *int     `json:"bathrooms,omitempty"`
	Amenities []string `json:"amenities,omitempty"`
	FreeText  *string  `json:"free_text,omitempty"`
}

// LLMInterpreter extracts constraints with an OpenAI-compatible chat model
type LLMInterpreter struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// NewLLMInterpreter creates an interpreter backed by the configured chat model
func NewLLMInterpreter(cfg config.OpenAIConfig) (*LLMInterpreter, error) {
	if !cfg.Enabled {
		return nil, errors.New("OpenAI API is not enabled")
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.APIBase),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return newLLMInterpreter(client, cfg.ChatTemperature), nil
}

func newLLMInterpreter(client llms.Model, temperature float64) *LLMInterpreter {
	return &LLMInterpreter{
		client:      client,
		temperature: temperature,
		logger:      slog.Default().With("component", "llm-interpreter"),
	}
}

func (l *LLMInterpreter) Name() string { return "llm" }

// Extract implements TextInterpreter
func (l *LLMInterpreter) Extract(ctx context.Context, raw string) (*model.ParsedQuery, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(interpretPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(raw)},
		},
	}

	resp, err := l.client.GenerateContent(ctx, content, llms.WithTemperature(l.temperature), llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from model")
	}

	var result interpretResponse
	if err := utils.ParseAIJSON(resp.Choices[0].Content, &result); err != nil {
		l.logger.Debug("unparseable model response", "content", resp.Choices[0].Content)
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if err := validateInterpretResponse(&result); err != nil {
		return nil, fmt.Errorf("model response validation failed: %w", err)
	}

	q := &model.ParsedQuery{
		Location:  result.Location,
		MaxPrice:  result.MaxPrice,
		Bedrooms:  result.Bedrooms,
		Bathrooms: result.Bathrooms,
		Amenities: result.Amenities,
		FreeText:  raw,
	}
	if result.FreeText != nil {
		q.FreeText = *result.FreeText
	}
	return q, nil
}

// validateInterpretResponse rejects values outside what a listing can carry
func validateInterpretResponse(resp *interpretResponse) error {
	if resp.MaxPrice != nil && *resp.MaxPrice < 0 {
		return fmt.Errorf("max_price must be non-negative, got %v", *resp.MaxPrice)
	}
	if resp.Bedrooms != nil && (*resp.Bedrooms < 0 || *resp.Bedrooms > maxRooms) {
		return fmt.Errorf("bedrooms must be between 0 and %d", maxRooms)
	}
	if resp.Bathrooms != nil && (*resp.Bathrooms < 0 || *resp.Bathrooms > maxRooms) {
		return fmt.Errorf("bathrooms must be between 0 and %d", maxRooms)
	}
	return nil
}
