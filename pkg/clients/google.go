package clients

import (
	"context"
	"errors"
	"os"

	"github.com/tmc/langchaingo/llms/googleai"
)

// Default model identifiers for the three loop roles. Query writing
// uses the fast model; reflection and answer writing use the pro model.
const (
	DefaultQueryModel     = "gemini-3-flash-preview"
	DefaultReasoningModel = "gemini-3-pro-preview"
)

// GoogleAI constructs a langchaingo client for the given Google AI
// model. Falls back to the GOOGLE_API_KEY environment variable when no
// key is passed.
// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models.
func GoogleAI(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("google api key is not set")
	}
	if model == "" {
		model = DefaultQueryModel
	}

	return googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
}
