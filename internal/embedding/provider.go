package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	// ProviderNone disables server-side embedding; callers supply vectors.
	ProviderNone = "none"
)

type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	// Dimensions only applies to the mock provider.
	Dimensions int
}

// NewClient creates an embedding client for the provider and returns the model
// name to record on embedded interactions.
func NewClient(opts Options) (domain.EmbeddingClient, string, error) {
	switch opts.Provider {
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(opts.APIKey, opts.BaseURL), OpenAIModelName, nil

	case ProviderMock:
		return NewMockClientWithDimension(opts.Dimensions), MockModelName, nil

	case ProviderNone:
		return nil, "", nil

	default:
		return nil, "", fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock, none)", opts.Provider)
	}
}
