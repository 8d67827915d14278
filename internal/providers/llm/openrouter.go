package llm

import "github.com/corvid-labs/hindsight/internal/core"

type OpenRouter struct {
	*OpenAICompatible
}

func NewOpenRouter(apiKey, model string, temperature float64) *OpenRouter {
	return &OpenRouter{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:     "https://openrouter.ai/api",
			APIKey:      apiKey,
			Model:       model,
			AuthHeader:  "Authorization",
			AuthPrefix:  "Bearer ",
			Temperature: temperature,
			ExtraHeaders: map[string]string{
				"X-Title": core.Name,
			},
		}),
	}
}
