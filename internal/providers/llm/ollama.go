package llm

type Ollama struct {
	*OpenAICompatible
}

func NewOllama(baseURL, apiKey, model string, temperature float64) *Ollama {
	return &Ollama{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:     baseURL,
			APIKey:      apiKey,
			Model:       model,
			AuthHeader:  "Authorization",
			AuthPrefix:  "Bearer ",
			Temperature: temperature,
		}),
	}
}
