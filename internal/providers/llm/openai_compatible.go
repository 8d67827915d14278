package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/corvid-labs/hindsight/internal/core"
)

type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	temperature  float64
	extraHeaders map[string]string
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	Temperature  float64
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		temperature:  cfg.Temperature,
		extraHeaders: cfg.ExtraHeaders,
	}
}

func (o *OpenAICompatible) Complete(ctx context.Context, system string, messages []core.Message) (string, error) {
	payload := map[string]any{
		"model":       o.model,
		"messages":    buildMessages(system, messages),
		"temperature": o.temperature,
	}

	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, headers)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	return parseCompletionResponse(resp)
}

func buildMessages(system string, messages []core.Message) []core.Message {
	out := make([]core.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, core.Message{Role: core.RoleSystem, Content: system})
	}
	return append(out, messages...)
}

func parseCompletionResponse(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", core.ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: http %d: %s", core.ErrProvider, resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%w: decode: %v", core.ErrProvider, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices: %s", core.ErrProvider, string(data))
	}
	return result.Choices[0].Message.Content, nil
}
