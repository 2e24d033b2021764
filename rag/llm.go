package rag

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// LLMConfig points at one OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Embedder turns text into vectors via the /embeddings API.
type Embedder struct {
	c     *resty.Client
	model string
}

// NewEmbedder builds an embeddings client.
func NewEmbedder(conf LLMConfig) *Embedder {
	c := resty.New().SetBaseURL(conf.BaseURL)
	if conf.APIKey != "" {
		c.SetAuthToken(conf.APIKey)
	}
	return &Embedder{c: c, model: conf.Model}
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embeddingResponse
	resp, err := e.c.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": e.model, "input": texts}).
		SetResult(&out).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("rag: embeddings request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rag: embeddings status %s: %s", resp.Status(), resp.String())
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rag: embeddings: %s", out.Error.Message)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("rag: embeddings: got %d vectors for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat talks to the /chat/completions API.
type Chat struct {
	c     *resty.Client
	model string
}

// NewChat builds a chat completions client.
func NewChat(conf LLMConfig) *Chat {
	c := resty.New().SetBaseURL(conf.BaseURL)
	if conf.APIKey != "" {
		c.SetAuthToken(conf.APIKey)
	}
	return &Chat{c: c, model: conf.Model}
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

// Complete returns the assistant's reply to the conversation.
func (c *Chat) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var out chatResponse
	resp, err := c.c.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": c.model, "messages": messages}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("rag: chat request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("rag: chat status %s: %s", resp.Status(), resp.String())
	}
	if out.Error != nil {
		return "", fmt.Errorf("rag: chat: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("rag: chat: empty response")
	}
	return out.Choices[0].Message.Content, nil
}
