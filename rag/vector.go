package rag

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// VectorConfig points at the Qdrant instance.
type VectorConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Point is one embedded chunk with its payload.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Document is one retrieval hit.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// VectorStore is a Qdrant HTTP client covering the collection and
// point operations the pipeline needs.
type VectorStore struct {
	c *resty.Client
}

// NewVectorStore builds a Qdrant client.
func NewVectorStore(conf VectorConfig) *VectorStore {
	c := resty.New().SetBaseURL(conf.URL)
	if conf.APIKey != "" {
		c.SetHeader("api-key", conf.APIKey)
	}
	return &VectorStore{c: c}
}

type qdrantStatus struct {
	Status any `json:"status"`
}

// DeleteCollection drops a collection. Deleting a missing collection
// is not an error.
func (v *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	resp, err := v.c.R().SetContext(ctx).Delete("/collections/" + name)
	if err != nil {
		return fmt.Errorf("rag: delete collection %s: %w", name, err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("rag: delete collection %s: %s", name, resp.Status())
	}
	return nil
}

// EnsureCollection creates a cosine-distance collection of the given
// vector size.
func (v *VectorStore) EnsureCollection(ctx context.Context, name string, size int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}
	resp, err := v.c.R().SetContext(ctx).SetBody(body).Put("/collections/" + name)
	if err != nil {
		return fmt.Errorf("rag: create collection %s: %w", name, err)
	}
	if resp.IsError() {
		return fmt.Errorf("rag: create collection %s: %s: %s", name, resp.Status(), resp.String())
	}
	return nil
}

// UpsertPoints writes a batch of points into the collection.
func (v *VectorStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	resp, err := v.c.R().
		SetContext(ctx).
		SetBody(map[string]any{"points": points}).
		Put("/collections/" + collection + "/points")
	if err != nil {
		return fmt.Errorf("rag: upsert %s: %w", collection, err)
	}
	if resp.IsError() {
		return fmt.Errorf("rag: upsert %s: %s: %s", collection, resp.Status(), resp.String())
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs a similarity query and maps the hits back to documents.
// The chunk text travels in the payload under "text".
func (v *VectorStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Document, error) {
	var out searchResponse
	resp, err := v.c.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"vector":       vector,
			"limit":        topK,
			"with_payload": true,
		}).
		SetResult(&out).
		Post("/collections/" + collection + "/points/search")
	if err != nil {
		return nil, fmt.Errorf("rag: search %s: %w", collection, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rag: search %s: %s: %s", collection, resp.Status(), resp.String())
	}

	docs := make([]Document, 0, len(out.Result))
	for _, hit := range out.Result {
		doc := Document{Score: hit.Score, Metadata: hit.Payload}
		if text, ok := hit.Payload["text"].(string); ok {
			doc.Text = text
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
