package rag

import (
	"context"
	"fmt"
	"strings"
)

const (
	// ConversationTopK is the number of chunks fed into the prompt.
	ConversationTopK = 5
	// RecallTopK is the number of chunks a recall request returns.
	RecallTopK = 3
)

// Chain ties retrieval and chat completion together.
type Chain struct {
	store *VectorStore
	embed *Embedder
	chat  *Chat
}

// NewChain wires the retrieval chain.
func NewChain(store *VectorStore, embed *Embedder, chat *Chat) *Chain {
	return &Chain{store: store, embed: embed, chat: chat}
}

// Recall embeds the question and returns the closest chunks.
func (c *Chain) Recall(ctx context.Context, collection, question string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = RecallTopK
	}
	vectors, err := c.embed.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	return c.store.Search(ctx, collection, vectors[0], topK)
}

// Answer retrieves context for the question and asks the chat model.
func (c *Chain) Answer(ctx context.Context, collection, question string) (string, error) {
	docs, err := c.Recall(ctx, collection, question, ConversationTopK)
	if err != nil {
		return "", err
	}

	prompt := buildPrompt(docs, question)
	return c.chat.Complete(ctx, []ChatMessage{
		{Role: "user", Content: prompt},
	})
}

// buildPrompt renders the retrieved chunks plus the question.
func buildPrompt(docs []Document, question string) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using only the context below.\n\nContext:\n")
	for _, d := range docs {
		sb.WriteString(d.Text)
		sb.WriteString("\n---\n")
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", question)
	return sb.String()
}
