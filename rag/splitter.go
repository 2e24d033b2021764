package rag

import "strings"

const (
	// DefaultChunkSize is the token budget per chunk.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is the token overlap between adjacent chunks.
	DefaultChunkOverlap = 20
)

// SplitText cuts a document into whitespace-token chunks of at most
// chunkSize tokens, with the last overlap tokens of each chunk
// repeated at the head of the next. Deterministic: the same input
// always yields the same chunks.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) <= chunkSize {
		return []string{strings.Join(tokens, " ")}
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
