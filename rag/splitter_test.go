package rag

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("one two three", 512, 20)
	if len(chunks) != 1 || chunks[0] != "one two three" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if got := SplitText("   ", 512, 20); got != nil {
		t.Fatalf("chunks = %v, want nil", got)
	}
}

func TestSplitTextOverlap(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	chunks := SplitText(strings.Join(words, " "), 10, 3)

	if len(chunks) != 4 {
		t.Fatalf("got %d chunks: %v", len(chunks), chunks)
	}
	// Step is 7: chunk 2 starts at w7 and repeats the last 3 tokens.
	if !strings.HasPrefix(chunks[1], "w7 w8 w9") {
		t.Fatalf("chunk 2 = %q", chunks[1])
	}
	if !strings.HasSuffix(chunks[0], "w7 w8 w9") {
		t.Fatalf("chunk 1 = %q", chunks[0])
	}
	if !strings.HasSuffix(chunks[3], "w24") {
		t.Fatalf("last chunk = %q", chunks[3])
	}
}

func TestSplitTextDeterministic(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 300)
	a := SplitText(text, 512, 20)
	b := SplitText(text, 512, 20)
	if len(a) != len(b) {
		t.Fatal("chunk counts differ across runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}
