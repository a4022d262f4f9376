// Package utils provides tiktoken-based token counting.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts and trims text in model tokens. Every provider is
// approximated with the cl100k (GPT-4) encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. The model name selects the encoding
// where tiktoken knows it and falls back to GPT-4 otherwise.
func NewTokenCounter(model string) (*TokenCounter, error) {
	tikModel := tokenizer.GPT4
	if strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") {
		tikModel = tokenizer.GPT4o
	}

	codec, err := tokenizer.ForModel(tikModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text, or a 4-chars-per-token
// estimate when the codec fails.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit cuts text to at most limit tokens on a token boundary and
// appends a marker when anything was dropped.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if tc == nil || tc.codec == nil {
		if len(text) <= limit*4 {
			return text
		}
		return text[:limit*4] + TruncationMarker
	}

	ids, _, err := tc.codec.Encode(text)
	if err != nil || len(ids) <= limit {
		return text
	}
	head, err := tc.codec.Decode(ids[:limit])
	if err != nil {
		return text
	}
	return head + TruncationMarker
}

// TruncationMarker ends text that was cut by TruncateToTokenLimit.
const TruncationMarker = "\n... [truncated]"

//nolint:gochecknoglobals // shared codec; building one parses the BPE tables
var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

func sharedCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		counter, err := NewTokenCounter("gpt-4")
		if err == nil {
			defaultCounter = counter
		}
	})
	return defaultCounter
}

// CountTokensSimple counts tokens with the shared GPT-4 codec.
func CountTokensSimple(text string) int {
	return sharedCounter().CountTokens(text)
}

// TruncateSimple trims text with the shared GPT-4 codec.
func TruncateSimple(text string, limit int) string {
	return sharedCounter().TruncateToTokenLimit(text, limit)
}
