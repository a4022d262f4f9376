package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenCounter(t *testing.T) {
	for _, model := range []string{"gpt-4", "gpt-4o-mini", "o3", "claude-sonnet-4-5", "llama3"} {
		counter, err := NewTokenCounter(model)
		require.NoError(t, err, model)
		assert.NotNil(t, counter)
	}
}

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	tests := []struct {
		text     string
		min, max int
	}{
		{"", 0, 0},
		{"Hello", 1, 2},
		{"Hello world", 2, 3},
		{"This is a longer sentence with more words.", 8, 12},
		{strings.Repeat("word ", 100), 90, 110},
	}
	for _, tt := range tests {
		got := counter.CountTokens(tt.text)
		assert.GreaterOrEqual(t, got, tt.min, tt.text)
		assert.LessOrEqual(t, got, tt.max, tt.text)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	short := "fits easily"
	assert.Equal(t, short, counter.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("word ", 500)
	cut := counter.TruncateToTokenLimit(long, 50)
	assert.True(t, strings.HasSuffix(cut, TruncationMarker))
	assert.LessOrEqual(t, counter.CountTokens(strings.TrimSuffix(cut, TruncationMarker)), 50)
	assert.True(t, strings.HasPrefix(long, strings.TrimSuffix(cut, TruncationMarker)))

	assert.Equal(t, "", counter.TruncateToTokenLimit(long, 0))
}

func TestNilCounterEstimates(t *testing.T) {
	var counter *TokenCounter
	assert.Equal(t, 2, counter.CountTokens("12345678"))
	assert.Equal(t, "1234"+TruncationMarker, counter.TruncateToTokenLimit("12345678", 1))
}

func TestSimpleHelpers(t *testing.T) {
	assert.Positive(t, CountTokensSimple("hello world"))
	assert.Equal(t, "hello", TruncateSimple("hello", 10))
}
