package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "todo", 10, "todo"},
		{"exact", "todo", 4, "todo"},
		{"ascii cut", "todo app", 4, "todo..."},
		{"multibyte cut", "héllo wörld", 2, "hé..."},
		{"emoji cut", "✅✅✅", 1, "✅..."},
		{"zero", "abc", 0, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
