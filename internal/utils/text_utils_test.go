package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "no limit", tp.TruncateText("no limit", 0))

	out := tp.TruncateText("abcdefghij", 4)
	assert.True(t, strings.HasPrefix(out, "abcd"))
	assert.True(t, strings.HasSuffix(out, truncationMarker))
}

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// "é" is two bytes; cutting at 2 would split it
	out := tp.TruncateText("aéb", 2)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, "a\n"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "valid", tp.SanitizeUTF8("valid"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.ProcessText("abc\xffdef", 5)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, "abc\n"))
}

func TestCleanResponse(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  This address looks safe.  \n", "This address looks safe."},
		{"fenced", "```text\nThis address looks safe.\n```", "This address looks safe."},
		{"bare fence", "```\nRisky.\n```", "Risky."},
		{"quoted", `"Risky address."`, "Risky address."},
		{"invalid utf8", "Risky\xff address.", "Risky address."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.CleanResponse(tt.in))
		})
	}
}
