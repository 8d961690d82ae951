package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAnalysis() *core.FullAnalysis {
	return &core.FullAnalysis{
		Address: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
		RiskAnalysis: &core.RiskReport{
			RiskScore:       72,
			RiskLevel:       core.RiskLevelHigh,
			RiskExplanation: "Several high-risk signals were found.",
		},
		UserProfile: &core.ProfileReport{ClusterName: "High-Frequency Trader"},
	}
}

func newTestNarrator(t *testing.T, handler http.HandlerFunc) *Narrator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	logger := zap.NewNop()
	return NewNarrator(openai.NewClientWithConfig(cfg), "gpt-4o-mini", 256, 0.2, 1, 4096, logger, utils.NewTextProcessor(logger))
}

func TestNarrate(t *testing.T) {
	var got openai.ChatCompletionRequest
	n := newTestNarrator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "  This address is high risk.  "}},
			},
		})
	})

	narrative, err := n.Narrate(context.Background(), testAnalysis())
	require.NoError(t, err)
	assert.Equal(t, "This address is high risk.", narrative.Text)
	assert.Equal(t, "gpt-4o-mini", narrative.Model)
	assert.False(t, narrative.GeneratedAt.IsZero())

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Contains(t, got.Messages[1].Content, "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	assert.Contains(t, got.Messages[1].Content, "High-Frequency Trader")
}

func TestNarrateEmptyChoices(t *testing.T) {
	n := newTestNarrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "chatcmpl-2"})
	})

	_, err := n.Narrate(context.Background(), testAnalysis())
	assert.Error(t, err)
}

func TestNarrateAPIError(t *testing.T) {
	n := newTestNarrator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`, http.StatusTooManyRequests)
	})

	_, err := n.Narrate(context.Background(), testAnalysis())
	assert.Error(t, err)
}
