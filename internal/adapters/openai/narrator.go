package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = "You are a blockchain compliance analyst. Respond only with the requested summary."

// Narrator writes analysis summaries with the OpenAI chat API
type Narrator struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxPromptSize int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new OpenAI narrator
func NewNarrator(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxPromptSize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Narrator {
	return &Narrator{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxPromptSize: maxPromptSize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Narrate summarizes a full analysis
func (n *Narrator) Narrate(ctx context.Context, analysis *core.FullAnalysis) (*core.Narrative, error) {
	prompt := n.textProcessor.ProcessText(core.NarrativePrompt(analysis), n.maxPromptSize)

	req := openai.ChatCompletionRequest{
		Model: n.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   n.maxTokens,
		Temperature: n.temperature,
		TopP:        n.topP,
	}

	resp, err := n.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	text := n.textProcessor.CleanResponse(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("blank narrative from OpenAI")
	}

	n.logger.Debug("Narrative generated",
		zap.String("address", analysis.Address),
		zap.String("model", n.modelName),
		zap.String("response_id", resp.ID))

	return &core.Narrative{
		Text:        text,
		Model:       n.modelName,
		GeneratedAt: time.Now(),
	}, nil
}
