package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Narrator writes analysis summaries with Google Gemini
type Narrator struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxPromptSize int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new Gemini narrator
func NewNarrator(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxPromptSize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Narrator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Narrator{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxPromptSize: maxPromptSize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (n *Narrator) Close() error {
	if n.client != nil {
		return n.client.Close()
	}
	return nil
}

// Narrate summarizes a full analysis
func (n *Narrator) Narrate(ctx context.Context, analysis *core.FullAnalysis) (*core.Narrative, error) {
	prompt := n.textProcessor.ProcessText(core.NarrativePrompt(analysis), n.maxPromptSize)

	resp, err := n.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text := n.textProcessor.CleanResponse(responseText(resp))
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	n.logger.Debug("Narrative generated",
		zap.String("address", analysis.Address),
		zap.String("model", n.modelName))

	return &core.Narrative{
		Text:        text,
		Model:       n.modelName,
		GeneratedAt: time.Now(),
	}, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
