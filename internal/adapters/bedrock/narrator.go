package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/utils"
	"go.uber.org/zap"
)

// InvokeModelAPI is the part of the Bedrock runtime client the narrator uses
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Narrator writes analysis summaries with Amazon Bedrock
type Narrator struct {
	client        InvokeModelAPI
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxPromptSize int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNarrator creates a new Bedrock narrator
func NewNarrator(
	client InvokeModelAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxPromptSize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Narrator {
	return &Narrator{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxPromptSize: maxPromptSize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (n *Narrator) isAnthropicModel() bool {
	return strings.Contains(n.modelID, "anthropic")
}

func (n *Narrator) isAmazonTitanModel() bool {
	return strings.Contains(n.modelID, "amazon.titan")
}

// Narrate summarizes a full analysis
func (n *Narrator) Narrate(ctx context.Context, analysis *core.FullAnalysis) (*core.Narrative, error) {
	prompt := n.textProcessor.ProcessText(core.NarrativePrompt(analysis), n.maxPromptSize)

	payload, err := n.requestBody(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := n.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(n.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	raw, err := n.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	text := n.textProcessor.CleanResponse(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response from Bedrock model %s", n.modelID)
	}

	n.logger.Debug("Narrative generated",
		zap.String("address", analysis.Address),
		zap.String("model", n.modelID))

	return &core.Narrative{
		Text:        text,
		Model:       n.modelID,
		GeneratedAt: time.Now(),
	}, nil
}

func (n *Narrator) requestBody(prompt string) ([]byte, error) {
	switch {
	case n.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        n.maxTokens,
			"temperature":       n.temperature,
			"top_p":             n.topP,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		})
	case n.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": n.maxTokens,
				"temperature":   n.temperature,
				"topP":          n.topP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  n.maxTokens,
			"temperature": n.temperature,
			"top_p":       n.topP,
		})
	}
}

func (n *Narrator) responseText(body []byte) (string, error) {
	switch {
	case n.isAnthropicModel():
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil

	case n.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil

	default:
		var genericResp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, candidate := range []string{genericResp.Output, genericResp.Text, genericResp.Response, genericResp.Generation} {
			if candidate != "" {
				return candidate, nil
			}
		}
		return string(body), nil
	}
}
