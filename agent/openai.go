package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	"github.com/raine/exterior-stylist/imageref"
)

const openaiAgentModel = openai.ChatModelGPT4o

// GPT-4o pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 2.50
	openaiOutputPricePerMillion = 10.00
)

// OpenAIAgent implements Agent and ImageGenerator on OpenAI's chat
// completions and DALL-E image APIs.
type OpenAIAgent struct {
	client openai.Client
}

// NewOpenAIAgent creates an OpenAI-backed agent. It uses the
// OPENAI_API_KEY environment variable for authentication.
func NewOpenAIAgent() *OpenAIAgent {
	return &OpenAIAgent{client: openai.NewClient()}
}

// AnalyzeHouse implements the Agent interface using GPT-4o vision.
func (o *OpenAIAgent) AnalyzeHouse(ctx context.Context, house imageref.Ref) (*Reply, error) {
	return o.vision(ctx, analyzeHouseInstructions, house)
}

// ComposeScene implements the Agent interface using GPT-4o vision.
func (o *OpenAIAgent) ComposeScene(ctx context.Context, house imageref.Ref, s *ProductSuggestion) (*Reply, error) {
	return o.vision(ctx, composeScenePrompt(s), house)
}

func (o *OpenAIAgent) vision(ctx context.Context, prompt string, img imageref.Ref) (*Reply, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openaiAgentModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURL(),
				}),
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	log.Info().
		Str("model", string(openaiAgentModel)).
		Int64("inputTokens", resp.Usage.PromptTokens).
		Int64("outputTokens", resp.Usage.CompletionTokens).
		Float64("costUSD", calculateOpenAICost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)).
		Msg("agent llm call")

	return &Reply{Text: resp.Choices[0].Message.Content}, nil
}

// GenerateImage implements ImageGenerator with DALL-E 3. The returned
// ref is a short-lived remote URL; callers pin it before responding.
func (o *OpenAIAgent) GenerateImage(ctx context.Context, prompt string) (imageref.Ref, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:   openai.ImageModelDallE3,
		Prompt:  prompt,
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize1024x1024,
		Quality: openai.ImageGenerateParamsQualityHD,
		Style:   openai.ImageGenerateParamsStyleNatural,
	})
	if err != nil {
		return imageref.Ref{}, fmt.Errorf("failed to generate image: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return imageref.Ref{}, fmt.Errorf("no image from OpenAI")
	}

	log.Info().Str("model", string(openai.ImageModelDallE3)).Msg("image generation call")
	return imageref.FromURL(resp.Data[0].URL), nil
}

func calculateOpenAICost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * openaiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * openaiOutputPricePerMillion
	return inputCost + outputCost
}
