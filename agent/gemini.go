package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/raine/exterior-stylist/imageref"
)

const (
	geminiAgentModel = "gemini-2.5-flash"
	geminiImageModel = "gemini-2.5-flash-image-preview"
)

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

// GeminiAgent implements Agent and ImageGenerator on Google's Gemini
// API. Unlike the OpenAI path, generated images arrive inline in the
// response rather than as short-lived URLs.
type GeminiAgent struct {
	client   *genai.Client
	resolver *imageref.Resolver
}

// NewGeminiAgent creates a Gemini-backed agent. It uses the
// GEMINI_API_KEY environment variable for authentication. The resolver
// is needed because Gemini takes image bytes inline, so remote house
// references are fetched before the call.
func NewGeminiAgent(ctx context.Context, resolver *imageref.Resolver) (*GeminiAgent, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAgent{client: client, resolver: resolver}, nil
}

// AnalyzeHouse implements the Agent interface using Gemini.
func (g *GeminiAgent) AnalyzeHouse(ctx context.Context, house imageref.Ref) (*Reply, error) {
	return g.generate(ctx, geminiAgentModel, analyzeHouseInstructions, house, nil)
}

// ComposeScene implements the Agent interface using the image-capable
// Gemini model, which returns the composite as an inline image part.
func (g *GeminiAgent) ComposeScene(ctx context.Context, house imageref.Ref, s *ProductSuggestion) (*Reply, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	return g.generate(ctx, geminiImageModel, composeScenePrompt(s), house, config)
}

// GenerateImage implements ImageGenerator. The result is already in the
// embedded form, so pinning it is a no-op.
func (g *GeminiAgent) GenerateImage(ctx context.Context, prompt string) (imageref.Ref, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	reply, err := g.generate(ctx, geminiImageModel, prompt, imageref.Ref{}, config)
	if err != nil {
		return imageref.Ref{}, err
	}
	if len(reply.Images) == 0 {
		return imageref.Ref{}, fmt.Errorf("no image from Gemini")
	}
	return reply.Images[0], nil
}

func (g *GeminiAgent) generate(ctx context.Context, model, prompt string, img imageref.Ref, config *genai.GenerateContentConfig) (*Reply, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if !img.IsZero() {
		pinned, err := g.resolver.Resolve(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("fetching image for Gemini: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: pinned.Data, MIMEType: pinned.MIME},
		})
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	reply := &Reply{Text: result.Text()}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			reply.Images = append(reply.Images, imageref.FromBytes(part.InlineData.Data, part.InlineData.MIMEType))
		}
	}

	if result.UsageMetadata != nil {
		inputTokens := int64(result.UsageMetadata.PromptTokenCount)
		outputTokens := int64(result.UsageMetadata.CandidatesTokenCount)
		log.Info().
			Str("model", model).
			Int64("inputTokens", inputTokens).
			Int64("outputTokens", outputTokens).
			Float64("costUSD", calculateGeminiCost(inputTokens, outputTokens)).
			Int("inlineImages", len(reply.Images)).
			Msg("agent llm call")
	}

	return reply, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * geminiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * geminiOutputPricePerMillion
	return inputCost + outputCost
}
