package agent

import (
	"context"

	"github.com/raine/exterior-stylist/imageref"
)

// ProductSuggestion is one recommended exterior product. The agent is
// asked to fill productName, but some replies use the legacy title key
// instead; exactly one of the two is populated.
type ProductSuggestion struct {
	ID             string `json:"id"`
	ProductName    string `json:"productName,omitempty"`
	Title          string `json:"title,omitempty"`
	Category       string `json:"category,omitempty"`
	Description    string `json:"description"`
	Reasoning      string `json:"reasoning"`
	EstimatedPrice string `json:"estimatedPrice,omitempty"`
	ImageURL       string `json:"imageUrl"`
}

// DisplayName returns productName, falling back to the legacy title
// field, then a generic label.
func (s *ProductSuggestion) DisplayName() string {
	if s.ProductName != "" {
		return s.ProductName
	}
	if s.Title != "" {
		return s.Title
	}
	return "exterior product"
}

// HouseAnalysis is the agent's structured answer for one house photo.
type HouseAnalysis struct {
	Description string               `json:"description"`
	Style       string               `json:"style"`
	Condition   string               `json:"condition"`
	Suggestions []*ProductSuggestion `json:"suggestions,omitempty"`
}

// Reply is a normalized model response: the text output, which may
// embed a JSON object, plus any images the model produced inline.
type Reply struct {
	Text   string
	Images []imageref.Ref
}

// Agent is an instruction-following multimodal service. It analyzes a
// house photo into a HouseAnalysis-shaped JSON reply, and composes a
// chosen product into the original photo.
type Agent interface {
	AnalyzeHouse(ctx context.Context, house imageref.Ref) (*Reply, error)
	ComposeScene(ctx context.Context, house imageref.Ref, s *ProductSuggestion) (*Reply, error)
}

// ImageGenerator produces a standalone image from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (imageref.Ref, error)
}
