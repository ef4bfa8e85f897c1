package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/exterior-stylist/agent"
	"github.com/raine/exterior-stylist/imageref"
)

const (
	compositeFallbackPrompt = "Create a photorealistic composite image showing %s naturally integrated into the outdoor space of the original house image. Product details: %s. CRITICAL: The product must be integrated into the original house image, NOT a separate scene. Keep the original house architecture, style, lighting, and perspective exactly the same. Only add the product to the existing outdoor space."
	productOnlyPrompt       = "%s. %s. Professional product photo, modern exterior furniture, high quality, white background, commercial photography, 4K resolution"
)

// compositeTier is one strategy for producing the final image. Tiers
// run in order until one yields a usable ref; winning remote refs are
// pinned unless the tier opts out (the placeholder does not expire).
type compositeTier struct {
	name    string
	message string
	pin     bool
	run     func(ctx context.Context) (imageref.Ref, error)
}

// handleGenerateFinal runs the composite pipeline: agent composite
// first, then direct fallback generation, then a standalone product
// image, then a placeholder. Tier failures are absorbed; the request
// only fails on missing input or if the whole cascade errors out.
func (s *Server) handleGenerateFinal(w http.ResponseWriter, r *http.Request) {
	house, sug, inputErr := s.compositeInputFromRequest(w, r)
	if inputErr != "" {
		writeError(w, http.StatusBadRequest, inputErr)
		return
	}

	log.Info().Str("product", sug.DisplayName()).Msg("creating composite image")

	final, message, err := s.runCompositeCascade(r.Context(), house, sug)
	if err != nil {
		log.Error().Err(err).Msg("composite cascade failed unexpectedly")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "error while creating the final image",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, compositeResult{
		FinalImageURL:     final,
		AppliedSuggestion: sug,
		Success:           true,
		Message:           message,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	})
}

// compositeInputFromRequest accepts either a multipart form with
// originalImageUrl and a JSON-encoded suggestion field, or a JSON body
// with originalImage and suggestion. The third return value is a client
// error message when required input is absent or the form cannot be
// read.
func (s *Server) compositeInputFromRequest(w http.ResponseWriter, r *http.Request) (imageref.Ref, *agent.ProductSuggestion, string) {
	var (
		original string
		sug      *agent.ProductSuggestion
	)

	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return imageref.Ref{}, nil, "could not read multipart form (too large?)"
		}
		original = r.FormValue("originalImageUrl")
		if field := r.FormValue("suggestion"); field != "" {
			var parsed agent.ProductSuggestion
			if err := json.Unmarshal([]byte(field), &parsed); err != nil {
				return imageref.Ref{}, nil, "suggestion is not valid JSON"
			}
			sug = &parsed
		}
	} else {
		var req compositeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return imageref.Ref{}, nil, "original image or suggestion is missing"
		}
		original = req.OriginalImage
		sug = req.Suggestion
	}

	if original == "" || sug == nil {
		return imageref.Ref{}, nil, "original image or suggestion is missing"
	}
	return imageref.Parse(original), sug, ""
}

// runCompositeCascade tries each tier in order and returns the first
// usable image with the tier's status message. The placeholder tier
// cannot fail, so the error return is a defensive escape hatch rather
// than an expected path.
func (s *Server) runCompositeCascade(ctx context.Context, house imageref.Ref, sug *agent.ProductSuggestion) (string, string, error) {
	tiers := []compositeTier{
		{
			name:    "agent",
			message: "composite image created by the agent",
			pin:     true,
			run: func(ctx context.Context) (imageref.Ref, error) {
				return s.agentCompositeTier(ctx, house, sug)
			},
		},
		{
			name:    "direct generation",
			message: "composite image created (fallback mode)",
			pin:     true,
			run: func(ctx context.Context) (imageref.Ref, error) {
				prompt := fmt.Sprintf(compositeFallbackPrompt, sug.DisplayName(), strings.TrimSpace(sug.Description))
				return s.generator.GenerateImage(ctx, prompt)
			},
		},
		{
			name:    "product image",
			message: "standalone product image created (fallback mode)",
			pin:     true,
			run: func(ctx context.Context) (imageref.Ref, error) {
				prompt := fmt.Sprintf(productOnlyPrompt, sug.DisplayName(), strings.TrimSpace(sug.Description))
				return s.generator.GenerateImage(ctx, prompt)
			},
		},
		{
			name:    "placeholder",
			message: "placeholder image created (emergency fallback)",
			run: func(ctx context.Context) (imageref.Ref, error) {
				return imageref.Placeholder(sug.DisplayName(), 800, 600), nil
			},
		},
	}

	for _, tier := range tiers {
		ref, err := tier.run(ctx)
		if err != nil || ref.IsZero() {
			log.Warn().Err(err).Str("tier", tier.name).Msg("composite tier yielded no image, trying next")
			continue
		}

		if tier.pin {
			if pinned, err := s.resolver.Resolve(ctx, ref); err == nil {
				ref = pinned
			}
			// An unfetchable remote ref falls through as-is, same as
			// pinning failures in the analysis pipeline.
		}

		log.Info().Str("tier", tier.name).Msg("composite image ready")
		return ref.DataURL(), tier.message, nil
	}

	return "", "", fmt.Errorf("no composite tier produced an image")
}

// agentCompositeTier asks the multimodal agent for a composite and
// reads the image reference out of its JSON reply. Agents that return
// the composite inline instead of as a URL are accepted too.
func (s *Server) agentCompositeTier(ctx context.Context, house imageref.Ref, sug *agent.ProductSuggestion) (imageref.Ref, error) {
	reply, err := s.agent.ComposeScene(ctx, house, sug)
	if err != nil {
		return imageref.Ref{}, err
	}

	if raw, err := agent.ExtractJSONObject(reply.Text); err == nil {
		var result struct {
			CompositeImageURL string `json:"compositeImageUrl"`
		}
		if err := json.Unmarshal(raw, &result); err == nil && result.CompositeImageURL != "" {
			return imageref.Parse(result.CompositeImageURL), nil
		}
	}

	if len(reply.Images) > 0 {
		return reply.Images[0], nil
	}
	return imageref.Ref{}, fmt.Errorf("agent reply contained no composite image")
}
