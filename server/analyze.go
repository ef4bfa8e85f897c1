package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/exterior-stylist/agent"
	"github.com/raine/exterior-stylist/imageref"
)

const fallbackImagePrompt = "%s, %s, professional product photo, white background, high quality, modern exterior furniture"

// handleAnalyzeHouse runs the analysis pipeline: normalize the input
// image, ask the agent for an analysis with three product suggestions,
// extract the JSON payload from its free-form reply and make sure every
// suggestion leaves with an embedded product image.
func (s *Server) handleAnalyzeHouse(w http.ResponseWriter, r *http.Request) {
	house, inputErr := s.houseImageFromRequest(w, r)
	if inputErr != "" {
		writeError(w, http.StatusBadRequest, inputErr)
		return
	}

	log.Info().Bool("embedded", !house.IsRemote()).Msg("asking agent for product recommendations")

	reply, err := s.agent.AnalyzeHouse(r.Context(), house)
	if err != nil {
		log.Error().Err(err).Msg("agent analysis failed")
		writeError(w, http.StatusInternalServerError, "error while recommending exterior products")
		return
	}

	raw, err := agent.ExtractJSONObject(reply.Text)
	if err != nil {
		log.Warn().Err(err).Msg("no JSON object in agent response")
		writeError(w, http.StatusInternalServerError, "could not parse product list from agent response")
		return
	}

	var analysis agent.HouseAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		log.Warn().Err(err).Msg("agent response JSON did not parse")
		writeError(w, http.StatusInternalServerError, "could not parse product list from agent response")
		return
	}
	analysis.Suggestions = dropNullSuggestions(analysis.Suggestions)

	s.resolveSuggestionImages(r.Context(), analysis.Suggestions)

	log.Info().Int("suggestions", len(analysis.Suggestions)).Msg("product recommendations ready")

	writeJSON(w, http.StatusOK, analyzeResponse{
		HouseAnalysis:          analysis,
		AgentProcessed:         true,
		ProductRecommendations: true,
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
	})
}

// houseImageFromRequest accepts either a multipart upload (imageFile)
// or a JSON body with an imageUrl reference. The second return value is
// a client error message when neither form is present or the form
// cannot be read.
func (s *Server) houseImageFromRequest(w http.ResponseWriter, r *http.Request) (imageref.Ref, string) {
	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return imageref.Ref{}, "could not read multipart form (too large?)"
		}
		file, header, err := r.FormFile("imageFile")
		if err != nil {
			return imageref.Ref{}, "image file is missing"
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			return imageref.Ref{}, "image file is missing"
		}
		mime := header.Header.Get("Content-Type")
		if mime == "" {
			mime = "image/jpeg"
		}
		return imageref.FromBytes(data, mime), ""
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageURL == "" {
		return imageref.Ref{}, "image URL is missing"
	}
	return imageref.Parse(req.ImageURL), ""
}

// dropNullSuggestions removes null array elements, which a sloppy agent
// reply can produce inside suggestions and which unmarshal to nil.
func dropNullSuggestions(suggestions []*agent.ProductSuggestion) []*agent.ProductSuggestion {
	kept := suggestions[:0]
	for _, s := range suggestions {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return kept
}

// resolveSuggestionImages guarantees every suggestion ends up with a
// populated imageUrl. When the agent supplied usable remote URLs for
// all suggestions, each is pinned in place (with a per-suggestion
// fallback on fetch failure); otherwise every suggestion goes through
// the fallback generator. Suggestions are independent, so they are
// resolved concurrently.
func (s *Server) resolveSuggestionImages(ctx context.Context, suggestions []*agent.ProductSuggestion) {
	if len(suggestions) == 0 {
		return
	}

	allUsable := true
	for _, sug := range suggestions {
		if sug.ID == "" {
			sug.ID = uuid.New().String()
		}
		if !hasUsableRemoteImage(sug) {
			allUsable = false
		}
	}

	g := new(errgroup.Group)
	for _, sug := range suggestions {
		sug := sug
		g.Go(func() error {
			if allUsable {
				if err := s.pinSuggestionImage(ctx, sug); err == nil {
					return nil
				}
				log.Warn().Str("product", sug.DisplayName()).Msg("pinning suggestion image failed, generating fallback")
			}
			s.generateFallbackImage(ctx, sug)
			return nil
		})
	}
	_ = g.Wait()
}

// hasUsableRemoteImage reports whether the agent supplied a fetchable
// network URL rather than nothing, an embedded payload, or a known
// placeholder marker.
func hasUsableRemoteImage(s *agent.ProductSuggestion) bool {
	return s.ImageURL != "" &&
		strings.HasPrefix(s.ImageURL, "http") &&
		!strings.Contains(s.ImageURL, "placeholder")
}

// pinSuggestionImage fetches the suggestion's remote image and embeds
// the bytes so the URL cannot expire before the UI renders it.
func (s *Server) pinSuggestionImage(ctx context.Context, sug *agent.ProductSuggestion) error {
	pinned, err := s.resolver.Resolve(ctx, imageref.FromURL(sug.ImageURL))
	if err != nil {
		return err
	}
	sug.ImageURL = pinned.DataURL()
	return nil
}

// generateFallbackImage requests a standalone product image and embeds
// it. If generation itself fails, a placeholder carrying the product
// name is the last resort - imageUrl is never left empty.
func (s *Server) generateFallbackImage(ctx context.Context, sug *agent.ProductSuggestion) {
	prompt := fmt.Sprintf(fallbackImagePrompt, sug.DisplayName(), strings.TrimSpace(sug.Description))

	ref, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("product", sug.DisplayName()).Msg("fallback image generation failed, using placeholder")
		sug.ImageURL = imageref.Placeholder(sug.DisplayName(), 400, 300).URL
		return
	}

	pinned, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		// The generated URL could not be fetched; an ephemeral URL
		// still beats no image.
		sug.ImageURL = ref.DataURL()
		return
	}
	sug.ImageURL = pinned.DataURL()
}
