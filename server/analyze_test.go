package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/exterior-stylist/agent"
	"github.com/raine/exterior-stylist/imageref"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x4a, 0x46, 0x49, 0x46}

// analysisReplyJSON builds an agent reply whose three suggestions point
// at the given image URLs.
func analysisReplyJSON(imageURLs [3]string) string {
	return fmt.Sprintf(`{
		"description": "A two-story wooden house with a spacious front yard",
		"style": "Scandinavian modern",
		"condition": "Well maintained, empty terrace",
		"suggestions": [
			{"id": "1", "productName": "Teak dining set", "category": "outdoor furniture", "description": "Six-seat teak dining set", "reasoning": "Fits the terrace", "estimatedPrice": "1200 EUR", "imageUrl": %q},
			{"id": "2", "productName": "Garden path lights", "category": "exterior lighting", "description": "Warm LED path lights", "reasoning": "Dark front yard", "estimatedPrice": "150 EUR", "imageUrl": %q},
			{"id": "3", "productName": "Composite planters", "category": "planters and greenery", "description": "Large composite planters", "reasoning": "Bare entrance", "estimatedPrice": "300 EUR", "imageUrl": %q}
		]
	}`, imageURLs[0], imageURLs[1], imageURLs[2])
}

func multipartImageRequest(t *testing.T, path string, filename string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("imageFile", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type analyzeResponseBody struct {
	agent.HouseAnalysis
	AgentProcessed         bool   `json:"agentProcessed"`
	ProductRecommendations bool   `json:"productRecommendations"`
	Timestamp              string `json:"timestamp"`
	Error                  string `json:"error"`
}

func doAnalyze(t *testing.T, s *Server, req *http.Request) (int, analyzeResponseBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body analyzeResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestAnalyzeHouseSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(jpegBytes)
	}))
	defer ts.Close()

	urls := [3]string{ts.URL + "/1.png", ts.URL + "/2.png", ts.URL + "/3.png"}
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			// The upload must arrive embedded, not as a URL
			assert.False(t, house.IsRemote())
			assert.Equal(t, jpegBytes, house.Data)
			// Prose and fences around the JSON exercise extraction
			return &agent.Reply{Text: "Here you go:\n```json\n" + analysisReplyJSON(urls) + "\n```"}, nil
		},
	}
	gen := &stubGenerator{}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body.Description)
	assert.NotEmpty(t, body.Style)
	assert.NotEmpty(t, body.Condition)
	assert.True(t, body.AgentProcessed)
	assert.True(t, body.ProductRecommendations)

	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)

	require.Len(t, body.Suggestions, 3)
	for _, sug := range body.Suggestions {
		assert.True(t, strings.HasPrefix(sug.ImageURL, "data:image/"), "imageUrl should be embedded: %s", sug.ImageURL)
		// Pinning must not alter the byte content
		assert.Equal(t, jpegBytes, imageref.Parse(sug.ImageURL).Data)
	}

	// All remote images were usable, so the fallback generator was idle
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestAnalyzeHouseJSONBodyInput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegBytes)
	}))
	defer ts.Close()

	urls := [3]string{ts.URL + "/1.jpg", ts.URL + "/2.jpg", ts.URL + "/3.jpg"}
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			assert.True(t, house.IsRemote())
			return &agent.Reply{Text: analysisReplyJSON(urls)}, nil
		},
	}
	s := newTestServer(ag, &stubGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-house",
		strings.NewReader(`{"imageUrl": "https://example.com/house.jpg"}`))
	req.Header.Set("Content-Type", "application/json")

	code, body := doAnalyze(t, s, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Suggestions, 3)
}

func TestAnalyzeHouseMissingInput(t *testing.T) {
	s := newTestServer(&stubAgent{}, &stubGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-house", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	code, body := doAnalyze(t, s, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body.Error)
}

func TestAnalyzeHouseNoJSONInReply(t *testing.T) {
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: "I am unable to analyze this image."}, nil
		},
	}
	s := newTestServer(ag, &stubGenerator{})

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotEmpty(t, body.Error)
}

func TestAnalyzeHouseReplyWithoutSuggestions(t *testing.T) {
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: `{"description": "a house", "style": "modern", "condition": "good"}`}, nil
		},
	}
	gen := &stubGenerator{}
	s := newTestServer(ag, gen)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(0), gen.calls.Load())
	// The field is omitted entirely, not serialized as null
	assert.NotContains(t, rec.Body.String(), `"suggestions"`)
}

func TestAnalyzeHouseNullSuggestionElements(t *testing.T) {
	// A sloppy agent reply can hold null elements inside the
	// suggestions array; they must be dropped, not dereferenced
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: `{"description": "a house", "style": "modern", "condition": "good", "suggestions": [null]}`}, nil
		},
	}
	gen := &stubGenerator{}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Suggestions)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestAnalyzeHouseNullSuggestionAmongValidOnes(t *testing.T) {
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: `{"description": "a house", "style": "modern", "condition": "good",
				"suggestions": [null, {"id": "1", "productName": "Garden path lights", "description": "Warm LED path lights", "reasoning": "Dark front yard", "imageUrl": ""}]}`}, nil
		},
	}
	gen := &stubGenerator{
		generate: func(ctx context.Context, prompt string) (imageref.Ref, error) {
			return imageref.FromBytes(jpegBytes, "image/png"), nil
		},
	}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, "Garden path lights", body.Suggestions[0].ProductName)
	assert.True(t, strings.HasPrefix(body.Suggestions[0].ImageURL, "data:image/"))
}

func TestAnalyzeHouseOversizeUpload(t *testing.T) {
	s := New(Config{MaxUploadBytes: 64}, &stubAgent{}, &stubGenerator{},
		imageref.NewResolver(imageref.ResolverOpts{}))

	big := bytes.Repeat([]byte{0xab}, 4096)
	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", big))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "could not read multipart form (too large?)", body.Error)
}

func TestAnalyzeHousePlaceholderURLTriggersFallbackForAll(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(jpegBytes)
	}))
	defer ts.Close()

	// One placeholder marker routes every suggestion to the generator
	urls := [3]string{ts.URL + "/1.png", "https://example.com/placeholder.png", ts.URL + "/3.png"}
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: analysisReplyJSON(urls)}, nil
		},
	}
	gen := &stubGenerator{
		generate: func(ctx context.Context, prompt string) (imageref.Ref, error) {
			return imageref.FromURL(ts.URL + "/generated.png"), nil
		},
	}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int32(3), gen.calls.Load())
	for _, sug := range body.Suggestions {
		assert.True(t, strings.HasPrefix(sug.ImageURL, "data:image/"))
	}
}

func TestAnalyzeHousePerSuggestionFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(jpegBytes)
	}))
	defer ts.Close()

	urls := [3]string{ts.URL + "/1.png", ts.URL + "/2.png", ts.URL + "/3.png"}
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: analysisReplyJSON(urls)}, nil
		},
	}
	gen := &stubGenerator{
		generate: func(ctx context.Context, prompt string) (imageref.Ref, error) {
			return imageref.FromBytes(jpegBytes, "image/png"), nil
		},
	}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusOK, code)
	// Only the failing suggestion went through the generator
	assert.Equal(t, int32(1), gen.calls.Load())
	for _, sug := range body.Suggestions {
		assert.True(t, strings.HasPrefix(sug.ImageURL, "data:image/"))
	}
}

func TestAnalyzeHouseGeneratorFailureUsesPlaceholder(t *testing.T) {
	// No usable image URLs and a failing generator: the placeholder is
	// the last resort, imageUrl must still be populated
	urls := [3]string{"", "", ""}
	ag := &stubAgent{
		analyze: func(ctx context.Context, house imageref.Ref) (*agent.Reply, error) {
			return &agent.Reply{Text: analysisReplyJSON(urls)}, nil
		},
	}
	gen := &stubGenerator{
		generate: func(ctx context.Context, prompt string) (imageref.Ref, error) {
			return imageref.Ref{}, fmt.Errorf("image service down")
		},
	}
	s := newTestServer(ag, gen)

	code, body := doAnalyze(t, s, multipartImageRequest(t, "/api/analyze-house", "house.jpg", jpegBytes))
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Suggestions, 3)

	assert.Contains(t, body.Suggestions[0].ImageURL, "via.placeholder.com")
	assert.Contains(t, body.Suggestions[0].ImageURL, "Teak+dining+set")
	for _, sug := range body.Suggestions {
		assert.NotEmpty(t, sug.ImageURL)
	}
}
