package server

import "github.com/raine/exterior-stylist/agent"

// analyzeRequest is the JSON body form of the analysis endpoint. The
// multipart alternative carries the upload in the imageFile field.
type analyzeRequest struct {
	ImageURL string `json:"imageUrl"`
}

// analyzeResponse is the HouseAnalysis extended with bookkeeping
// fields.
type analyzeResponse struct {
	agent.HouseAnalysis
	AgentProcessed         bool   `json:"agentProcessed"`
	ProductRecommendations bool   `json:"productRecommendations"`
	Timestamp              string `json:"timestamp"`
}

// compositeRequest is the JSON body form of the composite endpoint.
// The multipart alternative uses originalImageUrl and a JSON-encoded
// suggestion field.
type compositeRequest struct {
	OriginalImage string                   `json:"originalImage"`
	Suggestion    *agent.ProductSuggestion `json:"suggestion"`
}

// compositeResult is the composite endpoint's success payload. The
// chosen suggestion is echoed back unchanged.
type compositeResult struct {
	FinalImageURL     string                   `json:"finalImageUrl"`
	AppliedSuggestion *agent.ProductSuggestion `json:"appliedSuggestion"`
	Success           bool                     `json:"success"`
	Message           string                   `json:"message"`
	Timestamp         string                   `json:"timestamp"`
}
