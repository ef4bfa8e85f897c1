package agent

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

var analyzeHouseInstructions = strings.TrimSpace(dedent.Dedent(`
	You are a consultant specializing in exterior furnishing products. Analyze the
	house image and recommend exactly 3 specific exterior products:
	1. Outdoor furniture (dining set, sofa set, relaxation chairs)
	2. Exterior lighting (garden lights, decorative lights, LED lights)
	3. Planters and greenery (composite planters, ornamental plants, shade trees)

	Respond in JSON format:
	{
	  "description": "description of the house and its exterior space",
	  "style": "architectural style",
	  "condition": "assessment of the current exterior state",
	  "suggestions": [
	    {
	      "id": "1",
	      "productName": "specific product name",
	      "category": "product category",
	      "description": "detailed product description",
	      "reasoning": "why this product suits the house",
	      "estimatedPrice": "estimated price",
	      "imageUrl": "URL of a generated product image, if you can produce one"
	    }
	  ]
	}

	Respond ONLY with the JSON object, no markdown or other text.
`))

var composeSceneInstructions = strings.TrimSpace(dedent.Dedent(`
	You are an expert at compositing exterior furnishing products into house
	photos. Create a composite image where the product is integrated into the
	original house image - do NOT create a separate scene. Keep the original
	architecture, style, lighting and viewpoint of the house.

	Respond in JSON format: {"compositeImageUrl": "URL of the composite image", "message": "short description"}

	Respond ONLY with the JSON object, no markdown or other text.
`))

func composeScenePrompt(s *ProductSuggestion) string {
	return fmt.Sprintf("%s\n\nProduct: %s. Details: %s.",
		composeSceneInstructions, s.DisplayName(), strings.TrimSpace(s.Description))
}
