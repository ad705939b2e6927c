package analysis

import "fmt"

// PromptVersion is part of the cache key; bump it whenever a prompt changes.
const PromptVersion = "v1"

const AnalysisPrompt = `You are an expert at identifying objects in images for creative reuse and upcycling.

Look at this image carefully and provide a detailed analysis:

1. **Object Identification**: What is the main object/item in this image? Be very specific (e.g., "wooden dining chair", "metal toolbox", "glass bottle").

2. **Material Analysis**: What materials is it made of? (wood, metal, plastic, glass, fabric, ceramic, leather, etc.)

3. **Condition Assessment**: What is the condition? (new, used, old, damaged, broken, vintage, antique, worn, etc.)

4. **Size Estimation**: What size is it approximately? (small, medium, large, or specific dimensions if visible)

5. **Style/Design**: What style or design? (modern, traditional, vintage, rustic, industrial, etc.)

6. **Potential Value**: Is it valuable, rare, collectible, or common?

7. **Creative Potential**: What makes this item suitable for creative reuse, DIY projects, resale or sustainability?

Be accurate and descriptive. If you see multiple items, focus on the main one. Only describe what you can clearly see.`

const recommendationsTemplate = `Based on this image analysis, generate specific and actionable recommendations for this exact item:

%s

Provide exactly %d recommendations for each section, formatted exactly as below:

### DIY Creative Ideas
1. [creative reuse idea for this item]

### Monetization Opportunities
1. [monetization method specific to this item]

### Sustainability Benefits
1. [environmental benefit of reusing this item]

### Helpful Tutorials
1. [tutorial topic relevant to this item]

### Marketplace Suggestions
1. [marketplace and why it suits this item]

Rules:
- Be specific to the item described in the analysis
- Keep recommendations practical and realistic
- Use numbered lists (1., 2., 3., ...)
- Each recommendation is one or two sentences`

// RecommendationsPrompt embeds the first-pass analysis into the
// recommendations instruction.
func RecommendationsPrompt(analysisText string) string {
	return fmt.Sprintf(recommendationsTemplate, analysisText, maxItems)
}
