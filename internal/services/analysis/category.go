package analysis

import "strings"

const (
	CategoryFurniture   = "furniture"
	CategoryElectronics = "electronics"
	CategoryClothing    = "clothing"
	CategoryKitchen     = "kitchen"
	CategoryTools       = "tools"
	CategoryGeneral     = "general"
)

// Checked in order; the first match wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryFurniture, []string{"chair", "table", "sofa", "furniture", "stool", "bench"}},
	{CategoryElectronics, []string{"phone", "laptop", "electronic", "computer", "device"}},
	{CategoryClothing, []string{"shirt", "dress", "clothing", "fabric", "textile"}},
	{CategoryKitchen, []string{"glass", "bottle", "jar", "container"}},
	{CategoryTools, []string{"metal", "steel", "iron", "aluminum"}},
	{CategoryFurniture, []string{"wood", "wooden"}},
}

func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		if containsAny(lower, c.words...) {
			return c.category
		}
	}
	return CategoryGeneral
}

// Confidence is a coarse score: detailed answers rate higher.
func Confidence(text string) int {
	if len(text) > 100 {
		return 90
	}
	return 60
}
