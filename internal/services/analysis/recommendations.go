package analysis

import (
	"strings"

	"github.com/phambaophuc/upcycle-vision/internal/models"
)

var (
	diyVerbs       = []string{"transform", "convert", "create", "make", "repurpose"}
	sellingWords   = []string{"sell", "marketplace", "ebay", "facebook", "etsy", "craigslist"}
	marketplaces   = []string{"Facebook Marketplace - Best for local sales", "eBay - Wide audience reach", "Craigslist - Quick local transactions", "Etsy - Creative and handmade items", "OfferUp - Mobile-friendly marketplace", "Local thrift stores and consignment shops"}
	seatingDIY     = []string{"Transform into a garden planter by adding soil and plants", "Create unique wall art by painting and hanging", "Convert into storage seating with a hinged seat", "Make a pet bed with cushions", "Create a coat rack by adding hooks", "Transform into a side table"}
	containerDIY   = []string{"Transform bottles into decorative vases", "Create candle holders from glass containers", "Make terrariums from jars", "Create storage containers", "Transform into hanging planters", "Make decorative lamps"}
	genericDIY     = []string{"Transform into a decorative piece", "Create a storage solution", "Make it into a garden planter", "Convert into wall art", "Repurpose for pet use", "Create a unique display item"}
	collectorSale  = []string{"Sell to antique dealers or collectors", "List on specialized vintage marketplaces", "Try auction houses for valuable items", "Post on Etsy for vintage items", "Consider consignment shops", "Offer to local collectors' groups"}
	genericSale    = []string{"Sell on Facebook Marketplace", "List on eBay", "Post on Craigslist", "Try local thrift stores", "Consider consignment shops", "Rent out for events"}
	reuseBenefits  = []string{"Reduces waste by reusing an existing item", "Decreases demand for new manufacturing", "Supports circular economy principles", "Reduces carbon footprint", "Promotes sustainable consumption", "Helps conserve natural resources"}
	woodTutorials  = []string{"Wood sanding and refinishing techniques", "Wood staining and finishing methods", "Basic wood repair techniques", "Wood painting and decoration ideas", "Wood assembly basics", "Wood safety and tool handling"}
	metalTutorials = []string{"Metal cleaning and rust removal", "Metal painting and finishing techniques", "Basic metal repair methods", "Metal cutting and shaping basics", "Metal welding techniques", "Metal safety and tool handling"}
	glassTutorials = []string{"Glass cleaning and maintenance", "Glass cutting and shaping techniques", "Glass painting and decoration methods", "Glass safety and handling basics", "Glass repair and restoration", "Glass crafting and DIY projects"}
	basicTutorials = []string{"Basic cleaning techniques", "Safe handling methods", "Restoration techniques", "Creative painting ideas", "Assembly basics", "Safety guidelines"}
)

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// ExtractRecommendations derives recommendations from the analysis text
// alone, falling back to keyword-driven defaults for every list.
func ExtractRecommendations(analysisText string) models.Recommendations {
	recs := models.EmptyRecommendations()
	lower := strings.ToLower(analysisText)
	if strings.TrimSpace(lower) == "" {
		return recs
	}

	for _, raw := range strings.Split(analysisText, "\n") {
		line := stripLabel(strings.TrimSpace(raw))
		l := strings.ToLower(line)
		if strings.HasPrefix(l, "**") {
			continue
		}

		if containsAny(l, diyVerbs...) && len(l) > 20 {
			item := strings.TrimSpace(strings.TrimLeft(line, "-*•0123456789. "))
			if item != "" {
				appendCapped(&recs.DIYIdeas, item)
			}
			continue
		}

		if containsAny(l, sellingWords...) && len(l) > 15 && !strings.Contains(l, "monetization") {
			appendCapped(&recs.Monetization, strings.TrimSpace(strings.TrimLeft(line, "-*• ")))
		}
	}

	recs.Sustainability = clone(reuseBenefits)

	switch {
	case containsAny(lower, "wood", "wooden"):
		recs.Tutorials = clone(woodTutorials)
	case containsAny(lower, "metal", "steel"):
		recs.Tutorials = clone(metalTutorials)
	case strings.Contains(lower, "glass"):
		recs.Tutorials = clone(glassTutorials)
	default:
		recs.Tutorials = clone(basicTutorials)
	}

	recs.MarketplaceSuggestions = clone(marketplaces)

	if len(recs.DIYIdeas) == 0 {
		switch {
		case containsAny(lower, "chair", "stool", "bench"):
			recs.DIYIdeas = clone(seatingDIY)
		case containsAny(lower, "bottle", "glass", "jar"):
			recs.DIYIdeas = clone(containerDIY)
		default:
			recs.DIYIdeas = clone(genericDIY)
		}
	}

	if len(recs.Monetization) == 0 {
		if containsAny(lower, "vintage", "antique", "rare") {
			recs.Monetization = clone(collectorSale)
		} else {
			recs.Monetization = clone(genericSale)
		}
	}

	return recs
}

// stripLabel drops a leading "N. **Label**:" so only the sentence remains.
func stripLabel(line string) string {
	if m := labeledLine.FindStringSubmatch(line); m != nil && classifyLabel(m[1]) != sectionNone {
		return cleanInline(m[2])
	}
	return line
}

// mergeRecommendations fills every empty list in primary from fallback.
func mergeRecommendations(primary, fallback models.Recommendations) models.Recommendations {
	pick := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		if b == nil {
			return []string{}
		}
		return b
	}

	return models.Recommendations{
		DIYIdeas:               pick(primary.DIYIdeas, fallback.DIYIdeas),
		Monetization:           pick(primary.Monetization, fallback.Monetization),
		Sustainability:         pick(primary.Sustainability, fallback.Sustainability),
		Tutorials:              pick(primary.Tutorials, fallback.Tutorials),
		MarketplaceSuggestions: pick(primary.MarketplaceSuggestions, fallback.MarketplaceSuggestions),
	}
}
