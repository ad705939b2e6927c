package analysis

import (
	"regexp"
	"strings"

	"github.com/phambaophuc/upcycle-vision/internal/models"
)

const maxItems = models.MaxRecommendationsPerSection

var (
	// "1. **Material Analysis**: oak" and "Material Analysis: oak"
	labeledLine = regexp.MustCompile(`^\s*(?:#+\s*)?(?:\d+[.)]\s*)?(?:[-*•]\s+)?\*{0,2}([A-Za-z][A-Za-z/ &]{1,40}?)\*{0,2}\s*:\s*\*{0,2}\s*(.*)$`)
	// "### Material Analysis"
	markdownHeader = regexp.MustCompile(`^\s*#+\s*(?:\d+[.)]\s*)?\*{0,2}([^*:]+?)\*{0,2}\s*:?\s*$`)
	numberedItem   = regexp.MustCompile(`^\d{1,2}\s*[.)]\s*(.*)$`)
)

type section int

const (
	sectionNone section = iota
	sectionIdentification
	sectionMaterials
	sectionCondition
	sectionSize
	sectionStyle
	sectionValue
	sectionCreative
)

func classifyLabel(label string) section {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "identification"), l == "object", l == "item":
		return sectionIdentification
	case strings.Contains(l, "material"):
		return sectionMaterials
	case strings.Contains(l, "condition"):
		return sectionCondition
	case strings.Contains(l, "size"), strings.Contains(l, "dimension"):
		return sectionSize
	case strings.Contains(l, "style"), strings.Contains(l, "design"):
		return sectionStyle
	case strings.Contains(l, "creative"):
		return sectionCreative
	case strings.Contains(l, "value"):
		return sectionValue
	default:
		return sectionNone
	}
}

// ParseSections splits the analysis text into its labeled parts. Lines that
// follow a label are appended to it until the next label.
func ParseSections(text string) models.AnalysisSections {
	parts := make(map[section][]string)
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := labeledLine.FindStringSubmatch(line); m != nil {
			if s := classifyLabel(m[1]); s != sectionNone {
				current = s
				if rest := cleanInline(m[2]); rest != "" {
					parts[current] = append(parts[current], rest)
				}
				continue
			}
		}

		if m := markdownHeader.FindStringSubmatch(line); m != nil {
			if s := classifyLabel(m[1]); s != sectionNone {
				current = s
				continue
			}
		}

		if current != sectionNone {
			parts[current] = append(parts[current], cleanInline(line))
		}
	}

	join := func(s section) string { return strings.Join(parts[s], " ") }

	return models.AnalysisSections{
		Identification:    join(sectionIdentification),
		Materials:         join(sectionMaterials),
		Condition:         join(sectionCondition),
		Size:              join(sectionSize),
		Style:             join(sectionStyle),
		Value:             join(sectionValue),
		CreativePotential: join(sectionCreative),
	}
}

func cleanInline(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

type recSection int

const (
	recNone recSection = iota
	recDIY
	recMonetization
	recSustainability
	recTutorials
	recMarketplace
)

func classifyRecHeader(clean string) recSection {
	switch {
	case strings.Contains(clean, "diy") && (strings.Contains(clean, "creative") || strings.Contains(clean, "idea")):
		return recDIY
	case strings.Contains(clean, "monetization"), strings.Contains(clean, "monetisation"),
		strings.Contains(clean, "monet") && strings.Contains(clean, "opportunit"):
		return recMonetization
	case strings.Contains(clean, "sustainability"), strings.Contains(clean, "sustain") && strings.Contains(clean, "benefit"):
		return recSustainability
	case strings.Contains(clean, "tutorial"), strings.Contains(clean, "helpful") && strings.Contains(clean, "guide"):
		return recTutorials
	case strings.Contains(clean, "marketplace"), strings.Contains(clean, "market") && strings.Contains(clean, "suggest"):
		return recMarketplace
	default:
		return recNone
	}
}

// listItem strips a numbered or bulleted prefix. ok is false for plain lines.
func listItem(line string) (string, bool) {
	if m := numberedItem.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if strings.HasPrefix(line, "**") {
		return "", false
	}
	for _, bullet := range []string{"-", "*", "•", "→", "▶"} {
		if strings.HasPrefix(line, bullet) {
			return strings.TrimSpace(strings.TrimLeft(line, "-*•→▶ ")), true
		}
	}
	return "", false
}

// looksLikeHeader is true for markdown headers, bold lines, lines ending in a
// colon and short phrases. List items are never headers.
func looksLikeHeader(line string) bool {
	if strings.HasPrefix(line, "#") || strings.HasSuffix(line, ":") {
		return true
	}
	if strings.HasPrefix(line, "**") && strings.HasSuffix(strings.TrimSuffix(line, ":"), "**") {
		return true
	}
	return len(strings.Fields(line)) <= 4
}

// ParseRecommendations reads the five-section recommendations reply.
// Each list is capped at six entries.
func ParseRecommendations(text string) models.Recommendations {
	recs := models.EmptyRecommendations()
	current := recNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		item, isItem := listItem(line)
		if !isItem && looksLikeHeader(line) {
			clean := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(line), "#", ""))
			if s := classifyRecHeader(clean); s != recNone {
				current = s
				continue
			}
		}

		if current == recNone {
			continue
		}

		if !isItem {
			lower := strings.ToLower(line)
			if len(line) <= 10 || strings.Contains(lower, "#") || strings.Contains(lower, "section") || strings.Contains(lower, "category") {
				continue
			}
			item = line
		}

		item = cleanInline(item)
		if item == "" {
			continue
		}
		appendCapped(slot(&recs, current), item)
	}

	return recs
}

func slot(recs *models.Recommendations, s recSection) *[]string {
	switch s {
	case recDIY:
		return &recs.DIYIdeas
	case recMonetization:
		return &recs.Monetization
	case recSustainability:
		return &recs.Sustainability
	case recTutorials:
		return &recs.Tutorials
	default:
		return &recs.MarketplaceSuggestions
	}
}

func appendCapped(list *[]string, item string) {
	if len(*list) < maxItems {
		*list = append(*list, item)
	}
}
