package analysis

import (
	"sort"
	"strings"

	"github.com/iago/review-radar-back/internal/domain"
)

type attributeDefinition struct {
	key      string
	keywords []string
}

// productAttributes is ordered so detection output is stable.
var productAttributes = []attributeDefinition{
	{"quality", []string{"quality", "build", "construction", "material", "durable", "sturdy", "solid", "cheap", "flimsy", "poor"}},
	{"price", []string{"price", "cost", "expensive", "cheap", "value", "money", "affordable", "overpriced", "budget", "costly"}},
	{"delivery", []string{"delivery", "shipping", "package", "arrived", "fast", "slow", "damaged", "packaging", "courier"}},
	{"performance", []string{"performance", "speed", "fast", "slow", "efficient", "lag", "smooth", "responsive", "quick"}},
	{"design", []string{"design", "look", "appearance", "color", "style", "beautiful", "ugly", "attractive", "aesthetic"}},
	{"battery", []string{"battery", "charge", "power", "drain", "last", "life", "backup", "charging"}},
	{"camera", []string{"camera", "photo", "picture", "video", "image", "blur", "clear", "focus", "lens"}},
	{"display", []string{"display", "screen", "bright", "dim", "resolution", "clear", "crisp", "sharp", "color"}},
	{"size", []string{"size", "big", "small", "compact", "large", "fit", "portable", "heavy", "light"}},
	{"service", []string{"service", "support", "help", "response", "staff", "rude", "helpful", "customer", "care"}},
}

const phrasesPerAttribute = 3

// detectAttributes returns the attribute keys whose keywords occur as whole
// words in text.
func detectAttributes(text string) []string {
	words := make(map[string]struct{})
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		words[word] = struct{}{}
	}

	detected := make([]string, 0)
	for _, attribute := range productAttributes {
		for _, keyword := range attribute.keywords {
			if _, ok := words[keyword]; ok {
				detected = append(detected, attribute.key)
				break
			}
		}
	}
	return detected
}

type attributeStats struct {
	positive, neutral, negative  int
	positiveTexts, negativeTexts []string
}

// scoreAttributes weights each mention as positive=100, neutral=50,
// negative=0 and averages per attribute. Highest score first.
func scoreAttributes(reviews []domain.AnnotatedReview) []domain.AttributeScore {
	stats := make(map[string]*attributeStats)
	for _, review := range reviews {
		for _, key := range review.DetectedAttributes {
			entry, ok := stats[key]
			if !ok {
				entry = &attributeStats{}
				stats[key] = entry
			}
			switch review.SentimentLabel {
			case domain.SentimentPositive:
				entry.positive++
				entry.positiveTexts = append(entry.positiveTexts, review.Text)
			case domain.SentimentNegative:
				entry.negative++
				entry.negativeTexts = append(entry.negativeTexts, review.Text)
			default:
				entry.neutral++
			}
		}
	}

	scores := make([]domain.AttributeScore, 0, len(stats))
	for _, attribute := range productAttributes {
		entry, ok := stats[attribute.key]
		if !ok {
			continue
		}
		total := entry.positive + entry.neutral + entry.negative
		scores = append(scores, domain.AttributeScore{
			Key:                attribute.key,
			DisplayName:        displayName(attribute.key),
			Score:              round(float64(entry.positive*100+entry.neutral*50)/float64(total), 1),
			PositiveCount:      entry.positive,
			NeutralCount:       entry.neutral,
			NegativeCount:      entry.negative,
			TopPositivePhrases: topKeywords(entry.positiveTexts, phrasesPerAttribute),
			TopNegativePhrases: topKeywords(entry.negativeTexts, phrasesPerAttribute),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

func displayName(key string) string {
	parts := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}
