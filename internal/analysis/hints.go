package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iago/review-radar-back/internal/domain"
)

const (
	weakAttributeScore   = 60
	strongAttributeScore = 70
	maxImprovementAreas  = 3
	highNegativeShare    = 30
)

// improvementAreas lists the weakest attributes below the satisfaction bar,
// worst first.
func improvementAreas(attributes []domain.AttributeScore) []domain.ImprovementArea {
	weak := make([]domain.AttributeScore, 0)
	for _, attribute := range attributes {
		if attribute.Score < weakAttributeScore {
			weak = append(weak, attribute)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		return weak[i].Score < weak[j].Score
	})

	areas := make([]domain.ImprovementArea, 0, maxImprovementAreas)
	for _, attribute := range weak {
		if len(areas) == maxImprovementAreas {
			break
		}
		mentions := attribute.PositiveCount + attribute.NeutralCount + attribute.NegativeCount
		areas = append(areas, domain.ImprovementArea{
			Code:     attribute.Key,
			Title:    "Improve " + strings.ToLower(attribute.DisplayName),
			Subtitle: fmt.Sprintf("%.1f%% satisfaction across %d mentions", attribute.Score, mentions),
		})
	}
	return areas
}

func dashboardHints(
	attributes []domain.AttributeScore,
	insights domain.KeywordInsights,
	issues domain.IssuesOverview,
	summary domain.SentimentSummary,
	areas []domain.ImprovementArea,
) domain.DashboardHints {
	hints := domain.DashboardHints{RecommendedActions: make([]string, 0)}

	if len(attributes) > 0 && attributes[0].Score >= strongAttributeScore {
		hints.HighlightPositive = fmt.Sprintf("Customers praise the %s", strings.ToLower(attributes[0].DisplayName))
	} else if len(insights.PositiveKeywords) > 0 {
		hints.HighlightPositive = fmt.Sprintf("Customers often mention %q", insights.PositiveKeywords[0].Term)
	}

	if worst, ok := findAttribute(attributes, areas); ok {
		hints.HighlightNegative = fmt.Sprintf("%s is the most criticized aspect", worst.DisplayName)
	} else if len(issues.MostMentioned) > 0 {
		hints.HighlightNegative = fmt.Sprintf("Top complaint: %q", issues.MostMentioned[0].Issue)
	}

	for i := range areas {
		attribute, _ := findAttribute(attributes, areas[i:])
		hints.RecommendedActions = append(hints.RecommendedActions, fmt.Sprintf(
			"Review %s feedback (%d negative mentions)",
			strings.ToLower(attribute.DisplayName),
			attribute.NegativeCount,
		))
	}

	if summary.Negative.Percentage >= highNegativeShare && len(issues.MostMentioned) > 0 {
		terms := make([]string, 0, len(issues.MostMentioned))
		for _, issue := range issues.MostMentioned {
			terms = append(terms, issue.Issue)
		}
		hints.RecommendedActions = append(hints.RecommendedActions,
			"Investigate recurring complaints: "+strings.Join(terms, ", "))
	}

	if len(hints.RecommendedActions) == 0 {
		hints.RecommendedActions = append(hints.RecommendedActions, "Keep monitoring reviews for new issues")
	}
	return hints
}

// findAttribute returns the attribute behind the first improvement area.
func findAttribute(attributes []domain.AttributeScore, areas []domain.ImprovementArea) (domain.AttributeScore, bool) {
	if len(areas) == 0 {
		return domain.AttributeScore{}, false
	}
	for _, attribute := range attributes {
		if attribute.Key == areas[0].Code {
			return attribute, true
		}
	}
	return domain.AttributeScore{}, false
}
