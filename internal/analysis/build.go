// Package analysis turns scraped reviews and their sentiment annotations into
// the dashboard result. Everything here is pure: the same input always yields
// the same output.
package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/policy"
)

const (
	keywordsPerReview = 5
	keywordCandidates = 15
	keywordsPerSide   = 10
	issuesLimit       = 5
	sampleLimit       = 10
	keywordMethod     = "frequency"
)

// Input carries everything the aggregation needs, including the clock
// readings taken by the caller.
type Input struct {
	SourceURL string
	Scrape    *domain.ScrapeResult
	Sentiment *domain.SentimentResult
	ScrapedAt time.Time
	Elapsed   time.Duration
}

// Build assembles the full analysis result.
func Build(input Input) *domain.AnalysisResult {
	reviews := annotate(input.Scrape.Reviews, input.Sentiment)
	summary := summarizeSentiment(reviews)
	if input.Sentiment != nil {
		summary.Classifier = input.Sentiment.Classifier
	}
	attributes := scoreAttributes(reviews)
	insights := keywordInsights(reviews)
	issues := issuesOverview(insights.NegativeKeywords)
	areas := improvementAreas(attributes)

	return &domain.AnalysisResult{
		Product:            product(input),
		SentimentSummary:   summary,
		RatingDistribution: ratingDistribution(input.Scrape.Reviews),
		Attributes:         attributes,
		KeywordInsights:    insights,
		IssuesOverview:     issues,
		SampleReviews:      sample(reviews),
		ScrapeInfo: domain.ScrapeInfo{
			ReviewsExtracted: len(input.Scrape.Reviews),
			PagesScanned:     input.Scrape.PagesScanned,
			TimeSeconds:      round(input.Elapsed.Seconds(), 1),
		},
		AreasImprovement: areas,
		DashboardHints:   dashboardHints(attributes, insights, issues, summary, areas),
	}
}

func product(input Input) domain.Product {
	scraped := input.Scrape.Product
	total := scraped.TotalReviewsCount
	if total <= 0 {
		total = len(input.Scrape.Reviews)
	}
	return domain.Product{
		Name:              strings.TrimSpace(scraped.Name),
		Brand:             scraped.Brand,
		URL:               input.SourceURL,
		Source:            scraped.Source,
		Price:             scraped.Price,
		Currency:          scraped.Currency,
		OverallRating:     scraped.OverallRating,
		TotalReviewsCount: total,
		ImageURL:          scraped.ImageURL,
		ScrapedAt:         input.ScrapedAt,
	}
}

func annotate(reviews []domain.Review, sentiment *domain.SentimentResult) []domain.AnnotatedReview {
	out := make([]domain.AnnotatedReview, 0, len(reviews))
	for i, review := range reviews {
		annotation := domain.SentimentAnnotation{Label: domain.SentimentNeutral, Score: 0.5}
		if sentiment != nil && i < len(sentiment.Annotations) {
			annotation = sentiment.Annotations[i]
		}
		out = append(out, domain.AnnotatedReview{
			ID:                 review.ID,
			Author:             review.Author,
			Date:               review.Date,
			Stars:              review.Stars,
			Text:               review.Text,
			SentimentLabel:     annotation.Label,
			SentimentScore:     annotation.Score,
			ExtractedKeywords:  topKeywords([]string{review.Text}, keywordsPerReview),
			DetectedAttributes: detectAttributes(review.Text),
		})
	}
	return out
}

func summarizeSentiment(reviews []domain.AnnotatedReview) domain.SentimentSummary {
	var positive, neutral, negative int
	for _, review := range reviews {
		switch review.SentimentLabel {
		case domain.SentimentPositive:
			positive++
		case domain.SentimentNegative:
			negative++
		default:
			neutral++
		}
	}
	total := len(reviews)
	return domain.SentimentSummary{
		Positive: domain.SentimentBucket{Count: positive, Percentage: percentage(positive, total)},
		Neutral:  domain.SentimentBucket{Count: neutral, Percentage: percentage(neutral, total)},
		Negative: domain.SentimentBucket{Count: negative, Percentage: percentage(negative, total)},
	}
}

// ratingDistribution buckets reviews by rounded star rating, five stars first.
// Unrated reviews are left out of the percentages.
func ratingDistribution(reviews []domain.Review) []domain.RatingBucket {
	counts := make([]int, 6)
	rated := 0
	for _, review := range reviews {
		stars := int(math.Round(review.Stars))
		if stars < 1 || stars > 5 {
			continue
		}
		counts[stars]++
		rated++
	}

	buckets := make([]domain.RatingBucket, 0, 5)
	for stars := 5; stars >= 1; stars-- {
		buckets = append(buckets, domain.RatingBucket{
			Stars:      stars,
			Count:      counts[stars],
			Percentage: percentage(counts[stars], rated),
		})
	}
	return buckets
}

func keywordInsights(reviews []domain.AnnotatedReview) domain.KeywordInsights {
	var positiveTexts, negativeTexts []string
	for _, review := range reviews {
		if strings.TrimSpace(review.Text) == "" {
			continue
		}
		switch review.SentimentLabel {
		case domain.SentimentPositive:
			positiveTexts = append(positiveTexts, review.Text)
		case domain.SentimentNegative:
			negativeTexts = append(negativeTexts, review.Text)
		}
	}

	return domain.KeywordInsights{
		PositiveKeywords: weighKeywords(positiveTexts),
		NegativeKeywords: weighKeywords(negativeTexts),
		Method:           keywordMethod,
		TopK:             keywordsPerSide,
	}
}

// weighKeywords reports, for the most frequent terms, how many texts mention
// each term and which share of texts that is.
func weighKeywords(texts []string) []domain.KeywordWeight {
	out := make([]domain.KeywordWeight, 0, keywordsPerSide)
	if len(texts) == 0 {
		return out
	}
	candidates := topKeywords(texts, keywordCandidates)
	if len(candidates) > keywordsPerSide {
		candidates = candidates[:keywordsPerSide]
	}
	for _, term := range candidates {
		count := documentFrequency(term, texts)
		out = append(out, domain.KeywordWeight{
			Term:   term,
			Count:  count,
			Weight: round(float64(count)/float64(len(texts)), 3),
		})
	}
	return out
}

func issuesOverview(negative []domain.KeywordWeight) domain.IssuesOverview {
	issues := make([]domain.IssueMention, 0, issuesLimit)
	for i, keyword := range negative {
		if i >= issuesLimit {
			break
		}
		issues = append(issues, domain.IssueMention{
			Issue:              keyword.Term,
			Mentions:           keyword.Count,
			PercentOfNegatives: round(keyword.Weight*100, 1),
		})
	}
	return domain.IssuesOverview{MostMentioned: issues}
}

func sample(reviews []domain.AnnotatedReview) []domain.AnnotatedReview {
	limit := min(len(reviews), sampleLimit)
	out := make([]domain.AnnotatedReview, 0, limit)
	for _, review := range reviews[:limit] {
		review.Text = policy.RedactReviewText(review.Text)
		review.Author = policy.RedactAuthor(review.Author)
		out = append(out, review)
	}
	return out
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}

func round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
