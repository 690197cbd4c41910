package domain

import "time"

// AnalysisResult is written atomically with the transition into completed.
type AnalysisResult struct {
	Product            Product           `json:"product" bson:"product"`
	SentimentSummary   SentimentSummary  `json:"sentiment_summary" bson:"sentiment_summary"`
	RatingDistribution []RatingBucket    `json:"rating_distribution" bson:"rating_distribution"`
	Attributes         []AttributeScore  `json:"attributes" bson:"attributes"`
	KeywordInsights    KeywordInsights   `json:"keyword_insights" bson:"keyword_insights"`
	IssuesOverview     IssuesOverview    `json:"issues_overview" bson:"issues_overview"`
	SampleReviews      []AnnotatedReview `json:"scraped_reviews_sample" bson:"scraped_reviews_sample"`
	ScrapeInfo         ScrapeInfo        `json:"scrape_info" bson:"scrape_info"`
	AreasImprovement   []ImprovementArea `json:"areas_improvement" bson:"areas_improvement"`
	DashboardHints     DashboardHints    `json:"dashboard_hints" bson:"dashboard_hints"`
}

type Product struct {
	Name              string    `json:"name" bson:"name"`
	Brand             string    `json:"brand,omitempty" bson:"brand,omitempty"`
	URL               string    `json:"url" bson:"url"`
	Source            string    `json:"source,omitempty" bson:"source,omitempty"`
	Price             float64   `json:"price,omitempty" bson:"price,omitempty"`
	Currency          string    `json:"currency,omitempty" bson:"currency,omitempty"`
	OverallRating     float64   `json:"overall_rating,omitempty" bson:"overall_rating,omitempty"`
	TotalReviewsCount int       `json:"total_reviews_count" bson:"total_reviews_count"`
	ImageURL          string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	ScrapedAt         time.Time `json:"scraped_at" bson:"scraped_at"`
}

type SentimentBucket struct {
	Count      int     `json:"count" bson:"count"`
	Percentage float64 `json:"percentage" bson:"percentage"`
}

type SentimentSummary struct {
	Positive   SentimentBucket `json:"positive" bson:"positive"`
	Neutral    SentimentBucket `json:"neutral" bson:"neutral"`
	Negative   SentimentBucket `json:"negative" bson:"negative"`
	Classifier string          `json:"classifier,omitempty" bson:"classifier,omitempty"`
}

type RatingBucket struct {
	Stars      int     `json:"stars" bson:"stars"`
	Count      int     `json:"count" bson:"count"`
	Percentage float64 `json:"percentage" bson:"percentage"`
}

type AttributeScore struct {
	Key                string   `json:"key" bson:"key"`
	DisplayName        string   `json:"display_name" bson:"display_name"`
	Score              float64  `json:"score" bson:"score"`
	PositiveCount      int      `json:"positive_count" bson:"positive_count"`
	NeutralCount       int      `json:"neutral_count" bson:"neutral_count"`
	NegativeCount      int      `json:"negative_count" bson:"negative_count"`
	TopPositivePhrases []string `json:"top_positive_phrases" bson:"top_positive_phrases"`
	TopNegativePhrases []string `json:"top_negative_phrases" bson:"top_negative_phrases"`
}

type KeywordWeight struct {
	Term   string  `json:"term" bson:"term"`
	Count  int     `json:"count" bson:"count"`
	Weight float64 `json:"weight" bson:"weight"`
}

type KeywordInsights struct {
	PositiveKeywords []KeywordWeight `json:"positive_keywords" bson:"positive_keywords"`
	NegativeKeywords []KeywordWeight `json:"negative_keywords" bson:"negative_keywords"`
	Method           string          `json:"method" bson:"method"`
	TopK             int             `json:"top_k" bson:"top_k"`
}

type IssueMention struct {
	Issue              string  `json:"issue" bson:"issue"`
	Mentions           int     `json:"mentions" bson:"mentions"`
	PercentOfNegatives float64 `json:"percent_of_negatives" bson:"percent_of_negatives"`
}

type IssuesOverview struct {
	MostMentioned []IssueMention `json:"most_mentioned" bson:"most_mentioned"`
}

type ScrapeInfo struct {
	ReviewsExtracted int     `json:"reviews_extracted" bson:"reviews_extracted"`
	PagesScanned     int     `json:"pages_scanned,omitempty" bson:"pages_scanned,omitempty"`
	TimeSeconds      float64 `json:"time_seconds" bson:"time_seconds"`
}

type ImprovementArea struct {
	Code     string `json:"code" bson:"code"`
	Title    string `json:"title" bson:"title"`
	Subtitle string `json:"subtitle" bson:"subtitle"`
}

type DashboardHints struct {
	HighlightPositive  string   `json:"highlight_positive,omitempty" bson:"highlight_positive,omitempty"`
	HighlightNegative  string   `json:"highlight_negative,omitempty" bson:"highlight_negative,omitempty"`
	RecommendedActions []string `json:"recommended_actions" bson:"recommended_actions"`
}
