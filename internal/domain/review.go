package domain

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// NormalizeSentimentLabel maps worker labels onto the three tracked buckets.
// Unknown or mixed labels count as neutral.
func NormalizeSentimentLabel(raw string) SentimentLabel {
	switch SentimentLabel(raw) {
	case SentimentPositive, SentimentNegative:
		return SentimentLabel(raw)
	default:
		return SentimentNeutral
	}
}

// Review is one scraped review as emitted by the scrape worker.
type Review struct {
	ID     string  `json:"id"`
	Author string  `json:"author,omitempty"`
	Date   string  `json:"date,omitempty"`
	Stars  float64 `json:"stars"`
	Text   string  `json:"text"`
}

// ScrapedProduct is the product metadata block of the scrape output.
type ScrapedProduct struct {
	Name              string  `json:"name"`
	Brand             string  `json:"brand"`
	Source            string  `json:"source"`
	Price             float64 `json:"price"`
	Currency          string  `json:"currency"`
	OverallRating     float64 `json:"overall_rating"`
	TotalReviewsCount int     `json:"total_reviews_count"`
	ImageURL          string  `json:"image_url"`
}

type ScrapeResult struct {
	Success      bool           `json:"success"`
	Product      ScrapedProduct `json:"product"`
	Reviews      []Review       `json:"reviews"`
	PagesScanned int            `json:"pages_scanned,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type SentimentAnnotation struct {
	Label SentimentLabel `json:"sentiment_label"`
	Score float64        `json:"sentiment_score"`
}

// SentimentResult holds one annotation per scraped review, in input order.
type SentimentResult struct {
	Annotations []SentimentAnnotation
	Classifier  string
}

type AnnotatedReview struct {
	ID                 string         `json:"id" bson:"id"`
	Author             string         `json:"author,omitempty" bson:"author,omitempty"`
	Date               string         `json:"date,omitempty" bson:"date,omitempty"`
	Stars              float64        `json:"stars" bson:"stars"`
	Text               string         `json:"text" bson:"text"`
	SentimentLabel     SentimentLabel `json:"sentiment_label" bson:"sentiment_label"`
	SentimentScore     float64        `json:"sentiment_score" bson:"sentiment_score"`
	ExtractedKeywords  []string       `json:"extracted_keywords" bson:"extracted_keywords"`
	DetectedAttributes []string       `json:"detected_attributes" bson:"detected_attributes"`
}
